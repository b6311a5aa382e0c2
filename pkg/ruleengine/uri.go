package ruleengine

import "strings"

// Local schemes resolved against the current unit/cell/box at dispatch
// time, before an action's service URL is handed to a worker.
const (
	SchemeLocalUnit = "localunit:"
	SchemeLocalCell = "localcell:"
	SchemeLocalBox  = "localbox:"
)

// LocalUnitToHTTP replaces a leading localunit: with unitURL. Pass-through
// for any other prefix; empty input returns empty.
func LocalUnitToHTTP(unitURL, s string) string {
	if s == "" {
		return s
	}
	if strings.HasPrefix(s, SchemeLocalUnit) {
		return strings.Replace(s, SchemeLocalUnit, unitURL, 1)
	}
	return s
}

// LocalCellToHTTP replaces a leading localcell: with cellURL. Pass-through
// otherwise.
func LocalCellToHTTP(cellURL, s string) string {
	if s == "" {
		return s
	}
	if strings.HasPrefix(s, SchemeLocalCell) {
		return strings.Replace(s, SchemeLocalCell, cellURL, 1)
	}
	return s
}

// LocalBoxToLocalCell replaces a leading localbox: with localcell:<boxName>/.
// A leading slash on the remainder is not doubled, so "localbox:/svc" and
// "localbox:svc" both become "localcell:<boxName>/svc". Pass-through
// otherwise.
func LocalBoxToLocalCell(s, boxName string) string {
	if s == "" {
		return s
	}
	if strings.HasPrefix(s, SchemeLocalBox) {
		rest := strings.TrimPrefix(strings.TrimPrefix(s, SchemeLocalBox), "/")
		return SchemeLocalCell + boxName + "/" + rest
	}
	return s
}

// LocalBoxToHTTP expands a leading localbox: directly to absolute form:
// cellURL + boxName + rest. Pass-through otherwise.
func LocalBoxToHTTP(cellURL, boxName, s string) string {
	if s == "" {
		return s
	}
	if strings.HasPrefix(s, SchemeLocalBox) {
		return cellURL + boxName + strings.TrimPrefix(s, SchemeLocalBox)
	}
	return s
}
