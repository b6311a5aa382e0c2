package ruleengine

import "sync"

// Index is the live, per-tenant rule and box index. Two distinct mutexes
// protect it: rulesLock for the rule maps, boxesLock for the box maps.
// Whenever both are needed, rulesLock is always acquired first; reversing
// that order anywhere is a bug.
type Index struct {
	rulesLock sync.Mutex
	rules     map[string]map[string]*RuleInfo // cellId -> ruleKey -> RuleInfo

	boxesLock sync.Mutex
	boxes     map[string]map[string]*BoxInfo // cellId -> boxId -> BoxInfo

	listenersLock sync.Mutex
	listeners     []func(cellID string)
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		rules: make(map[string]map[string]*RuleInfo),
		boxes: make(map[string]map[string]*BoxInfo),
	}
}

// OnChange registers fn to be called, with the affected cellID, after every
// rule or box mutation. Intended for a debug feed pushing index updates to
// observers. fn runs on the mutating goroutine after the index's locks are
// released, so it may read from the Index but should not block.
func (idx *Index) OnChange(fn func(cellID string)) {
	idx.listenersLock.Lock()
	defer idx.listenersLock.Unlock()
	idx.listeners = append(idx.listeners, fn)
}

func (idx *Index) notify(cellID string) {
	idx.listenersLock.Lock()
	listeners := make([]func(string), len(idx.listeners))
	copy(listeners, idx.listeners)
	idx.listenersLock.Unlock()

	for _, fn := range listeners {
		fn(cellID)
	}
}

// resolveOrCreateBoxLocked resolves boxName to a shared BoxInfo within
// cellID, creating one on first reference. Caller must hold boxesLock.
func (idx *Index) resolveOrCreateBoxLocked(cellID, boxID, boxName, schema string) *BoxInfo {
	cellBoxes, ok := idx.boxes[cellID]
	if !ok {
		cellBoxes = make(map[string]*BoxInfo)
		idx.boxes[cellID] = cellBoxes
	}
	box, ok := cellBoxes[boxID]
	if !ok {
		box = &BoxInfo{ID: boxID, Name: boxName, Schema: schema}
		cellBoxes[boxID] = box
	}
	box.RefCount++
	return box
}

func (idx *Index) releaseBoxLocked(cellID string, box *BoxInfo) {
	box.RefCount--
	if box.RefCount <= 0 {
		if cellBoxes, ok := idx.boxes[cellID]; ok {
			delete(cellBoxes, box.ID)
			if len(cellBoxes) == 0 {
				delete(idx.boxes, cellID)
			}
		}
	}
}

// Register inserts rule into cellID's rule index under ruleKey. Callers
// that need a box reference must resolve it via ResolveBox first and
// attach it to rule.Box before calling Register.
func (idx *Index) Register(cellID, ruleKey string, rule *RuleInfo) {
	idx.rulesLock.Lock()
	cellRules, ok := idx.rules[cellID]
	if !ok {
		cellRules = make(map[string]*RuleInfo)
		idx.rules[cellID] = cellRules
	}
	cellRules[ruleKey] = rule
	idx.rulesLock.Unlock()

	idx.notify(cellID)
}

// ResolveBox resolves or creates a shared BoxInfo for (cellID, boxID),
// incrementing its refcount, and returns it for attachment to a RuleInfo
// before Register is called.
func (idx *Index) ResolveBox(cellID, boxID, boxName, schema string) *BoxInfo {
	idx.boxesLock.Lock()
	defer idx.boxesLock.Unlock()
	return idx.resolveOrCreateBoxLocked(cellID, boxID, boxName, schema)
}

// Unregister removes the rule keyed by ruleKey from cellID's rule index.
// If it referenced a box, the box's refcount is decremented (and the box
// removed at zero) under boxesLock, after the rule has been removed under
// rulesLock. Returns whether a rule was found and removed.
func (idx *Index) Unregister(cellID, ruleKey string) bool {
	idx.rulesLock.Lock()
	cellRules, ok := idx.rules[cellID]
	if !ok {
		idx.rulesLock.Unlock()
		return false
	}
	rule, ok := cellRules[ruleKey]
	if !ok {
		idx.rulesLock.Unlock()
		return false
	}
	delete(cellRules, ruleKey)
	if len(cellRules) == 0 {
		delete(idx.rules, cellID)
	}
	idx.rulesLock.Unlock()

	if rule.Box != nil {
		idx.boxesLock.Lock()
		idx.releaseBoxLocked(cellID, rule.Box)
		idx.boxesLock.Unlock()
	}
	idx.notify(cellID)
	return true
}

// Purge drops every rule and box entry for cellID, under both locks in
// rulesLock-then-boxesLock order.
func (idx *Index) Purge(cellID string) {
	idx.rulesLock.Lock()
	delete(idx.rules, cellID)
	idx.rulesLock.Unlock()

	idx.boxesLock.Lock()
	delete(idx.boxes, cellID)
	idx.boxesLock.Unlock()

	idx.notify(cellID)
}

// Rules returns a snapshot slice of cellID's rules, for iteration outside
// the lock. Safe to call concurrently with mutation; the snapshot may be
// stale by the time the caller acts on it, which is the documented
// eventual-consistency contract between judge and the subscriber.
func (idx *Index) Rules(cellID string) []*RuleInfo {
	idx.rulesLock.Lock()
	defer idx.rulesLock.Unlock()

	cellRules, ok := idx.rules[cellID]
	if !ok {
		return nil
	}
	out := make([]*RuleInfo, 0, len(cellRules))
	for _, r := range cellRules {
		out = append(out, r)
	}
	return out
}

// RuleAt returns the rule stored under ruleKey in cellID, if any.
func (idx *Index) RuleAt(cellID, ruleKey string) (*RuleInfo, bool) {
	idx.rulesLock.Lock()
	defer idx.rulesLock.Unlock()
	cellRules, ok := idx.rules[cellID]
	if !ok {
		return nil, false
	}
	r, ok := cellRules[ruleKey]
	return r, ok
}

// BoxAt returns the BoxInfo stored under boxID in cellID, if any.
func (idx *Index) BoxAt(cellID, boxID string) (*BoxInfo, bool) {
	idx.boxesLock.Lock()
	defer idx.boxesLock.Unlock()
	cellBoxes, ok := idx.boxes[cellID]
	if !ok {
		return nil, false
	}
	b, ok := cellBoxes[boxID]
	return b, ok
}

// BoxByName returns the BoxInfo with the given name in cellID, if any.
func (idx *Index) BoxByName(cellID, name string) (*BoxInfo, bool) {
	idx.boxesLock.Lock()
	defer idx.boxesLock.Unlock()
	cellBoxes, ok := idx.boxes[cellID]
	if !ok {
		return nil, false
	}
	for _, b := range cellBoxes {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// UpdateBoxSchema locates the shared BoxInfo for (cellID, boxID) and
// overwrites its name and schema in place, so every rule holding a
// borrowed reference sees the update without re-registering.
func (idx *Index) UpdateBoxSchema(cellID, boxID, name, schema string) bool {
	idx.boxesLock.Lock()
	cellBoxes, ok := idx.boxes[cellID]
	if !ok {
		idx.boxesLock.Unlock()
		return false
	}
	box, ok := cellBoxes[boxID]
	if !ok {
		idx.boxesLock.Unlock()
		return false
	}
	box.Name = name
	box.Schema = schema
	idx.boxesLock.Unlock()

	idx.notify(cellID)
	return true
}

// Boxes returns a snapshot slice of cellID's boxes.
func (idx *Index) Boxes(cellID string) []*BoxInfo {
	idx.boxesLock.Lock()
	defer idx.boxesLock.Unlock()
	cellBoxes, ok := idx.boxes[cellID]
	if !ok {
		return nil
	}
	out := make([]*BoxInfo, 0, len(cellBoxes))
	for _, b := range cellBoxes {
		out = append(out, b)
	}
	return out
}
