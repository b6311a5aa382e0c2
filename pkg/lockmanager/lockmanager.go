// Package lockmanager tracks per-cell write activity so the dispatcher can
// refuse to judge events against a cell mid-deletion, and so a box's
// reference count can be mutated without racing a concurrent bulk-delete
// of the owning cell.
package lockmanager

import (
	"sync"

	"github.com/cellrules/engine/pkg/ruleengine"
)

var _ ruleengine.CellLockManager = (*Manager)(nil)

// Manager is an in-memory registry of cell statuses and reference counts,
// safe for concurrent use. It implements ruleengine.CellLockManager.
type Manager struct {
	mu       sync.RWMutex
	statuses map[string]ruleengine.CellStatus
	refs     map[string]int
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		statuses: make(map[string]ruleengine.CellStatus),
		refs:     make(map[string]int),
	}
}

// Status returns the current status of cellID. An unknown cell is
// ruleengine.CellStatusNormal.
func (m *Manager) Status(cellID string) ruleengine.CellStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[cellID]
}

// SetStatus records cellID's status.
func (m *Manager) SetStatus(cellID string, status ruleengine.CellStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == ruleengine.CellStatusNormal {
		delete(m.statuses, cellID)
		return
	}
	m.statuses[cellID] = status
}

// IncRef increments cellID's reference count and returns the new value.
func (m *Manager) IncRef(cellID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[cellID]++
	return m.refs[cellID]
}

// DecRef decrements cellID's reference count and returns the new value.
// It never goes below zero.
func (m *Manager) DecRef(cellID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs[cellID] > 0 {
		m.refs[cellID]--
	}
	if m.refs[cellID] == 0 {
		delete(m.refs, cellID)
		return 0
	}
	return m.refs[cellID]
}

// RefCount returns cellID's current reference count.
func (m *Manager) RefCount(cellID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs[cellID]
}
