package store

import "testing"

// Error sentinels are exercised indirectly through redis_store_test.go;
// this file just pins their identity so a refactor can't silently change
// which error ReadRule/FindBoxByName return.
func TestErrorSentinelsAreDistinct(t *testing.T) {
	if ErrBoxNotFound == ErrRuleNotFound {
		t.Fatal("ErrBoxNotFound and ErrRuleNotFound must be distinct sentinels")
	}
}
