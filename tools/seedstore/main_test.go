// cellrules/tools/seedstore/main_test.go

package main

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/cellrules/engine/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedWritesBoxAndRules(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb, err := store.NewRedisStore(mr.Addr(), "", 0, "rule")
	require.NoError(t, err)

	require.NoError(t, seed(rdb))

	rules, err := rdb.ListRules(ctx, "cell1")
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	box, err := rdb.FindBoxByName(ctx, "cell1", "weatherbox")
	require.NoError(t, err)
	assert.Equal(t, "box1", box.ID)
}

func TestProcessCommandPublishesEvent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb, err := store.NewRedisStore(mr.Addr(), "", 0, "rule")
	require.NoError(t, err)

	err = processCommand(rdb, "publish cell1 cell.import")
	assert.NoError(t, err)

	err = processCommand(rdb, "not a valid command")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid command")
}
