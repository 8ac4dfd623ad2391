package archive

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrust/internal/audit"
)

func record(actor, action string) audit.Record {
	rec := audit.Record{PrevHash: "GENESIS", Hash: "h", HMAC: "m"}
	rec.Actor = actor
	rec.Action = action
	return rec
}

func TestAppendAndListByActor(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, record("elder-1", "one")))
	require.NoError(t, store.Append(ctx, record("elder-2", "two")))
	require.NoError(t, store.Append(ctx, record("elder-1", "three")))

	records, err := store.ListByActor(ctx, "elder-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "one", records[0].Action)
	assert.Equal(t, "three", records[1].Action)
}

func TestListRecent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, record("a", fmt.Sprintf("op_%d", i))))
	}

	records, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "op_3", records[0].Action)
	assert.Equal(t, "op_4", records[1].Action)

	all, err := store.ListRecent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
