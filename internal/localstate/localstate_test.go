// internal/localstate/localstate_test.go

package localstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPebbleRoundTrip(t *testing.T) {
	store, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	// missing record loads as the zero state
	st, err := store.Load(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, State{}, st)

	want := State{
		LastReadMessageID: "m42",
		UnreadCount:       3,
		Username:          "alice",
	}
	require.NoError(t, store.Save(ctx, "general", want))

	got, err := store.Load(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPebbleRoomsAreIsolated(t *testing.T) {
	store, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "general", State{Username: "alice", UnreadCount: 1}))
	require.NoError(t, store.Save(ctx, "random", State{Username: "alice", UnreadCount: 7}))

	general, err := store.Load(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, 1, general.UnreadCount)

	random, err := store.Load(ctx, "random")
	require.NoError(t, err)
	assert.Equal(t, 7, random.UnreadCount)
}

func TestPebbleOverwrite(t *testing.T) {
	store, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "general", State{LastReadMessageID: "m1", UnreadCount: 5}))
	require.NoError(t, store.Save(ctx, "general", State{LastReadMessageID: "m9", UnreadCount: 0}))

	got, err := store.Load(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, "m9", got.LastReadMessageID)
	assert.Equal(t, 0, got.UnreadCount)
}
