package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

const testBuildID = "build-test-1"

func newMemoryStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, testBuildID, "TestEvent", []byte(`{"test":"data"}`), map[string]string{"key": "value"}))

	events, err := store.GetByBuildID(ctx, testBuildID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, testBuildID, ev.BuildID())
	assert.Equal(t, "TestEvent", ev.Type())
	assert.JSONEq(t, `{"test":"data"}`, string(ev.Payload()))
	assert.Equal(t, "value", ev.Metadata()["key"])
	assert.Positive(t, ev.ID())
}

func TestAppendEventKeepsTimestamp(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()
	at := time.Date(2024, 3, 2, 10, 0, 0, 123_000_000, time.UTC)

	ev, err := NewModuleStarted(testBuildID, module.NewName("g", "a", "1"), at)
	require.NoError(t, err)
	require.NoError(t, AppendEvent(ctx, store, ev))

	events, err := store.GetByBuildID(ctx, testBuildID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, at.Equal(events[0].Timestamp()), "got %s", events[0].Timestamp())

	inRange, err := store.GetRange(ctx, at.Add(-time.Second), at.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, inRange, 1)

	outOfRange, err := store.GetRange(ctx, at.Add(time.Second), at.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, outOfRange)
}

func TestBuildIDsNewestFirst(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()
	for _, id := range []string{"b1", "b2", "b1", "b3"} {
		require.NoError(t, store.Append(ctx, id, "X", []byte(`{}`), nil))
	}

	ids, err := store.BuildIDs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b3", "b2", "b1"}, ids)

	ids, err = store.BuildIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b3"}, ids)
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), testBuildID, "X", []byte(`{}`), nil))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	events, err := reopened.GetByBuildID(t.Context(), testBuildID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestClosedStoreErrorsAreClassified(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Append(t.Context(), testBuildID, "X", []byte(`{}`), nil)
	require.ErrorIs(t, err, ErrEventAppendFailed)
	assert.True(t, errors.HasCategory(err, errors.CategoryEventStore))
}

func TestInvalidResultRejected(t *testing.T) {
	_, err := NewModuleResultSet(testBuildID, module.NewName("g", "a", "1"), "MAYBE", time.Now())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}
