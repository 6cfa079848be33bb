package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nayandeep999/truefeedback/internal/database/testutil"
)

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "greeting", []byte("hello"), time.Minute))

	value, ok, err := store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), value)

	require.NoError(t, store.Delete(ctx, "greeting"))

	_, ok, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreGetRespectsExpiry(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short-lived", []byte("gone soon"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := store.Get(ctx, "short-lived")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreSetOverwrites(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "counter", []byte("one"), time.Minute))
	require.NoError(t, store.Set(ctx, "counter", []byte("two"), time.Minute))

	value, ok, err := store.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("two"), value)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rate:login", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "rate:login", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestDatabaseStoreIncrementResetsAfterExpiry(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	count, _, err := store.IncrementWithTTL(ctx, "rate:burst", time.Millisecond)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	time.Sleep(5 * time.Millisecond)

	count, _, err = store.IncrementWithTTL(ctx, "rate:burst", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
