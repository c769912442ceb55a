package syncqueue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytsubs/internal/schema"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := schema.Apply(context.Background(), db); err != nil {
		t.Fatal(err)
	}

	return db
}

func addChannel(t *testing.T, db *sql.DB, id, name string, createdAt time.Time) {
	t.Helper()

	if _, err := db.Exec("insert into channels (id, name, created_at) values (?, ?, ?)", id, name, createdAt); err != nil {
		t.Fatal(err)
	}
}

func TestEnqueueIsIdempotent(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	addChannel(t, db, "UCaaa", "first", time.Now())

	a.NoError(Enqueue(ctx, db, KindVideo, "UCaaa"))
	a.NoError(Enqueue(ctx, db, KindVideo, "UCaaa"))

	entries, err := Pending(ctx, db, KindVideo)
	a.NoError(err)
	a.Len(entries, 1)
}

func TestPendingOrder(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Now()
	addChannel(t, db, "UCbbb", "second", now.Add(time.Hour))
	addChannel(t, db, "UCaaa", "first", now)

	a.NoError(Enqueue(ctx, db, KindPlaylist, "UCbbb"))
	a.NoError(Enqueue(ctx, db, KindPlaylist, "UCaaa"))

	entries, err := Pending(ctx, db, KindPlaylist)
	a.NoError(err)
	if a.Len(entries, 2) {
		a.Equal("UCaaa", entries[0].ChannelID)
		a.Equal("first", entries[0].ChannelName)
		a.Equal("UCbbb", entries[1].ChannelID)
	}
}

func TestKindsAreIndependent(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	addChannel(t, db, "UCaaa", "first", time.Now())

	a.NoError(Enqueue(ctx, db, KindVideo, "UCaaa"))
	a.NoError(Enqueue(ctx, db, KindPlaylist, "UCaaa"))
	a.NoError(Remove(ctx, db, KindVideo, "UCaaa"))

	videos, err := Pending(ctx, db, KindVideo)
	a.NoError(err)
	a.Len(videos, 0)

	playlists, err := Pending(ctx, db, KindPlaylist)
	a.NoError(err)
	a.Len(playlists, 1)
}

func TestRemoveRollsBackWithTransaction(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	addChannel(t, db, "UCaaa", "first", time.Now())
	a.NoError(Enqueue(ctx, db, KindVideo, "UCaaa"))

	tx, err := db.BeginTx(ctx, nil)
	if !a.NoError(err) {
		return
	}
	a.NoError(Remove(ctx, tx, KindVideo, "UCaaa"))
	a.NoError(tx.Rollback())

	entries, err := Pending(ctx, db, KindVideo)
	a.NoError(err)
	a.Len(entries, 1)
}
