package schema

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	a := assert.New(t)

	db, err := sql.Open("sqlite3", ":memory:")
	if !a.NoError(err) {
		return
	}
	defer db.Close()

	ctx := context.Background()

	a.NoError(Apply(ctx, db))

	// second run should be a no-op
	a.NoError(Apply(ctx, db))

	for _, name := range []string{
		"channels",
		"videos",
		"playlists",
		"playlist_videos",
		"channel_needs_video_sync",
		"channel_needs_playlist_sync",
		"latest_videos",
		"playlist_contents",
		"channel_playlists",
		"video_memberships",
	} {
		var count int
		a.NoError(db.QueryRowContext(ctx, "select count(1) from sqlite_master where name = ?", name).Scan(&count))
		a.Equal(1, count, name)
	}

	var applied int
	a.NoError(db.QueryRowContext(ctx, "select count(1) from migrations").Scan(&applied))
	a.Equal(len(migrations), applied)
}
