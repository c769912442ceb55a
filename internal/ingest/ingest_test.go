package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytsubs/internal/ctxdb"
	"fknsrs.biz/p/ytsubs/internal/schema"
	"fknsrs.biz/p/ytsubs/internal/syncqueue"
	"fknsrs.biz/p/ytsubs/internal/ytdl"
	"fknsrs.biz/p/ytsubs/internal/ytfeed"
)

func testContext(t *testing.T) (context.Context, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := ctxdb.WithDB(context.Background(), db)

	if err := schema.Apply(ctx, db); err != nil {
		t.Fatal(err)
	}

	return ctx, db
}

func addChannel(t *testing.T, db *sql.DB, id, name string) {
	t.Helper()

	if _, err := db.Exec("insert into channels (id, name, created_at) values (?, ?, ?)", id, name, time.Now()); err != nil {
		t.Fatal(err)
	}
}

func countVideos(t *testing.T, db *sql.DB, channelID string) int {
	t.Helper()

	var n int
	if err := db.QueryRow("select count(1) from videos where channel_id = ?", channelID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

type fakeCatalogue struct {
	videos    map[string][]ytdl.Video
	playlists map[string][]ytdl.Playlist
	skips     []*ytdl.ExtractionSkip
	err       error
}

func (f *fakeCatalogue) ChannelVideos(ctx context.Context, channelID string) ([]ytdl.Video, []*ytdl.ExtractionSkip, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.videos[channelID], f.skips, nil
}

func (f *fakeCatalogue) ChannelPlaylists(ctx context.Context, channelID string) ([]ytdl.Playlist, []*ytdl.ExtractionSkip, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.playlists[channelID], f.skips, nil
}

func TestPollOnce(t *testing.T) {
	a := assert.New(t)
	ctx, db := testContext(t)

	addChannel(t, db, "UCgood0000000000000000ok", "good")
	addChannel(t, db, "UCbad00000000000000000no", "bad")

	published := time.Date(2023, 6, 1, 0, 30, 0, 0, time.UTC)

	fetch := func(ctx context.Context, channelID string) (*ytfeed.Feed, error) {
		if channelID == "UCbad00000000000000000no" {
			return nil, &ytfeed.FetchError{ChannelID: channelID, Err: fmt.Errorf("boom")}
		}

		return &ytfeed.Feed{
			ChannelID: channelID,
			Title:     "good",
			Videos: []ytfeed.Video{
				{ID: "dQw4w9WgXcQ", ChannelID: channelID, Title: "First Video", Published: published},
			},
		}, nil
	}

	// one channel failing must not stop the other from being stored
	a.NoError(pollOnce(ctx, fetch))

	a.Equal(1, countVideos(t, db, "UCgood0000000000000000ok"))
	a.Equal(0, countVideos(t, db, "UCbad00000000000000000no"))

	var title string
	var date int64
	a.NoError(db.QueryRow("select title, date from videos where id = ?", "dQw4w9WgXcQ").Scan(&title, &date))
	a.Equal("First Video", title)
	a.Equal(published.Unix(), date)
}

func TestPollOnceIsIdempotent(t *testing.T) {
	a := assert.New(t)
	ctx, db := testContext(t)

	addChannel(t, db, "UCgood0000000000000000ok", "good")

	fetch := func(ctx context.Context, channelID string) (*ytfeed.Feed, error) {
		return &ytfeed.Feed{
			ChannelID: channelID,
			Videos: []ytfeed.Video{
				{ID: "dQw4w9WgXcQ", ChannelID: channelID, Title: "Renamed", Published: time.Now()},
			},
		}, nil
	}

	a.NoError(pollOnce(ctx, fetch))
	a.NoError(pollOnce(ctx, fetch))

	a.Equal(1, countVideos(t, db, "UCgood0000000000000000ok"))
}

func TestBackfillChannelVideos(t *testing.T) {
	a := assert.New(t)
	ctx, db := testContext(t)

	addChannel(t, db, "UCgood0000000000000000ok", "good")
	a.NoError(syncqueue.Enqueue(ctx, db, syncqueue.KindVideo, "UCgood0000000000000000ok"))

	client := &fakeCatalogue{videos: map[string][]ytdl.Video{
		"UCgood0000000000000000ok": {
			{ID: "dQw4w9WgXcQ", Title: "First Video", Date: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "abcdefghijk", Title: "Second Video", Date: time.Date(2023, 5, 28, 0, 0, 0, 0, time.UTC)},
		},
	}}

	backfillChannelVideos(ctx, client, syncqueue.Entry{ChannelID: "UCgood0000000000000000ok", ChannelName: "good"})

	a.Equal(2, countVideos(t, db, "UCgood0000000000000000ok"))

	// the queue entry goes away in the same transaction as the writes
	entries, err := syncqueue.Pending(ctx, db, syncqueue.KindVideo)
	a.NoError(err)
	a.Len(entries, 0)
}

func TestBackfillChannelVideosSkipsDontBlockTheRest(t *testing.T) {
	a := assert.New(t)
	ctx, db := testContext(t)

	addChannel(t, db, "UCgood0000000000000000ok", "good")
	a.NoError(syncqueue.Enqueue(ctx, db, syncqueue.KindVideo, "UCgood0000000000000000ok"))

	client := &fakeCatalogue{
		videos: map[string][]ytdl.Video{
			"UCgood0000000000000000ok": {
				{ID: "dQw4w9WgXcQ", Title: "First Video", Date: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
			},
		},
		skips: []*ytdl.ExtractionSkip{
			{ChannelID: "UCgood0000000000000000ok", Reason: "entry has no id"},
		},
	}

	backfillChannelVideos(ctx, client, syncqueue.Entry{ChannelID: "UCgood0000000000000000ok", ChannelName: "good"})

	// the skipped entry doesn't hold back the rest, and the channel still
	// counts as synced
	a.Equal(1, countVideos(t, db, "UCgood0000000000000000ok"))

	entries, err := syncqueue.Pending(ctx, db, syncqueue.KindVideo)
	a.NoError(err)
	a.Len(entries, 0)
}

func TestBackfillChannelVideosFetchFailureLeavesChannelQueued(t *testing.T) {
	a := assert.New(t)
	ctx, db := testContext(t)

	addChannel(t, db, "UCgood0000000000000000ok", "good")
	a.NoError(syncqueue.Enqueue(ctx, db, syncqueue.KindVideo, "UCgood0000000000000000ok"))

	client := &fakeCatalogue{err: fmt.Errorf("yt-dlp exploded")}

	backfillChannelVideos(ctx, client, syncqueue.Entry{ChannelID: "UCgood0000000000000000ok", ChannelName: "good"})

	a.Equal(0, countVideos(t, db, "UCgood0000000000000000ok"))

	entries, err := syncqueue.Pending(ctx, db, syncqueue.KindVideo)
	a.NoError(err)
	a.Len(entries, 1)
}

func TestBackfillChannelPlaylists(t *testing.T) {
	a := assert.New(t)
	ctx, db := testContext(t)

	addChannel(t, db, "UCgood0000000000000000ok", "good")
	a.NoError(syncqueue.Enqueue(ctx, db, syncqueue.KindPlaylist, "UCgood0000000000000000ok"))

	client := &fakeCatalogue{playlists: map[string][]ytdl.Playlist{
		"UCgood0000000000000000ok": {
			{ID: "PLfirst", Name: "Favourites", VideoIDs: []string{"abcdefghijk", "dQw4w9WgXcQ"}},
		},
	}}

	backfillChannelPlaylists(ctx, client, syncqueue.Entry{ChannelID: "UCgood0000000000000000ok", ChannelName: "good"})

	var rows int
	a.NoError(db.QueryRow("select count(1) from playlist_videos where playlist_id = ?", "PLfirst").Scan(&rows))
	a.Equal(2, rows)

	var firstVideo string
	a.NoError(db.QueryRow("select video_id from playlist_videos where playlist_id = ? and playlist_row = 1", "PLfirst").Scan(&firstVideo))
	a.Equal("abcdefghijk", firstVideo)

	entries, err := syncqueue.Pending(ctx, db, syncqueue.KindPlaylist)
	a.NoError(err)
	a.Len(entries, 0)

	// a second run with a shorter playlist replaces the old contents
	client.playlists["UCgood0000000000000000ok"][0].VideoIDs = []string{"dQw4w9WgXcQ"}
	a.NoError(syncqueue.Enqueue(ctx, db, syncqueue.KindPlaylist, "UCgood0000000000000000ok"))

	backfillChannelPlaylists(ctx, client, syncqueue.Entry{ChannelID: "UCgood0000000000000000ok", ChannelName: "good"})

	a.NoError(db.QueryRow("select count(1) from playlist_videos where playlist_id = ?", "PLfirst").Scan(&rows))
	a.Equal(1, rows)
}

func TestRunVideoBackfillStopsOnCancel(t *testing.T) {
	a := assert.New(t)
	ctx, _ := testContext(t)

	ctx, cancel := context.WithCancel(ctx)
	cancel()

	err := RunVideoBackfill(ctx, time.Millisecond, &fakeCatalogue{})
	a.ErrorIs(err, context.Canceled)
}

func TestRunFeedPollStopsOnCancel(t *testing.T) {
	a := assert.New(t)
	ctx, _ := testContext(t)

	ctx, cancel := context.WithCancel(ctx)
	cancel()

	err := RunFeedPoll(ctx, time.Millisecond, func(ctx context.Context, channelID string) (*ytfeed.Feed, error) {
		return nil, fmt.Errorf("should not be called")
	})
	a.ErrorIs(err, context.Canceled)
}
