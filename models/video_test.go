package models

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		`create table channels (
			id         text primary key,
			name       text not null,
			created_at timestamp not null
		)`,
		`create table videos (
			id          text primary key,
			channel_id  text not null references channels (id),
			title       text not null,
			description text not null default '',
			date        integer not null,
			created_at  timestamp not null
		)`,
		`create table playlists (
			id         text primary key,
			channel_id text not null references channels (id),
			name       text not null,
			created_at timestamp not null
		)`,
		`create table playlist_videos (
			playlist_id  text not null references playlists (id),
			playlist_row integer not null,
			video_id     text not null,
			primary key (playlist_id, playlist_row)
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := db.Exec("insert into channels (id, name, created_at) values (?, ?, ?)", "UCexample000000000000000", "example", time.Now()); err != nil {
		t.Fatal(err)
	}

	return db
}

func TestUpsertVideoCreatesThenUpdates(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	first := Video{
		ID:          "dQw4w9WgXcQ",
		ChannelID:   "UCexample000000000000000",
		Title:       "Original Title",
		Description: "original",
		Date:        time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	a.NoError(UpsertVideo(ctx, db, &first))

	second := Video{
		ID:          "dQw4w9WgXcQ",
		ChannelID:   "UCexample000000000000000",
		Title:       "Updated Title",
		Description: "updated",
		Date:        time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	a.NoError(UpsertVideo(ctx, db, &second))

	var count int
	a.NoError(db.QueryRow("select count(1) from videos").Scan(&count))
	a.Equal(1, count)

	// the later write wins for title, description, and date
	var title, description string
	var date int64
	a.NoError(db.QueryRow("select title, description, date from videos where id = ?", "dQw4w9WgXcQ").Scan(&title, &description, &date))
	a.Equal("Updated Title", title)
	a.Equal("updated", description)
	a.Equal(second.Date.Unix(), date)
}

func TestUpsertVideoKeepsChannelID(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := db.Exec("insert into channels (id, name, created_at) values (?, ?, ?)", "UCother00000000000000000", "other", time.Now()); err != nil {
		t.Fatal(err)
	}

	a.NoError(UpsertVideo(ctx, db, &Video{
		ID:        "dQw4w9WgXcQ",
		ChannelID: "UCexample000000000000000",
		Title:     "First",
		Date:      time.Now(),
	}))

	a.NoError(UpsertVideo(ctx, db, &Video{
		ID:        "dQw4w9WgXcQ",
		ChannelID: "UCother00000000000000000",
		Title:     "Second",
		Date:      time.Now(),
	}))

	// a conflicting write never moves a video between channels
	var channelID string
	a.NoError(db.QueryRow("select channel_id from videos where id = ?", "dQw4w9WgXcQ").Scan(&channelID))
	a.Equal("UCexample000000000000000", channelID)
}

func TestUpsertVideoIdempotenceProperty(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("n repeats of the same write leave one identical row", prop.ForAll(
		func(title, description string, date int64, repeats int) bool {
			v := Video{
				ID:          "abcdefghijk",
				ChannelID:   "UCexample000000000000000",
				Title:       title,
				Description: description,
				Date:        time.Unix(date, 0).UTC(),
			}

			for i := 0; i < repeats; i++ {
				if err := UpsertVideo(ctx, db, &v); err != nil {
					return false
				}
			}

			var count int
			if err := db.QueryRow("select count(1) from videos where id = ?", v.ID).Scan(&count); err != nil {
				return false
			}

			var gotTitle, gotDescription string
			var gotDate int64
			if err := db.QueryRow("select title, description, date from videos where id = ?", v.ID).Scan(&gotTitle, &gotDescription, &gotDate); err != nil {
				return false
			}

			return count == 1 && gotTitle == title && gotDescription == description && gotDate == v.Date.Unix()
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.Int64Range(0, 4102444800),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

func TestReplacePlaylistReplacesContents(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	p := Playlist{ID: "PLfirst", ChannelID: "UCexample000000000000000", Name: "Favourites"}

	a.NoError(ReplacePlaylist(ctx, db, &p, []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"}))

	rows := func() []string {
		var out []string
		rs, err := db.Query("select video_id from playlist_videos where playlist_id = ? order by playlist_row", "PLfirst")
		if err != nil {
			t.Fatal(err)
		}
		defer rs.Close()
		for rs.Next() {
			var id string
			if err := rs.Scan(&id); err != nil {
				t.Fatal(err)
			}
			out = append(out, id)
		}
		return out
	}

	a.Equal([]string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"}, rows())

	// replacing with a reordered, shorter list leaves no stale rows behind
	p2 := Playlist{ID: "PLfirst", ChannelID: "UCexample000000000000000", Name: "Favourites Renamed"}
	a.NoError(ReplacePlaylist(ctx, db, &p2, []string{"ccccccccccc", "aaaaaaaaaaa"}))

	a.Equal([]string{"ccccccccccc", "aaaaaaaaaaa"}, rows())

	var name string
	a.NoError(db.QueryRow("select name from playlists where id = ?", "PLfirst").Scan(&name))
	a.Equal("Favourites Renamed", name)
}
