package ytdl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const channelVideosJSON = `{
	"_type": "playlist",
	"id": "UCexample000000000000000",
	"entries": [
		{
			"_type": "playlist",
			"id": "UCexample000000000000000-videos",
			"title": "Example - Videos",
			"entries": [
				{"id": "dQw4w9WgXcQ", "title": "First Video", "description": "hello", "upload_date": "20230601"},
				null,
				{"id": "abcdefghijk", "title": "Second Video", "timestamp": 1685232000},
				{"title": "members only, no id"},
				{"id": "nodate00000", "title": "No Date"}
			]
		}
	]
}`

const channelPlaylistsJSON = `{
	"_type": "playlist",
	"id": "UCexample000000000000000",
	"entries": [
		{"id": "PLfirst", "title": "Favourites"},
		null
	]
}`

const playlistJSON = `{
	"_type": "playlist",
	"id": "PLfirst",
	"entries": [
		{"id": "abcdefghijk", "title": "Second Video"},
		{"id": "dQw4w9WgXcQ", "title": "First Video"},
		{"title": "deleted video"}
	]
}`

func fakeRun(responses map[string]string) func(ctx context.Context, program string, args ...string) ([]byte, error) {
	return func(ctx context.Context, program string, args ...string) ([]byte, error) {
		url := args[len(args)-1]
		body, ok := responses[url]
		if !ok {
			return nil, fmt.Errorf("unexpected url %q", url)
		}
		return []byte(body), nil
	}
}

func TestChannelVideos(t *testing.T) {
	a := assert.New(t)

	c := Client{Run: fakeRun(map[string]string{
		"https://www.youtube.com/channel/UCexample000000000000000/videos": channelVideosJSON,
	})}

	videos, skips, err := c.ChannelVideos(context.Background(), "UCexample000000000000000")
	if !a.NoError(err) {
		return
	}

	if a.Len(videos, 2) {
		a.Equal("dQw4w9WgXcQ", videos[0].ID)
		a.Equal("UCexample000000000000000", videos[0].ChannelID)
		a.Equal("First Video", videos[0].Title)
		a.Equal("hello", videos[0].Description)
		a.Equal(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), videos[0].Date)

		a.Equal("abcdefghijk", videos[1].ID)
		a.Equal(time.Unix(1685232000, 0).UTC(), videos[1].Date)
	}

	// the null entry, the id-less entry, and the dateless entry are skips,
	// not failures - and nothing with a zero date gets through
	a.Len(skips, 3)
}

func TestChannelVideosDoesFullExtraction(t *testing.T) {
	a := assert.New(t)

	argsByURL := map[string][]string{}
	c := Client{Run: func(ctx context.Context, program string, args ...string) ([]byte, error) {
		url := args[len(args)-1]
		argsByURL[url] = args

		switch {
		case strings.HasSuffix(url, "/videos"):
			return []byte(channelVideosJSON), nil
		case strings.HasSuffix(url, "/playlists"):
			return []byte(channelPlaylistsJSON), nil
		default:
			return []byte(playlistJSON), nil
		}
	}}

	if _, _, err := c.ChannelVideos(context.Background(), "UCexample000000000000000"); !a.NoError(err) {
		return
	}
	if _, _, err := c.ChannelPlaylists(context.Background(), "UCexample000000000000000"); !a.NoError(err) {
		return
	}

	// uploads need full extraction to get upload_date and description; the
	// playlist listings only need ids and titles, so they stay flat
	a.NotContains(argsByURL["https://www.youtube.com/channel/UCexample000000000000000/videos"], "--flat-playlist")
	a.Contains(argsByURL["https://www.youtube.com/channel/UCexample000000000000000/playlists"], "--flat-playlist")
	a.Contains(argsByURL["https://www.youtube.com/playlist?list=PLfirst"], "--flat-playlist")
}

func TestChannelVideosBadJSON(t *testing.T) {
	a := assert.New(t)

	c := Client{Run: func(ctx context.Context, program string, args ...string) ([]byte, error) {
		return []byte("not json"), nil
	}}

	_, _, err := c.ChannelVideos(context.Background(), "UCexample000000000000000")
	a.Error(err)
	a.True(strings.Contains(err.Error(), "could not parse"))

	var parseErr *ParseError
	if a.True(errors.As(err, &parseErr)) {
		a.Equal("UCexample000000000000000", parseErr.ChannelID)
	}
}

func TestChannelPlaylists(t *testing.T) {
	a := assert.New(t)

	c := Client{Run: fakeRun(map[string]string{
		"https://www.youtube.com/channel/UCexample000000000000000/playlists": channelPlaylistsJSON,
		"https://www.youtube.com/playlist?list=PLfirst":                       playlistJSON,
	})}

	playlists, skips, err := c.ChannelPlaylists(context.Background(), "UCexample000000000000000")
	if !a.NoError(err) {
		return
	}

	if a.Len(playlists, 1) {
		a.Equal("PLfirst", playlists[0].ID)
		a.Equal("Favourites", playlists[0].Name)
		a.Equal([]string{"abcdefghijk", "dQw4w9WgXcQ"}, playlists[0].VideoIDs)
	}

	// one null playlist entry plus one id-less playlist member
	a.Len(skips, 2)
}

func TestChannelPlaylistsMemberFetchFails(t *testing.T) {
	a := assert.New(t)

	c := Client{Run: fakeRun(map[string]string{
		"https://www.youtube.com/channel/UCexample000000000000000/playlists": channelPlaylistsJSON,
	})}

	_, _, err := c.ChannelPlaylists(context.Background(), "UCexample000000000000000")
	a.Error(err)

	var fetchErr *FetchError
	a.True(errors.As(err, &fetchErr))
}

func TestClientRespectsContextCancellation(t *testing.T) {
	a := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := Client{Run: func(ctx context.Context, program string, args ...string) ([]byte, error) {
		return nil, ctx.Err()
	}}

	_, _, err := c.ChannelVideos(ctx, "UCexample000000000000000")
	a.Error(err)
}
