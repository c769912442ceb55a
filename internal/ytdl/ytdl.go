// Package ytdl shells out to yt-dlp to read a channel's full catalogue - all
// of its uploads and all of its playlists. It's much slower than the Atom
// feed, so it only runs when a channel is queued for a full sync.
package ytdl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
)

const (
	DefaultProgram = "yt-dlp"
	DefaultTimeout = 10 * time.Minute
)

// ExtractionSkip records an entry that yt-dlp emitted but that couldn't be
// turned into a video - deleted videos come through as null, members-only
// videos come through without an id. These aren't errors; the rest of the
// catalogue is still good.
type ExtractionSkip struct {
	ChannelID string
	Reason    string
}

func (e *ExtractionSkip) Error() string {
	return fmt.Sprintf("ytdl: skipped entry for channel %s: %s", e.ChannelID, e.Reason)
}

// FetchError means yt-dlp itself failed - missing binary, timeout, or a
// non-zero exit. Transient as far as callers are concerned; the channel stays
// queued.
type FetchError struct {
	ChannelID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("ytdl: could not fetch catalogue for channel %s: %s", e.ChannelID, e.Err.Error())
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means yt-dlp ran but its output wasn't usable JSON.
type ParseError struct {
	ChannelID string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ytdl: could not parse catalogue for channel %s: %s", e.ChannelID, e.Err.Error())
}

func (e *ParseError) Unwrap() error { return e.Err }

// Video is one upload from a channel catalogue. Date is midnight UTC on the
// upload day; upload_date is the finest-grained field yt-dlp reports
// reliably.
type Video struct {
	ID          string
	ChannelID   string
	Title       string
	Description string
	Date        time.Time
}

// Playlist is one of a channel's playlists with its members in playlist
// order.
type Playlist struct {
	ID       string
	Name     string
	VideoIDs []string
}

// Client runs yt-dlp. The zero value works; Run can be swapped out in tests
// to avoid shelling out.
type Client struct {
	Program string
	Timeout time.Duration

	Run func(ctx context.Context, program string, args ...string) ([]byte, error)
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	program := c.Program
	if program == "" {
		program = DefaultProgram
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.Run != nil {
		return c.Run(ctx, program, args...)
	}

	cmd := exec.CommandContext(ctx, program, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w; stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// ChannelVideos lists every upload on a channel. This run does full
// extraction rather than a flat listing: flat entries for a channel's uploads
// don't carry upload_date or description, and both are worth the extra time.
// Entries that can't be used are returned as skips rather than failing the
// whole listing.
func (c *Client) ChannelVideos(ctx context.Context, channelID string) ([]Video, []*ExtractionSkip, error) {
	output, err := c.run(ctx, "-J", "--ignore-errors", "--no-warnings", "https://www.youtube.com/channel/"+channelID+"/videos")
	if err != nil {
		return nil, nil, &FetchError{ChannelID: channelID, Err: err}
	}

	parsed, err := gabs.ParseJSON(output)
	if err != nil {
		return nil, nil, &ParseError{ChannelID: channelID, Err: err}
	}

	var videos []Video
	var skips []*ExtractionSkip

	for _, entry := range flattenEntries(parsed) {
		if entry == nil || entry.Data() == nil {
			skips = append(skips, &ExtractionSkip{ChannelID: channelID, Reason: "null entry"})
			continue
		}

		id, ok := entry.Path("id").Data().(string)
		if !ok || id == "" {
			skips = append(skips, &ExtractionSkip{ChannelID: channelID, Reason: "entry has no id"})
			continue
		}

		date := entryDate(entry)
		if date.IsZero() {
			skips = append(skips, &ExtractionSkip{ChannelID: channelID, Reason: "entry " + id + " has no upload date"})
			continue
		}

		title, _ := entry.Path("title").Data().(string)
		description, _ := entry.Path("description").Data().(string)

		videos = append(videos, Video{
			ID:          id,
			ChannelID:   channelID,
			Title:       title,
			Description: description,
			Date:        date,
		})
	}

	return videos, skips, nil
}

// ChannelPlaylists lists a channel's playlists. This is two phases: one run
// against the playlists tab to find the playlists, then one run per playlist
// to get its members in order.
func (c *Client) ChannelPlaylists(ctx context.Context, channelID string) ([]Playlist, []*ExtractionSkip, error) {
	output, err := c.run(ctx, "-J", "--flat-playlist", "--ignore-errors", "--no-warnings", "https://www.youtube.com/channel/"+channelID+"/playlists")
	if err != nil {
		return nil, nil, &FetchError{ChannelID: channelID, Err: err}
	}

	parsed, err := gabs.ParseJSON(output)
	if err != nil {
		return nil, nil, &ParseError{ChannelID: channelID, Err: err}
	}

	var playlists []Playlist
	var skips []*ExtractionSkip

	for _, entry := range flattenEntries(parsed) {
		if entry == nil || entry.Data() == nil {
			skips = append(skips, &ExtractionSkip{ChannelID: channelID, Reason: "null playlist entry"})
			continue
		}

		id, ok := entry.Path("id").Data().(string)
		if !ok || id == "" {
			skips = append(skips, &ExtractionSkip{ChannelID: channelID, Reason: "playlist entry has no id"})
			continue
		}

		name, _ := entry.Path("title").Data().(string)

		videoIDs, memberSkips, err := c.playlistVideos(ctx, channelID, id)
		if err != nil {
			return nil, nil, err
		}
		skips = append(skips, memberSkips...)

		playlists = append(playlists, Playlist{ID: id, Name: name, VideoIDs: videoIDs})
	}

	return playlists, skips, nil
}

func (c *Client) playlistVideos(ctx context.Context, channelID, playlistID string) ([]string, []*ExtractionSkip, error) {
	output, err := c.run(ctx, "-J", "--flat-playlist", "--ignore-errors", "--no-warnings", "https://www.youtube.com/playlist?list="+playlistID)
	if err != nil {
		return nil, nil, &FetchError{ChannelID: channelID, Err: fmt.Errorf("playlist %s: %w", playlistID, err)}
	}

	parsed, err := gabs.ParseJSON(output)
	if err != nil {
		return nil, nil, &ParseError{ChannelID: channelID, Err: fmt.Errorf("playlist %s: %w", playlistID, err)}
	}

	var videoIDs []string
	var skips []*ExtractionSkip

	for _, entry := range flattenEntries(parsed) {
		if entry == nil || entry.Data() == nil {
			skips = append(skips, &ExtractionSkip{ChannelID: channelID, Reason: "null entry in playlist " + playlistID})
			continue
		}

		id, ok := entry.Path("id").Data().(string)
		if !ok || id == "" {
			skips = append(skips, &ExtractionSkip{ChannelID: channelID, Reason: "id-less entry in playlist " + playlistID})
			continue
		}

		videoIDs = append(videoIDs, id)
	}

	return videoIDs, skips, nil
}

// flattenEntries walks the entries array, descending into nested playlist
// entries. yt-dlp sometimes wraps a channel's uploads in a tab entry that is
// itself a playlist with its own entries.
func flattenEntries(parsed *gabs.Container) []*gabs.Container {
	var out []*gabs.Container

	for _, entry := range parsed.Path("entries").Children() {
		if entryType, _ := entry.Path("_type").Data().(string); entryType == "playlist" && entry.Exists("entries") {
			out = append(out, flattenEntries(entry)...)
			continue
		}

		out = append(out, entry)
	}

	return out
}

func entryDate(entry *gabs.Container) time.Time {
	if s, ok := entry.Path("upload_date").Data().(string); ok {
		if t, err := time.Parse("20060102", s); err == nil {
			return t
		}
	}

	if ts, ok := entry.Path("timestamp").Data().(float64); ok {
		return time.Unix(int64(ts), 0).UTC()
	}

	return time.Time{}
}
