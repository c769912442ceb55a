// Package ytfeed reads the public Atom feed that YouTube publishes for each
// channel. The feed only carries the most recent uploads (fifteen or so), so
// it's suited to keeping an already-synced channel current, not to filling in
// history.
package ytfeed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"fknsrs.biz/p/ytsubs/internal/ctxhttpclient"
)

const feedURLFormat = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

// FetchError means the feed couldn't be retrieved at all - network trouble or
// a non-200 response. These are expected during normal operation and callers
// treat them as transient.
type FetchError struct {
	ChannelID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("ytfeed: could not fetch feed for channel %s: %s", e.ChannelID, e.Err.Error())
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means the feed was retrieved but the body wasn't understood.
type ParseError struct {
	ChannelID string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ytfeed: could not parse feed for channel %s: %s", e.ChannelID, e.Err.Error())
}

func (e *ParseError) Unwrap() error { return e.Err }

// Feed is a parsed channel feed. Title is the channel's current display name,
// which is what the subscription flow records when a channel is first added.
type Feed struct {
	ChannelID string
	Title     string
	Videos    []Video
}

// Video is one entry from a channel feed. Published is always UTC.
type Video struct {
	ID          string
	ChannelID   string
	Title       string
	Description string
	Published   time.Time
}

type atomFeed struct {
	XMLName   xml.Name    `xml:"feed"`
	ChannelID string      `xml:"http://www.youtube.com/xml/schemas/2015 channelId"`
	Title     string      `xml:"title"`
	Entries   []atomEntry `xml:"entry"`
}

type atomEntry struct {
	VideoID     string    `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	ChannelID   string    `xml:"http://www.youtube.com/xml/schemas/2015 channelId"`
	Title       string    `xml:"title"`
	Published   time.Time `xml:"published"`
	Description string    `xml:"group>description"`
}

// Fetch retrieves and parses the feed for a single channel. The HTTP client
// comes from the context; the request opts out of whatever caching transport
// was set up at startup, since polling a stale copy defeats the point.
func Fetch(ctx context.Context, channelID string) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(feedURLFormat, channelID), nil)
	if err != nil {
		return nil, &FetchError{ChannelID: channelID, Err: err}
	}

	// the feed is how new uploads are noticed; a cached body would hide them
	// for the cache's lifetime, so always go to the origin
	req.Header.Set("Cache-Control", "no-cache")

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return nil, &FetchError{ChannelID: channelID, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &FetchError{ChannelID: channelID, Err: fmt.Errorf("unexpected status %s", res.Status)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &FetchError{ChannelID: channelID, Err: err}
	}

	return parse(channelID, body)
}

func parse(channelID string, body []byte) (*Feed, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, &ParseError{ChannelID: channelID, Err: err}
	}

	// the feed carries its own channel id; prefer it, since it's canonical
	// even when the caller got here through a vanity URL
	feedChannelID := feed.ChannelID
	if feedChannelID == "" {
		feedChannelID = channelID
	}

	videos := make([]Video, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if e.VideoID == "" {
			return nil, &ParseError{ChannelID: channelID, Err: fmt.Errorf("entry %q has no video id", e.Title)}
		}

		entryChannelID := e.ChannelID
		if entryChannelID == "" {
			entryChannelID = feedChannelID
		}

		videos = append(videos, Video{
			ID:          e.VideoID,
			ChannelID:   entryChannelID,
			Title:       e.Title,
			Description: e.Description,
			Published:   e.Published.UTC(),
		})
	}

	return &Feed{ChannelID: feedChannelID, Title: feed.Title, Videos: videos}, nil
}
