// Package ingest contains the three loops that keep the local database in
// sync with YouTube: a frequent poll of each channel's Atom feed, and two
// slower backfill loops that drain the full-sync queues using yt-dlp.
//
// All three follow the same shape: do a round of work, log what happened,
// sleep, repeat. A failure on one channel never stops work on the others, and
// the writes for a channel land in a single transaction so a crash mid-sync
// leaves that channel queued.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytsubs/internal/catchpanic"
	"fknsrs.biz/p/ytsubs/internal/ctxdb"
	"fknsrs.biz/p/ytsubs/internal/ctxlogger"
	"fknsrs.biz/p/ytsubs/internal/syncqueue"
	"fknsrs.biz/p/ytsubs/internal/ytdl"
	"fknsrs.biz/p/ytsubs/internal/ytfeed"
	"fknsrs.biz/p/ytsubs/models"
)

// FeedFetcher fetches the recent-uploads feed for one channel. It's a
// function so tests don't have to stand up an HTTP server.
type FeedFetcher func(ctx context.Context, channelID string) (*ytfeed.Feed, error)

// CatalogueClient reads a channel's full catalogue. *ytdl.Client satisfies
// this.
type CatalogueClient interface {
	ChannelVideos(ctx context.Context, channelID string) ([]ytdl.Video, []*ytdl.ExtractionSkip, error)
	ChannelPlaylists(ctx context.Context, channelID string) ([]ytdl.Playlist, []*ytdl.ExtractionSkip, error)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// RunFeedPoll polls every channel's feed once per interval, forever. Only a
// cancelled context makes it return.
func RunFeedPoll(ctx context.Context, interval time.Duration, fetch FeedFetcher) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{"poll.interval": interval.String()}).Info("running feed poll worker")

	for {
		if err := catchpanic.CatchErr0(func() error { return pollOnce(ctx, fetch) }); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			l.WithError(err).Error("feed poll round failed")
		}

		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func pollOnce(ctx context.Context, fetch FeedFetcher) error {
	l := ctxlogger.GetLogger(ctx)

	channels, err := allChannels(ctx)
	if err != nil {
		return fmt.Errorf("ingest.pollOnce: %w", err)
	}

	for _, ch := range channels {
		cl := l.WithFields(logrus.Fields{
			"channel.id":   ch.ID,
			"channel.name": ch.Name,
		})

		feed, err := catchpanic.CatchErr1(func() (*ytfeed.Feed, error) {
			return fetch(ctx, ch.ID)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			cl.WithError(err).Warn("could not fetch feed; will retry next round")
			continue
		}

		if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
			for _, v := range feed.Videos {
				if err := models.UpsertVideo(ctx, tx, &models.Video{
					ID:          v.ID,
					ChannelID:   ch.ID,
					Title:       v.Title,
					Description: v.Description,
					Date:        v.Published,
				}); err != nil {
					return err
				}
			}

			return nil
		}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			cl.WithError(err).Error("could not store feed videos")
			continue
		}

		cl.WithFields(logrus.Fields{"video.count": len(feed.Videos)}).Debug("polled feed")
	}

	return nil
}

// RunVideoBackfill drains the video sync queue, forever. When the queue is
// empty it sleeps for idle and looks again.
func RunVideoBackfill(ctx context.Context, idle time.Duration, client CatalogueClient) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{"idle.delay": idle.String()}).Info("running video backfill worker")

	for {
		entries, err := syncqueue.Pending(ctx, ctxdb.GetDB(ctx), syncqueue.KindVideo)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			l.WithError(err).Error("could not read video sync queue")
			entries = nil
		}

		for _, e := range entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			backfillChannelVideos(ctx, client, e)
		}

		if err := sleep(ctx, idle); err != nil {
			return err
		}
	}
}

func backfillChannelVideos(ctx context.Context, client CatalogueClient, e syncqueue.Entry) {
	l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"channel.id":   e.ChannelID,
		"channel.name": e.ChannelName,
	})

	videos, err := catchpanic.CatchErr1(func() ([]ytdl.Video, error) {
		videos, skips, err := client.ChannelVideos(ctx, e.ChannelID)
		if err != nil {
			return nil, err
		}

		for _, skip := range skips {
			l.WithFields(logrus.Fields{"skip.reason": skip.Reason}).Info("skipped catalogue entry")
		}

		return videos, nil
	})
	if err != nil {
		l.WithError(err).Warn("could not list channel videos; leaving channel queued")
		return
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, v := range videos {
			if err := models.UpsertVideo(ctx, tx, &models.Video{
				ID:          v.ID,
				ChannelID:   e.ChannelID,
				Title:       v.Title,
				Description: v.Description,
				Date:        v.Date,
			}); err != nil {
				return err
			}
		}

		return syncqueue.Remove(ctx, tx, syncqueue.KindVideo, e.ChannelID)
	}); err != nil {
		l.WithError(err).Error("could not store channel videos; leaving channel queued")
		return
	}

	l.WithFields(logrus.Fields{"video.count": len(videos)}).Info("backfilled channel videos")
}

// RunPlaylistBackfill drains the playlist sync queue, forever.
func RunPlaylistBackfill(ctx context.Context, idle time.Duration, client CatalogueClient) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{"idle.delay": idle.String()}).Info("running playlist backfill worker")

	for {
		entries, err := syncqueue.Pending(ctx, ctxdb.GetDB(ctx), syncqueue.KindPlaylist)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			l.WithError(err).Error("could not read playlist sync queue")
			entries = nil
		}

		for _, e := range entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			backfillChannelPlaylists(ctx, client, e)
		}

		if err := sleep(ctx, idle); err != nil {
			return err
		}
	}
}

func backfillChannelPlaylists(ctx context.Context, client CatalogueClient, e syncqueue.Entry) {
	l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"channel.id":   e.ChannelID,
		"channel.name": e.ChannelName,
	})

	playlists, err := catchpanic.CatchErr1(func() ([]ytdl.Playlist, error) {
		playlists, skips, err := client.ChannelPlaylists(ctx, e.ChannelID)
		if err != nil {
			return nil, err
		}

		for _, skip := range skips {
			l.WithFields(logrus.Fields{"skip.reason": skip.Reason}).Info("skipped catalogue entry")
		}

		return playlists, nil
	})
	if err != nil {
		l.WithError(err).Warn("could not list channel playlists; leaving channel queued")
		return
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, p := range playlists {
			if err := models.ReplacePlaylist(ctx, tx, &models.Playlist{
				ID:        p.ID,
				ChannelID: e.ChannelID,
				Name:      p.Name,
			}, p.VideoIDs); err != nil {
				return err
			}
		}

		return syncqueue.Remove(ctx, tx, syncqueue.KindPlaylist, e.ChannelID)
	}); err != nil {
		l.WithError(err).Error("could not store channel playlists; leaving channel queued")
		return
	}

	l.WithFields(logrus.Fields{"playlist.count": len(playlists)}).Info("backfilled channel playlists")
}

type channelRow struct {
	ID   string
	Name string
}

func allChannels(ctx context.Context) ([]channelRow, error) {
	rows, err := ctxdb.GetDB(ctx).QueryContext(ctx, "select id, name from channels order by created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []channelRow
	for rows.Next() {
		var ch channelRow
		if err := rows.Scan(&ch.ID, &ch.Name); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}
