// Package syncqueue tracks which channels still need a full catalogue sync.
// Membership is presence-based: a channel is either queued or it isn't, and
// queueing an already-queued channel is a no-op.
package syncqueue

import (
	"context"
	"fmt"

	"fknsrs.biz/p/ytsubs/models"
)

type Kind string

const (
	KindVideo    Kind = "video"
	KindPlaylist Kind = "playlist"
)

func (k Kind) table() string {
	switch k {
	case KindVideo:
		return "channel_needs_video_sync"
	case KindPlaylist:
		return "channel_needs_playlist_sync"
	default:
		panic(fmt.Sprintf("syncqueue: unknown kind %q", string(k)))
	}
}

// Entry is a queued channel, carried with its name so loop diagnostics don't
// have to look it up again.
type Entry struct {
	ChannelID   string
	ChannelName string
}

func Enqueue(ctx context.Context, q models.Querier, kind Kind, channelID string) error {
	if _, err := q.ExecContext(ctx, "insert into "+kind.table()+" (id) values (?) on conflict (id) do nothing", channelID); err != nil {
		return fmt.Errorf("syncqueue.Enqueue: %w", err)
	}

	return nil
}

// Remove takes a channel off the queue. It should run in the same transaction
// as the writes produced by servicing that channel, so a failure at any point
// leaves the channel queued.
func Remove(ctx context.Context, q models.Querier, kind Kind, channelID string) error {
	if _, err := q.ExecContext(ctx, "delete from "+kind.table()+" where id = ?", channelID); err != nil {
		return fmt.Errorf("syncqueue.Remove: %w", err)
	}

	return nil
}

// Pending returns every queued channel, oldest subscription first.
func Pending(ctx context.Context, q models.Querier, kind Kind) ([]Entry, error) {
	rows, err := q.QueryContext(ctx, `
		select channels.id, channels.name
		from `+kind.table()+` as queue
		join channels on channels.id = queue.id
		order by channels.created_at, channels.id
	`)
	if err != nil {
		return nil, fmt.Errorf("syncqueue.Pending: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ChannelID, &e.ChannelName); err != nil {
			return nil, fmt.Errorf("syncqueue.Pending: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("syncqueue.Pending: %w", err)
	}

	return entries, nil
}
