package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fknsrs.biz/p/ytsubs/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytsubs/internal/sqltypes"
)

var (
	PlaylistTable *sqlbuilderutil.Table
)

func init() {
	PlaylistTable = sqlbuilderutil.MustMakeTable(Playlist{})
}

type Playlist struct {
	ID        string `sql:",table:playlists"`
	ChannelID string
	Name      string
	CreatedAt time.Time
}

func (p *Playlist) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "CreatedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &p.CreatedAt}
		}
	}

	return nil
}

// ReplacePlaylist writes one playlist and its complete ordered membership,
// deleting any previous rows for the same playlist first so a repeated
// backfill converges instead of tripping over the primary keys. Rows are
// numbered 1..N with no gaps, in the order given. Must run inside the
// caller's transaction.
func ReplacePlaylist(ctx context.Context, q Querier, p *Playlist, videoIDs []string) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	if _, err := q.ExecContext(ctx, "delete from playlist_videos where playlist_id = ?", p.ID); err != nil {
		return fmt.Errorf("models.ReplacePlaylist: %w", err)
	}
	if _, err := q.ExecContext(ctx, "delete from playlists where id = ?", p.ID); err != nil {
		return fmt.Errorf("models.ReplacePlaylist: %w", err)
	}

	if _, err := q.ExecContext(
		ctx,
		"insert into playlists (id, channel_id, name, created_at) values (?, ?, ?, ?)",
		p.ID, p.ChannelID, p.Name, p.CreatedAt,
	); err != nil {
		return fmt.Errorf("models.ReplacePlaylist: %w", err)
	}

	for i, videoID := range videoIDs {
		if _, err := q.ExecContext(
			ctx,
			"insert into playlist_videos (playlist_id, playlist_row, video_id) values (?, ?, ?)",
			p.ID, i+1, videoID,
		); err != nil {
			return fmt.Errorf("models.ReplacePlaylist: row %d: %w", i+1, err)
		}
	}

	return nil
}
