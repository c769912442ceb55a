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
	VideoTable *sqlbuilderutil.Table
)

func init() {
	VideoTable = sqlbuilderutil.MustMakeTable(Video{})
}

// Querier is the subset of database/sql query methods shared by *sql.DB and
// *sql.Tx. Write helpers in this package take a Querier so callers decide the
// transaction boundary.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Video is a single upstream video. Date is the upstream publish instant
// (stored as unix seconds), not the time we first saw the record.
type Video struct {
	ID          string `sql:",table:videos"`
	ChannelID   string
	Title       string
	Description string
	Date        time.Time
	CreatedAt   time.Time
}

func (v *Video) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "Date":
			scanners[i] = &sqltypes.UnixTimeScanner{Value: &v.Date}
		case "CreatedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &v.CreatedAt}
		}
	}

	return nil
}

// UpsertVideo reconciles one fetched record against the store. It is a single
// statement so it stays correct when the poll and backfill loops race on the
// same id: an unseen id is inserted, an existing one has its title,
// description, and date replaced with the latest observed values. channel_id
// and created_at are left untouched on conflict.
func UpsertVideo(ctx context.Context, q Querier, v *Video) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	if _, err := q.ExecContext(ctx, `
		insert into videos
			(id, channel_id, title, description, date, created_at)
		values
			(?, ?, ?, ?, ?, ?)
		on conflict (id) do update set
			title       = excluded.title,
			description = excluded.description,
			date        = excluded.date
	`, v.ID, v.ChannelID, v.Title, v.Description, v.Date.Unix(), v.CreatedAt); err != nil {
		return fmt.Errorf("models.UpsertVideo: %w", err)
	}

	return nil
}

func (v *Video) ThumbnailURL() string {
	return "https://i.ytimg.com/vi/" + v.ID + "/mqdefault.jpg"
}

func (v *Video) LargeThumbnailURL() string {
	return "https://i.ytimg.com/vi/" + v.ID + "/hqdefault.jpg"
}
