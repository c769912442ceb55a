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
	ChannelTable *sqlbuilderutil.Table
)

func init() {
	ChannelTable = sqlbuilderutil.MustMakeTable(Channel{})
}

// Channel is an upstream publisher being tracked. The ID is the upstream
// channel identifier and is never generated locally.
type Channel struct {
	ID        string `sql:",table:channels"`
	Name      string
	CreatedAt time.Time
}

func (c *Channel) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "CreatedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &c.CreatedAt}
		}
	}

	return nil
}

// CreateChannel inserts a new channel row. Channels are written exactly once,
// by the subscription-add flow, so this is a plain insert; a duplicate
// subscription surfaces as a constraint error for the caller to handle.
func CreateChannel(ctx context.Context, q Querier, c *Channel) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	if _, err := q.ExecContext(
		ctx,
		"insert into channels (id, name, created_at) values (?, ?, ?)",
		c.ID, c.Name, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("models.CreateChannel: %w", err)
	}

	return nil
}
