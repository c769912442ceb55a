// Package schema owns the sqlite schema. Migrations are applied in order at
// startup; each statement runs at most once, tracked in the migrations table.
package schema

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []string{
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
	`create table channel_needs_video_sync (
		id text primary key references channels (id)
	)`,
	`create table channel_needs_playlist_sync (
		id text primary key references channels (id)
	)`,
	`create index videos_channel_id_date on videos (channel_id, date desc)`,
	`create index videos_date on videos (date desc)`,
	`create index playlist_videos_video_id on playlist_videos (video_id)`,
	`create view latest_videos as
		select
			videos.id          as video_id,
			videos.title       as video_title,
			videos.description as video_description,
			videos.date        as video_date,
			channels.id        as channel_id,
			channels.name      as channel_name
		from videos
		join channels on channels.id = videos.channel_id`,
	`create view playlist_contents as
		select
			playlist_videos.playlist_id  as playlist_id,
			playlist_videos.playlist_row as playlist_row,
			playlist_videos.video_id     as video_id,
			videos.title                 as video_title
		from playlist_videos
		left join videos on videos.id = playlist_videos.video_id`,
	`create view channel_playlists as
		select
			playlists.id               as playlist_id,
			playlists.name             as playlist_name,
			playlists.channel_id       as channel_id,
			playlist_videos.video_id   as cover_video_id
		from playlists
		join playlist_videos
			on playlist_videos.playlist_id = playlists.id
			and playlist_videos.playlist_row = 1`,
	`create view video_memberships as
		select
			playlist_videos.video_id as video_id,
			playlists.id             as playlist_id,
			playlists.name           as playlist_name
		from playlist_videos
		join playlists on playlists.id = playlist_videos.playlist_id`,
}

func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "create table if not exists migrations (id integer primary key)"); err != nil {
		return fmt.Errorf("schema.Apply: could not create migrations table: %w", err)
	}

	for i, stmt := range migrations {
		var found int
		if err := db.QueryRowContext(ctx, "select count(1) from migrations where id = ?", i).Scan(&found); err != nil {
			return fmt.Errorf("schema.Apply: could not check migration %d: %w", i, err)
		}

		if found != 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("schema.Apply: could not begin transaction for migration %d: %w", i, err)
		}

		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("schema.Apply: could not run migration %d: %w", i, err)
		}

		if _, err := tx.ExecContext(ctx, "insert into migrations (id) values (?)", i); err != nil {
			tx.Rollback()
			return fmt.Errorf("schema.Apply: could not record migration %d: %w", i, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("schema.Apply: could not commit migration %d: %w", i, err)
		}
	}

	return nil
}
