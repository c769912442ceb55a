package models

import (
	"fknsrs.biz/p/ytsubs/internal/sqlbuilderutil"
)

var (
	PlaylistVideoTable *sqlbuilderutil.Table
)

func init() {
	PlaylistVideoTable = sqlbuilderutil.MustMakeTable(PlaylistVideo{})
}

// PlaylistVideo is one ordered membership row. PlaylistRow is 1-based and
// dense per playlist; VideoID may reference a video we have not ingested yet.
type PlaylistVideo struct {
	PlaylistID  string `sql:",table:playlist_videos"`
	PlaylistRow int
	VideoID     string
}
