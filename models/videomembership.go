package models

import (
	"fknsrs.biz/p/ytsubs/internal/sqlbuilderutil"
)

var (
	VideoMembershipTable *sqlbuilderutil.Table
)

func init() {
	VideoMembershipTable = sqlbuilderutil.MustMakeTable(VideoMembership{})
}

// VideoMembership is a row of the video_memberships view: the playlists a
// given video appears in, for the video detail page.
type VideoMembership struct {
	VideoID      string `sql:",table:video_memberships"`
	PlaylistID   string
	PlaylistName string
}
