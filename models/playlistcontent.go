package models

import (
	"fknsrs.biz/p/ytsubs/internal/sqlbuilderutil"
)

var (
	PlaylistContentTable *sqlbuilderutil.Table
)

func init() {
	PlaylistContentTable = sqlbuilderutil.MustMakeTable(PlaylistContent{})
}

// PlaylistContent is a row of the playlist_contents view: ordered playlist
// membership joined (left) to the videos table. VideoTitle is nil when the
// member video has not been ingested yet.
type PlaylistContent struct {
	PlaylistID  string `sql:",table:playlist_contents"`
	PlaylistRow int
	VideoID     string
	VideoTitle  *string
}

func (s *PlaylistContent) Title() string {
	if s.VideoTitle != nil {
		return *s.VideoTitle
	}

	return s.VideoID
}

func (s *PlaylistContent) ThumbnailURL() string {
	return "https://i.ytimg.com/vi/" + s.VideoID + "/mqdefault.jpg"
}
