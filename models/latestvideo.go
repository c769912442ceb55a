package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/ytsubs/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytsubs/internal/sqltypes"
)

var (
	LatestVideoTable *sqlbuilderutil.Table
)

func init() {
	LatestVideoTable = sqlbuilderutil.MustMakeTable(LatestVideo{})
}

// LatestVideo is a row of the latest_videos view: a video joined to its
// channel, for the gallery pages.
type LatestVideo struct {
	VideoID          string `sql:",table:latest_videos"`
	VideoTitle       string
	VideoDescription string
	VideoDate        time.Time
	ChannelID        string
	ChannelName      string
}

func (s *LatestVideo) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "VideoDate":
			scanners[i] = &sqltypes.UnixTimeScanner{Value: &s.VideoDate}
		}
	}

	return nil
}

func (s *LatestVideo) ThumbnailURL() string {
	return "https://i.ytimg.com/vi/" + s.VideoID + "/mqdefault.jpg"
}

func (s *LatestVideo) LargeThumbnailURL() string {
	return "https://i.ytimg.com/vi/" + s.VideoID + "/hqdefault.jpg"
}
