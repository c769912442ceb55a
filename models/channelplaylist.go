package models

import (
	"fknsrs.biz/p/ytsubs/internal/sqlbuilderutil"
)

var (
	ChannelPlaylistTable *sqlbuilderutil.Table
)

func init() {
	ChannelPlaylistTable = sqlbuilderutil.MustMakeTable(ChannelPlaylist{})
}

// ChannelPlaylist is a row of the channel_playlists view: a playlist with the
// video id of its first member, used as the cover image on the per-channel
// playlists page.
type ChannelPlaylist struct {
	PlaylistID   string `sql:",table:channel_playlists"`
	PlaylistName string
	ChannelID    string
	CoverVideoID string
}

func (s *ChannelPlaylist) CoverThumbnailURL() string {
	return "https://i.ytimg.com/vi/" + s.CoverVideoID + "/mqdefault.jpg"
}
