package handlers

import (
	"database/sql"
	"net/http"

	"fknsrs.biz/p/sorm"
	"github.com/gorilla/mux"

	"fknsrs.biz/p/ytsubs/internal/ctxdb"
	"fknsrs.biz/p/ytsubs/internal/ctxtemplate"
	"fknsrs.biz/p/ytsubs/internal/httputil"
	"fknsrs.biz/p/ytsubs/models"
)

func Playlist(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var playlist models.Playlist
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &playlist, "where id = ?", vars["id"]); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	var channel models.Channel
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &channel, "where id = ?", playlist.ChannelID); err != nil {
		if err != sql.ErrNoRows {
			panic(err)
		}
	}

	var videos []models.PlaylistContent
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &videos, "where playlist_id = ? order by playlist_row asc", playlist.ID); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_playlist", map[string]interface{}{
		"Playlist": playlist,
		"Channel":  channel,
		"Videos":   videos,
	}); err != nil {
		panic(err)
	}
}
