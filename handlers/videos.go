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

func Video(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var video models.Video
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &video, "where id = ?", vars["id"]); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	var channel models.Channel
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &channel, "where id = ?", video.ChannelID); err != nil {
		if err != sql.ErrNoRows {
			panic(err)
		}
	}

	var memberships []models.VideoMembership
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &memberships, "where video_id = ? order by lower(playlist_name), playlist_id", video.ID); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_video", map[string]interface{}{
		"Video":       video,
		"Channel":     channel,
		"Memberships": memberships,
	}); err != nil {
		panic(err)
	}
}
