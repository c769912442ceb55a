package handlers

import (
	"database/sql"
	"net/http"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"

	"fknsrs.biz/p/ytsubs/internal/ctxdb"
	"fknsrs.biz/p/ytsubs/internal/ctxtemplate"
	"fknsrs.biz/p/ytsubs/internal/httputil"
	"fknsrs.biz/p/ytsubs/models"
)

func Channels(rw http.ResponseWriter, r *http.Request) {
	var channels []models.Channel
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&channels,
		nil,
		[]sb.AsOrderingTerm{
			sb.OrderAsc(sb.Literal("lower(name)")),
			sb.OrderAsc(models.ChannelTable.C("ID")),
		},
		sb.OffsetLimit(nil, sb.Literal("1000")),
	); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_channels", map[string]interface{}{
		"Channels": channels,
	}); err != nil {
		panic(err)
	}
}

func Channel(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	page := pageFromRequest(r)

	var channel models.Channel
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &channel, "where id = ?", vars["id"]); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	var videos []models.LatestVideo
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&videos,
		sb.BinaryOperator("=", models.LatestVideoTable.C("ChannelID"), sb.Bind(channel.ID)),
		[]sb.AsOrderingTerm{
			sb.OrderDesc(models.LatestVideoTable.C("VideoDate")),
			sb.OrderAsc(models.LatestVideoTable.C("VideoID")),
		},
		sb.OffsetLimit(sb.Literal(pageOffset(page)), sb.Literal(pageLimit())),
	); err != nil {
		panic(err)
	}

	pg := paginate("/channels/"+channel.ID, page, len(videos))
	if pg.HasNext {
		videos = videos[:pageSize]
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_channel", map[string]interface{}{
		"Channel":    channel,
		"Videos":     videos,
		"Pagination": pg,
	}); err != nil {
		panic(err)
	}
}

func ChannelPlaylists(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var channel models.Channel
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &channel, "where id = ?", vars["id"]); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	var playlists []models.ChannelPlaylist
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &playlists, "where channel_id = ? order by lower(playlist_name), playlist_id", channel.ID); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_channel_playlists", map[string]interface{}{
		"Channel":   channel,
		"Playlists": playlists,
	}); err != nil {
		panic(err)
	}
}
