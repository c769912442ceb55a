package handlers

import (
	"context"
	"database/sql"
	"net/http"

	"fknsrs.biz/p/sorm"
	"github.com/monoculum/formam"

	"fknsrs.biz/p/ytsubs/internal/ctxdb"
	"fknsrs.biz/p/ytsubs/internal/ctxtemplate"
	"fknsrs.biz/p/ytsubs/internal/httputil"
	"fknsrs.biz/p/ytsubs/internal/syncqueue"
	"fknsrs.biz/p/ytsubs/internal/ytfeed"
	"fknsrs.biz/p/ytsubs/internal/ytweb"
	"fknsrs.biz/p/ytsubs/models"
)

func Add(rw http.ResponseWriter, r *http.Request) {
	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_add", map[string]interface{}{}); err != nil {
		panic(err)
	}
}

func AddAction(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		URLOrID string `formam:"url_or_id"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	resolvedID, err := ytweb.ResolveChannelID(r.Context(), input.URLOrID)
	if err != nil {
		httputil.RedirectWithError(rw, r, "/add", "Could not find a channel for that input: "+err.Error())
		return
	}

	feed, err := ytfeed.Fetch(r.Context(), resolvedID)
	if err != nil {
		httputil.RedirectWithError(rw, r, "/add", "Could not fetch the channel's feed: "+err.Error())
		return
	}

	// the feed's own channel id is the canonical one
	channelID := feed.ChannelID

	var existing models.Channel
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &existing, "where id = ?", channelID); err == nil {
		httputil.RedirectWithInformation(rw, r, "/channels/"+channelID, "Already subscribed to "+existing.Name+".")
		return
	} else if err != sql.ErrNoRows {
		panic(err)
	}

	channel := models.Channel{ID: channelID, Name: feed.Title}

	// the channel row and both queue entries land together, so a subscription
	// can never exist without its backfills being owed
	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := models.CreateChannel(ctx, tx, &channel); err != nil {
			return err
		}

		for _, v := range feed.Videos {
			if err := models.UpsertVideo(ctx, tx, &models.Video{
				ID:          v.ID,
				ChannelID:   channelID,
				Title:       v.Title,
				Description: v.Description,
				Date:        v.Published,
			}); err != nil {
				return err
			}
		}

		if err := syncqueue.Enqueue(ctx, tx, syncqueue.KindVideo, channelID); err != nil {
			return err
		}

		return syncqueue.Enqueue(ctx, tx, syncqueue.KindPlaylist, channelID)
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/channels/"+channelID, "Subscribed to "+channel.Name+". Older videos and playlists will appear soon.")
}
