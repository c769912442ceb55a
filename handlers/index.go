package handlers

import (
	"net/http"
	"strconv"

	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"

	"fknsrs.biz/p/ytsubs/internal/ctxdb"
	"fknsrs.biz/p/ytsubs/internal/ctxtemplate"
	"fknsrs.biz/p/ytsubs/models"
)

func Index(rw http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(r)

	var videos []models.LatestVideo
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&videos,
		nil,
		[]sb.AsOrderingTerm{
			sb.OrderDesc(models.LatestVideoTable.C("VideoDate")),
			sb.OrderAsc(models.LatestVideoTable.C("VideoID")),
		},
		sb.OffsetLimit(sb.Literal(pageOffset(page)), sb.Literal(pageLimit())),
	); err != nil {
		panic(err)
	}

	pg := paginate("", page, len(videos))
	if pg.HasNext {
		videos = videos[:pageSize]
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_index", map[string]interface{}{
		"Videos":     videos,
		"Pagination": pg,
	}); err != nil {
		panic(err)
	}
}

// Shuffle serves a random sample of the whole collection. Handy for finding
// something to watch when the latest page has gone stale.
func Shuffle(rw http.ResponseWriter, r *http.Request) {
	var videos []models.LatestVideo
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&videos,
		nil,
		[]sb.AsOrderingTerm{
			sb.OrderAsc(sb.Literal("random()")),
		},
		sb.OffsetLimit(nil, sb.Literal(strconv.Itoa(pageSize))),
	); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_shuffle", map[string]interface{}{
		"Videos": videos,
	}); err != nil {
		panic(err)
	}
}
