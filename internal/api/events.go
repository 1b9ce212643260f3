package api

import (
	"net/http"
	"strconv"

	"github.com/epfl-river/river-backend/internal/apierr"
	"github.com/epfl-river/river-backend/internal/store"
)

const maxEventsPageSize = 1000

// eventsPage is the paginated envelope /api/events responds with, carrying
// enough metadata for a client to request the next page without guessing.
type eventsPage struct {
	Events     interface{} `json:"events"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalCount int         `json:"total_count"`
}

func (api *RestApi) listEvents(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseOptionalTime(q.Get("start"))
	if err != nil {
		handleError(err, rw)
		return
	}
	end, err := parseOptionalTime(q.Get("end"))
	if err != nil {
		handleError(err, rw)
		return
	}
	if start.IsZero() || end.IsZero() {
		handleError(apierr.BadRequestf("start and end are required"), rw)
		return
	}
	if !end.After(start) {
		handleError(apierr.BadRequestf("end must be after start"), rw)
		return
	}

	page := 1
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			handleError(apierr.BadRequestf("invalid page %q", p), rw)
			return
		}
		page = n
	}

	pageSize := 100
	if ps := q.Get("page_size"); ps != "" {
		n, err := strconv.Atoi(ps)
		if err != nil || n < 1 || n > maxEventsPageSize {
			handleError(apierr.BadRequestf("page_size must be between 1 and %d", maxEventsPageSize), rw)
			return
		}
		pageSize = n
	}

	events, total, err := api.Store.ListEvents(r.Context(), store.EventListFilter{
		Start:     start,
		End:       end,
		Category:  q.Get("category"),
		StationID: q.Get("station_id"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		handleError(apierr.Db(err), rw)
		return
	}

	writeJSON(rw, eventsPage{Events: events, Page: page, PageSize: pageSize, TotalCount: total})
}
