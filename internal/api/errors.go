package api

import (
	"encoding/json"
	"net/http"

	"github.com/epfl-river/river-backend/internal/apierr"
	"github.com/epfl-river/river-backend/pkg/log"
)

// errorResponse is the body shape of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// handleError translates err to an HTTP status via its apierr.Kind and
// writes the JSON error body. Database/Internal causes are logged in full
// but never echoed to the client.
func handleError(err error, rw http.ResponseWriter) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch apierr.KindOf(err) {
	case apierr.BadRequest:
		status, message = http.StatusBadRequest, err.Error()
	case apierr.NotFound:
		status, message = http.StatusNotFound, err.Error()
	case apierr.ServiceUnavailable:
		status, message = http.StatusServiceUnavailable, err.Error()
	case apierr.UpstreamFailure:
		status, message = http.StatusBadGateway, "upstream request failed"
		log.Errorf("api: upstream failure: %v", err)
	case apierr.Database:
		log.Errorf("api: database error: %v", err)
	default:
		log.Errorf("api: internal error: %v", err)
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(errorResponse{Error: message})
}

func writeJSON(rw http.ResponseWriter, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Errorf("api: encoding response: %v", err)
	}
}
