package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/geolytics/geolytics/internal/drivetest"
	"github.com/geolytics/geolytics/internal/gridmap"
	"github.com/geolytics/geolytics/internal/model"
	"github.com/geolytics/geolytics/internal/project"
	"github.com/geolytics/geolytics/internal/schema"
	"github.com/geolytics/geolytics/internal/template"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps domain sentinel errors to HTTP status codes. Anything not
// recognized is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, project.ErrNotFound),
		errors.Is(err, schema.ErrTableNotFound),
		errors.Is(err, template.ErrNotFound),
		errors.Is(err, drivetest.ErrNoDataset),
		errors.Is(err, drivetest.ErrUnknownColumn),
		errors.Is(err, gridmap.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrColumnNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, drivetest.ErrNoCoordinates),
		errors.Is(err, gridmap.ErrBadCellSize):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// fail is the common error exit for handlers: classify, envelope, write.
func fail(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
