package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey int

const correlationKey ctxKey = iota

// CorrelationHeader names the header a client may send to thread its own
// ID through a request. Progress handles minted by the query engine use
// the same UUID format, so one ID scheme covers a query call and the
// progress polling that follows it.
const CorrelationHeader = "X-Correlation-ID"

// Correlate tags each request with a correlation ID, minting one when the
// client did not supply its own. The ID is echoed on the response and made
// available to downstream handlers via CorrelationID.
func Correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, id)
		ctx := context.WithValue(r.Context(), correlationKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationID returns the correlation ID attached by Correlate, or an
// empty string outside a request.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
