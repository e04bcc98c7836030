package middleware

import (
	"context"
	"net/http"

	"github.com/frahmantamala/merchant-settlement/pkg/logger"
	"github.com/google/uuid"
)

const TraceHeader = "X-Trace-ID"

type traceKey struct{}

// RequestID propagates the caller's trace id, or mints one, and attaches it
// to the request logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), traceKey{}, traceID)
		ctx = logger.With(ctx, "trace_id", traceID)

		w.Header().Set(TraceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
