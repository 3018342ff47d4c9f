package obs

import (
	"context"
	"fleet-dispatch-service/internal/platform/logger"
	"time"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

var timingLog logger.Logger = logger.New("obs")

// WithRequestID attaches a request id consumed by Time.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time logs the duration of an operation. Use as
//
//	defer obs.Time(ctx, "op")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)
		defaultMetrics.observe(name, dur)

		fields := map[string]any{
			"req_id": reqID,
			"op":     name,
			"dur_ms": dur.Milliseconds(),
		}
		if errp != nil && *errp != nil {
			fields["err"] = (*errp).Error()
		}
		timingLog.Debugw("timing", fields)
	}
}
