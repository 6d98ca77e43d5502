package httpmiddleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/trace"
)

// WriteError writes the JSON error envelope shared by every endpoint:
//
//	{"error": code, "message": message, "status": status, "request_id": ..., "trace_id": ...}
func WriteError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	if status == 0 {
		status = http.StatusInternalServerError
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("error")
	e.Str(sanitize(code, 80))
	e.FieldStart("message")
	e.Str(sanitize(message, 512))
	e.FieldStart("status")
	e.Int(status)
	if id := sanitize(RequestIDFromContext(ctx), 128); id != "" {
		e.FieldStart("request_id")
		e.Str(id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		e.FieldStart("trace_id")
		e.Str(sc.TraceID().String())
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func sanitize(value string, limit int) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
