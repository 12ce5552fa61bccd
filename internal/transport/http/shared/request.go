package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"coreops/internal/domain/apperr"
	"coreops/internal/platform/metrics"
	"coreops/internal/requestctx"
	"coreops/internal/transport/http/api"
)

// DecodeJSON reads a single JSON object into dst and writes the failure
// response itself when the body is unusable.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	requestID := requestctx.GetRequestID(r.Context())
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
		case errors.Is(err, io.EOF):
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body is required", requestID)
		default:
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		}
		return false
	}
	if decoder.More() {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body must contain a single object", requestID)
		return false
	}
	return true
}

// RespondError counts expected workflow rejections and renders err.
func RespondError(w http.ResponseWriter, r *http.Request, collector *metrics.Collector, err error) {
	if kind := apperr.KindOf(err); kind != "" {
		collector.Rejected(string(kind))
	}
	api.WriteError(w, r, err, requestctx.GetRequestID(r.Context()))
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
