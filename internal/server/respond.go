package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/lexivisual/internal/ai"
	"github.com/p-n-ai/lexivisual/internal/analytics"
)

const (
	msgRateLimited    = "Rate limit exceeded. Please try again in a moment."
	msgQuotaExhausted = "Service temporarily unavailable. Please contact support."
	msgMalformed      = "The AI service returned an unexpected response. Please try again."
	msgTimeout        = "The AI service took too long to respond. Please try again."
	msgCanceled       = "Request canceled"
	msgInternal       = "Internal server error"
)

var errRateLimitedLocal = &ai.Error{Kind: ai.KindRateLimited, Message: "client request limit reached"}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// errorResponse maps err to a status code and a user-facing message.
// configStatus is the status for configuration errors; providerMsg is the
// message for generic upstream failures.
func errorResponse(err error, configStatus int, providerMsg string) (int, string) {
	var aerr *ai.Error
	if errors.As(err, &aerr) && aerr.Passthrough && aerr.StatusCode >= 400 {
		return aerr.StatusCode, aerr.Message
	}

	switch ai.KindOf(err) {
	case ai.KindValidation:
		return http.StatusBadRequest, aerr.Message
	case ai.KindConfiguration:
		return configStatus, aerr.Message
	case ai.KindRateLimited:
		return http.StatusTooManyRequests, msgRateLimited
	case ai.KindQuotaExhausted:
		return http.StatusPaymentRequired, msgQuotaExhausted
	case ai.KindMalformedResponse:
		return http.StatusBadGateway, msgMalformed
	case ai.KindTimeout:
		return http.StatusGatewayTimeout, msgTimeout
	case ai.KindCanceled:
		return http.StatusRequestTimeout, msgCanceled
	case ai.KindProvider, ai.KindCapabilityUnsupported:
		return http.StatusInternalServerError, providerMsg
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// writeError logs err and writes the mapped JSON error.
func writeError(w http.ResponseWriter, r *http.Request, err error, configStatus int, providerMsg string) {
	status, msg := errorResponse(err, configStatus, providerMsg)
	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request failed",
		"request_id", RequestID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"kind", ai.KindOf(err),
		"error", err,
	)
	writeJSON(w, status, errorBody{Error: msg})
}

type outcomeFlags struct {
	usedFallback   bool
	imageGenerated bool
}

// record stores the analytics event for a finished request. Storage
// failures are logged and never reach the client.
func (s *Server) record(r *http.Request, start time.Time, err error, flags outcomeFlags) {
	event := analytics.Event{
		RequestID:      RequestID(r.Context()),
		Endpoint:       r.URL.Path,
		ClientKey:      clientKey(r),
		Outcome:        analytics.OutcomeSuccess,
		UsedFallback:   flags.usedFallback,
		ImageGenerated: flags.imageGenerated,
		Duration:       time.Since(start),
	}
	if err != nil {
		event.Outcome = analytics.OutcomeError
		event.ErrorKind = string(ai.KindOf(err))
	}
	if logErr := s.events.LogEvent(event); logErr != nil {
		slog.Warn("failed to log request event",
			"request_id", event.RequestID,
			"error", logErr,
		)
	}
}
