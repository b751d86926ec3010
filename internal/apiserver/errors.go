package apiserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

// statusFor maps engine sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrMissingParams),
		errors.Is(err, engine.ErrInvalidParams),
		errors.Is(err, engine.ErrInvalidURL),
		errors.Is(err, engine.ErrInvalidTime):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrNotFound),
		errors.Is(err, engine.ErrVideoNotFound),
		errors.Is(err, engine.ErrNoComments),
		errors.Is(err, engine.ErrCommentsDisabled),
		errors.Is(err, engine.ErrNoTranscript):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrLLMUnavailable),
		errors.Is(err, engine.ErrAPIUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// detailed sentinels carry a useful suffix after "<sentinel>: ".
var detailed = []error{engine.ErrMissingParams, engine.ErrNotFound, engine.ErrNoTranscript, engine.ErrInvalidParams}

// messageFor returns the client-facing text for a 4xx/503 error.
func messageFor(err error) string {
	switch {
	case errors.Is(err, engine.ErrNoComments):
		return "Comments are disabled or no comments found"
	case errors.Is(err, engine.ErrLLMUnavailable):
		return "AI model not available"
	case errors.Is(err, engine.ErrAPIUnavailable):
		return "YouTube Data API is not configured"
	case errors.Is(err, engine.ErrInvalidURL):
		return "Invalid YouTube URL"
	case errors.Is(err, engine.ErrInvalidTime):
		return "Invalid time format. Use HH:MM:SS or seconds."
	}
	for _, sentinel := range detailed {
		if !errors.Is(err, sentinel) {
			continue
		}
		if _, detail, ok := strings.Cut(err.Error(), sentinel.Error()+": "); ok {
			return capitalize(detail)
		}
		break
	}
	if errors.Is(err, engine.ErrMissingParams) {
		return "Missing required parameters"
	}
	return capitalize(err.Error())
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
