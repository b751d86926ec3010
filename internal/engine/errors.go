package engine

import "errors"

// Sentinel errors shared by sources, analysis and the HTTP layer.
// Callers wrap them with fmt.Errorf("...: %w") and match with errors.Is.
var (
	ErrMissingParams    = errors.New("missing required parameters")
	ErrInvalidParams    = errors.New("invalid parameters")
	ErrInvalidURL       = errors.New("invalid YouTube URL")
	ErrInvalidTime      = errors.New("invalid time format")
	ErrVideoNotFound    = errors.New("video not found")
	ErrForbidden        = errors.New("access forbidden: check API key or video restrictions")
	ErrCommentsDisabled = errors.New("comments are disabled for this video")
	ErrNoComments       = errors.New("comments are disabled or no comments found")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrLLMUnavailable   = errors.New("AI model not available")
	ErrLLMEmpty         = errors.New("empty response from model")
	ErrLLMInvalidJSON   = errors.New("invalid JSON response from model")
	ErrNotFound         = errors.New("not found")
	ErrNoTranscript     = errors.New("no transcript available")
	ErrAPIUnavailable   = errors.New("YouTube Data API key not configured")
)

// permanentErrors are never retried.
var permanentErrors = []error{
	ErrMissingParams,
	ErrInvalidParams,
	ErrInvalidURL,
	ErrInvalidTime,
	ErrVideoNotFound,
	ErrForbidden,
	ErrCommentsDisabled,
	ErrLLMUnavailable,
	ErrAPIUnavailable,
	ErrNotFound,
}

// IsPermanent reports whether err wraps one of the non-retryable sentinels.
func IsPermanent(err error) bool {
	for _, p := range permanentErrors {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}
