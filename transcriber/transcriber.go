// Package transcriber turns a finished recording into raw text by calling
// the supervised whisper-server over HTTP. The backend consumes the scratch
// WAV and replies with JSON; anything else is handled with a best-effort
// plain-text fallback.
package transcriber

import (
	"context"
	"errors"
)

var (
	ErrTimeout            = errors.New("transcription timed out")
	ErrBackendUnavailable = errors.New("transcription backend unavailable")
	ErrMalformedResponse  = errors.New("malformed transcription response")
)

type Client interface {
	// Transcribe sends the persisted recording at wavPath to the backend
	// and returns the transcript trimmed of surrounding whitespace. An
	// empty transcript is a valid result, not an error.
	Transcribe(ctx context.Context, wavPath string) (string, error)
}
