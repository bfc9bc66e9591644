// Package tts defines the external text-to-speech collaborator contract
// (C17). Synthesis is logically external (spec §1 treats it as an opaque
// Synthesize(text, lang) -> bytes operation); this package still ships one
// concrete, swappable adapter (pkg/tts/edgetts) so the orchestrator has
// something to call.
package tts

import "context"

// Provider synthesizes spoken audio for text in the given language.
// Returns the raw audio bytes and a MIME content type.
type Provider interface {
	Synthesize(ctx context.Context, text, lang string) (audio []byte, contentType string, err error)
}

// FatalError marks a TTS failure that must surface as a 5xx to the
// caller (spec §7: "TTS failure: 5xx to caller; POI is not marked
// heard"). StatusCode, when known, is preserved up to the HTTP layer;
// otherwise the caller falls back to a generic 5xx.
type FatalError struct {
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string { return e.Message }

func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}
