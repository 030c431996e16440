// Package completion wraps the external assistant endpoint. The message
// pipeline treats it as an opaque request/response call: any failure,
// network or authorization, surfaces uniformly as "assistant response
// unavailable".
package completion

import (
	"context"

	"github.com/aviationai/chatengine"
)

// Request is one completion call. History carries the prior turns that
// fit the prompt window; Prompt is the new user input, sent last.
type Request struct {
	Prompt    string
	History   []chatengine.Message
	AuthToken string
}

// Result is the assistant's reply.
type Result struct {
	Text string
}

// Completer is the external completion collaborator.
type Completer interface {
	Complete(ctx context.Context, req *Request) (*Result, error)
}

// Embedder produces a vector for a piece of text. Implemented by the
// OpenAI client and consumed by the transcript search indexer.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
