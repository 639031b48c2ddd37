// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the request sent to the model and to
// feed controlled responses without a live backend.
package mock

import (
	"context"
	"sync"

	"github.com/voicemate/voicemate/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// Provider is a mock llm.Provider. Zero values for response fields cause
// Complete to return nil, nil. Set Err to inject an error.
type Provider struct {
	// Response is returned by Complete. May be nil.
	Response *llm.CompletionResponse

	// Err, if non-nil, is returned as the error from Complete.
	Err error

	mu    sync.Mutex
	calls []llm.CompletionRequest
}

// Complete records the request and returns Response, Err.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	return p.Response, p.Err
}

// Calls returns every request received so far, in order.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.calls...)
}
