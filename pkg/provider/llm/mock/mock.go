// Package mock provides a scriptable in-memory llm.Provider for tests.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/glimmervoice/glimmer/pkg/provider/llm"
)

// Provider implements llm.Provider by replaying a scripted chunk sequence.
type Provider struct {
	// Chunks is the sequence emitted by StreamCompletion, in order.
	Chunks []llm.Chunk

	// StartErr, when non-nil, is returned by StreamCompletion and Complete.
	StartErr error

	mu       sync.Mutex
	requests []llm.CompletionRequest
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	ch := make(chan llm.Chunk, len(p.Chunks))
	go func() {
		defer close(ch)
		for _, c := range p.Chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Complete implements llm.Provider by concatenating the scripted chunk text.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ch, err := p.StreamCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for c := range ch {
		if c.FinishReason != "error" {
			sb.WriteString(c.Text)
		}
	}
	return &llm.CompletionResponse{Content: sb.String()}, nil
}

// Requests returns the completion requests received so far, in order.
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.requests...)
}

var _ llm.Provider = (*Provider)(nil)
