// Package mock provides an in-memory stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/glimmervoice/glimmer/pkg/audio"
	"github.com/glimmervoice/glimmer/pkg/provider/stt"
)

// Provider implements stt.Provider with a fixed result.
type Provider struct {
	// Text is returned for every Transcribe call.
	Text string

	// Err, when non-nil, is returned instead.
	Err error

	mu    sync.Mutex
	clips []*audio.Clip
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(_ context.Context, clip *audio.Clip) (string, error) {
	p.mu.Lock()
	p.clips = append(p.clips, clip)
	p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// Clips returns the clips received so far, in order.
func (p *Provider) Clips() []*audio.Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*audio.Clip(nil), p.clips...)
}

var _ stt.Provider = (*Provider)(nil)
