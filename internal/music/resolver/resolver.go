// Package resolver turns what users type (Plex queries, YouTube links
// and titles, direct stream URLs) into playable track descriptors.
//
// Single tracks resolve inline. Bulk fetches (albums, artists,
// playlists) come back as an ImportPlan: a placeholder to queue right
// away plus a Fetch the importer runs in the background.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/metrics"
	"github.com/keshon/plexody/internal/music/track"
)

// Result of resolving one query. Exactly one of Tracks and Import is
// set.
type Result struct {
	Tracks []track.Descriptor
	Import *ImportPlan
}

// ImportPlan defers a bulk fetch. The placeholder holds the queue slot
// while Fetch runs on a background job; its tracks then replace the
// placeholder in place.
type ImportPlan struct {
	Placeholder track.Descriptor
	Fetch       func(ctx context.Context) ([]track.Descriptor, error)
}

// Source resolves queries it recognizes.
type Source interface {
	Name() string
	Match(input string) bool
	Resolve(ctx context.Context, input string) (*Result, error)
}

// Mux routes queries to sources in registration order; the first
// source whose Match accepts the input wins.
type Mux struct {
	sources []Source
	log     zerolog.Logger
}

// NewMux creates a mux over the given sources. Order matters: put URL
// matchers before catch-alls.
func NewMux(sources ...Source) *Mux {
	return &Mux{
		sources: sources,
		log:     logging.WithComponent("resolver"),
	}
}

// Resolve routes input to the first matching source.
func (m *Mux) Resolve(ctx context.Context, input string) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty query", track.ErrNotFound)
	}
	for _, s := range m.sources {
		if s.Match(input) {
			return m.resolveWith(ctx, s, input)
		}
	}
	return nil, fmt.Errorf("%w: no source recognizes %q", track.ErrNotFound, input)
}

// ResolveFrom forces a specific source by name; an empty name falls
// back to automatic routing. A URL that the forced source does not
// recognize is rejected rather than guessed at.
func (m *Mux) ResolveFrom(ctx context.Context, sourceName, input string) (*Result, error) {
	sourceName = strings.TrimSpace(sourceName)
	if sourceName == "" {
		return m.Resolve(ctx, input)
	}
	input = strings.TrimSpace(input)

	for _, s := range m.sources {
		if s.Name() != sourceName {
			continue
		}
		if IsURL(input) && !s.Match(input) {
			return nil, fmt.Errorf("%w: %q is not a %s link", track.ErrNotFound, input, sourceName)
		}
		return m.resolveWith(ctx, s, input)
	}
	return nil, fmt.Errorf("unknown source %q", sourceName)
}

func (m *Mux) resolveWith(ctx context.Context, s Source, input string) (*Result, error) {
	start := time.Now()
	res, err := s.Resolve(ctx, input)
	metrics.ResolveDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		m.log.Debug().Err(err).Str("source", s.Name()).Str("query", input).Msg("resolve failed")
		return nil, err
	}
	return res, nil
}

// IsURL reports whether s looks like an absolute http(s) URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// timeoutErr reports whether err smells like a network timeout rather
// than a definite answer from the upstream.
func timeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}
