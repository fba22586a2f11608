// Package track holds the track model shared by the resolver, queue and
// playback session.
package track

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source names for resolved tracks.
const (
	SourcePlex    = "plex"
	SourceYouTube = "youtube"
	SourceStream  = "stream"
)

// Resolution failures. Resolvers wrap the underlying cause around one of
// these so callers can match with errors.Is.
var (
	ErrNotFound    = errors.New("no tracks found for query")
	ErrRateLimited = errors.New("source is rate limiting requests")
	ErrUnplayable  = errors.New("resource is not playable audio")
	ErrTimeout     = errors.New("source took too long to respond")
)

// Queue errors.
var (
	ErrQueueFull   = errors.New("queue is full")
	ErrBadPosition = errors.New("no such queue position")
)

// Descriptor is a resolved track the sink can play, or a placeholder
// standing in for a bulk import that is still resolving. Placeholders
// are never playable; the queue drops them on pop.
type Descriptor struct {
	ID          string
	Title       string
	Artist      string
	Duration    time.Duration
	Locator     string
	Source      string
	ArtworkURL  string
	Placeholder bool
}

// New returns a playable descriptor with a fresh ID.
func New(title, artist, locator, source string, dur time.Duration) Descriptor {
	return Descriptor{
		ID:       uuid.NewString(),
		Title:    title,
		Artist:   artist,
		Duration: dur,
		Locator:  locator,
		Source:   source,
	}
}

// NewPlaceholder returns a placeholder entry for a bulk import of count
// tracks. Its ID is the token later passed to ReplacePlaceholder.
func NewPlaceholder(title string, count int) Descriptor {
	return Descriptor{
		ID:          uuid.NewString(),
		Title:       fmt.Sprintf("📃 %s (%d tracks)", title, count),
		Placeholder: true,
	}
}

// DisplayTitle renders "Artist - Title", falling back to the bare title.
func (d Descriptor) DisplayTitle() string {
	if d.Artist == "" {
		return d.Title
	}
	return d.Artist + " - " + d.Title
}
