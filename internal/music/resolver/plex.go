package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/catalog/plex"
	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/music/track"
)

// trackSearchLimit caps how many candidates a plain title search pulls
// from the server; only the best match plays.
const trackSearchLimit = 5

// PlexSource resolves bare titles against a Plex music library. Plain
// queries search tracks; the album:, artist: and playlist: prefixes
// turn the query into a bulk import of the matching collection.
type PlexSource struct {
	client *plex.Client
	log    zerolog.Logger
}

func NewPlex(client *plex.Client) *PlexSource {
	return &PlexSource{
		client: client,
		log:    logging.WithComponent("plex-source"),
	}
}

func (s *PlexSource) Name() string { return track.SourcePlex }

// Match accepts anything that is not a URL. The mux orders this source
// last, so URLs are claimed by the link sources first.
func (s *PlexSource) Match(input string) bool { return !IsURL(input) }

func (s *PlexSource) Resolve(ctx context.Context, input string) (*Result, error) {
	if kind, rest, ok := splitPrefix(input); ok {
		switch kind {
		case "album":
			return s.resolveAlbum(ctx, rest)
		case "artist":
			return s.resolveArtist(ctx, rest)
		case "playlist":
			return s.resolvePlaylist(ctx, rest)
		}
	}
	return s.resolveTrack(ctx, input)
}

func (s *PlexSource) resolveTrack(ctx context.Context, query string) (*Result, error) {
	found, err := s.client.SearchTracks(ctx, query, trackSearchLimit)
	if err != nil {
		return nil, classifyPlexErr(err, query)
	}
	for _, t := range found {
		d, ok := s.descriptor(t)
		if !ok {
			continue
		}
		return &Result{Tracks: []track.Descriptor{d}}, nil
	}
	if len(found) > 0 {
		return nil, fmt.Errorf("%w: %q has no playable media", track.ErrUnplayable, query)
	}
	return nil, fmt.Errorf("%w: no track matching %q", track.ErrNotFound, query)
}

func (s *PlexSource) resolveAlbum(ctx context.Context, query string) (*Result, error) {
	albums, err := s.client.SearchAlbums(ctx, query, 1)
	if err != nil {
		return nil, classifyPlexErr(err, query)
	}
	if len(albums) == 0 {
		return nil, fmt.Errorf("%w: no album matching %q", track.ErrNotFound, query)
	}
	album := albums[0]
	title := album.Title
	if album.ParentTitle != "" {
		title = album.ParentTitle + " - " + album.Title
	}
	return s.importPlan(title, album.LeafCount, func(ctx context.Context) ([]plex.Track, error) {
		return s.client.AlbumTracks(ctx, album.RatingKey)
	}), nil
}

func (s *PlexSource) resolveArtist(ctx context.Context, query string) (*Result, error) {
	artists, err := s.client.SearchArtists(ctx, query, 1)
	if err != nil {
		return nil, classifyPlexErr(err, query)
	}
	if len(artists) == 0 {
		return nil, fmt.Errorf("%w: no artist matching %q", track.ErrNotFound, query)
	}
	artist := artists[0]
	return s.importPlan(artist.Title, artist.LeafCount, func(ctx context.Context) ([]plex.Track, error) {
		return s.client.ArtistTracks(ctx, artist.RatingKey)
	}), nil
}

func (s *PlexSource) resolvePlaylist(ctx context.Context, query string) (*Result, error) {
	lists, err := s.client.Playlists(ctx)
	if err != nil {
		return nil, classifyPlexErr(err, query)
	}
	match := strings.ToLower(strings.TrimSpace(query))
	for _, pl := range lists {
		if !strings.Contains(strings.ToLower(pl.Title), match) {
			continue
		}
		ratingKey := pl.RatingKey
		return s.importPlan(pl.Title, pl.LeafCount, func(ctx context.Context) ([]plex.Track, error) {
			return s.client.PlaylistItems(ctx, ratingKey)
		}), nil
	}
	return nil, fmt.Errorf("%w: no playlist matching %q", track.ErrNotFound, query)
}

// Playlists lists the server's audio playlists for browsing.
func (s *PlexSource) Playlists(ctx context.Context) ([]plex.Playlist, error) {
	lists, err := s.client.Playlists(ctx)
	if err != nil {
		return nil, classifyPlexErr(err, "playlists")
	}
	return lists, nil
}

// PlaylistImport builds an import plan for a playlist the user picked
// from the browse list, skipping the search round-trip.
func (s *PlexSource) PlaylistImport(pl plex.Playlist) *ImportPlan {
	return s.importPlan(pl.Title, pl.LeafCount, func(ctx context.Context) ([]plex.Track, error) {
		return s.client.PlaylistItems(ctx, pl.RatingKey)
	}).Import
}

func (s *PlexSource) importPlan(title string, count int, fetch func(ctx context.Context) ([]plex.Track, error)) *Result {
	return &Result{Import: &ImportPlan{
		Placeholder: track.NewPlaceholder(title, count),
		Fetch: func(ctx context.Context) ([]track.Descriptor, error) {
			found, err := fetch(ctx)
			if err != nil {
				return nil, classifyPlexErr(err, title)
			}
			out := make([]track.Descriptor, 0, len(found))
			for _, t := range found {
				if d, ok := s.descriptor(t); ok {
					out = append(out, d)
				}
			}
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: %q has no playable tracks", track.ErrNotFound, title)
			}
			return out, nil
		},
	}}
}

// descriptor maps a Plex track to a playable descriptor. Tracks with
// no media part cannot be streamed and are skipped.
func (s *PlexSource) descriptor(t plex.Track) (track.Descriptor, bool) {
	locator := s.client.StreamURL(t)
	if locator == "" {
		s.log.Debug().Str("track", t.Title).Msg("track has no media part, skipping")
		return track.Descriptor{}, false
	}
	d := track.New(t.Title, t.GrandparentTitle, locator, track.SourcePlex, time.Duration(t.Duration)*time.Millisecond)
	d.ArtworkURL = s.client.ArtworkURL(t.Thumb)
	return d, true
}

func splitPrefix(input string) (kind, rest string, ok bool) {
	kind, rest, found := strings.Cut(input, ":")
	if !found {
		return "", "", false
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", "", false
	}
	switch kind {
	case "album", "artist", "playlist":
		return kind, rest, true
	}
	return "", "", false
}

// classifyPlexErr maps transport and status failures onto the typed
// resolution errors the command layer answers with.
func classifyPlexErr(err error, query string) error {
	if timeoutErr(err) {
		return fmt.Errorf("%w: plex did not answer for %q", track.ErrTimeout, query)
	}
	var serr *plex.StatusError
	if errors.As(err, &serr) {
		switch {
		case serr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %q", track.ErrNotFound, query)
		case serr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: plex is rate limiting us", track.ErrRateLimited)
		case serr.Code >= 500:
			return fmt.Errorf("%w: plex answered %d", track.ErrUnplayable, serr.Code)
		}
	}
	return fmt.Errorf("plex lookup for %q: %w", query, err)
}
