// Package plex is a thin client for the slice of the Plex Media Server
// API the bot needs: music search, album and artist leaves, and audio
// playlists. Requests run behind an adaptive rate limit so a busy
// server is backed off instead of hammered.
package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/version"
	"github.com/keshon/plexody/pkg/retrylimit"
)

// Search type codes from the Plex API.
const (
	typeArtist = "8"
	typeAlbum  = "9"
	typeTrack  = "10"
)

// clientIdentifier labels this client in the server's device list.
const clientIdentifier = "plexody-bot"

// StatusError carries the HTTP status of a failed Plex request, which
// lets the retry layer tell pushback from dead ends.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plex: status %d for %s", e.Code, e.Path)
}

func (e *StatusError) StatusCode() int { return e.Code }

// Client talks to one Plex server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	lim     *retrylimit.AdaptiveLimiter
	log     zerolog.Logger
}

// New creates a client for the server at baseURL authenticating with
// token. httpClient may be nil for defaults.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		lim:     retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		log:     logging.WithComponent("plex"),
	}
}

// SearchTracks finds tracks matching query, at most limit of them.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	mc, err := c.search(ctx, query, typeTrack, limit)
	if err != nil {
		return nil, err
	}
	return mc.Tracks, nil
}

// SearchAlbums finds albums matching query.
func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) ([]Directory, error) {
	mc, err := c.search(ctx, query, typeAlbum, limit)
	if err != nil {
		return nil, err
	}
	return directoriesOf(mc, "album"), nil
}

// SearchArtists finds artists matching query.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]Directory, error) {
	mc, err := c.search(ctx, query, typeArtist, limit)
	if err != nil {
		return nil, err
	}
	return directoriesOf(mc, "artist"), nil
}

func (c *Client) search(ctx context.Context, query, searchType string, limit int) (*MediaContainer, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("type", searchType)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "/search", q)
}

// AlbumTracks lists the tracks of the album with the given rating key.
func (c *Client) AlbumTracks(ctx context.Context, ratingKey string) ([]Track, error) {
	mc, err := c.get(ctx, "/library/metadata/"+ratingKey+"/children", nil)
	if err != nil {
		return nil, err
	}
	return mc.Tracks, nil
}

// ArtistTracks lists every track under the artist with the given
// rating key, across all their albums.
func (c *Client) ArtistTracks(ctx context.Context, ratingKey string) ([]Track, error) {
	mc, err := c.get(ctx, "/library/metadata/"+ratingKey+"/allLeaves", nil)
	if err != nil {
		return nil, err
	}
	return mc.Tracks, nil
}

// Playlists lists the server's audio playlists.
func (c *Client) Playlists(ctx context.Context) ([]Playlist, error) {
	q := url.Values{}
	q.Set("playlistType", "audio")
	mc, err := c.get(ctx, "/playlists", q)
	if err != nil {
		return nil, err
	}
	return mc.Playlists, nil
}

// PlaylistItems lists the tracks of one playlist.
func (c *Client) PlaylistItems(ctx context.Context, ratingKey string) ([]Track, error) {
	mc, err := c.get(ctx, "/playlists/"+ratingKey+"/items", nil)
	if err != nil {
		return nil, err
	}
	return mc.Tracks, nil
}

// StreamURL returns the direct, token-authenticated URL of a track's
// media file, ready for ffmpeg. Empty when the track carries no part.
func (c *Client) StreamURL(t Track) string {
	for _, m := range t.Media {
		for _, p := range m.Parts {
			if p.Key != "" {
				return c.signed(p.Key)
			}
		}
	}
	return ""
}

// ArtworkURL returns the token-authenticated cover art URL, or empty.
func (c *Client) ArtworkURL(thumb string) string {
	if thumb == "" {
		return ""
	}
	return c.signed(thumb)
}

func (c *Client) signed(key string) string {
	sep := "?"
	if strings.Contains(key, "?") {
		sep = "&"
	}
	return c.baseURL + key + sep + "X-Plex-Token=" + url.QueryEscape(c.token)
}

// get performs one API call behind the limiter with retries. Client
// errors other than 429 are dead ends and fail immediately.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*MediaContainer, error) {
	var mc MediaContainer
	err := retrylimit.WithRetry(ctx, c.lim, func() error {
		return c.doGet(ctx, path, query, &mc)
	})
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values, dst *MediaContainer) error {
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("X-Plex-Token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return retrylimit.Fatal(err)
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Plex-Product", version.AppName)
	req.Header.Set("X-Plex-Client-Identifier", clientIdentifier)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("plex request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{Code: resp.StatusCode, Path: path}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retrylimit.Fatal(serr)
		}
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("plex pushed back")
		return serr
	}

	if err := xml.NewDecoder(resp.Body).Decode(dst); err != nil {
		return retrylimit.Fatal(fmt.Errorf("decode plex response: %w", err))
	}
	return nil
}

func directoriesOf(mc *MediaContainer, dirType string) []Directory {
	out := make([]Directory, 0, len(mc.Directories))
	for _, d := range mc.Directories {
		if d.Type == dirType || d.Type == "" {
			out = append(out, d)
		}
	}
	return out
}
