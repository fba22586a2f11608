package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/music/track"
)

var streamContentTypes = []string{
	"audio/", // General catch
	"video/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/ogg",
	"application/x-scpls",
	"application/xspf+xml",
	"application/octet-stream", // risky but often used for streams
}

// DirectSource accepts bare stream URLs: internet radio, m3u8 feeds,
// plain audio files. It validates the target by probing headers before
// letting the link anywhere near the queue.
type DirectSource struct {
	client *http.Client
	log    zerolog.Logger
}

// NewDirect creates the source. httpClient supplies the transport (for
// proxy setups); redirect and timeout policy are always the probe's own.
func NewDirect(httpClient *http.Client) *DirectSource {
	probe := &http.Client{
		Timeout: 5 * time.Second,
		// Follow redirects only so far; looping stream portals exist.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	if httpClient != nil {
		probe.Transport = httpClient.Transport
	}
	return &DirectSource{
		client: probe,
		log:    logging.WithComponent("direct-source"),
	}
}

func (s *DirectSource) Name() string { return track.SourceStream }

// Match accepts any URL. The mux tries the direct source last, so the
// dedicated sources have already claimed their links.
func (s *DirectSource) Match(input string) bool { return IsURL(input) }

func (s *DirectSource) Resolve(ctx context.Context, input string) (*Result, error) {
	input = strings.TrimSpace(input)
	if !IsURL(input) {
		return nil, fmt.Errorf("%w: %q is not a stream link", track.ErrNotFound, input)
	}

	contentType, finalURL, err := s.fetchContentType(ctx, input)
	if err != nil {
		if timeoutErr(err) {
			return nil, fmt.Errorf("%w: %q did not answer", track.ErrTimeout, input)
		}
		return nil, fmt.Errorf("%w: %v", track.ErrUnplayable, err)
	}
	if !isStreamContentType(contentType) && !isLikelyPlaylist(finalURL) {
		return nil, fmt.Errorf("%w: %q serves %s, not a stream", track.ErrUnplayable, input, contentType)
	}

	s.log.Debug().Str("url", input).Str("content_type", contentType).Msg("stream link accepted")
	d := track.New(streamTitle(finalURL), "", input, track.SourceStream, 0)
	return &Result{Tracks: []track.Descriptor{d}}, nil
}

// fetchContentType probes with HEAD and falls back to GET, since many
// radio servers refuse HEAD outright.
func (s *DirectSource) fetchContentType(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil || resp.StatusCode >= 400 {
		if resp != nil {
			resp.Body.Close()
		}
		req, rerr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if rerr != nil {
			return "", "", rerr
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		resp, err = s.client.Do(req)
		if err != nil {
			return "", "", fmt.Errorf("GET fallback failed: %w", err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return "", "", fmt.Errorf("stream answered status %d", resp.StatusCode)
		}
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, 1) // some servers only commit headers once read

	contentType := resp.Header.Get("Content-Type")
	finalURL := resp.Request.URL.String() // actual URL after redirects
	return contentType, finalURL, nil
}

func isStreamContentType(contentType string) bool {
	// Strip params like "audio/mpeg; charset=utf-8".
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	for _, allowed := range streamContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func isLikelyPlaylist(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u", ".m3u8", ".pls", ".xspf", ".asx":
		return true
	}
	return false
}

// streamTitle names a stream after its host, since bare URLs carry no
// metadata until ICY tags show up mid-stream.
func streamTitle(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
