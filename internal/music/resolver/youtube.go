package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/music/track"
	"github.com/keshon/plexody/pkg/retrylimit"
	"github.com/keshon/plexody/pkg/util"
)

var (
	youtubeURLPattern = regexp.MustCompile(`(?:https?://)?(?:www\.|music\.)?(youtube\.com|youtu\.be)/\S+`)
	searchHitPattern  = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]+)(?:\\u0026list=([a-zA-Z0-9_-]+))?[^"]*`)
	watchURLPattern   = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

	errNoSearchHit = errors.New("no video found for the given title")
)

// YouTubeSource resolves YouTube video and playlist links through the
// innertube client, and bare titles by scraping the results page the
// way a browser would see it.
//
// Descriptors leave here carrying a signed googlevideo stream URL, not
// the watch link, so playback pipes them straight into ffmpeg without
// another round trip. Signed URLs expire after a few hours; a track
// that sat queued past that window surfaces as a start failure and is
// skipped.
type YouTubeSource struct {
	client  *youtube.Client
	search  *ytSearch
	log     zerolog.Logger
	workers int
}

// NewYouTube creates the source. client carries the shared (possibly
// proxied) innertube client; httpClient serves the search page scrape.
func NewYouTube(client *youtube.Client, httpClient *http.Client) *YouTubeSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &YouTubeSource{
		client:  client,
		search:  &ytSearch{baseURL: "https://www.youtube.com", client: httpClient},
		log:     logging.WithComponent("youtube-source"),
		workers: 4,
	}
}

func (s *YouTubeSource) Name() string { return track.SourceYouTube }

func (s *YouTubeSource) Match(input string) bool {
	return youtubeURLPattern.MatchString(input)
}

func (s *YouTubeSource) Resolve(ctx context.Context, input string) (*Result, error) {
	input = strings.TrimSpace(input)

	// Bare title: the forced-source path lands here. Find the first
	// search hit and carry on with its URL.
	if !IsURL(input) {
		found, err := s.search.firstVideoURL(ctx, input)
		if err != nil {
			if errors.Is(err, errNoSearchHit) {
				return nil, fmt.Errorf("%w: no youtube video for %q", track.ErrNotFound, input)
			}
			return nil, classifyYouTubeErr(err, input)
		}
		input = found
	}

	if isPlaylistURL(input) {
		return s.resolvePlaylist(ctx, input)
	}
	if !isVideoURL(input) {
		return nil, fmt.Errorf("%w: unsupported youtube link %q", track.ErrNotFound, input)
	}
	return s.resolveVideo(ctx, cleanVideoURL(input))
}

func (s *YouTubeSource) resolveVideo(ctx context.Context, watchURL string) (*Result, error) {
	video, err := s.client.GetVideoContext(ctx, watchURL)
	if err != nil {
		return nil, classifyYouTubeErr(err, watchURL)
	}
	d, err := s.descriptorFor(ctx, video)
	if err != nil {
		return nil, classifyYouTubeErr(err, watchURL)
	}
	return &Result{Tracks: []track.Descriptor{d}}, nil
}

// descriptorFor picks the best audio-carrying format and signs its
// stream URL into the descriptor's locator.
func (s *YouTubeSource) descriptorFor(ctx context.Context, video *youtube.Video) (track.Descriptor, error) {
	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return track.Descriptor{}, fmt.Errorf("no audio formats for %q", video.Title)
	}
	streamURL, err := s.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return track.Descriptor{}, err
	}
	d := track.New(video.Title, video.Author, streamURL, track.SourceYouTube, video.Duration)
	d.ArtworkURL = bestThumbnail(video.Thumbnails)
	return d, nil
}

func (s *YouTubeSource) resolvePlaylist(ctx context.Context, listURL string) (*Result, error) {
	pl, err := s.client.GetPlaylistContext(ctx, listURL)
	if err != nil {
		// Mixes and some autogenerated lists are invisible to the
		// playlist API; fall back to scraping the watch page.
		s.log.Debug().Err(err).Str("url", listURL).Msg("playlist api failed, scraping instead")
		return s.scrapedPlaylist(ctx, listURL)
	}

	title := pl.Title
	if title == "" {
		title = "YouTube playlist"
	}
	urls := make([]string, 0, len(pl.Videos))
	for _, e := range pl.Videos {
		if e != nil && e.ID != "" {
			urls = append(urls, watchURLFor(e.ID))
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: playlist %q is empty", track.ErrNotFound, title)
	}
	return &Result{Import: &ImportPlan{
		Placeholder: track.NewPlaceholder(title, len(urls)),
		Fetch: func(ctx context.Context) ([]track.Descriptor, error) {
			return s.fetchWatchURLs(ctx, urls)
		},
	}}, nil
}

func (s *YouTubeSource) scrapedPlaylist(ctx context.Context, listURL string) (*Result, error) {
	urls, err := s.search.playlistVideoURLs(ctx, listURL)
	if err != nil {
		return nil, classifyYouTubeErr(err, listURL)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: nothing playable behind %q", track.ErrNotFound, listURL)
	}
	return &Result{Import: &ImportPlan{
		Placeholder: track.NewPlaceholder("YouTube mix", len(urls)),
		Fetch: func(ctx context.Context) ([]track.Descriptor, error) {
			return s.fetchWatchURLs(ctx, urls)
		},
	}}, nil
}

// fetchWatchURLs resolves watch links into playable descriptors with a
// bounded worker pool, keeping playlist order. Entries that fail are
// logged and skipped so one broken video cannot sink a whole import.
func (s *YouTubeSource) fetchWatchURLs(ctx context.Context, urls []string) ([]track.Descriptor, error) {
	slots := make([]*track.Descriptor, len(urls))
	idx := make([]int, len(urls))
	for i := range idx {
		idx[i] = i
	}
	err := util.Parallel(ctx, idx, s.workers, func(ctx context.Context, i int) error {
		video, err := s.client.GetVideoContext(ctx, urls[i])
		if err != nil {
			s.log.Warn().Err(err).Str("url", urls[i]).Msg("playlist entry skipped")
			return nil
		}
		d, err := s.descriptorFor(ctx, video)
		if err != nil {
			s.log.Warn().Err(err).Str("video", video.Title).Msg("playlist entry has no stream")
			return nil
		}
		slots[i] = &d
		return nil
	})
	if err != nil {
		return nil, classifyYouTubeErr(err, "playlist")
	}
	out := make([]track.Descriptor, 0, len(urls))
	for _, d := range slots {
		if d != nil {
			out = append(out, *d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: none of the playlist entries resolved", track.ErrUnplayable)
	}
	return out, nil
}

// ytSearch scrapes youtube result pages. The base URL is swappable so
// tests can point it at a local server.
type ytSearch struct {
	baseURL string
	client  *http.Client
}

func (y *ytSearch) firstVideoURL(ctx context.Context, query string) (string, error) {
	body, err := y.fetch(ctx, y.baseURL+"/results?search_query="+url.QueryEscape(query))
	if err != nil {
		return "", err
	}
	matches := searchHitPattern.FindStringSubmatch(body)
	if len(matches) < 2 {
		return "", errNoSearchHit
	}
	result := y.baseURL + "/watch?v=" + matches[1]
	if matches[2] != "" {
		result += "&list=" + matches[2]
	}
	return result, nil
}

func (y *ytSearch) playlistVideoURLs(ctx context.Context, pageURL string) ([]string, error) {
	body, err := y.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var urls []string
	for _, m := range watchURLPattern.FindAllStringSubmatch(body, -1) {
		if len(m) < 2 {
			continue
		}
		u := watchURLFor(m[1])
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls, nil
}

// fetch GETs a results page, retrying transient failures. Client errors
// other than 429 fail immediately.
func (y *ytSearch) fetch(ctx context.Context, pageURL string) (string, error) {
	var body string
	err := retrylimit.WithRetryConfig(ctx, nil, func() error {
		b, err := y.fetchOnce(ctx, pageURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, scrapeRetry())
	return body, err
}

func (y *ytSearch) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", retrylimit.Fatal(err)
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		serr := fmt.Errorf("youtube answered status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", retrylimit.Fatal(serr)
		}
		return "", serr
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func scrapeRetry() retrylimit.RetryConfig {
	return retrylimit.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func isVideoURL(s string) bool {
	return strings.Contains(s, "youtube.com/watch?v=") ||
		strings.Contains(s, "music.youtube.com/watch?v=") ||
		strings.Contains(s, "youtu.be/")
}

// isPlaylistURL recognizes dedicated playlist pages. A watch URL with a
// trailing list parameter still counts as a single video.
func isPlaylistURL(s string) bool {
	return strings.Contains(s, "/playlist?") && strings.Contains(s, "list=")
}

// cleanVideoURL strips tracking and timestamp parameters down to the
// canonical watch link.
func cleanVideoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	switch host := u.Hostname(); host {
	case "youtu.be":
		vid := strings.Trim(u.Path, "/")
		if vid == "" {
			return raw
		}
		return "https://youtu.be/" + vid
	case "www.youtube.com", "youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			if vid := u.Query().Get("v"); vid != "" {
				return fmt.Sprintf("https://%s/watch?v=%s", host, vid)
			}
		}
		return raw
	default:
		return raw
	}
}

func watchURLFor(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func bestThumbnail(ts youtube.Thumbnails) string {
	best := ""
	width := uint(0)
	for _, t := range ts {
		if t.Width >= width {
			width = t.Width
			best = t.URL
		}
	}
	return best
}

// classifyYouTubeErr folds the innertube client's many failure modes
// into the typed resolution errors.
func classifyYouTubeErr(err error, input string) error {
	if timeoutErr(err) {
		return fmt.Errorf("%w: youtube did not answer for %q", track.ErrTimeout, input)
	}
	var pe *youtube.ErrPlayabiltyStatus
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %s", track.ErrUnplayable, pe.Reason)
	}
	return fmt.Errorf("%w: %v", track.ErrUnplayable, err)
}
