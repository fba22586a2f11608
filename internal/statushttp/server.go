// Package statushttp serves the bot's operational surface over plain
// HTTP: a liveness probe, Prometheus metrics and a JSON view of the
// active playback sessions.
package statushttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/music/session"
	"github.com/keshon/plexody/internal/version"
	"github.com/keshon/plexody/pkg/util"
)

// Server exposes the status endpoints until its context ends.
type Server struct {
	addr     string
	sessions *session.Registry
	imports  func() []string
	started  time.Time
	log      zerolog.Logger
}

// New creates a server on addr. imports reports the names of bulk
// imports still in flight and may be nil.
func New(addr string, sessions *session.Registry, imports func() []string) *Server {
	return &Server{
		addr:     addr,
		sessions: sessions,
		imports:  imports,
		started:  time.Now(),
		log:      logging.WithComponent("statushttp"),
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
// Run it in a goroutine or an errgroup next to the bot.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", s.addr).Msg("status server listening")

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.log.Warn().Err(err).Msg("status server shutdown failed")
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type sessionView struct {
	Guild      string    `json:"guild"`
	State      string    `json:"state"`
	Channel    string    `json:"channel,omitempty"`
	Track      string    `json:"track,omitempty"`
	Source     string    `json:"source,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	QueueLen   int       `json:"queue_len"`
	LastActive time.Time `json:"last_active"`
}

type statusView struct {
	App      string        `json:"app"`
	Version  string        `json:"version"`
	Uptime   string        `json:"uptime"`
	Sessions []sessionView `json:"sessions"`
	Imports  []string      `json:"imports,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	statuses := s.sessions.Statuses()
	views := make([]sessionView, 0, len(statuses))
	for _, st := range statuses {
		v := sessionView{
			Guild:      st.GuildID,
			State:      st.State.String(),
			Channel:    st.ChannelID,
			QueueLen:   len(st.Queue),
			LastActive: st.LastActive,
		}
		if st.Current != nil {
			v.Track = st.Current.DisplayTitle()
			v.Source = st.Current.Source
			v.Duration = util.FormatTrackDuration(st.Current.Duration)
		}
		views = append(views, v)
	}

	payload := statusView{
		App:      version.AppName,
		Version:  version.Version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Sessions: views,
	}
	if s.imports != nil {
		payload.Imports = s.imports()
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("status response write failed")
	}
}
