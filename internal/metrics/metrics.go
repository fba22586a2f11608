// Package metrics exposes the bot's Prometheus instruments. Collectors
// register themselves on the default registry at init, so importing a
// package that records a metric is all the wiring there is.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive counts live playback sessions across all guilds.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plexody_sessions_active",
		Help: "Number of live playback sessions",
	})

	// TracksStarted counts tracks handed to the audio sink.
	TracksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plexody_tracks_started_total",
		Help: "Total number of tracks started",
	})

	// TrackFailures counts tracks lost to errors, by stage: "start" for
	// tracks the sink refused, "stream" for tracks that broke mid-play.
	TrackFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plexody_track_failures_total",
		Help: "Total number of failed tracks by stage",
	}, []string{"stage"})

	// Disconnects counts session teardowns by reason.
	Disconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plexody_session_disconnects_total",
		Help: "Total number of session disconnects by reason",
	}, []string{"reason"})

	// ResolveDuration tracks how long turning a query into playable
	// tracks takes, per source.
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plexody_resolve_duration_seconds",
		Help:    "Time to resolve a query into playable tracks",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"source"})

	// CommandsHandled counts slash command invocations by outcome.
	CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plexody_commands_handled_total",
		Help: "Total number of handled slash commands by outcome",
	}, []string{"command", "outcome"})
)
