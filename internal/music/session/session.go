// Package session implements the per-guild playback controller: a
// single-goroutine state machine that owns the track queue, drives the
// audio sink and reaps itself after sitting idle.
//
// Every mutation funnels through the session's command loop, so
// concurrent slash commands, sink completions and timer callbacks are
// applied in one total order without locks on the state itself.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/metrics"
	"github.com/keshon/plexody/internal/music/track"
)

// State is the session's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
	StatePaused
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var (
	ErrSessionClosed  = errors.New("playback session is closed")
	ErrNothingPlaying = errors.New("nothing is playing")
	ErrAlreadyPaused  = errors.New("playback is already paused")
	ErrNotPaused      = errors.New("playback is not paused")
)

// AudioSink is the voice transport a session drives. Start must invoke
// onDone exactly once after a successful return, whether the track ran
// to the end, broke mid-stream or was cut by Stop. Disconnect may retry
// internally; the session force-marks itself disconnected either way.
type AudioSink interface {
	Connect(channelID string) error
	Disconnect() error
	Start(locator string, onDone func(cause error)) error
	Stop()
	Pause()
	Resume()
	IsActive() bool
}

// Config carries everything a new session needs. GuildID and Sink are
// mandatory; the rest default to sane values.
type Config struct {
	GuildID     string
	Sink        AudioSink
	Notifier    Notifier
	Clock       clock.Clock
	IdleTimeout time.Duration
	QueueLimit  int

	// OnClose runs on the command loop right after the session enters
	// StateDisconnected. The registry uses it to drop its map entry.
	OnClose func(*Session)
}

// Status is a point-in-time snapshot of a session.
type Status struct {
	GuildID    string
	State      State
	ChannelID  string
	Current    *track.Descriptor
	Queue      []track.Descriptor
	Generation uint64
	LastActive time.Time
}

// EnqueueResult reports what an Enqueue call did.
type EnqueueResult struct {
	Started  bool
	Queued   int
	Position int
}

// DefaultIdleTimeout is how long an idle session lingers in the voice
// channel before leaving on its own.
const DefaultIdleTimeout = 10 * time.Minute

// Session is the playback controller for one guild. All exported
// methods are safe for concurrent use.
type Session struct {
	guildID     string
	sink        AudioSink
	notify      Notifier
	clk         clock.Clock
	idleTimeout time.Duration
	onClose     func(*Session)
	log         zerolog.Logger

	cmds      chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Everything below is owned by the command loop goroutine and must
	// never be touched from outside it.
	state      State
	connected  bool
	channelID  string
	current    *track.Descriptor
	queue      *track.Queue
	generation uint64
	lastActive time.Time
	idleTimer  *clock.Timer
}

// New spawns a session with its command loop running. The caller ends
// it with Kill; a session also ends itself on idle timeout, an emptied
// voice channel or a failed connect.
func New(cfg Config) *Session {
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	s := &Session{
		guildID:     cfg.GuildID,
		sink:        cfg.Sink,
		notify:      cfg.Notifier,
		clk:         cfg.Clock,
		idleTimeout: cfg.IdleTimeout,
		onClose:     cfg.OnClose,
		log:         logging.WithComponent("player").With().Str("guild", cfg.GuildID).Logger(),
		cmds:        make(chan func()),
		done:        make(chan struct{}),
		state:       StateIdle,
		queue:       track.NewQueue(cfg.QueueLimit),
	}
	s.lastActive = s.clk.Now()
	metrics.SessionsActive.Inc()
	go s.run()
	return s
}

func (s *Session) GuildID() string { return s.guildID }

// run is the command loop. It exits once done is closed, after serving
// any sender that already won the submission race.
func (s *Session) run() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.done:
			for {
				select {
				case fn := <-s.cmds:
					fn()
				default:
					return
				}
			}
		}
	}
}

// do runs fn on the command loop and waits for it to finish. It reports
// false when the session closed before fn could be submitted.
func (s *Session) do(fn func()) bool {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() {
		defer close(ran)
		fn()
	}:
		<-ran
		return true
	case <-s.done:
		return false
	}
}

// post delivers an asynchronous event (sink completion, timer fire) to
// the command loop without waiting for it. Events racing a closed
// session are dropped; they are stale by definition.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

// Enqueue joins channelID if the session is not in a voice channel yet,
// appends tracks to the queue and starts playback when nothing is
// playing. A failed join tears the session down.
func (s *Session) Enqueue(channelID string, tracks ...track.Descriptor) (EnqueueResult, error) {
	var (
		res EnqueueResult
		err error
	)
	if !s.do(func() { res, err = s.enqueue(channelID, tracks, false) }) {
		return EnqueueResult{}, ErrSessionClosed
	}
	return res, err
}

// EnqueueNext works like Enqueue but inserts the tracks at the head of
// the queue, so they play right after the current one.
func (s *Session) EnqueueNext(channelID string, tracks ...track.Descriptor) (EnqueueResult, error) {
	var (
		res EnqueueResult
		err error
	)
	if !s.do(func() { res, err = s.enqueue(channelID, tracks, true) }) {
		return EnqueueResult{}, ErrSessionClosed
	}
	return res, err
}

func (s *Session) enqueue(channelID string, tracks []track.Descriptor, front bool) (EnqueueResult, error) {
	var res EnqueueResult
	if s.state == StateDisconnected {
		return res, ErrSessionClosed
	}
	s.touch()
	s.disarmIdleTimer()

	if !s.connected {
		s.state = StateConnecting
		s.log.Info().Str("channel", channelID).Msg("joining voice channel")
		if err := s.sink.Connect(channelID); err != nil {
			s.log.Error().Err(err).Str("channel", channelID).Msg("voice join failed")
			s.teardown(ReasonConnectFailed)
			return res, fmt.Errorf("join voice channel: %w", err)
		}
		s.connected = true
		s.channelID = channelID
		s.generation++
		s.state = StateIdle
	}

	wasActive := s.current != nil
	before := s.queue.Len()
	push := s.queue.Push
	if front {
		push = s.queue.PushFront
		// Pushed in reverse so the batch keeps its order at the head.
		rev := make([]track.Descriptor, len(tracks))
		for i, t := range tracks {
			rev[len(tracks)-1-i] = t
		}
		tracks = rev
	}
	var pushErr error
	for _, t := range tracks {
		if err := push(t); err != nil {
			pushErr = err
			break
		}
		res.Queued++
		if wasActive {
			pos := s.queue.Len()
			if front {
				pos = 1
			}
			s.notify.TrackEnqueued(s.guildID, t, pos)
		}
	}
	if res.Queued > 0 {
		res.Position = before + 1
		if front {
			res.Position = 1
		}
	}
	if s.current == nil {
		s.advance()
		res.Started = s.state == StatePlaying
	}
	return res, pushErr
}

// Skip stops the current track and moves on to the next queued one. An
// empty queue leaves the session idle with nothing playing.
func (s *Session) Skip() error {
	var err error
	if !s.do(func() { err = s.skip() }) {
		return ErrSessionClosed
	}
	return err
}

func (s *Session) skip() error {
	if s.current == nil {
		return ErrNothingPlaying
	}
	s.touch()
	s.stopCurrent()
	s.advance()
	return nil
}

// Pause suspends the current track without losing its position.
func (s *Session) Pause() error {
	var err error
	if !s.do(func() { err = s.pause() }) {
		return ErrSessionClosed
	}
	return err
}

func (s *Session) pause() error {
	switch s.state {
	case StatePaused:
		return ErrAlreadyPaused
	case StatePlaying:
		s.sink.Pause()
		s.state = StatePaused
		s.touch()
		s.log.Debug().Msg("playback paused")
		return nil
	default:
		return ErrNothingPlaying
	}
}

// Resume continues a paused track.
func (s *Session) Resume() error {
	var err error
	if !s.do(func() { err = s.resume() }) {
		return ErrSessionClosed
	}
	return err
}

func (s *Session) resume() error {
	switch s.state {
	case StatePlaying:
		return ErrNotPaused
	case StatePaused:
		s.sink.Resume()
		s.state = StatePlaying
		s.touch()
		s.log.Debug().Msg("playback resumed")
		return nil
	default:
		return ErrNothingPlaying
	}
}

// Clear empties the queue. The current track keeps playing.
func (s *Session) Clear() (int, error) {
	var n int
	if !s.do(func() {
		s.touch()
		n = s.queue.Clear()
		if n > 0 {
			s.notify.QueueCleared(s.guildID)
		}
	}) {
		return 0, ErrSessionClosed
	}
	return n, nil
}

// Remove deletes the queued track at the given 1-based position and
// returns it.
func (s *Session) Remove(position int) (track.Descriptor, error) {
	var (
		d   track.Descriptor
		err error
	)
	if !s.do(func() {
		s.touch()
		d, err = s.queue.RemoveAt(position - 1)
	}) {
		return track.Descriptor{}, ErrSessionClosed
	}
	return d, err
}

// Shuffle reorders the queued tracks and returns how many there are.
func (s *Session) Shuffle() (int, error) {
	var n int
	if !s.do(func() {
		s.touch()
		s.queue.Shuffle()
		n = s.queue.Len()
	}) {
		return 0, ErrSessionClosed
	}
	return n, nil
}

// ReplacePlaceholder swaps the queued placeholder id for the resolved
// tracks, keeping its slot. When the placeholder is already gone (the
// queue reached it, or someone removed it) the tracks are appended
// instead so a finished import is never thrown away.
func (s *Session) ReplacePlaceholder(id string, tracks ...track.Descriptor) error {
	if !s.do(func() { s.replacePlaceholder(id, tracks) }) {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) replacePlaceholder(id string, tracks []track.Descriptor) {
	if s.state == StateDisconnected {
		return
	}
	s.touch()
	inserted, found := s.queue.Replace(id, tracks...)
	if !found {
		for _, t := range tracks {
			if err := s.queue.Push(t); err != nil {
				break
			}
			inserted++
		}
	}
	s.log.Debug().Str("placeholder", id).Int("tracks", inserted).Bool("in_place", found).Msg("placeholder resolved")
	if s.current == nil {
		s.disarmIdleTimer()
		s.advance()
	}
}

// AbortPlaceholder removes the placeholder id after a failed import and
// reports the failure. Unknown ids are ignored.
func (s *Session) AbortPlaceholder(id string, cause error) {
	s.do(func() {
		if s.state == StateDisconnected {
			return
		}
		var ph track.Descriptor
		ok := false
		for _, d := range s.queue.Snapshot() {
			if d.ID == id {
				ph, ok = d, true
				break
			}
		}
		if !ok {
			return
		}
		s.queue.Replace(id)
		s.touch()
		s.log.Warn().Err(cause).Str("placeholder", ph.Title).Msg("import failed, dropping placeholder")
		s.notify.TrackFailed(s.guildID, ph, cause)
	})
}

// ParticipantsChanged reports how many listeners besides the bot remain
// in its voice channel. Zero listeners ends the session immediately.
func (s *Session) ParticipantsChanged(listeners int) {
	if listeners > 0 {
		return
	}
	s.post(func() {
		if !s.connected {
			return
		}
		s.log.Info().Msg("voice channel emptied, leaving")
		s.teardown(ReasonEmptyChannel)
	})
}

// Kill disconnects the session and releases it. Killing an already
// disconnected session is a no-op.
func (s *Session) Kill(reason DisconnectReason) {
	s.do(func() {
		if s.state == StateDisconnected {
			return
		}
		s.teardown(reason)
	})
}

// Status snapshots the session. A closed session reports
// StateDisconnected with empty fields.
func (s *Session) Status() Status {
	st := Status{GuildID: s.guildID, State: StateDisconnected}
	s.do(func() {
		st.State = s.state
		st.ChannelID = s.channelID
		if s.current != nil {
			c := *s.current
			st.Current = &c
		}
		st.Queue = s.queue.Snapshot()
		st.Generation = s.generation
		st.LastActive = s.lastActive
	})
	return st
}

// advance pops tracks until one starts or the queue runs dry. A track
// that fails to start is reported and passed over, never retried.
func (s *Session) advance() {
	for {
		next, ok := s.queue.Pop()
		if !ok {
			s.current = nil
			if s.state != StateDisconnected {
				s.state = StateIdle
				s.armIdleTimer()
			}
			return
		}
		if err := s.startTrack(next); err != nil {
			s.log.Error().Err(err).Str("track", next.DisplayTitle()).Msg("track failed to start")
			metrics.TrackFailures.WithLabelValues("start").Inc()
			s.notify.TrackFailed(s.guildID, next, err)
			continue
		}
		return
	}
}

// startTrack hands a track to the sink under a fresh generation, so a
// completion from any earlier start can no longer move the queue.
func (s *Session) startTrack(t track.Descriptor) error {
	s.generation++
	gen := s.generation
	err := s.sink.Start(t.Locator, func(cause error) {
		s.post(func() { s.finished(gen, cause) })
	})
	if err != nil {
		return err
	}
	cur := t
	s.current = &cur
	s.state = StatePlaying
	s.touch()
	metrics.TracksStarted.Inc()
	s.log.Info().Str("track", t.DisplayTitle()).Str("source", t.Source).Uint64("gen", gen).Msg("track started")
	s.notify.TrackStarted(s.guildID, t)
	return nil
}

// finished handles a completion delivered by the sink. Deliveries from
// a superseded generation are discarded.
func (s *Session) finished(gen uint64, cause error) {
	if s.state == StateDisconnected {
		return
	}
	if gen != s.generation {
		s.log.Debug().Uint64("gen", gen).Uint64("want", s.generation).Msg("stale completion discarded")
		return
	}
	ended := s.current
	s.touch()
	if cause != nil && ended != nil {
		s.log.Warn().Err(cause).Str("track", ended.DisplayTitle()).Msg("track ended with error")
		metrics.TrackFailures.WithLabelValues("stream").Inc()
		s.notify.TrackFailed(s.guildID, *ended, cause)
	}
	s.advance()
}

// stopCurrent silences the sink and bumps the generation so the stop's
// own completion callback cannot double-advance the queue.
func (s *Session) stopCurrent() {
	if s.sink.IsActive() {
		s.sink.Stop()
	}
	s.generation++
	s.current = nil
}

// teardown is the only path into StateDisconnected. It runs on the
// command loop and closes done last, so every queued command still gets
// an answer.
func (s *Session) teardown(reason DisconnectReason) {
	s.disarmIdleTimer()
	s.stopCurrent()
	s.queue.Clear()
	if s.connected {
		if err := s.sink.Disconnect(); err != nil {
			s.log.Warn().Err(err).Msg("voice disconnect failed, force-marking session disconnected")
		}
		s.connected = false
	}
	s.state = StateDisconnected
	metrics.SessionsActive.Dec()
	metrics.Disconnects.WithLabelValues(string(reason)).Inc()
	s.log.Info().Str("reason", string(reason)).Msg("session ended")
	s.notify.SessionDisconnected(s.guildID, reason)
	if s.onClose != nil {
		s.onClose(s)
	}
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) touch() {
	s.lastActive = s.clk.Now()
}

// armIdleTimer schedules the idle reap, stamping it with the current
// generation. Any activity bumps the generation or disarms the timer,
// which turns a late fire into a no-op.
func (s *Session) armIdleTimer() {
	s.disarmIdleTimer()
	if s.idleTimeout <= 0 {
		return
	}
	gen := s.generation
	s.idleTimer = s.clk.AfterFunc(s.idleTimeout, func() {
		s.post(func() { s.reap(gen) })
	})
}

func (s *Session) disarmIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// reap fires when the idle grace expires. It re-checks liveness: only a
// session still idle on the same generation with an empty queue leaves.
func (s *Session) reap(gen uint64) {
	if s.state != StateIdle || gen != s.generation || s.queue.Len() > 0 {
		s.log.Debug().Uint64("gen", gen).Msg("stale idle timer discarded")
		return
	}
	s.log.Info().Dur("idle", s.clk.Now().Sub(s.lastActive)).Msg("idle grace expired, leaving voice")
	s.teardown(ReasonIdleTimeout)
}

// sortStatuses orders snapshots by guild for stable listings.
func sortStatuses(list []Status) {
	sort.Slice(list, func(i, j int) bool { return list[i].GuildID < list[j].GuildID })
}
