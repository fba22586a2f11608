package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/keshon/plexody/internal/music/track"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSink records every call and hands completion callbacks back to
// the test, which fires them to simulate tracks ending.
type fakeSink struct {
	mu          sync.Mutex
	connects    []string
	disconnects int
	starts      []string
	stops       int
	pauses      int
	resumes     int
	dones       []func(error)
	active      bool

	connectErr    error
	disconnectErr error
	startErr      map[string]error
}

func newFakeSink() *fakeSink {
	return &fakeSink{startErr: make(map[string]error)}
}

func (f *fakeSink) Connect(channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connects = append(f.connects, channelID)
	return nil
}

func (f *fakeSink) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.active = false
	return f.disconnectErr
}

func (f *fakeSink) Start(locator string, onDone func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.startErr[locator]; err != nil {
		return err
	}
	f.starts = append(f.starts, locator)
	f.dones = append(f.dones, onDone)
	f.active = true
	return nil
}

func (f *fakeSink) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.active = false
}

func (f *fakeSink) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeSink) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
}

func (f *fakeSink) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeSink) doneAt(i int) func(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dones[i]
}

func (f *fakeSink) lastDone() func(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dones[len(f.dones)-1]
}

func (f *fakeSink) startedLocators() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.starts))
	copy(out, f.starts)
	return out
}

func (f *fakeSink) counts() (connects, disconnects, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connects), f.disconnects, f.stops
}

type failedEvent struct {
	track track.Descriptor
	cause error
}

type enqueuedEvent struct {
	track    track.Descriptor
	position int
}

// recordingNotifier buffers events on channels so tests can wait for
// them without polling.
type recordingNotifier struct {
	started      chan track.Descriptor
	enqueued     chan enqueuedEvent
	failed       chan failedEvent
	cleared      chan string
	disconnected chan DisconnectReason
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		started:      make(chan track.Descriptor, 16),
		enqueued:     make(chan enqueuedEvent, 16),
		failed:       make(chan failedEvent, 16),
		cleared:      make(chan string, 16),
		disconnected: make(chan DisconnectReason, 16),
	}
}

func (n *recordingNotifier) TrackStarted(_ string, t track.Descriptor) { n.started <- t }
func (n *recordingNotifier) TrackEnqueued(_ string, t track.Descriptor, pos int) {
	n.enqueued <- enqueuedEvent{t, pos}
}
func (n *recordingNotifier) TrackFailed(_ string, t track.Descriptor, cause error) {
	n.failed <- failedEvent{t, cause}
}
func (n *recordingNotifier) QueueCleared(guildID string) { n.cleared <- guildID }
func (n *recordingNotifier) SessionDisconnected(_ string, reason DisconnectReason) {
	n.disconnected <- reason
}

func waitDisconnect(t *testing.T, n *recordingNotifier) DisconnectReason {
	t.Helper()
	select {
	case r := <-n.disconnected:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect notification")
		return ""
	}
}

func waitFailed(t *testing.T, n *recordingNotifier) failedEvent {
	t.Helper()
	select {
	case ev := <-n.failed:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure notification")
		return failedEvent{}
	}
}

func requireNoDisconnect(t *testing.T, n *recordingNotifier) {
	t.Helper()
	select {
	case r := <-n.disconnected:
		t.Fatalf("unexpected disconnect: %s", r)
	case <-time.After(100 * time.Millisecond):
	}
}

type rig struct {
	sink  *fakeSink
	notif *recordingNotifier
	clk   *clock.Mock
	sess  *Session
}

func newRig(t *testing.T, opts ...func(*Config)) *rig {
	t.Helper()
	r := &rig{
		sink:  newFakeSink(),
		notif: newRecordingNotifier(),
		clk:   clock.NewMock(),
	}
	cfg := Config{
		GuildID:     "guild-1",
		Sink:        r.sink,
		Notifier:    r.notif,
		Clock:       r.clk,
		IdleTimeout: 10 * time.Minute,
	}
	for _, o := range opts {
		o(&cfg)
	}
	r.sess = New(cfg)
	t.Cleanup(func() { r.sess.Kill(ReasonKilled) })
	return r
}

func tr(title string) track.Descriptor {
	return track.New(title, "", "locator://"+title, track.SourceStream, 3*time.Minute)
}

func TestEnqueueStartsPlayback(t *testing.T) {
	r := newRig(t)

	res, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, 1, res.Queued)

	st := r.sess.Status()
	assert.Equal(t, StatePlaying, st.State)
	require.NotNil(t, st.Current)
	assert.Equal(t, "one", st.Current.Title)
	assert.Empty(t, st.Queue)
	assert.Equal(t, "voice-1", st.ChannelID)

	assert.Equal(t, []string{"locator://one"}, r.sink.startedLocators())
	started := <-r.notif.started
	assert.Equal(t, "one", started.Title)
}

func TestTracksAdvanceInOrder(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"), tr("two"), tr("three"))
	require.NoError(t, err)

	r.sink.lastDone()(nil)
	st := r.sess.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "two", st.Current.Title)

	r.sink.lastDone()(nil)
	st = r.sess.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "three", st.Current.Title)

	r.sink.lastDone()(nil)
	st = r.sess.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.Current)

	assert.Equal(t, []string{"locator://one", "locator://two", "locator://three"}, r.sink.startedLocators())
}

func TestEnqueueBehindActiveTrackAnnounces(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)

	res, err := r.sess.Enqueue("voice-1", tr("two"))
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, 1, res.Position)

	ev := <-r.notif.enqueued
	assert.Equal(t, "two", ev.track.Title)
	assert.Equal(t, 1, ev.position)
}

func TestEnqueueNextJumpsQueue(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"), tr("two"), tr("three"))
	require.NoError(t, err)

	res, err := r.sess.EnqueueNext("voice-1", tr("a"), tr("b"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Queued)
	assert.Equal(t, 1, res.Position)

	st := r.sess.Status()
	titles := make([]string, len(st.Queue))
	for i, d := range st.Queue {
		titles[i] = d.Title
	}
	assert.Equal(t, []string{"a", "b", "two", "three"}, titles)
}

func TestSkipAdvancesToNext(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"), tr("two"))
	require.NoError(t, err)

	require.NoError(t, r.sess.Skip())
	st := r.sess.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "two", st.Current.Title)

	_, _, stops := r.sink.counts()
	assert.Equal(t, 1, stops)
}

func TestSkipWithEmptyQueueGoesIdle(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)

	require.NoError(t, r.sess.Skip())
	st := r.sess.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.Current)

	// The idle grace starts counting from the skip.
	r.clk.Add(10 * time.Minute)
	assert.Equal(t, ReasonIdleTimeout, waitDisconnect(t, r.notif))
}

func TestSkipWithNothingPlaying(t *testing.T) {
	r := newRig(t)
	assert.ErrorIs(t, r.sess.Skip(), ErrNothingPlaying)
}

func TestSkipWhilePausedStartsNextPlaying(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"), tr("two"))
	require.NoError(t, err)
	require.NoError(t, r.sess.Pause())

	require.NoError(t, r.sess.Skip())
	st := r.sess.Status()
	assert.Equal(t, StatePlaying, st.State)
	require.NotNil(t, st.Current)
	assert.Equal(t, "two", st.Current.Title)
}

func TestPauseResume(t *testing.T) {
	r := newRig(t)

	assert.ErrorIs(t, r.sess.Pause(), ErrNothingPlaying)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)

	require.NoError(t, r.sess.Pause())
	assert.Equal(t, StatePaused, r.sess.Status().State)
	assert.ErrorIs(t, r.sess.Pause(), ErrAlreadyPaused)

	require.NoError(t, r.sess.Resume())
	assert.Equal(t, StatePlaying, r.sess.Status().State)
	assert.ErrorIs(t, r.sess.Resume(), ErrNotPaused)
}

func TestStartFailureAdvancesWithoutRetry(t *testing.T) {
	r := newRig(t)
	r.sink.startErr["locator://bad"] = errors.New("no stream for you")

	_, err := r.sess.Enqueue("voice-1", tr("bad"), tr("good"))
	require.NoError(t, err)

	ev := waitFailed(t, r.notif)
	assert.Equal(t, "bad", ev.track.Title)

	st := r.sess.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "good", st.Current.Title)
	assert.Equal(t, []string{"locator://good"}, r.sink.startedLocators())
}

func TestStreamFailureAdvances(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"), tr("two"))
	require.NoError(t, err)

	cause := errors.New("connection reset")
	r.sink.doneAt(0)(cause)

	ev := waitFailed(t, r.notif)
	assert.Equal(t, "one", ev.track.Title)
	assert.ErrorIs(t, ev.cause, cause)

	st := r.sess.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "two", st.Current.Title)
}

func TestStaleCompletionDiscarded(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"), tr("two"))
	require.NoError(t, err)
	oldDone := r.sink.doneAt(0)

	require.NoError(t, r.sess.Skip())

	// The stopped track's completion arrives late and must not advance
	// the queue a second time.
	oldDone(nil)
	st := r.sess.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "two", st.Current.Title)
	assert.Len(t, r.sink.startedLocators(), 2)
}

func TestCompletionAfterKillIsDropped(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)
	done := r.sink.doneAt(0)

	r.sess.Kill(ReasonKilled)
	assert.Equal(t, ReasonKilled, waitDisconnect(t, r.notif))

	done(nil)
	assert.Equal(t, StateDisconnected, r.sess.Status().State)
}

func TestKillIsIdempotent(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)

	r.sess.Kill(ReasonKilled)
	r.sess.Kill(ReasonKilled)

	assert.Equal(t, ReasonKilled, waitDisconnect(t, r.notif))
	requireNoDisconnect(t, r.notif)

	_, _, stops := r.sink.counts()
	assert.Equal(t, 1, stops)
}

func TestIdleReaperLeavesAfterGrace(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)
	r.sink.lastDone()(nil)
	require.Equal(t, StateIdle, r.sess.Status().State)

	r.clk.Add(10 * time.Minute)
	assert.Equal(t, ReasonIdleTimeout, waitDisconnect(t, r.notif))

	_, disconnects, _ := r.sink.counts()
	assert.Equal(t, 1, disconnects)
	assert.ErrorIs(t, r.sess.Pause(), ErrSessionClosed)
}

func TestEnqueueCancelsIdleReaper(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)
	r.sink.lastDone()(nil)
	require.Equal(t, StateIdle, r.sess.Status().State)

	r.clk.Add(5 * time.Minute)
	_, err = r.sess.Enqueue("voice-1", tr("two"))
	require.NoError(t, err)

	r.clk.Add(10 * time.Minute)
	requireNoDisconnect(t, r.notif)
	assert.Equal(t, StatePlaying, r.sess.Status().State)
}

func TestEmptyChannelReapsImmediately(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)

	r.sess.ParticipantsChanged(2)
	requireNoDisconnect(t, r.notif)

	r.sess.ParticipantsChanged(0)
	assert.Equal(t, ReasonEmptyChannel, waitDisconnect(t, r.notif))
	assert.Equal(t, StateDisconnected, r.sess.Status().State)
}

func TestConnectFailureTearsDown(t *testing.T) {
	r := newRig(t)
	r.sink.connectErr = errors.New("gateway said no")

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.Error(t, err)
	assert.Equal(t, ReasonConnectFailed, waitDisconnect(t, r.notif))

	_, err = r.sess.Enqueue("voice-1", tr("two"))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestDisconnectFailureForceMarks(t *testing.T) {
	r := newRig(t)
	r.sink.disconnectErr = errors.New("websocket wedged")

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)

	r.sess.Kill(ReasonKilled)
	assert.Equal(t, ReasonKilled, waitDisconnect(t, r.notif))
	assert.Equal(t, StateDisconnected, r.sess.Status().State)
}

func TestPlaceholderReplacedInSlot(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)

	ph := track.NewPlaceholder("Daily Mix", 2)
	_, err = r.sess.Enqueue("voice-1", ph, tr("four"))
	require.NoError(t, err)

	require.NoError(t, r.sess.ReplacePlaceholder(ph.ID, tr("two"), tr("three")))

	st := r.sess.Status()
	titles := make([]string, 0, len(st.Queue))
	for _, d := range st.Queue {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"two", "three", "four"}, titles)

	require.NoError(t, r.sess.Skip())
	st = r.sess.Status()
	require.NotNil(t, st.Current)
	assert.Equal(t, "two", st.Current.Title)
}

func TestPlaceholderGoneBeforeResolveAppends(t *testing.T) {
	r := newRig(t)

	// The queue reaches the placeholder before the import finishes:
	// popping it yields nothing and the session sits idle.
	ph := track.NewPlaceholder("Daily Mix", 1)
	res, err := r.sess.Enqueue("voice-1", ph)
	require.NoError(t, err)
	assert.False(t, res.Started)
	require.Equal(t, StateIdle, r.sess.Status().State)

	// The late result still plays.
	require.NoError(t, r.sess.ReplacePlaceholder(ph.ID, tr("one")))
	st := r.sess.Status()
	assert.Equal(t, StatePlaying, st.State)
	require.NotNil(t, st.Current)
	assert.Equal(t, "one", st.Current.Title)
}

func TestAbortPlaceholderDropsAndNotifies(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"))
	require.NoError(t, err)
	ph := track.NewPlaceholder("Daily Mix", 3)
	_, err = r.sess.Enqueue("voice-1", ph)
	require.NoError(t, err)

	cause := errors.New("playlist fetch failed")
	r.sess.AbortPlaceholder(ph.ID, cause)

	ev := waitFailed(t, r.notif)
	assert.True(t, ev.track.Placeholder)
	assert.ErrorIs(t, ev.cause, cause)

	st := r.sess.Status()
	assert.Empty(t, st.Queue)
	require.NotNil(t, st.Current)
	assert.Equal(t, "one", st.Current.Title)
}

func TestClearKeepsCurrentTrack(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"), tr("two"), tr("three"))
	require.NoError(t, err)

	n, err := r.sess.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st := r.sess.Status()
	assert.Empty(t, st.Queue)
	require.NotNil(t, st.Current)
	assert.Equal(t, "one", st.Current.Title)
	assert.Equal(t, "guild-1", <-r.notif.cleared)
}

func TestRemoveQueuedTrack(t *testing.T) {
	r := newRig(t)

	_, err := r.sess.Enqueue("voice-1", tr("one"), tr("two"), tr("three"))
	require.NoError(t, err)

	d, err := r.sess.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, "two", d.Title)

	_, err = r.sess.Remove(5)
	assert.ErrorIs(t, err, track.ErrBadPosition)
}

func TestQueueLimitRejectsOverflow(t *testing.T) {
	r := newRig(t, func(cfg *Config) { cfg.QueueLimit = 2 })

	res, err := r.sess.Enqueue("voice-1", tr("one"), tr("two"), tr("three"))
	assert.ErrorIs(t, err, track.ErrQueueFull)
	assert.True(t, res.Started)
	assert.Equal(t, 2, res.Queued)
	assert.Len(t, r.sess.Status().Queue, 1)
}
