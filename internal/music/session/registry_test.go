package session

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, notif *recordingNotifier) *Registry {
	t.Helper()
	reg := NewRegistry(func(guildID string) Config {
		return Config{
			Sink:        newFakeSink(),
			Notifier:    notif,
			Clock:       clock.NewMock(),
			IdleTimeout: time.Hour,
		}
	})
	t.Cleanup(func() { reg.Shutdown(ReasonKilled) })
	return reg
}

func TestRegistryReturnsSameSession(t *testing.T) {
	reg := newTestRegistry(t, newRecordingNotifier())

	a := reg.GetOrCreate("guild-1")
	b := reg.GetOrCreate("guild-1")
	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Len())

	got, ok := reg.Get("guild-1")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = reg.Get("guild-2")
	assert.False(t, ok)
}

func TestRegistryConcurrentGetOrCreate(t *testing.T) {
	reg := newTestRegistry(t, newRecordingNotifier())

	const callers = 16
	results := make(chan *Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- reg.GetOrCreate("guild-1")
		}()
	}
	wg.Wait()
	close(results)

	first := <-results
	for s := range results {
		assert.Same(t, first, s)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryDropsDeadSession(t *testing.T) {
	notif := newRecordingNotifier()
	reg := newTestRegistry(t, notif)

	old := reg.GetOrCreate("guild-1")
	old.Kill(ReasonKilled)
	assert.Equal(t, ReasonKilled, waitDisconnect(t, notif))

	_, ok := reg.Get("guild-1")
	assert.False(t, ok)

	fresh := reg.GetOrCreate("guild-1")
	assert.NotSame(t, old, fresh)
	assert.Equal(t, StateIdle, fresh.Status().State)
}

func TestRegistryStatusesSortedByGuild(t *testing.T) {
	reg := newTestRegistry(t, newRecordingNotifier())

	reg.GetOrCreate("guild-b")
	reg.GetOrCreate("guild-a")

	list := reg.Statuses()
	require.Len(t, list, 2)
	assert.Equal(t, "guild-a", list[0].GuildID)
	assert.Equal(t, "guild-b", list[1].GuildID)
}

func TestRegistryShutdownKillsEverything(t *testing.T) {
	notif := newRecordingNotifier()
	reg := newTestRegistry(t, notif)

	reg.GetOrCreate("guild-1")
	reg.GetOrCreate("guild-2")

	reg.Shutdown(ReasonKilled)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, ReasonKilled, waitDisconnect(t, notif))
	assert.Equal(t, ReasonKilled, waitDisconnect(t, notif))
}
