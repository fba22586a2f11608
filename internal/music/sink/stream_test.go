package sink

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceStreamStopUnblocksPausedWaiter(t *testing.T) {
	vs := newVoiceStream(func() {}, func(error) {})
	vs.pause()

	released := make(chan bool, 1)
	go func() { released <- vs.waitResumed() }()

	vs.stop()
	select {
	case ok := <-released:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("waitResumed did not return after stop")
	}
}

func TestVoiceStreamResumeReleasesWaiter(t *testing.T) {
	vs := newVoiceStream(func() {}, func(error) {})
	vs.pause()

	released := make(chan bool, 1)
	go func() { released <- vs.waitResumed() }()

	vs.resume()
	select {
	case ok := <-released:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("waitResumed did not return after resume")
	}
}

func TestVoiceStreamFinishFiresOnce(t *testing.T) {
	calls := 0
	var got error
	vs := newVoiceStream(func() {}, func(cause error) {
		calls++
		got = cause
	})

	cause := errors.New("stream broke")
	vs.finish(cause)
	vs.finish(nil)

	require.Equal(t, 1, calls)
	assert.ErrorIs(t, got, cause)
	assert.True(t, vs.isStopped())
}

func TestVoiceStreamStopKillsUpstream(t *testing.T) {
	killed := 0
	vs := newVoiceStream(func() { killed++ }, func(error) {})

	vs.stop()
	vs.stop()
	assert.Equal(t, 1, killed)
}

func TestVoiceStreamPauseAfterStopIsIgnored(t *testing.T) {
	vs := newVoiceStream(func() {}, func(error) {})
	vs.stop()
	vs.pause()
	assert.False(t, vs.waitResumed())
}
