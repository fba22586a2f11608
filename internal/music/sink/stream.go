package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

// voiceStream is one track's journey from ffmpeg stdout to OpusSend.
// Its completion callback fires exactly once, no matter how the track
// ends.
type voiceStream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	stopped bool

	stopCh   chan struct{}
	cleanup  func()
	onDone   func(error)
	doneOnce sync.Once
}

func newVoiceStream(cleanup func(), onDone func(error)) *voiceStream {
	v := &voiceStream{
		stopCh:  make(chan struct{}),
		cleanup: cleanup,
		onDone:  onDone,
	}
	v.cond = sync.NewCond(&v.mu)
	return v
}

// stop cuts the track. Killing ffmpeg here unblocks a read stalled on a
// dead upstream.
func (v *voiceStream) stop() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	v.paused = false
	v.mu.Unlock()
	close(v.stopCh)
	v.cond.Broadcast()
	v.cleanup()
}

func (v *voiceStream) pause() {
	v.mu.Lock()
	if !v.stopped {
		v.paused = true
	}
	v.mu.Unlock()
}

func (v *voiceStream) resume() {
	v.mu.Lock()
	v.paused = false
	v.mu.Unlock()
	v.cond.Broadcast()
}

// waitResumed blocks while paused. It reports false once the stream is
// stopped.
func (v *voiceStream) waitResumed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for v.paused && !v.stopped {
		v.cond.Wait()
	}
	return !v.stopped
}

func (v *voiceStream) isStopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

func (v *voiceStream) finish(cause error) {
	v.mu.Lock()
	v.stopped = true
	v.mu.Unlock()
	v.doneOnce.Do(func() { v.onDone(cause) })
}

// run encodes PCM frames to Opus and feeds them to the voice
// connection until the stream ends, breaks or is stopped.
func (v *voiceStream) run(vc *discordgo.VoiceConnection, pcm io.ReadCloser) {
	defer v.cleanup()
	defer pcm.Close()

	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		v.finish(fmt.Errorf("encoder error: %w", err))
		return
	}

	_ = vc.Speaking(true)
	defer func() { _ = vc.Speaking(false) }()

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		if !v.waitResumed() {
			v.finish(nil)
			return
		}

		_, err := io.ReadFull(pcm, pcmBuf)
		if err != nil {
			if v.isStopped() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				v.finish(nil)
			} else {
				v.finish(fmt.Errorf("read error: %w", err))
			}
			return
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			v.finish(fmt.Errorf("encode error: %w", err))
			return
		}

		select {
		case vc.OpusSend <- opus:
		case <-v.stopCh:
			v.finish(nil)
			return
		}
	}
}
