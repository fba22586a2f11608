package sink

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// openPCMStream shells out to ffmpeg and returns its stdout as raw
// s16le PCM at the Discord voice rate. The cleanup kills the process
// and is safe to call more than once.
func openPCMStream(url string) (io.ReadCloser, func(), error) {
	cmd := exec.Command("ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", url,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("command start error: %w", err)
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			_ = cmd.Process.Kill()
			go cmd.Wait()
		})
	}

	return reader, cleanup, nil
}
