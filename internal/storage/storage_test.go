package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMusicChannelRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	got, err := s.GetMusicChannel("guild-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.SetMusicChannel("guild-1", "chan-42"))
	got, err = s.GetMusicChannel("guild-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-42", got)

	// Other guilds stay untouched.
	got, err = s.GetMusicChannel("guild-2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNowPlayingMessageRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SetNowPlayingMessage("guild-1", "msg-7"))
	got, err := s.GetNowPlayingMessage("guild-1")
	require.NoError(t, err)
	assert.Equal(t, "msg-7", got)

	require.NoError(t, s.SetNowPlayingMessage("guild-1", ""))
	got, err = s.GetNowPlayingMessage("guild-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SetMusicChannel("guild-1", "chan-42"))
	require.NoError(t, s.SetLastVoiceChannel("guild-1", "voice-9"))
	require.NoError(t, s.AppendTrackToHistory("guild-1", TrackHistoryRecord{
		Title:    "Go!",
		Artist:   "Public Service Broadcasting",
		Source:   "plex",
		Duration: 252 * time.Second,
		PlayedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.Close())

	// A reloaded store hands records back as generic maps; the JSON
	// round trip must rebuild them.
	s2, err := New(path)
	require.NoError(t, err)
	defer s2.Close()

	ch, err := s2.GetMusicChannel("guild-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-42", ch)

	voice, err := s2.GetLastVoiceChannel("guild-1")
	require.NoError(t, err)
	assert.Equal(t, "voice-9", voice)

	history, err := s2.FetchTracksHistory("guild-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Go!", history[0].Title)
	assert.Equal(t, 252*time.Second, history[0].Duration)
}

func TestTrackHistoryKeepsNewest(t *testing.T) {
	s := newTestStorage(t)

	for i := 0; i < tracksHistoryLimit+5; i++ {
		require.NoError(t, s.AppendTrackToHistory("guild-1", TrackHistoryRecord{
			Title:    fmt.Sprintf("track-%d", i),
			Source:   "youtube",
			PlayedAt: time.Now(),
		}))
	}

	history, err := s.FetchTracksHistory("guild-1")
	require.NoError(t, err)
	require.Len(t, history, tracksHistoryLimit)
	assert.Equal(t, "track-5", history[0].Title)
	assert.Equal(t, fmt.Sprintf("track-%d", tracksHistoryLimit+4), history[len(history)-1].Title)
}

func TestCommandHistoryKeepsNewest(t *testing.T) {
	s := newTestStorage(t)

	for i := 0; i < commandHistoryLimit+3; i++ {
		require.NoError(t, s.AppendCommandToHistory("guild-1", CommandHistoryRecord{
			Command:  fmt.Sprintf("music play %d", i),
			UserID:   "user-1",
			Username: "listener",
			Datetime: time.Now(),
		}))
	}

	history, err := s.FetchCommandHistory("guild-1")
	require.NoError(t, err)
	require.Len(t, history, commandHistoryLimit)
	assert.Equal(t, "music play 3", history[0].Command)
}
