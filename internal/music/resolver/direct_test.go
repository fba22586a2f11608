package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/plexody/internal/music/track"
)

func TestDirectAcceptsAudioStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer srv.Close()

	s := NewDirect(nil)
	res, err := s.Resolve(context.Background(), srv.URL+"/stream")
	require.NoError(t, err)
	require.Len(t, res.Tracks, 1)

	d := res.Tracks[0]
	assert.Equal(t, srv.URL+"/stream", d.Locator)
	assert.Equal(t, track.SourceStream, d.Source)
	assert.Equal(t, "127.0.0.1", d.Title)
	assert.Zero(t, d.Duration)
}

func TestDirectAcceptsContentTypeWithParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/aacp; charset=utf-8")
	}))
	defer srv.Close()

	s := NewDirect(nil)
	_, err := s.Resolve(context.Background(), srv.URL)
	assert.NoError(t, err)
}

func TestDirectRejectsWebPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer srv.Close()

	s := NewDirect(nil)
	_, err := s.Resolve(context.Background(), srv.URL)
	assert.ErrorIs(t, err, track.ErrUnplayable)
}

func TestDirectPlaylistExtensionOverridesContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
	}))
	defer srv.Close()

	s := NewDirect(nil)
	_, err := s.Resolve(context.Background(), srv.URL+"/station.m3u8")
	assert.NoError(t, err)
}

func TestDirectFallsBackToGET(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer srv.Close()

	s := NewDirect(nil)
	_, err := s.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{http.MethodHead, http.MethodGet}, methods)
}

func TestDirectRejectsDeadServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewDirect(nil)
	_, err := s.Resolve(context.Background(), srv.URL)
	assert.ErrorIs(t, err, track.ErrUnplayable)
}

func TestDirectRejectsNonURL(t *testing.T) {
	s := NewDirect(nil)
	_, err := s.Resolve(context.Background(), "not a url")
	assert.ErrorIs(t, err, track.ErrNotFound)
}
