package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/plexody/internal/catalog/plex"
	"github.com/keshon/plexody/internal/music/track"
)

const plexTracksXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="2">
  <Track ratingKey="101" title="Go!" grandparentTitle="Public Service Broadcasting" parentTitle="The Race for Space" duration="252000" thumb="/library/metadata/101/thumb/1">
    <Media><Part key="/library/parts/2001/file.flac"/></Media>
  </Track>
  <Track ratingKey="102" title="Gagarin" grandparentTitle="Public Service Broadcasting" parentTitle="The Race for Space" duration="229000">
    <Media><Part key="/library/parts/2002/file.flac"/></Media>
  </Track>
</MediaContainer>`

const plexAlbumsXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="1">
  <Directory ratingKey="33" type="album" title="The Race for Space" parentTitle="Public Service Broadcasting" leafCount="9"/>
</MediaContainer>`

func plexFixture(t *testing.T, handler http.HandlerFunc) *PlexSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPlex(plex.New(srv.URL, "sekrit", srv.Client()))
}

func TestPlexResolvesTrackQuery(t *testing.T) {
	s := plexFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("type"))
		w.Write([]byte(plexTracksXML))
	})

	res, err := s.Resolve(context.Background(), "go!")
	require.NoError(t, err)
	require.Len(t, res.Tracks, 1)

	d := res.Tracks[0]
	assert.Equal(t, "Go!", d.Title)
	assert.Equal(t, "Public Service Broadcasting", d.Artist)
	assert.Equal(t, track.SourcePlex, d.Source)
	assert.Equal(t, 252*time.Second, d.Duration)
	assert.Contains(t, d.Locator, "/library/parts/2001/file.flac?X-Plex-Token=sekrit")
	assert.Contains(t, d.ArtworkURL, "/library/metadata/101/thumb/1")
}

func TestPlexTrackNotFound(t *testing.T) {
	s := plexFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<MediaContainer size="0"></MediaContainer>`))
	})

	_, err := s.Resolve(context.Background(), "nothing here")
	assert.ErrorIs(t, err, track.ErrNotFound)
}

func TestPlexAlbumPrefixBuildsImport(t *testing.T) {
	s := plexFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "9", r.URL.Query().Get("type"))
			w.Write([]byte(plexAlbumsXML))
		case "/library/metadata/33/children":
			w.Write([]byte(plexTracksXML))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	res, err := s.Resolve(context.Background(), "album: race for space")
	require.NoError(t, err)
	require.NotNil(t, res.Import)
	assert.Empty(t, res.Tracks)

	ph := res.Import.Placeholder
	assert.True(t, ph.Placeholder)
	assert.Contains(t, ph.Title, "The Race for Space")

	fetched, err := res.Import.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, "Go!", fetched[0].Title)
	assert.Equal(t, "Gagarin", fetched[1].Title)
}

func TestPlexServerErrorsAreTyped(t *testing.T) {
	s := plexFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := s.Resolve(context.Background(), "anything")
	assert.ErrorIs(t, err, track.ErrNotFound)
}

func TestSplitPrefix(t *testing.T) {
	kind, rest, ok := splitPrefix("album: ok computer")
	require.True(t, ok)
	assert.Equal(t, "album", kind)
	assert.Equal(t, "ok computer", rest)

	kind, rest, ok = splitPrefix("Artist:radiohead")
	require.True(t, ok)
	assert.Equal(t, "artist", kind)
	assert.Equal(t, "radiohead", rest)

	_, _, ok = splitPrefix("plain title")
	assert.False(t, ok)

	_, _, ok = splitPrefix("album:")
	assert.False(t, ok)

	// Unknown prefixes are plain queries, likely song titles with a
	// colon in them.
	_, _, ok = splitPrefix("re: stacks")
	assert.False(t, ok)
}

func TestPlexMatchRejectsURLs(t *testing.T) {
	s := NewPlex(plex.New("http://plex.local", "t", nil))
	assert.True(t, s.Match("dark side of the moon"))
	assert.True(t, s.Match("album: wish you were here"))
	assert.False(t, s.Match("https://youtube.com/watch?v=x"))
}
