package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/music/session"
	"github.com/keshon/plexody/pkg/jobmgr"
)

// fetchTimeout bounds a single bulk fetch. Large playlists resolve one
// innertube call per entry, so the ceiling is deliberately roomy.
const fetchTimeout = 10 * time.Minute

// Importer runs deferred bulk fetches in the background. Launch puts
// the plan's placeholder in the queue right away and hands the fetch to
// a named job; when it lands, the placeholder is swapped for the real
// tracks, and when it fails, the placeholder is pulled back out.
type Importer struct {
	jobs *jobmgr.Manager
	log  zerolog.Logger
}

func NewImporter() *Importer {
	im := &Importer{log: logging.WithComponent("importer")}
	im.jobs = jobmgr.NewManager(im.onJobEvent)
	return im
}

// Launch enqueues the plan's placeholder and starts the fetch. The
// returned result mirrors Enqueue; when it carries an error the fetch
// was never started.
func (im *Importer) Launch(sess *session.Session, channelID string, plan *ImportPlan) (session.EnqueueResult, error) {
	res, err := sess.Enqueue(channelID, plan.Placeholder)
	if err != nil {
		return res, err
	}

	ph := plan.Placeholder
	name := importJobName(sess.GuildID(), ph.ID)
	startErr := im.jobs.StartAsync(name, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		began := time.Now()
		tracks, err := plan.Fetch(ctx)
		if err != nil {
			sess.AbortPlaceholder(ph.ID, err)
			return err
		}
		im.log.Info().
			Str("guild", sess.GuildID()).
			Str("import", ph.Title).
			Int("tracks", len(tracks)).
			Dur("took", time.Since(began)).
			Msg("import fetched")
		return sess.ReplacePlaceholder(ph.ID, tracks...)
	})
	if startErr != nil {
		// Placeholder IDs are unique, so a name clash means the manager
		// is shutting down. Take the placeholder back out.
		sess.AbortPlaceholder(ph.ID, startErr)
		return res, startErr
	}
	return res, nil
}

// CancelGuild stops every import still running for the guild. Sessions
// call this from their close hook so a dead session cannot receive a
// late import.
func (im *Importer) CancelGuild(guildID string) {
	prefix := importJobName(guildID, "")
	for _, name := range im.jobs.List() {
		if strings.HasPrefix(name, prefix) {
			_ = im.jobs.Stop(name)
		}
	}
}

// Active returns the names of imports still in flight.
func (im *Importer) Active() []string {
	return im.jobs.List()
}

// Shutdown cancels all imports and waits for their runners to return.
func (im *Importer) Shutdown() {
	im.jobs.StopAll()
	im.jobs.Wait()
}

func (im *Importer) onJobEvent(ev jobmgr.Event) {
	switch ev.State {
	case jobmgr.StateFailed:
		im.log.Warn().Err(ev.Err).Str("job", ev.Job).Msg("import failed")
	default:
		im.log.Debug().Str("job", ev.Job).Str("state", string(ev.State)).Msg("import job")
	}
}

func importJobName(guildID, placeholderID string) string {
	return "import/" + guildID + "/" + placeholderID
}
