package version

// Build metadata. Version and BuildDate are meant to be overridden at
// link time:
//
//	go build -ldflags "-X github.com/keshon/plexody/internal/version.Version=v1.2.3"
var (
	AppName     = "Plexody"
	AppFullName = "Plexody, a Plex music bot for Discord voice"
	AppEmoji    = "🎧"
	Version     = "dev"
	BuildDate   = "unknown"
	Repository  = "https://github.com/keshon/plexody"
)
