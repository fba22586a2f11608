package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	// Pull in .env if present; real environment variables win.
	_ = godotenv.Load()
}

// Config is the process configuration, read from the environment.
type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN,required"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	PlexURL   string `env:"PLEX_URL"`
	PlexToken string `env:"PLEX_TOKEN"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"./data/storage.json"`

	// IdleTimeout is how long a session may sit with nothing playing and
	// an empty queue before the bot leaves the voice channel.
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"10m"`
	MaxQueueSize int           `env:"MAX_QUEUE_SIZE" envDefault:"500"`

	StatusAddr string `env:"STATUS_ADDR" envDefault:":8787"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	// ProxyURL routes Plex and YouTube HTTP traffic through a proxy
	// (http, https, socks5 or socks4 scheme). Voice traffic is
	// unaffected.
	ProxyURL string `env:"PROXY_URL"`
}

// New parses the environment into a Config.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
