// Package config loads novarelay's TOML configuration file, following the
// same xdg-default-path-plus-env-overlay pattern the teacher relay uses for
// its flat .env file: a config path is resolved (env var, or the xdg
// default), the TOML file there is parsed into C, and individual fields can
// still be overridden by environment variables for container deployments.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	goenv "go-simpler.org/env"

	"novarelay.dev/internal/apputil"
	"novarelay.dev/internal/chk"
	"novarelay.dev/internal/log"
	"novarelay.dev/version"
)

// Relay holds the relay pool section of the config.
type Relay struct {
	HealthCheckInterval int      `toml:"health_check_interval" env:"NOVARELAY_HEALTH_CHECK_INTERVAL" default:"30" usage:"seconds between health checks of connected upstream relays"`
	MaxConnections      int      `toml:"max_connections" env:"NOVARELAY_MAX_CONNECTIONS" default:"64" usage:"maximum concurrent upstream relay connections"`
	BootstrapRelays     []string `toml:"bootstrap_relays" usage:"upstream relay URLs to connect to at startup"`
}

// Deduplication holds the dedup store section of the config.
type Deduplication struct {
	BadgerPath     string `toml:"rocksdb_path" env:"NOVARELAY_DEDUP_PATH" default:"" usage:"path to the persistent dedup store directory"`
	HotsetSize     int    `toml:"hotset_size" env:"NOVARELAY_HOTSET_SIZE" default:"100000" usage:"entries kept in the hot LRU tier, added to lru_size for its total capacity"`
	BloomCapacity  int    `toml:"bloom_capacity" env:"NOVARELAY_BLOOM_CAPACITY" default:"1000000" usage:"expected item count for the bloom filter's size calculation"`
	LRUSize        int    `toml:"lru_size" env:"NOVARELAY_LRU_SIZE" default:"100000" usage:"capacity of the exact LRU tier, added to hotset_size"`
	RetentionHours int    `toml:"retention_hours" env:"NOVARELAY_RETENTION_HOURS" default:"24" usage:"time-based retention horizon for the persistent dedup tier"`
}

// Output holds the fanout bus / websocket output section.
type Output struct {
	WebsocketEnabled bool `toml:"websocket_enabled" env:"NOVARELAY_WS_ENABLED" default:"true" usage:"when false, a warning is logged at startup; the /ws streaming sink is served either way"`
	WebsocketPort    int  `toml:"websocket_port" env:"NOVARELAY_WS_PORT" default:"3334" usage:"port for the HTTP control surface and streaming sockets"`
	BatchSize        int  `toml:"batch_size" env:"NOVARELAY_BATCH_SIZE" default:"100" usage:"maximum events per sealed batch"`
	MaxLatencyMs     int  `toml:"max_latency_ms" env:"NOVARELAY_MAX_LATENCY_MS" default:"1000" usage:"maximum time a batch may remain open before forced flush"`
}

// Filters holds the event router's policy filter section.
type Filters struct {
	AllowedKinds []int `toml:"allowed_kinds" usage:"if non-empty, only events of these kinds are routed onward"`
}

// Nostr holds relay identity secret key material.
type Nostr struct {
	SecretKey string `toml:"secret_key" env:"NOVARELAY_SECRET_KEY" usage:"relay identity private key, bech32 nsec or hex; auto-generated and persisted if empty"`
}

// Postgres holds the optional settlement/registry collaborator's database
// connection parameters.
type Postgres struct {
	DSN            string `toml:"dsn" env:"NOVARELAY_POSTGRES_DSN" usage:"optional postgres connection string for collaborator components"`
	MaxConnections int    `toml:"max_connections" env:"NOVARELAY_POSTGRES_MAX_CONNECTIONS" default:"10" usage:"maximum postgres connections held by collaborators"`
}

// Settlement holds the admin-route auth token for the HTTP control surface.
type Settlement struct {
	Token string `toml:"token" env:"NOVARELAY_SETTLEMENT_TOKEN" usage:"X-Settlement-Token value required of admin routes; unset disables auth with a warning"`
}

// Monitoring holds logging and metrics exposure settings.
type Monitoring struct {
	LogLevel       string `toml:"log_level" env:"NOVARELAY_LOG_LEVEL" default:"info" usage:"trace debug info warn error fatal"`
	PrometheusPort int    `toml:"prometheus_port" env:"NOVARELAY_PROMETHEUS_PORT" default:"0" usage:"not read by the gateway; /metrics is always served on websocket_port"`
}

// C is the full novarelay configuration, one field group per TOML table.
type C struct {
	AppName string `toml:"-" env:"NOVARELAY_APP_NAME" default:"novarelay"`
	Config  string `toml:"-" env:"NOVARELAY_CONFIG_DIR" usage:"directory holding the config.toml file"`

	Relay         Relay         `toml:"relay"`
	Deduplication Deduplication `toml:"deduplication"`
	Output        Output        `toml:"output"`
	Filters       Filters       `toml:"filters"`
	Nostr         Nostr         `toml:"nostr"`
	Postgres      Postgres      `toml:"postgres"`
	Settlement    Settlement    `toml:"settlement"`
	Monitoring    Monitoring    `toml:"monitoring"`
}

// New resolves the config directory, loads config.toml if present, then
// overlays any set environment variables on top, matching the teacher's
// "file provides defaults, environment always wins" precedence.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = goenv.Load(cfg, &goenv.Options{SliceSep: ","}); chk.T(err) {
		return
	}
	if cfg.Config == "" {
		cfg.Config = filepath.Join(xdg.ConfigHome, cfg.AppName)
	}
	if cfg.Deduplication.BadgerPath == "" {
		cfg.Deduplication.BadgerPath = filepath.Join(xdg.DataHome, cfg.AppName, "dedup")
	}

	tomlPath := filepath.Join(cfg.Config, "config.toml")
	if apputil.FileExists(tomlPath) {
		if _, err = toml.DecodeFile(tomlPath, cfg); chk.T(err) {
			return
		}
		// environment variables still take precedence over the file.
		if err = goenv.Load(cfg, &goenv.Options{SliceSep: ","}); chk.E(err) {
			return
		}
		log.I.F("loaded configuration from %s", tomlPath)
	}
	return
}

// WriteDefault persists cfg to config.toml under cfg.Config, creating the
// directory if necessary. Used on first startup once an identity key has
// been auto-generated, so it survives restarts.
func WriteDefault(cfg *C) (err error) {
	path := filepath.Join(cfg.Config, "config.toml")
	if err = apputil.EnsureDir(path); chk.E(err) {
		return
	}
	tmp := path + ".tmp"
	var f *os.File
	if f, err = os.Create(tmp); chk.E(err) {
		return
	}
	enc := toml.NewEncoder(f)
	if err = enc.Encode(cfg); chk.E(err) {
		_ = f.Close()
		return
	}
	if err = f.Sync(); chk.E(err) {
		_ = f.Close()
		return
	}
	if err = f.Close(); chk.E(err) {
		return
	}
	return os.Rename(tmp, path)
}

// HelpRequested reports whether the first CLI argument asked for help.
func HelpRequested() (help bool) {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "help", "-h", "--h", "-help", "--help", "?":
			help = true
		}
	}
	return
}

// PrintHelp writes a usage summary and the current configuration.
func PrintHelp(cfg *C, printer io.Writer) {
	_, _ = fmt.Fprintf(printer, "%s %s\n\n", cfg.AppName, version.V)
	_, _ = fmt.Fprintf(
		printer,
		"config.toml is read from %s, with NOVARELAY_* environment "+
			"variables overriding any value it sets.\n\n",
		filepath.Join(cfg.Config, "config.toml"),
	)
	enc := toml.NewEncoder(printer)
	_ = enc.Encode(cfg)
}
