package config

import (
	"errors"
	"flag"
	"fmt"
	"frogquest/internal/matchbox"
	"frogquest/internal/netplay"
	"frogquest/internal/rollback"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const DefaultEnvFile = ".env"

func init() {
	SetupLogger(slog.LevelDebug)
}

// SetupLogger installs the default tint logger on stderr.
func SetupLogger(level slog.Level) {
	w := os.Stderr
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(w.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if err, ok := a.Value.Any().(error); ok {
				aErr := tint.Err(err)
				aErr.Key = a.Key
				return aErr
			}
			return a
		},
	}))
	slog.SetDefault(logger)
}

type Config struct {
	Net        netplay.Config
	Rollback   rollback.Config
	PixelScale int
	// FontPath names a serialized font sheet. Empty means the built-in font.
	FontPath string
	LogLevel slog.Level
}

func Default() Config {
	return Config{
		Net:        netplay.DefaultConfig(),
		Rollback:   rollback.DefaultConfig(),
		PixelScale: 4,
		LogLevel:   slog.LevelDebug,
	}
}

// Load reads envFile (when it exists), then the environment, then args. Each
// source overrides the previous one. The logger is re-installed at the
// configured level.
func Load(envFile string, args []string) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := cfg.fromEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.fromFlags(args); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	SetupLogger(cfg.LogLevel)
	return cfg, nil
}

func loadEnvFile(name string) error {
	if name == "" {
		return nil
	}
	err := godotenv.Load(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

func envString(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func (c *Config) fromEnv() error {
	envString("FROG_SIGNAL_URL", &c.Net.SignalURL)
	envString("FROG_LISTEN", &c.Net.ListenAddr)
	envString("FROG_ADVERTISE", &c.Net.AdvertiseAddr)
	envString("FROG_PASSPHRASE", &c.Net.Passphrase)
	envString("FROG_FONT", &c.FontPath)

	if v, ok := lookup("FROG_TRANSPORT"); ok {
		t, err := netplay.ParseTransport(v)
		if err != nil {
			return fmt.Errorf("FROG_TRANSPORT: %w", err)
		}
		c.Net.Transport = t
	}
	if v, ok := lookup("FROG_LOG_LEVEL"); ok {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("FROG_LOG_LEVEL: %w", err)
		}
	}

	return errors.Join(
		envInt("FROG_PLAYERS", &c.Net.Players),
		envInt("FROG_MAX_PREDICTION", &c.Rollback.MaxPrediction),
		envInt("FROG_FRAME_DELAY", &c.Rollback.FrameDelay),
		envInt("FROG_PIXEL_SCALE", &c.PixelScale),
		envDuration("FROG_PEER_TIMEOUT", &c.Net.PeerTimeout),
	)
}

func (c *Config) fromFlags(args []string) error {
	if len(args) == 0 {
		return nil
	}

	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)

	transport := string(c.Net.Transport)
	flags.StringVar(&c.Net.SignalURL, "signal", c.Net.SignalURL, "signaling server base URL")
	flags.IntVar(&c.Net.Players, "players", c.Net.Players, "number of players per room")
	flags.StringVar(&c.Net.ListenAddr, "listen", c.Net.ListenAddr, "peer transport listen address")
	flags.StringVar(&c.Net.AdvertiseAddr, "advertise", c.Net.AdvertiseAddr, "address given to other peers (defaults to the listen address)")
	flags.StringVar(&transport, "transport", transport, "peer transport: kcp or udp")
	flags.StringVar(&c.Net.Passphrase, "passphrase", c.Net.Passphrase, "kcp encryption passphrase")
	flags.IntVar(&c.Rollback.MaxPrediction, "max-prediction", c.Rollback.MaxPrediction, "frames to predict before stalling")
	flags.IntVar(&c.Rollback.FrameDelay, "frame-delay", c.Rollback.FrameDelay, "frames of local input delay")
	flags.IntVar(&c.PixelScale, "scale", c.PixelScale, "window pixel scale")
	flags.StringVar(&c.FontPath, "font", c.FontPath, "serialized font sheet (built-in when empty)")
	flags.DurationVar(&c.Net.PeerTimeout, "peer-timeout", c.Net.PeerTimeout, "silence after which a peer is dropped")
	flags.TextVar(&c.LogLevel, "log-level", c.LogLevel, "log level")

	if err := flags.Parse(args[1:]); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	t, err := netplay.ParseTransport(transport)
	if err != nil {
		return fmt.Errorf("-transport: %w", err)
	}
	c.Net.Transport = t
	return nil
}

func (c *Config) validate() error {
	if c.Net.Players < matchbox.MinPlayers || c.Net.Players > matchbox.MaxPlayers {
		return fmt.Errorf("%d players: want %d to %d", c.Net.Players, matchbox.MinPlayers, matchbox.MaxPlayers)
	}
	c.Rollback.NumPlayers = c.Net.Players
	if err := c.Rollback.Validate(); err != nil {
		return err
	}
	if c.PixelScale <= 0 {
		return fmt.Errorf("pixel scale %d: must be positive", c.PixelScale)
	}
	if c.Net.PeerTimeout <= 0 {
		return fmt.Errorf("peer timeout %v: must be positive", c.Net.PeerTimeout)
	}
	return nil
}

type ServerConfig struct {
	Addr     string
	LogLevel slog.Level
}

// LoadServer is Load for the signaling server.
func LoadServer(envFile string, args []string) (ServerConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{Addr: ":3536", LogLevel: slog.LevelDebug}
	envString("FROG_MATCHBOX_ADDR", &cfg.Addr)
	if v, ok := lookup("FROG_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return ServerConfig{}, fmt.Errorf("FROG_LOG_LEVEL: %w", err)
		}
	}

	if len(args) > 0 {
		flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
		flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
		flags.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
		if err := flags.Parse(args[1:]); err != nil {
			return ServerConfig{}, fmt.Errorf("parsing flags: %w", err)
		}
	}

	SetupLogger(cfg.LogLevel)
	return cfg, nil
}
