package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	StaticPath     string        `mapstructure:"static_path"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	Secret         string        `mapstructure:"secret"`
	LogLevel       string        `mapstructure:"log_level"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`

	TLS         TLSConfig         `mapstructure:"tls"`
	Signal      SignalConfig      `mapstructure:"signal"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	ICEServers  []ICEServer       `mapstructure:"ice_servers"`
	Mirror      MirrorConfig      `mapstructure:"mirror"`

	v      *viper.Viper
	loaded bool
}

type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

type SignalConfig struct {
	RingTimeout           time.Duration `mapstructure:"ring_timeout"`
	MaxBufferedCandidates int           `mapstructure:"max_buffered_candidates"`
	RateLimit             float64       `mapstructure:"rate_limit"`
	RateBurst             int           `mapstructure:"rate_burst"`
	RateLimitAction       string        `mapstructure:"rate_limit_action"`
}

type CredentialsConfig struct {
	Provider        string         `mapstructure:"provider"`
	Timeout         time.Duration  `mapstructure:"timeout"`
	TransportPolicy string         `mapstructure:"transport_policy"`
	Stunner         StunnerConfig  `mapstructure:"stunner"`
	TurnREST        TurnRESTConfig `mapstructure:"turnrest"`
}

type StunnerConfig struct {
	Addr      string `mapstructure:"addr"`
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Gateway   string `mapstructure:"gateway"`
	Listener  string `mapstructure:"listener"`
}

type TurnRESTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Prefix string        `mapstructure:"prefix"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type MirrorConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	PLIInterval time.Duration `mapstructure:"pli_interval"`
}

const (
	ProviderStunner  = "stunner"
	ProviderTurnREST = "turnrest"
	ProviderStatic   = "static"
)

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return load(fmt.Sprintf("config/config.%s.yaml", env))
}

func load(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("CALLBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Names used by the STUNner deployment manifests.
	_ = v.BindEnv("credentials.stunner.addr", "STUNNER_AUTH_ADDR")
	_ = v.BindEnv("credentials.stunner.port", "STUNNER_AUTH_PORT")
	_ = v.BindEnv("credentials.stunner.namespace", "STUNNER_NAMESPACE")
	_ = v.BindEnv("credentials.stunner.gateway", "STUNNER_GATEWAY")
	_ = v.BindEnv("credentials.stunner.listener", "STUNNER_LISTENER")

	loaded := true
	if err := v.ReadInConfig(); err != nil {
		loaded = false
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.v, cfg.loaded = v, loaded
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Str("credentials", cfg.Credentials.Provider).
		Bool("mirror", cfg.Mirror.Enabled).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", []string{})

	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")

	v.SetDefault("signal.ring_timeout", "60s")
	v.SetDefault("signal.max_buffered_candidates", 64)
	v.SetDefault("signal.rate_limit", 20.0)
	v.SetDefault("signal.rate_burst", 40)
	v.SetDefault("signal.rate_limit_action", "drop")

	v.SetDefault("credentials.provider", ProviderStunner)
	v.SetDefault("credentials.timeout", "5s")
	v.SetDefault("credentials.transport_policy", "relay")
	v.SetDefault("credentials.stunner.addr", "stunner-auth.stunner-system.svc.cluster.local")
	v.SetDefault("credentials.stunner.port", 8088)
	v.SetDefault("credentials.stunner.namespace", "")
	v.SetDefault("credentials.stunner.gateway", "")
	v.SetDefault("credentials.stunner.listener", "")
	v.SetDefault("credentials.turnrest.secret", "")
	v.SetDefault("credentials.turnrest.ttl", "1h")
	v.SetDefault("credentials.turnrest.prefix", "callbox")

	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})

	v.SetDefault("mirror.enabled", true)
	v.SetDefault("mirror.pli_interval", "3s")
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be > 0"))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be > 0"))
	}
	switch c.Signal.RateLimitAction {
	case "", "none", "drop", "close", "kick":
	default:
		errs = append(errs, fmt.Errorf("unknown signal.rate_limit_action %q", c.Signal.RateLimitAction))
	}
	switch c.Credentials.Provider {
	case ProviderStunner:
		if c.Credentials.Stunner.Addr == "" {
			errs = append(errs, errors.New("credentials.stunner.addr is required"))
		}
	case ProviderTurnREST:
		if c.Credentials.TurnREST.Secret == "" {
			errs = append(errs, errors.New("credentials.turnrest.secret is required"))
		}
		if strings.Contains(c.Credentials.TurnREST.Prefix, ":") {
			errs = append(errs, errors.New("credentials.turnrest.prefix must not contain ':'"))
		}
	case ProviderStatic:
	default:
		errs = append(errs, fmt.Errorf("unknown credentials.provider %q", c.Credentials.Provider))
	}
	if c.TLS.CertFile != "" && c.TLS.KeyFile == "" || c.TLS.CertFile == "" && c.TLS.KeyFile != "" {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file must be set together"))
	}
	return errors.Join(errs...)
}

// OnChange re-reads the config file whenever it changes on disk and hands
// the new values to fn. Invalid edits are logged and skipped.
func (c *Config) OnChange(fn func(*Config)) {
	if c.v == nil || !c.loaded {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		var next Config
		if err := c.v.Unmarshal(&next); err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("reload")
			return
		}
		if err := next.Validate(); err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("reload rejected")
			return
		}
		next.v, next.loaded = c.v, true
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		fn(&next)
	})
	c.v.WatchConfig()
}
