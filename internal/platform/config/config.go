package config

import (
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the whole server configuration. Values come from an optional YAML
// file and are overridden by environment variables.
type Config struct {
	Environment string  `yaml:"environment" env:"INKWELL_ENV" env-default:"local" validate:"required"`
	LogLevel    string  `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Server      Server  `yaml:"server"`
	Backend     Backend `yaml:"backend"`
	Session     Session `yaml:"session"`
	Redis       Redis   `yaml:"redis"`
	CSRF        CSRF    `yaml:"csrf"`
	Editor      Editor  `yaml:"editor"`
}

type Server struct {
	Addr            string        `yaml:"addr" env:"INKWELL_ADDR" env-default:":3000" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"SERVER_MAX_UPLOAD_BYTES" env-default:"10485760" validate:"gt=0"`
}

// Backend points at the CMS REST API.
type Backend struct {
	BaseURL string        `yaml:"base_url" env:"BACKEND_BASE_URL" env-default:"http://localhost:8080" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" env:"BACKEND_TIMEOUT" env-default:"10s" validate:"gt=0"`
	// FailureThreshold consecutive transport failures fail the readiness probe.
	FailureThreshold int `yaml:"failure_threshold" env:"BACKEND_FAILURE_THRESHOLD" env-default:"5" validate:"gte=0"`
}

// Session selects where the browser session lives. "cookie" seals it into the
// cookie itself; "redis" keeps it server side behind an opaque id.
type Session struct {
	Store      string        `yaml:"store" env:"SESSION_STORE" env-default:"cookie" validate:"oneof=cookie redis"`
	CookieName string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"inkwell_session" validate:"required"`
	Secret     string        `yaml:"secret" env:"SESSION_SECRET"`
	MaxAge     time.Duration `yaml:"max_age" env:"SESSION_MAX_AGE" env-default:"168h" validate:"gt=0"`
	Secure     bool          `yaml:"secure" env:"SESSION_SECURE" env-default:"false"`
}

// Key derives the 32 byte secretbox key from the configured secret.
func (s Session) Key() [32]byte {
	return sha256.Sum256([]byte(s.Secret))
}

// FlashKey derives the key for flash cookies. It differs from Key so a
// flash can never be replayed as a session.
func (s Session) FlashKey() [32]byte {
	return sha256.Sum256([]byte("flash:" + s.Secret))
}

type Redis struct {
	URL          string        `yaml:"url" env:"REDIS_URL"`
	PoolSize     int           `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT" env-default:"3s"`
}

type CSRF struct {
	Key    string `yaml:"key" env:"CSRF_KEY"`
	Secure bool   `yaml:"secure" env:"CSRF_SECURE" env-default:"false"`
}

// AuthKey derives the 32 byte key gorilla/csrf expects.
func (c CSRF) AuthKey() []byte {
	sum := sha256.Sum256([]byte(c.Key))
	return sum[:]
}

type Editor struct {
	IdleTTL       time.Duration `yaml:"idle_ttl" env:"EDITOR_IDLE_TTL" env-default:"2h" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"EDITOR_SWEEP_INTERVAL" env-default:"5m" validate:"gt=0"`
}

// IsLocal reports whether the server runs on a developer machine.
func (c Config) IsLocal() bool {
	return c.Environment == "local"
}

// MinSecretLength applies to the session secret and CSRF key outside local.
const MinSecretLength = 32

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and refuses to start a non-local server
// with missing or short secrets.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Session.Store == "redis" && c.Redis.URL == "" {
		return errors.New("invalid config: session store redis requires redis.url")
	}
	if c.IsLocal() {
		return nil
	}
	if len(c.Session.Secret) < MinSecretLength {
		return fmt.Errorf("invalid config: session.secret must be at least %d characters", MinSecretLength)
	}
	if len(c.CSRF.Key) < MinSecretLength {
		return fmt.Errorf("invalid config: csrf.key must be at least %d characters", MinSecretLength)
	}
	return nil
}

// Load reads the YAML file at path when one is given, then applies the
// environment. Defaults fill anything still empty.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.IsLocal() {
		if cfg.Session.Secret == "" {
			cfg.Session.Secret = "local-development-session-secret!"
		}
		if cfg.CSRF.Key == "" {
			cfg.CSRF.Key = "local-development-csrf-key-000000"
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PathFromFlags resolves the config file path from the -config flag or the
// CONFIG_PATH variable. An empty result means environment only.
func PathFromFlags(fs *flag.FlagSet, args []string) (string, error) {
	var path string
	fs.StringVar(&path, "config", "", "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path, nil
}
