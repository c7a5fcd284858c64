package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) writeFile(body string) string {
	path := filepath.Join(s.T().TempDir(), "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o600))
	return path
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := Load("")
	s.Require().NoError(err)

	s.Equal("local", cfg.Environment)
	s.Equal(":3000", cfg.Server.Addr)
	s.Equal("cookie", cfg.Session.Store)
	s.Equal(10*time.Second, cfg.Backend.Timeout)
	s.Equal(5, cfg.Backend.FailureThreshold)
	s.Equal(2*time.Hour, cfg.Editor.IdleTTL)
	s.NotEmpty(cfg.Session.Secret, "local gets a development secret")
}

func (s *ConfigSuite) TestFileAndEnvironment() {
	path := s.writeFile(`
environment: local
backend:
  base_url: http://cms.internal:8080
  timeout: 3s
session:
  store: cookie
  cookie_name: sid
`)

	s.Run("file values are read", func() {
		cfg, err := Load(path)
		s.Require().NoError(err)
		s.Equal("http://cms.internal:8080", cfg.Backend.BaseURL)
		s.Equal(3*time.Second, cfg.Backend.Timeout)
		s.Equal("sid", cfg.Session.CookieName)
	})

	s.Run("environment overrides the file", func() {
		s.T().Setenv("BACKEND_BASE_URL", "http://override:9000")
		cfg, err := Load(path)
		s.Require().NoError(err)
		s.Equal("http://override:9000", cfg.Backend.BaseURL)
	})
}

func (s *ConfigSuite) TestValidate() {
	valid := func() Config {
		cfg, err := Load("")
		s.Require().NoError(err)
		return cfg
	}

	s.Run("non-local requires long secrets", func() {
		cfg := valid()
		cfg.Environment = "production"
		cfg.Session.Secret = "short"
		s.ErrorContains(cfg.Validate(), "session.secret")

		cfg.Session.Secret = "0123456789abcdef0123456789abcdef"
		cfg.CSRF.Key = ""
		s.ErrorContains(cfg.Validate(), "csrf.key")

		cfg.CSRF.Key = "fedcba9876543210fedcba9876543210"
		s.NoError(cfg.Validate())
	})

	s.Run("redis store needs a url", func() {
		cfg := valid()
		cfg.Session.Store = "redis"
		s.ErrorContains(cfg.Validate(), "redis.url")

		cfg.Redis.URL = "redis://localhost:6379/0"
		s.NoError(cfg.Validate())
	})

	s.Run("unknown store is rejected", func() {
		cfg := valid()
		cfg.Session.Store = "memcached"
		s.Error(cfg.Validate())
	})

	s.Run("backend url must be a url", func() {
		cfg := valid()
		cfg.Backend.BaseURL = "not a url"
		s.Error(cfg.Validate())
	})
}

func (s *ConfigSuite) TestPathFromFlags() {
	s.Run("flag wins", func() {
		s.T().Setenv("CONFIG_PATH", "/etc/env.yaml")
		path, err := PathFromFlags(flag.NewFlagSet("t", flag.ContinueOnError), []string{"-config", "/etc/flag.yaml"})
		s.Require().NoError(err)
		s.Equal("/etc/flag.yaml", path)
	})

	s.Run("falls back to CONFIG_PATH", func() {
		s.T().Setenv("CONFIG_PATH", "/etc/env.yaml")
		path, err := PathFromFlags(flag.NewFlagSet("t", flag.ContinueOnError), nil)
		s.Require().NoError(err)
		s.Equal("/etc/env.yaml", path)
	})
}

func (s *ConfigSuite) TestDerivedKeys() {
	a := Session{Secret: "one"}.Key()
	b := Session{Secret: "two"}.Key()
	s.NotEqual(a, b)
	s.NotEqual(a, Session{Secret: "one"}.FlashKey())
	s.Len(CSRF{Key: "k"}.AuthKey(), 32)
}
