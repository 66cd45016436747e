package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/accountlink/internal/providers"
	"github.com/dropDatabas3/accountlink/internal/validation"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
		// json | console; vacío decide por Env
		LogFormat string `yaml:"log_format"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// PublicURL es la base para armar los redirect URIs de los providers.
		PublicURL          string   `yaml:"public_url"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int           `yaml:"max_open_conns"`
			MinConns        int           `yaml:"min_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		SameSite   string `yaml:"samesite"`
		Secure     bool   `yaml:"secure"`
		// TicketTTL es el TTL absoluto de cada escritura en el cache.
		TicketTTL  time.Duration `yaml:"ticket_ttl"`
		SlidingTTL time.Duration `yaml:"sliding_ttl"`
		// ProtectionKey cifra los tickets; todos los nodos deben compartirla.
		ProtectionKey string        `yaml:"protection_key"`
		RefreshSkew   time.Duration `yaml:"refresh_skew"`
	} `yaml:"session"`

	Auth struct {
		// AdminEmail recibe el rol Admin al crearse su cuenta.
		AdminEmail   string        `yaml:"admin_email"`
		StateKey     string        `yaml:"state_key"`
		StateTTL     time.Duration `yaml:"state_ttl"`
		RoleCacheTTL time.Duration `yaml:"role_cache_ttl"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`

	Providers []providers.Config `yaml:"providers"`
}

// Load lee el YAML en path. Con path vacío arranca de una config vacía
// (sólo defaults + env).
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "accountlink"
	}

	// Session
	if c.Session.CookieName == "" {
		c.Session.CookieName = "al_session"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TicketTTL == 0 {
		c.Session.TicketTTL = time.Hour
	}
	if c.Session.SlidingTTL == 0 {
		c.Session.SlidingTTL = 30 * time.Minute
	}
	if c.Session.RefreshSkew == 0 {
		c.Session.RefreshSkew = 60 * time.Second
	}

	// Auth
	if c.Auth.StateTTL == 0 {
		c.Auth.StateTTL = 10 * time.Minute
	}
	if c.Auth.RoleCacheTTL == 0 {
		c.Auth.RoleCacheTTL = 10 * time.Minute
	}

	// Rate
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 20
	}
	if c.Rate.Login.Window == 0 {
		c.Rate.Login.Window = time.Minute
	}

	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Kind == "" {
			p.Kind = providers.KindOIDC
		}
		if len(p.Scopes) == 0 && p.Kind == providers.KindOIDC {
			p.Scopes = []string{"openid", "email", "profile"}
		}
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// envName normaliza un nombre de provider para usarlo en una variable de entorno.
func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(strings.TrimSpace(name)))
}

// applyEnvOverrides pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("LOG_FORMAT"); ok {
		c.App.LogFormat = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_PUBLIC_URL"); ok {
		c.Server.PublicURL = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvDur("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// SESSION
	if v, ok := getEnvStr("SESSION_COOKIE_NAME"); ok {
		c.Session.CookieName = v
	}
	if v, ok := getEnvStr("SESSION_DOMAIN"); ok {
		c.Session.Domain = v
	}
	if v, ok := getEnvStr("SESSION_SAMESITE"); ok {
		c.Session.SameSite = v
	}
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		c.Session.Secure = v
	}
	if v, ok := getEnvDur("SESSION_TICKET_TTL"); ok {
		c.Session.TicketTTL = v
	}
	if v, ok := getEnvDur("SESSION_SLIDING_TTL"); ok {
		c.Session.SlidingTTL = v
	}
	if v, ok := getEnvStr("SESSION_PROTECTION_KEY"); ok {
		c.Session.ProtectionKey = v
	}
	if v, ok := getEnvDur("SESSION_REFRESH_SKEW"); ok {
		c.Session.RefreshSkew = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_ADMIN_EMAIL"); ok {
		c.Auth.AdminEmail = v
	}
	if v, ok := getEnvStr("AUTH_STATE_KEY"); ok {
		c.Auth.StateKey = v
	}
	if v, ok := getEnvDur("AUTH_STATE_TTL"); ok {
		c.Auth.StateTTL = v
	}
	if v, ok := getEnvDur("AUTH_ROLE_CACHE_TTL"); ok {
		c.Auth.RoleCacheTTL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvDur("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}

	// FLAGS
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}

	// Secretos de providers: PROVIDER_<NAME>_CLIENT_ID / PROVIDER_<NAME>_CLIENT_SECRET
	for i := range c.Providers {
		p := &c.Providers[i]
		prefix := "PROVIDER_" + envName(p.Name) + "_"
		if v, ok := getEnvStr(prefix + "CLIENT_ID"); ok {
			p.ClientID = v
		}
		if v, ok := getEnvStr(prefix + "CLIENT_SECRET"); ok {
			p.ClientSecret = v
		}
	}
}

// IsProd indica si corremos con APP_ENV=prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Validate revisa los valores críticos. Acumula todos los problemas.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported", c.Cache.Kind))
	}

	if c.Session.SlidingTTL > c.Session.TicketTTL {
		errs = append(errs, errors.New("session.sliding_ttl must not exceed session.ticket_ttl"))
	}
	if c.IsProd() {
		if len(c.Session.ProtectionKey) < 16 {
			errs = append(errs, errors.New("session.protection_key must be set (>=16 bytes) in prod"))
		}
		if len(c.Auth.StateKey) < 16 {
			errs = append(errs, errors.New("auth.state_key must be set (>=16 bytes) in prod"))
		}
	}

	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
			continue
		}
		if !validation.ValidProviderName(name) {
			errs = append(errs, fmt.Errorf("providers[%d]: invalid name %q", i, name))
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate name %q", i, name))
		}
		seen[name] = struct{}{}
		if p.ClientID == "" {
			errs = append(errs, fmt.Errorf("provider %s: client_id is required", name))
		}
		for _, sc := range p.Scopes {
			if !validation.ValidScope(sc) {
				errs = append(errs, fmt.Errorf("provider %s: invalid scope %q", name, sc))
			}
		}
		switch p.Kind {
		case providers.KindOIDC:
			if p.Authority == "" {
				errs = append(errs, fmt.Errorf("provider %s: authority is required for oidc", name))
			}
		case providers.KindOAuth:
			if p.AuthorizationEndpoint == "" || p.TokenEndpoint == "" || p.UserInfoEndpoint == "" {
				errs = append(errs, fmt.Errorf("provider %s: authorization, token and userinfo endpoints are required for oauth", name))
			}
		default:
			errs = append(errs, fmt.Errorf("provider %s: unknown kind %q", name, p.Kind))
		}
	}

	return errors.Join(errs...)
}
