package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// TrustProxy habilita X-Forwarded-For / X-Real-IP para resolver la
		// IP del cliente. Sólo detrás de un proxy propio.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis — respalda revocación, cuota y rate limit.
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer    string `yaml:"issuer"`
		AccessTTL string `yaml:"access_ttl"`
		// SeedEnv nombra la variable de entorno con la seed Ed25519 en
		// base64. La seed nunca va en el YAML.
		SeedEnv string `yaml:"seed_env"`
	} `yaml:"jwt"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	Quota struct {
		DailyDefault   int64            `yaml:"daily_default"`
		MonthlyDefault int64            `yaml:"monthly_default"`
		Overrides      map[string]Quota `yaml:"overrides"` // por identidad
	} `yaml:"quota"`

	// Providers: proveedor → base URL y credencial server-held. La
	// credencial se referencia por variable de entorno, nunca inline.
	Providers map[string]Provider `yaml:"providers"`

	Webhooks struct {
		// MasterSecretEnv nombra la env var con el secreto maestro de firma.
		MasterSecretEnv string `yaml:"master_secret_env"`
	} `yaml:"webhooks"`

	SafeURL struct {
		// AllowInsecure habilita http:// saliente. Sólo dev.
		AllowInsecure bool `yaml:"allow_insecure"`
		// MetadataHosts extiende la lista de endpoints de metadata bloqueados.
		MetadataHosts []string `yaml:"metadata_hosts"`
	} `yaml:"safe_url"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		To                 string `yaml:"to"`  // casilla del operador
		TLS                string `yaml:"tls"` // auto | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	// Operators: usuario → hash argon2id (formato PHC) para /v1/auth/login.
	Operators map[string]string `yaml:"operators"`
}

// Quota es un par de techos diario/mensual.
type Quota struct {
	Daily   int64 `yaml:"daily"`
	Monthly int64 `yaml:"monthly"`
}

// Provider describe un upstream reenviable.
type Provider struct {
	BaseURL string `yaml:"base_url"`
	// CredentialEnv nombra la env var con la credencial server-held.
	// Vacío ⇒ el proveedor es sólo-BYOK.
	CredentialEnv string `yaml:"credential_env"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "kb:"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "1h"
	}
	if c.JWT.SeedEnv == "" {
		c.JWT.SeedEnv = "KEYBRIDGE_JWT_SEED"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Quota.DailyDefault == 0 {
		c.Quota.DailyDefault = 1000
	}
	if c.Quota.MonthlyDefault == 0 {
		c.Quota.MonthlyDefault = 10000
	}
	if c.Webhooks.MasterSecretEnv == "" {
		c.Webhooks.MasterSecretEnv = "KEYBRIDGE_WEBHOOK_SECRET"
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Providers == nil {
		c.Providers = map[string]Provider{}
	}

	// validate string durations
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return nil, err
		}
	}
	if _, err := time.ParseDuration(c.JWT.AccessTTL); err != nil {
		return nil, err
	}
	if _, err := time.ParseDuration(c.Rate.Window); err != nil {
		return nil, err
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Guardia dura: en prod jamás se relajan los controles de salida.
	if strings.EqualFold(c.App.Env, "prod") {
		c.SafeURL.AllowInsecure = false
		c.SMTP.InsecureSkipVerify = false
	}

	return &c, nil
}

// Validate rechaza configuraciones incoherentes antes del arranque.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: storage.driver %q desconocido", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: storage.dsn requerido con driver postgres")
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.kind %q desconocido", c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("config: cache.redis.addr requerido con kind redis")
	}
	for name, p := range c.Providers {
		if strings.TrimSpace(p.BaseURL) == "" {
			return fmt.Errorf("config: providers.%s.base_url requerido", name)
		}
	}
	return nil
}

// PgConnMaxLifetime parsea el lifetime del pool de postgres (0 si no está).
func (c *Config) PgConnMaxLifetime() time.Duration {
	d, _ := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime)
	return d
}

// AccessTTL parsea el TTL del token de acceso (validado en Load).
func (c *Config) AccessTTL() time.Duration {
	d, _ := time.ParseDuration(c.JWT.AccessTTL)
	return d
}

// RateWindow parsea la ventana del rate limit (validada en Load).
func (c *Config) RateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Window)
	return d
}

// JWTSeed lee la seed Ed25519 de la env var configurada ("" si no está).
func (c *Config) JWTSeed() string {
	return strings.TrimSpace(os.Getenv(c.JWT.SeedEnv))
}

// WebhookMasterSecret lee el secreto maestro de firma de webhooks.
func (c *Config) WebhookMasterSecret() []byte {
	return []byte(strings.TrimSpace(os.Getenv(c.Webhooks.MasterSecretEnv)))
}

// ServerCredentials materializa el mapa proveedor→credencial server-held
// leyendo las env vars referenciadas. Proveedores sólo-BYOK quedan afuera.
func (c *Config) ServerCredentials() map[string]string {
	out := make(map[string]string, len(c.Providers))
	for name, p := range c.Providers {
		if p.CredentialEnv == "" {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(p.CredentialEnv)); v != "" {
			out[name] = v
		}
	}
	return out
}

// ProviderBaseURLs materializa el mapa proveedor→base URL.
func (c *Config) ProviderBaseURLs() map[string]string {
	out := make(map[string]string, len(c.Providers))
	for name, p := range c.Providers {
		out[name] = p.BaseURL
	}
	return out
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

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("KEYBRIDGE_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvBool("KEYBRIDGE_TRUST_PROXY"); ok {
		c.Server.TrustProxy = v
	}
	if v, ok := getEnvStr("KEYBRIDGE_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("KEYBRIDGE_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("KEYBRIDGE_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("KEYBRIDGE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("KEYBRIDGE_JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvInt("KEYBRIDGE_RATE_MAX"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("KEYBRIDGE_APP_ENV"); ok {
		c.App.Env = v
	}
}
