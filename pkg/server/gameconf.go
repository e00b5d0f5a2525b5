package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// RealmConf holds realm-level configuration. The Beastmaster module keeps
// its own file, referenced by ModuleConfig.
type RealmConf struct {
	// --- Identity ---
	RealmName   string `yaml:"realm_name" env:"NAME"`
	Port        int    `yaml:"port" env:"PORT"`
	WelcomeText string `yaml:"welcome_text"`
	TextDir     string `yaml:"text_dir" env:"TEXT_DIR"` // connect, motd, newchar and quit .txt
	HelpFile    string `yaml:"help_file" env:"HELP_FILE"`
	Debug       bool   `yaml:"debug" env:"DEBUG"`

	// --- Characters ---
	StartLevel  int `yaml:"start_level" env:"START_LEVEL"`
	MaxRetries  int `yaml:"max_retries"`
	IdleTimeout int `yaml:"idle_timeout" env:"IDLE_TIMEOUT"` // seconds, 0 = never

	// --- Game loop ---
	TickMillis int `yaml:"tick_millis" env:"TICK_MILLIS"`

	// --- Telnet ---
	OOBNegotiate bool `yaml:"oob_negotiate" env:"OOB_NEGOTIATE"` // offer GMCP and MSSP on connect
	OOBTimeoutMs int  `yaml:"oob_timeout_ms"`

	// --- Storage ---
	BoltPath       string `yaml:"bolt_path" env:"BOLT_PATH"`
	SQLDriver      string `yaml:"sql_driver" env:"SQL_DRIVER"`
	SQLDSN         string `yaml:"sql_dsn" env:"SQL_DSN"`
	SQLBusyTimeout int    `yaml:"sql_busy_timeout"` // milliseconds, sqlite only
	ArchiveDir     string `yaml:"archive_dir" env:"ARCHIVE_DIR"`

	// --- Module ---
	ModuleConfig string `yaml:"module_config" env:"MODULE_CONFIG"`

	// --- Web ---
	WebEnabled     bool     `yaml:"web_enabled" env:"WEB_ENABLED"`
	WebHost        string   `yaml:"web_host" env:"WEB_HOST"`
	WebPort        int      `yaml:"web_port" env:"WEB_PORT"`
	WebCORSOrigins []string `yaml:"web_cors_origins" env:"WEB_CORS_ORIGINS"`
	WebRateLimit   int      `yaml:"web_rate_limit"` // requests per minute per IP
	JWTSecret      string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTExpiry      int      `yaml:"jwt_expiry"` // seconds

	// TLS for the web server: a domain uses Let's Encrypt, cert/key files
	// are loaded as given, otherwise a self-signed pair lives in CertDir.
	WebTLS      bool   `yaml:"web_tls" env:"WEB_TLS"`
	WebDomain   string `yaml:"web_domain" env:"WEB_DOMAIN"`
	WebCertFile string `yaml:"web_cert_file" env:"WEB_CERT_FILE"`
	WebKeyFile  string `yaml:"web_key_file" env:"WEB_KEY_FILE"`
	CertDir     string `yaml:"cert_dir" env:"CERT_DIR"`
}

// RealmEnvPrefix prefixes every realm environment override.
const RealmEnvPrefix = "REALM_"

// DefaultRealmConf returns sensible defaults.
func DefaultRealmConf() *RealmConf {
	return &RealmConf{
		RealmName:      "Beastmaster Realm",
		Port:           6250,
		WelcomeText:    WelcomeText,
		StartLevel:     10,
		MaxRetries:     3,
		IdleTimeout:    3600,
		TickMillis:     500,
		OOBNegotiate:   true,
		OOBTimeoutMs:   500,
		BoltPath:       "data/realm.bolt",
		SQLDriver:      "sqlite",
		SQLDSN:         "data/beastmaster.db",
		SQLBusyTimeout: 5000,
		ArchiveDir:     "archives",
		ModuleConfig:   "beastmaster.yaml",
		WebHost:        "",
		WebPort:        8443,
		WebRateLimit:   60,
		JWTExpiry:      86400,
		CertDir:        "certs",
	}
}

// LoadRealmConf reads a YAML realm config and applies REALM_* environment
// overrides. A missing file yields the defaults. Relative paths in the
// file resolve against its directory.
func LoadRealmConf(path string) (*RealmConf, error) {
	conf := DefaultRealmConf()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, conf); err != nil {
				return nil, fmt.Errorf("server: parse %s: %w", path, err)
			}
			conf.resolvePaths(filepath.Dir(path))
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("server: read %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(conf, env.Options{Prefix: RealmEnvPrefix}); err != nil {
		return nil, fmt.Errorf("server: env overrides: %w", err)
	}
	conf.normalize()
	return conf, nil
}

func (c *RealmConf) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.Contains(p, "://") {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.BoltPath = resolve(c.BoltPath)
	c.ModuleConfig = resolve(c.ModuleConfig)
	c.TextDir = resolve(c.TextDir)
	c.HelpFile = resolve(c.HelpFile)
	c.ArchiveDir = resolve(c.ArchiveDir)
	c.CertDir = resolve(c.CertDir)
	c.WebCertFile = resolve(c.WebCertFile)
	c.WebKeyFile = resolve(c.WebKeyFile)
	if c.SQLDriver == "" || c.SQLDriver == "sqlite" {
		c.SQLDSN = resolve(c.SQLDSN)
	}
}

func (c *RealmConf) normalize() {
	if c.StartLevel < 1 {
		c.StartLevel = 1
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.TickMillis <= 0 {
		c.TickMillis = 500
	}
	if c.OOBTimeoutMs <= 0 {
		c.OOBTimeoutMs = 500
	}
	if c.WebRateLimit <= 0 {
		c.WebRateLimit = 60
	}
}

// Tick returns the game loop interval.
func (c *RealmConf) Tick() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}
