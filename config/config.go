// Package config loads configuration for both binaries this module
// ships: the PAM bridge (parent process, cmd/pambridge) and the audit
// companion service (cmd/pambridgeauditd, cmd/migrate). Sources, in
// viper's native precedence order, are: PAMBRIDGE_-prefixed environment
// variables, then an explicit YAML file, then the defaults below.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

func bindValidator() *validator.Validate {
	return validator.New()
}

// Config is the root configuration structure. Bridge holds settings the
// parent orchestrator reads per hook invocation; Audit and Database and
// JWT are only consulted by the companion service's binaries.
type Config struct {
	Bridge   BridgeConfig
	Audit    AuditConfig
	Database DatabaseConfig
	JWT      JWTConfig
}

// BridgeConfig controls the core process-isolation bridge (spec.md §4,
// §4.10). None of these are read from the wire or persisted — they only
// shape how the parent resolves and spawns its policy child.
type BridgeConfig struct {
	ChildPath          string        `mapstructure:"child_path"`
	DefaultConv        bool          `mapstructure:"default_conv"`
	LogLevel           string        `mapstructure:"log_level"`
	WasmCacheDir       string        `mapstructure:"wasm_cache_dir"`
	SyslogFacility     string        `mapstructure:"syslog_facility"`
	AuditSocket        string        `mapstructure:"audit_socket"`
	AuditSocketTimeout time.Duration `mapstructure:"audit_socket_timeout"`
}

// AuditConfig controls cmd/pambridgeauditd's HTTP listener.
type AuditConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds the audit database's connection parameters,
// consumed by both cmd/pambridgeauditd and cmd/migrate.
type DatabaseConfig struct {
	Host    string `mapstructure:"host" validate:"required"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	User    string `mapstructure:"user" validate:"required"`
	Pass    string `mapstructure:"password"`
	Name    string `mapstructure:"name" validate:"required"`
	SSLMode string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-ca verify-full"`
}

// JWTConfig holds the auditd's admin bearer-token signing settings.
// AdminSecretHash is the bcrypt hash of the shared admin secret an
// operator supplies at the /admin/login endpoint; the plaintext secret
// itself is never stored in config.
type JWTConfig struct {
	SecretKey       string        `mapstructure:"secret_key" validate:"required,min=32"`
	Expiry          time.Duration `mapstructure:"expiry" validate:"required"`
	AdminSecretHash string        `mapstructure:"admin_secret_hash" validate:"required"`
}

// Load reads configuration from (in precedence order) PAMBRIDGE_-prefixed
// environment variables, an optional YAML file at configPath, then the
// package defaults. configPath may be empty, in which case only the
// environment and defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PAMBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", configPath, err)
		}
	}

	bindBridgeEnv(v)
	bindAuditEnv(v)
	bindDatabaseEnv(v)
	bindJWTEnv(v)

	var cfg Config
	cfg.Bridge = BridgeConfig{
		ChildPath:          v.GetString("bridge.child_path"),
		DefaultConv:        v.GetBool("bridge.default_conv"),
		LogLevel:           v.GetString("bridge.log_level"),
		WasmCacheDir:       v.GetString("bridge.wasm_cache_dir"),
		SyslogFacility:     v.GetString("bridge.syslog_facility"),
		AuditSocket:        v.GetString("bridge.audit_socket"),
		AuditSocketTimeout: v.GetDuration("bridge.audit_socket_timeout"),
	}
	cfg.Audit = AuditConfig{
		Host: v.GetString("audit.host"),
		Port: v.GetInt("audit.port"),
	}
	cfg.Database = DatabaseConfig{
		Host:    v.GetString("database.host"),
		Port:    v.GetInt("database.port"),
		User:    v.GetString("database.user"),
		Pass:    v.GetString("database.password"),
		Name:    v.GetString("database.name"),
		SSLMode: v.GetString("database.ssl_mode"),
	}
	cfg.JWT = JWTConfig{
		SecretKey:       v.GetString("jwt.secret_key"),
		Expiry:          v.GetDuration("jwt.expiry"),
		AdminSecretHash: v.GetString("jwt.admin_secret_hash"),
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bridge.child_path", "")
	v.SetDefault("bridge.default_conv", true)
	v.SetDefault("bridge.log_level", "info")
	v.SetDefault("bridge.wasm_cache_dir", "/var/cache/pam-policy-bridge/wasm")
	v.SetDefault("bridge.syslog_facility", "auth")
	v.SetDefault("bridge.audit_socket", "")
	v.SetDefault("bridge.audit_socket_timeout", "50ms")

	v.SetDefault("audit.host", "0.0.0.0")
	v.SetDefault("audit.port", 7601)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "pambridge_audit")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("jwt.secret_key", "change-me-please-at-least-32-bytes")
	v.SetDefault("jwt.expiry", "15m")
	v.SetDefault("jwt.admin_secret_hash", "")
}

// Validate checks the audit service's own settings (DSN shape, JWT
// signing material) are well-formed before cmd/pambridgeauditd or
// cmd/migrate attempt to use them. The HTTP listen address (Audit) is not
// validated. The bridge's
// own settings (BridgeConfig) are not validated here: an invalid bridge
// setting degrades gracefully to the compiled-in default (spec.md's
// parent-never-hard-fails invariant), whereas the auditd is free to
// refuse to start.
func (c *Config) Validate() error {
	v := bindValidator()
	if err := v.Struct(c.Database); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}
	if err := v.Struct(c.JWT); err != nil {
		return fmt.Errorf("invalid jwt config: %w", err)
	}
	return nil
}

// bindBridgeEnv registers the bridge.* env vars (PAMBRIDGE_BRIDGE_*, plus
// the shorter PAMBRIDGE_CHILD_PATH and PAMBRIDGE_AUDIT_SOCKET) viper's dotted
// keys don't auto-bind without AutomaticEnv having seen the key read
// once; called defensively before the first Get of each key.
func bindBridgeEnv(v *viper.Viper) {
	_ = v.BindEnv("bridge.child_path", "PAMBRIDGE_CHILD_PATH")
	_ = v.BindEnv("bridge.default_conv", "PAMBRIDGE_BRIDGE_DEFAULT_CONV")
	_ = v.BindEnv("bridge.log_level", "PAMBRIDGE_BRIDGE_LOG_LEVEL")
	_ = v.BindEnv("bridge.wasm_cache_dir", "PAMBRIDGE_BRIDGE_WASM_CACHE_DIR")
	_ = v.BindEnv("bridge.syslog_facility", "PAMBRIDGE_BRIDGE_SYSLOG_FACILITY")
	_ = v.BindEnv("bridge.audit_socket", "PAMBRIDGE_AUDIT_SOCKET")
	_ = v.BindEnv("bridge.audit_socket_timeout", "PAMBRIDGE_BRIDGE_AUDIT_SOCKET_TIMEOUT")
}

func bindAuditEnv(v *viper.Viper) {
	_ = v.BindEnv("audit.host", "PAMBRIDGE_AUDIT_HOST")
	_ = v.BindEnv("audit.port", "PAMBRIDGE_AUDIT_PORT")
}

func bindDatabaseEnv(v *viper.Viper) {
	_ = v.BindEnv("database.host", "PAMBRIDGE_DB_HOST")
	_ = v.BindEnv("database.port", "PAMBRIDGE_DB_PORT")
	_ = v.BindEnv("database.user", "PAMBRIDGE_DB_USER")
	_ = v.BindEnv("database.password", "PAMBRIDGE_DB_PASSWORD")
	_ = v.BindEnv("database.name", "PAMBRIDGE_DB_NAME")
	_ = v.BindEnv("database.ssl_mode", "PAMBRIDGE_DB_SSL_MODE")
}

func bindJWTEnv(v *viper.Viper) {
	_ = v.BindEnv("jwt.secret_key", "PAMBRIDGE_JWT_SECRET_KEY")
	_ = v.BindEnv("jwt.expiry", "PAMBRIDGE_JWT_EXPIRY")
	_ = v.BindEnv("jwt.admin_secret_hash", "PAMBRIDGE_JWT_ADMIN_SECRET_HASH")
}

// DSN builds the audit database's PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Pass, c.Database.Name, c.Database.SSLMode)
}

// Addr builds the auditd's HTTP bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Audit.Host, c.Audit.Port)
}
