package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "info", cfg.Bridge.LogLevel)
	require.True(t, cfg.Bridge.DefaultConv)
	require.Equal(t, "", cfg.Bridge.AuditSocket)
	require.Equal(t, 50*time.Millisecond, cfg.Bridge.AuditSocketTimeout)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "disable", cfg.Database.SSLMode)
	require.Equal(t, 15*time.Minute, cfg.JWT.Expiry)
	require.Equal(t, "", cfg.JWT.AdminSecretHash)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("PAMBRIDGE_CHILD_PATH", "/opt/custom/pambridgechild")
	t.Setenv("PAMBRIDGE_DB_HOST", "db.internal")
	t.Setenv("PAMBRIDGE_DB_PORT", "6543")
	t.Setenv("PAMBRIDGE_JWT_SECRET_KEY", "env-supplied-secret-key-32-bytes!!")
	t.Setenv("PAMBRIDGE_JWT_ADMIN_SECRET_HASH", "$2a$12$abcdefghijklmnopqrstuv")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "/opt/custom/pambridgechild", cfg.Bridge.ChildPath)
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, 6543, cfg.Database.Port)
	require.Equal(t, "env-supplied-secret-key-32-bytes!!", cfg.JWT.SecretKey)
	require.Equal(t, "$2a$12$abcdefghijklmnopqrstuv", cfg.JWT.AdminSecretHash)
}

func TestValidateRejectsShortJWTSecret(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.JWT.SecretKey = "too-short"
	cfg.JWT.AdminSecretHash = "$2a$12$abcdefghijklmnopqrstuv"

	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadSSLMode(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.JWT.AdminSecretHash = "$2a$12$abcdefghijklmnopqrstuv"
	cfg.Database.SSLMode = "maybe"

	require.Error(t, cfg.Validate())
}

func TestValidatePassesWithDefaultsPlusAdminHash(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.JWT.AdminSecretHash = "$2a$12$abcdefghijklmnopqrstuv"

	require.NoError(t, cfg.Validate())
}

func TestDSNAndAddrFormatting(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = 5432
	cfg.Database.User = "pambridge"
	cfg.Database.Pass = "secret"
	cfg.Database.Name = "pambridge_audit"
	cfg.Database.SSLMode = "require"

	require.Equal(t, "host=db.internal port=5432 user=pambridge password=secret dbname=pambridge_audit sslmode=require", cfg.DSN())

	cfg.Audit.Host = "0.0.0.0"
	cfg.Audit.Port = 7601
	require.Equal(t, "0.0.0.0:7601", cfg.Addr())
}
