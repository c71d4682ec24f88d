package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeConfigFile(t, `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /tmp/chatsink-db
ingest:
  max_body_bytes: 5MB
security:
  api_keys:
    backend: ["bk1"]
    frontend: ["fk1", "fk2"]
fanout:
  nats:
    enabled: true
    url: nats://127.0.0.1:4222
    stream: CHATSINK
    subject_prefix: chatsink.events
backfill:
  enabled: true
  dir: ./payloads
  cron: "* * * * *"
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", cfg.Addr())
	require.Equal(t, "/tmp/chatsink-db", cfg.Server.DBPath)
	require.Equal(t, int64(5*1000*1000), cfg.Ingest.MaxBodyBytes.Int64())
	require.Equal(t, []string{"bk1"}, cfg.Security.APIKeys.Backend)
	require.True(t, cfg.Fanout.NATS.Enabled)
	require.Equal(t, "chatsink.events", cfg.Fanout.NATS.SubjectPrefix)
	require.True(t, cfg.Backfill.Enabled)
	require.Equal(t, "* * * * *", cfg.Backfill.Cron)
}

func TestSizeBytesPlainInteger(t *testing.T) {
	p := writeConfigFile(t, "ingest:\n  max_body_bytes: 1048576\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, int64(1048576), cfg.Ingest.MaxBodyBytes.Int64())
}

func TestAddrDefaults(t *testing.T) {
	var cfg Config
	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("CHATSINK_ADDR", "10.0.0.5:9999")
	t.Setenv("CHATSINK_DB_PATH", "/var/lib/chatsink")
	t.Setenv("CHATSINK_API_BACKEND_KEYS", "bk1, bk2")
	t.Setenv("CHATSINK_API_FRONTEND_KEYS", "fk1")
	t.Setenv("CHATSINK_NATS_URL", "nats://localhost:4222")
	t.Setenv("CHATSINK_BACKFILL_DIR", "/data/payloads")

	cfg, res := ParseConfigEnvs()
	require.True(t, res.EnvUsed)
	require.Equal(t, "10.0.0.5", cfg.Server.Address)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "/var/lib/chatsink", cfg.Server.DBPath)
	require.Contains(t, res.BackendKeys, "bk1")
	require.Contains(t, res.BackendKeys, "bk2")
	require.Contains(t, res.FrontendKeys, "fk1")
	require.True(t, cfg.Fanout.NATS.Enabled)
	require.True(t, cfg.Backfill.Enabled)
	require.Equal(t, "/data/payloads", cfg.Backfill.Dir)
}

func TestLoadEffectiveConfigPrecedence(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "127.0.0.1"
	fileCfg.Server.Port = 7000
	fileCfg.Server.DBPath = "/file/db"

	envCfg := &Config{}
	envCfg.Server.Address = "0.0.0.0"
	envCfg.Server.Port = 6000
	envCfg.Server.DBPath = "/env/db"

	// explicit addr flag wins over file and env
	flags := Flags{Addr: ":5000", DB: "./.database", Config: "./config.yaml", Set: map[string]bool{"addr": true}}
	res, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
	require.NoError(t, err)
	require.Equal(t, "flags", res.Source)
	require.Equal(t, ":5000", res.Addr)
	require.Equal(t, "/env/db", res.DBPath)

	// no flags, file present: file wins
	flags = Flags{Set: map[string]bool{}}
	res, err = LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
	require.NoError(t, err)
	require.Equal(t, "config", res.Source)
	require.Equal(t, "127.0.0.1:7000", res.Addr)
	require.Equal(t, "/file/db", res.DBPath)

	// no flags, no file: env
	res, err = LoadEffectiveConfig(flags, &Config{}, false, envCfg, EnvResult{})
	require.NoError(t, err)
	require.Equal(t, "env", res.Source)
	require.Equal(t, "/env/db", res.DBPath)

	// explicit --config with missing file is fatal
	flags = Flags{Config: "/nope.yaml", Set: map[string]bool{"config": true}}
	_, err = LoadEffectiveConfig(flags, &Config{}, false, envCfg, EnvResult{})
	require.Error(t, err)
}

func TestRuntimeKeys(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		BackendKeys:  map[string]struct{}{"bk": {}},
		FrontendKeys: map[string]struct{}{"fk": {}},
	})
	t.Cleanup(func() { SetRuntime(nil) })

	require.Contains(t, GetBackendKeys(), "bk")
	require.Contains(t, GetFrontendKeys(), "fk")
}
