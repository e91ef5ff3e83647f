package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.Search.Engine)
	assert.Equal(t, []string{"name", "description", "url"}, cfg.Catalog.Required)
	assert.Empty(t, cfg.Catalog.Fields)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolbox.yaml")
	data := `
server:
  port: 9000
  writeTimeout: 5s
catalog:
  fields: [tags, language, author]
storage:
  backend: file
  options:
    directory: /var/lib/toolbox
search:
  engine: bleve
  indexPath: /var/lib/toolbox/search
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"tags", "language", "author"}, cfg.Catalog.Fields)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/toolbox", cfg.Storage.Options["directory"])
	assert.Equal(t, "bleve", cfg.Search.Engine)
	// untouched sections keep their defaults
	assert.Equal(t, "toolbox", cfg.Postgres.Database)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOOLBOX_SERVER_PORT", "8181")
	t.Setenv("TOOLBOX_FIELDS", "tags  language")
	t.Setenv("TOOLBOX_STORAGE_BACKEND", "file")
	t.Setenv("TOOLBOX_STORAGE_DIRECTORY", "/tmp/projects")
	t.Setenv("TOOLBOX_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TOOLBOX_API_KEY_HASHES", "aa,bb")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, []string{"tags", "language"}, cfg.Catalog.Fields)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/projects", cfg.Storage.Options["directory"])
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"aa", "bb"}, cfg.Server.APIKeyHashes)
}

func TestValidateRejectsNegativeRateLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.RateLimit = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownSearchEngine(t *testing.T) {
	t.Setenv("TOOLBOX_SEARCH_ENGINE", "whoosh")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whoosh")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "toolbox", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=toolbox sslmode=disable", p.DSN())
	assert.Contains(t, p.DSNFor("postgres"), "dbname=postgres")
	assert.Equal(t, "db:5433", p.Server())
}
