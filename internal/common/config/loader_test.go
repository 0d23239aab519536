package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimal = `
camunda:
  broker_address: zeebe:26500
database:
  postgres:
    host: db
    database: portal
    user: portal
  redis:
    address: redis:6379
`

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimal+`
workers:
  expire-offers:
    enabled: true
    timeout: 60000
`))
	require.NoError(t, err)

	assert.Equal(t, "financing-portal", cfg.App.Name)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "log", cfg.Portal.EmailProvider)
	assert.Equal(t, "portal-transitions", cfg.Portal.AuditIndex)
	assert.Equal(t, 4, cfg.Portal.NotifyConcurrency)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)

	eo := GetWorkerConfig(cfg, "expire-offers")
	assert.Equal(t, 60000, eo.Timeout)
	assert.Equal(t, 5, eo.MaxJobsActive)
	assert.Equal(t, 3, eo.MaxRetries)

	assert.True(t, IsWorkerEnabled(cfg, "offer-action"))
}

func TestLoadFromFileExpandsEnv(t *testing.T) {
	t.Setenv("PORTAL_TEST_BASE_URL", "https://portaali.example.fi")
	cfg, err := LoadFromFile(writeConfig(t, minimal+`
portal:
  base_url: ${PORTAL_TEST_BASE_URL}
`))
	require.NoError(t, err)
	assert.Equal(t, "https://portaali.example.fi", cfg.Portal.BaseURL)
}

func TestLoadFromFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"unknown provider", "portal:\n  email_provider: pigeon\n", "email_provider"},
		{"ses without region", "portal:\n  email_provider: ses\n", "integrations.aws.region"},
		{"smtp without host", "portal:\n  email_provider: smtp\n", "integrations.smtp.host"},
		{"sns without topic", "integrations:\n  aws:\n    sns:\n      enabled: true\n", "topic_arn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PORTAL_EVENTS_TOPIC_ARN", "")
			_, err := LoadFromFile(writeConfig(t, minimal+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "portal", Password: "pw", Database: "portal", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=portal password=pw dbname=portal sslmode=disable", p.GetDSN())
}
