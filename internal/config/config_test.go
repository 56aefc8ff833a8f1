package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("WATCH_INTERVAL_SEC", "5")
	t.Setenv("APP_BASE_URL", "https://docs.example.org/")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, "sqlite", cfg.Sharing.StoreDriver)
	assert.Equal(t, 5, cfg.Sharing.WatchIntervalSec)
	assert.Equal(t, 8, cfg.Sharing.PasswordLength)
	assert.Equal(t, "https://docs.example.org", cfg.BaseURL)
	assert.False(t, cfg.MinIO.Enabled())
}

func TestLoad_BaseURLFromHost(t *testing.T) {
	t.Setenv("APP_HOST", "signatures.local:9000")
	t.Setenv("APP_BASE_URL", "")

	cfg := Load()

	assert.Equal(t, "http://signatures.local:9000", cfg.BaseURL)
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestLoadPolicy(t *testing.T) {
	t.Run("empty path yields default", func(t *testing.T) {
		p, err := LoadPolicy("")
		require.NoError(t, err)
		assert.Equal(t, []string{"certificat-naissance"}, p.ShareableTypes)
		require.Len(t, p.Roles, 2)
		assert.Equal(t, "mother", p.Roles[0].Name)
		assert.Equal(t, "father", p.Roles[1].Name)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		content := `
shareable_types:
  - certificat-naissance
  - arret-travail
roles:
  - name: patient
    label: Patient
  - name: doctor
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		p, err := LoadPolicy(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"certificat-naissance", "arret-travail"}, p.ShareableTypes)
		require.Len(t, p.Roles, 2)
		assert.Equal(t, "Patient", p.Roles[0].Label)
		assert.Equal(t, "doctor", p.Roles[1].Label)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "failed to read policy file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("roles: [name: x"), 0o600))

		_, err := LoadPolicy(path)
		assert.ErrorContains(t, err, "failed to parse policy file")
	})
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr string
	}{
		{
			name:    "no types",
			policy:  Policy{Roles: []RolePolicy{{Name: "mother"}}},
			wantErr: "shareable type",
		},
		{
			name:    "no roles",
			policy:  Policy{ShareableTypes: []string{"arret-travail"}},
			wantErr: "at least one role",
		},
		{
			name: "unnamed role",
			policy: Policy{
				ShareableTypes: []string{"arret-travail"},
				Roles:          []RolePolicy{{Label: "Mère"}},
			},
			wantErr: "has no name",
		},
		{
			name: "duplicate role",
			policy: Policy{
				ShareableTypes: []string{"arret-travail"},
				Roles:          []RolePolicy{{Name: "mother"}, {Name: "mother"}},
			},
			wantErr: "duplicate role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
