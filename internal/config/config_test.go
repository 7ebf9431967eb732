package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, values map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t, nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, EnvDevelopment, cfg.Server.Environment)
	assert.False(t, cfg.Production())
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes())
	assert.Equal(t, "Uploads", cfg.Storage.UploadsDir)
	assert.Equal(t, "FilteredOutput", cfg.Storage.OutputDir)
	assert.Equal(t, "vectorizer.json", cfg.Model.VectorizerPath)
	assert.Equal(t, "model.json", cfg.Model.ClassifierPath)
	assert.Equal(t, "nan", cfg.Pipeline.MissingText)
	assert.False(t, cfg.Sheets.Enabled)
	assert.False(t, cfg.Server.SelfSignedTLS)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local/share/sieve/sieve.db"), cfg.Database.Path)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		values  map[string]any
		wantErr error
		name    string
	}{
		{name: "port out of range", values: map[string]any{"server.port": 70000}, wantErr: common.ErrInvalidConfig},
		{name: "unknown environment", values: map[string]any{"server.environment": "staging"}, wantErr: common.ErrInvalidConfig},
		{name: "production without domains", values: map[string]any{"server.environment": "production"}, wantErr: common.ErrMissingConfig},
		{name: "zero upload limit", values: map[string]any{"server.max_upload_mb": 0}, wantErr: common.ErrInvalidConfig},
		{name: "blank output dir", values: map[string]any{"storage.output_dir": ""}, wantErr: common.ErrMissingConfig},
		{name: "blank classifier path", values: map[string]any{"model.classifier_path": ""}, wantErr: common.ErrMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.values))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_Production(t *testing.T) {
	cfg, err := Load(newViper(t, map[string]any{
		"server.environment": " Production ",
		"server.domains":     []string{"sieve.example.com"},
	}))
	require.NoError(t, err)
	assert.True(t, cfg.Production())
	assert.Equal(t, []string{"sieve.example.com"}, cfg.Server.Domains)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("SIEVE_TEST_DIR", "/data")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/models/model.json", filepath.Join(home, "models/model.json")},
		{"$SIEVE_TEST_DIR/Uploads", "/data/Uploads"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPath(tt.in), "input %q", tt.in)
	}
}

func TestLoadSheetsConfig(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "Env Name")

	_, err := LoadSheetsConfig(viper.New())
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	v := viper.New()
	v.Set("sheets.service_account_path", "/keys/sa.json")
	v.Set("sheets.spreadsheet_id", "abc")
	v.Set("sheets.batch_size", 50)
	cfg, err := LoadSheetsConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
	assert.Equal(t, "abc", cfg.SpreadsheetID)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, "Env Name", cfg.SpreadsheetName, "env fills unset viper keys")

	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "id")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "token")
	cfg, err = LoadSheetsConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.ClientID)
}
