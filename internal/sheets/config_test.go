package sheets

import (
	"testing"
	"time"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		sentinel error
		name     string
		errMsg   string
		config   Config
		wantErr  bool
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID:      "test-client",
				ClientSecret:  "test-secret",
				RefreshToken:  "test-token",
				BatchSize:     100,
				RetryAttempts: 3,
				RetryDelay:    time.Second,
			},
		},
		{
			name: "valid service account config",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      3,
				RetryDelay:         time.Second,
			},
		},
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:      "test-client",
				RefreshToken:  "test-token",
				BatchSize:     100,
				RetryAttempts: 3,
				RetryDelay:    time.Second,
			},
			wantErr:  true,
			sentinel: common.ErrMissingConfig,
			errMsg:   "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "test-secret",
				RefreshToken:       "test-token",
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
			wantErr:  true,
			sentinel: common.ErrInvalidConfig,
			errMsg:   "multiple authentication methods configured",
		},
		{
			name: "invalid batch size",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          0,
			},
			wantErr:  true,
			sentinel: common.ErrInvalidConfig,
			errMsg:   "batch size must be positive",
		},
		{
			name: "zero retry delay is valid",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
		},
		{
			name: "negative retry delay",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      3,
				RetryDelay:         -1 * time.Second,
			},
			wantErr:  true,
			sentinel: common.ErrInvalidConfig,
			errMsg:   "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "")

	config := DefaultConfig()
	assert.ErrorIs(t, config.LoadFromEnv(), common.ErrMissingConfig)

	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/keys/sa.json")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "sheet-123")
	config = DefaultConfig()
	assert.NoError(t, config.LoadFromEnv())
	assert.Equal(t, "/keys/sa.json", config.ServiceAccountPath)
	assert.Equal(t, "sheet-123", config.SpreadsheetID)
	assert.Equal(t, "Ledger Sieve Report", config.SpreadsheetName, "default name kept")
	assert.NoError(t, config.Validate())
}
