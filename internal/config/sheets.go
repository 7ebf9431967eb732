package config

import (
	"os"

	"github.com/Veraticus/ledger-sieve/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads Google Sheets configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or SIEVE_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	if s := v.GetString("sheets.service_account_path"); s != "" {
		config.ServiceAccountPath = ExpandPath(s)
	}
	if s := v.GetString("sheets.client_id"); s != "" {
		config.ClientID = s
	}
	if s := v.GetString("sheets.client_secret"); s != "" {
		config.ClientSecret = s
	}
	if s := v.GetString("sheets.refresh_token"); s != "" {
		config.RefreshToken = s
	}
	if s := v.GetString("sheets.spreadsheet_id"); s != "" {
		config.SpreadsheetID = s
	}
	if s := v.GetString("sheets.spreadsheet_name"); s != "" {
		config.SpreadsheetName = s
	}
	if s := v.GetString("sheets.sheet_title"); s != "" {
		config.SheetTitle = s
	}
	if n := v.GetInt("sheets.batch_size"); n > 0 {
		config.BatchSize = n
	}

	// Fall back to direct environment variables for anything still unset.
	if config.ServiceAccountPath == "" {
		if s := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); s != "" {
			config.ServiceAccountPath = ExpandPath(s)
		}
	}
	if config.ClientID == "" {
		config.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if config.RefreshToken == "" {
		config.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if config.SpreadsheetID == "" {
		config.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}
	if !v.IsSet("sheets.spreadsheet_name") {
		if s := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"); s != "" {
			config.SpreadsheetName = s
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
