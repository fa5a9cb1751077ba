package main

import (
	"errors"
	"flag"
	"os"
	"strings"
	"testing"

	"github.com/dnldd/orb/shared"
)

// validConfig returns a config that passes validation.
func validConfig() Config {
	return Config{
		Market:       "SBIN",
		Instrument:   "NSE_EQ|INE062A01020",
		AccessToken:  "token",
		Capital:      2500,
		Leverage:     5,
		ProfitTarget: 50,
		MaxLoss:      50,
		RangeCandles: 3,
		EntryCutoff:  "15:00",
		ForceExit:    "15:10",
		FillTimeout:  30,
		DBPath:       "orb.db",
		LogLevel:     "info",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr []string
	}{
		{
			name:    "valid config",
			modify:  func(cfg *Config) {},
			wantErr: nil,
		},
		{
			name: "paper trading from a redis stream without a token",
			modify: func(cfg *Config) {
				cfg.AccessToken = ""
				cfg.Paper = true
				cfg.RedisStream = "candles:5m"
				cfg.RedisAddr = "localhost:6379"
			},
			wantErr: nil,
		},
		{
			name:    "missing market and instrument",
			modify:  func(cfg *Config) { cfg.Market = ""; cfg.Instrument = "" },
			wantErr: []string{"market cannot be an empty string", "instrument cannot be an empty string"},
		},
		{
			name:    "missing access token",
			modify:  func(cfg *Config) { cfg.AccessToken = "" },
			wantErr: []string{"access token cannot be an empty string"},
		},
		{
			name: "non-positive risk parameters",
			modify: func(cfg *Config) {
				cfg.Capital = 0
				cfg.Leverage = 0
				cfg.ProfitTarget = -1
				cfg.MaxLoss = 0
			},
			wantErr: []string{
				"capital must be positive",
				"leverage must be positive",
				"profit target must be positive",
				"max loss must be positive",
			},
		},
		{
			name:    "max loss not below capital",
			modify:  func(cfg *Config) { cfg.MaxLoss = 2500 },
			wantErr: []string{"max loss must be less than capital"},
		},
		{
			name:    "cutoff not before force exit",
			modify:  func(cfg *Config) { cfg.EntryCutoff = "15:10" },
			wantErr: []string{"entry cutoff 15:10 must be before force exit 15:10"},
		},
		{
			name:   "single digit hour cutoff",
			modify: func(cfg *Config) { cfg.EntryCutoff = "9:30" },
		},
		{
			name:    "single digit hour force exit",
			modify:  func(cfg *Config) { cfg.ForceExit = "9:30" },
			wantErr: []string{"entry cutoff 15:00 must be before force exit 9:30"},
		},
		{
			name:    "unparseable session times",
			modify:  func(cfg *Config) { cfg.EntryCutoff = "three"; cfg.ForceExit = "15h10" },
			wantErr: []string{"invalid entry cutoff", "invalid force exit"},
		},
		{
			name:    "invalid range candles and fill timeout",
			modify:  func(cfg *Config) { cfg.RangeCandles = 0; cfg.FillTimeout = 0 },
			wantErr: []string{"range candles must be at least 1", "fill timeout must be positive"},
		},
		{
			name:    "missing database",
			modify:  func(cfg *Config) { cfg.DBPath = "" },
			wantErr: []string{"database path or endpoint required"},
		},
		{
			name:    "events channel without redis",
			modify:  func(cfg *Config) { cfg.EventsChannel = "orb:events" },
			wantErr: []string{"redis address required"},
		},
		{
			name:    "invalid log level",
			modify:  func(cfg *Config) { cfg.LogLevel = "loud" },
			wantErr: []string{"invalid log level"},
		},
		{
			name:    "login only needs app credentials",
			modify:  func(cfg *Config) { *cfg = Config{Login: true, APIKey: "key", APISecret: "secret", RedirectURI: "https://127.0.0.1/cb"} },
			wantErr: nil,
		},
		{
			name:    "login without app credentials",
			modify:  func(cfg *Config) { *cfg = Config{Login: true} },
			wantErr: []string{"api key cannot be an empty string", "api secret cannot be an empty string", "redirect uri cannot be an empty string"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
				return
			}

			if err == nil {
				t.Errorf("expected error(s) %v, got none", tt.wantErr)
				return
			}
			var cfgErr *shared.ConfigInvalidError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected a config invalid error, got %T", err)
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("expected error to contain %q, got %v", want, err)
				}
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	// Save and restore original os.Args and environment
	origArgs := os.Args
	origEnv := os.Environ()
	defer func() {
		os.Args = origArgs
		for _, kv := range origEnv {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				os.Setenv(parts[0], parts[1])
			}
		}
	}()

	tests := []struct {
		name        string
		env         map[string]string
		args        []string
		expectErr   bool
		expectInErr []string
		expectCfg   Config
	}{
		{
			name: "all from env with defaults",
			env: map[string]string{
				"market":      "SBIN",
				"instrument":  "NSE_EQ|INE062A01020",
				"accesstoken": "token",
			},
			args:      []string{"cmd"},
			expectErr: false,
			expectCfg: Config{
				Market:       "SBIN",
				AccessToken:  "token",
				Capital:      2500,
				Leverage:     5,
				MaxLoss:      50,
				RangeCandles: 3,
				ForceExit:    "15:10",
				FillTimeout:  30,
			},
		},
		{
			name: "flags override env",
			env: map[string]string{
				"market":      "SBIN",
				"instrument":  "NSE_EQ|INE062A01020",
				"accesstoken": "token",
				"capital":     "5000",
			},
			args:      []string{"cmd", "-market=INFY", "-capital=10000", "-paper", "-slippagebps=2.5", "-filltimeout=45"},
			expectErr: false,
			expectCfg: Config{
				Market:       "INFY",
				AccessToken:  "token",
				Capital:      10000,
				Leverage:     5,
				MaxLoss:      50,
				RangeCandles: 3,
				ForceExit:    "15:10",
				FillTimeout:  45,
				Paper:        true,
				SlippageBPS:  2.5,
			},
		},
		{
			name:        "missing market and token",
			env:         map[string]string{},
			args:        []string{"cmd"},
			expectErr:   true,
			expectInErr: []string{"market cannot be an empty string", "access token cannot be an empty string"},
		},
		{
			name: "invalid risk parameters from env",
			env: map[string]string{
				"market":      "SBIN",
				"instrument":  "NSE_EQ|INE062A01020",
				"accesstoken": "token",
				"maxloss":     "3000",
			},
			args:        []string{"cmd"},
			expectErr:   true,
			expectInErr: []string{"max loss must be less than capital"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flags for each test
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			// Set environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Set command-line arguments
			os.Args = tt.args

			var cfg Config
			err := loadConfig(&cfg, "") // don't load .env file

			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				for _, want := range tt.expectInErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("expected error to contain %q, got %v", want, err)
					}
				}
			} else {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				want := tt.expectCfg
				if cfg.Market != want.Market {
					t.Errorf("Market: got %v, want %v", cfg.Market, want.Market)
				}
				if cfg.AccessToken != want.AccessToken {
					t.Errorf("AccessToken: got %v, want %v", cfg.AccessToken, want.AccessToken)
				}
				if cfg.Capital != want.Capital || cfg.Leverage != want.Leverage || cfg.MaxLoss != want.MaxLoss {
					t.Errorf("risk: got %v/%v/%v, want %v/%v/%v", cfg.Capital, cfg.Leverage, cfg.MaxLoss,
						want.Capital, want.Leverage, want.MaxLoss)
				}
				if cfg.RangeCandles != want.RangeCandles || cfg.FillTimeout != want.FillTimeout {
					t.Errorf("RangeCandles/FillTimeout: got %v/%v, want %v/%v", cfg.RangeCandles,
						cfg.FillTimeout, want.RangeCandles, want.FillTimeout)
				}
				if cfg.ForceExit != want.ForceExit {
					t.Errorf("ForceExit: got %v, want %v", cfg.ForceExit, want.ForceExit)
				}
				if cfg.Paper != want.Paper || cfg.SlippageBPS != want.SlippageBPS {
					t.Errorf("Paper/SlippageBPS: got %v/%v, want %v/%v", cfg.Paper, cfg.SlippageBPS,
						want.Paper, want.SlippageBPS)
				}
			}

			// Clean up env
			for k := range tt.env {
				os.Unsetenv(k)
			}
		})
	}
}
