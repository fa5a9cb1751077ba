package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config is the configuration struct for the service.
type Config struct {
	// Market is the traded instrument name.
	Market string
	// Instrument is the broker instrument key.
	Instrument string
	// AccessToken is the broker's daily access token.
	AccessToken string
	// APIKey is the broker developer app key.
	APIKey string
	// APISecret is the broker developer app secret.
	APISecret string
	// RedirectURI is the broker developer app redirect uri.
	RedirectURI string
	// TOTPSecret is the broker login totp secret.
	TOTPSecret string
	// Login runs the operator login helper instead of trading.
	Login bool
	// Capital is the trading capital entries are sized from.
	Capital float64
	// Leverage is the intraday margin multiplier.
	Leverage float64
	// ProfitTarget is the realized daily profit that halts trading.
	ProfitTarget float64
	// MaxLoss is the realized daily loss that halts trading.
	MaxLoss float64
	// RangeCandles is the number of candles the opening range is built from.
	RangeCandles int
	// EntryCutoff is the session time entries stop.
	EntryCutoff string
	// ForceExit is the session time open positions are closed.
	ForceExit string
	// FillTimeout is the order confirmation timeout in seconds.
	FillTimeout int
	// Paper enables the simulated execution gateway.
	Paper bool
	// SlippageBPS is the paper gateway slippage in basis points.
	SlippageBPS float64
	// DBPath is the local trade journal file.
	DBPath string
	// DBEndpoint is the rqlite endpoint.
	DBEndpoint string
	// DBUser is the rqlite user.
	DBUser string
	// DBPass is the rqlite user pass.
	DBPass string
	// RedisAddr is the redis address.
	RedisAddr string
	// RedisStream is the redis stream candles are read from.
	RedisStream string
	// EventsChannel is the redis channel events are published to.
	EventsChannel string
	// HTTPAddr is the metrics and event stream listen address.
	HTTPAddr string
	// LogLevel is the minimum log level.
	LogLevel string

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.Login {
		if cfg.APIKey == "" {
			errs = errors.Join(errs, fmt.Errorf("api key cannot be an empty string"))
		}
		if cfg.APISecret == "" {
			errs = errors.Join(errs, fmt.Errorf("api secret cannot be an empty string"))
		}
		if cfg.RedirectURI == "" {
			errs = errors.Join(errs, fmt.Errorf("redirect uri cannot be an empty string"))
		}
		if errs != nil {
			return &shared.ConfigInvalidError{Err: errs}
		}
		return nil
	}

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.Instrument == "" {
		errs = errors.Join(errs, fmt.Errorf("instrument cannot be an empty string"))
	}
	if cfg.AccessToken == "" && !(cfg.Paper && cfg.RedisStream != "") {
		errs = errors.Join(errs, fmt.Errorf("access token cannot be an empty string"))
	}
	if cfg.Capital <= 0 {
		errs = errors.Join(errs, fmt.Errorf("capital must be positive"))
	}
	if cfg.Leverage <= 0 {
		errs = errors.Join(errs, fmt.Errorf("leverage must be positive"))
	}
	if cfg.ProfitTarget <= 0 {
		errs = errors.Join(errs, fmt.Errorf("profit target must be positive"))
	}
	if cfg.MaxLoss <= 0 {
		errs = errors.Join(errs, fmt.Errorf("max loss must be positive"))
	}
	if cfg.MaxLoss >= cfg.Capital {
		errs = errors.Join(errs, fmt.Errorf("max loss must be less than capital"))
	}
	if cfg.RangeCandles < 1 {
		errs = errors.Join(errs, fmt.Errorf("range candles must be at least 1"))
	}
	cutoff, cutoffErr := shared.TimeOfDay(time.Time{}, cfg.EntryCutoff)
	if cutoffErr != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid entry cutoff: %w", cutoffErr))
	}
	forceExit, forceExitErr := shared.TimeOfDay(time.Time{}, cfg.ForceExit)
	if forceExitErr != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid force exit: %w", forceExitErr))
	}
	if cutoffErr == nil && forceExitErr == nil && !cutoff.Before(forceExit) {
		errs = errors.Join(errs, fmt.Errorf("entry cutoff %s must be before force exit %s",
			cfg.EntryCutoff, cfg.ForceExit))
	}
	if cfg.FillTimeout <= 0 {
		errs = errors.Join(errs, fmt.Errorf("fill timeout must be positive"))
	}
	if cfg.SlippageBPS < 0 {
		errs = errors.Join(errs, fmt.Errorf("slippage cannot be negative"))
	}
	if cfg.DBPath == "" && cfg.DBEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database path or endpoint required"))
	}
	if (cfg.RedisStream != "" || cfg.EventsChannel != "") && cfg.RedisAddr == "" {
		errs = errors.Join(errs, fmt.Errorf("redis address required for redis stream or events channel"))
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid log level %q", cfg.LogLevel))
	}

	if errs != nil {
		return &shared.ConfigInvalidError{Err: errs}
	}

	return nil
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
// The environment variable of the same name takes precedence over the provided fallback default.
func (cfg *Config) registerFlag(name string, value interface{}, fallback string, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	if defValue == "" {
		defValue = fallback
	}
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Float64:
		var def float64
		if defValue != "" {
			def, _ = strconv.ParseFloat(defValue, 64)
		}
		flag.Float64Var(value.(*float64), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	flags := []struct {
		name     string
		value    interface{}
		fallback string
		usage    string
	}{
		{"market", &cfg.Market, "", "the traded instrument name"},
		{"instrument", &cfg.Instrument, "", "the broker instrument key"},
		{"accesstoken", &cfg.AccessToken, "", "the broker daily access token"},
		{"apikey", &cfg.APIKey, "", "the broker api key"},
		{"apisecret", &cfg.APISecret, "", "the broker api secret"},
		{"redirecturi", &cfg.RedirectURI, "", "the broker app redirect uri"},
		{"totpsecret", &cfg.TOTPSecret, "", "the broker login totp secret"},
		{"login", &cfg.Login, "false", "run the login helper and print an access token"},
		{"capital", &cfg.Capital, "2500", "the trading capital"},
		{"leverage", &cfg.Leverage, "5", "the intraday leverage"},
		{"profittarget", &cfg.ProfitTarget, "50", "the daily profit target"},
		{"maxloss", &cfg.MaxLoss, "50", "the daily max loss"},
		{"rangecandles", &cfg.RangeCandles, "3", "the opening range candle count"},
		{"entrycutoff", &cfg.EntryCutoff, "15:00", "the entry cutoff time"},
		{"forceexit", &cfg.ForceExit, "15:10", "the force exit time"},
		{"filltimeout", &cfg.FillTimeout, "30", "the fill timeout in seconds"},
		{"paper", &cfg.Paper, "false", "the paper trading flag"},
		{"slippagebps", &cfg.SlippageBPS, "0", "the paper slippage in basis points"},
		{"dbpath", &cfg.DBPath, "orb.db", "the trade journal path"},
		{"dbendpoint", &cfg.DBEndpoint, "", "the rqlite endpoint"},
		{"dbuser", &cfg.DBUser, "", "the rqlite user"},
		{"dbpass", &cfg.DBPass, "", "the rqlite pass"},
		{"redisaddr", &cfg.RedisAddr, "", "the redis address"},
		{"redisstream", &cfg.RedisStream, "", "the redis candle stream"},
		{"eventschannel", &cfg.EventsChannel, "", "the redis events channel"},
		{"httpaddr", &cfg.HTTPAddr, ":9090", "the metrics and events listen address"},
		{"loglevel", &cfg.LogLevel, "info", "the log level"},
	}
	for _, f := range flags {
		err = cfg.registerFlag(f.name, f.value, f.fallback, f.usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	return cfg.Validate()
}
