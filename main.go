package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dnldd/orb/schedule"
	"github.com/dnldd/orb/service"
	"github.com/dnldd/orb/upstox"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

// login walks the operator through the broker login and prints the day's access token.
func login(ctx context.Context, cfg *Config) error {
	client, err := upstox.NewClient(&upstox.ClientConfig{
		APIKey:      cfg.APIKey,
		APISecret:   cfg.APISecret,
		RedirectURI: cfg.RedirectURI,
		Logger:      &log.Logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Authorize the app at:\n\n  %s\n\n", client.AuthorizationURL())
	if cfg.TOTPSecret != "" {
		code, err := upstox.LoginCode(cfg.TOTPSecret, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("TOTP: %s\n\n", code)
	}

	fmt.Print("Paste the code from the redirect url: ")
	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}

	token, err := client.ExchangeCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return err
	}

	fmt.Printf("\naccesstoken=%s\n", token)

	return nil
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Msgf("loading config: %v", err)
		os.Exit(1)
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Login {
		err := login(ctx, &cfg)
		if err != nil {
			log.Error().Msgf("logging in: %v", err)
			os.Exit(1)
		}
		return
	}

	traderCfg := service.TraderConfig{
		Market:         cfg.Market,
		Instrument:     cfg.Instrument,
		AccessToken:    cfg.AccessToken,
		TradingCapital: cfg.Capital,
		Leverage:       cfg.Leverage,
		ProfitTarget:   cfg.ProfitTarget,
		MaxLoss:        cfg.MaxLoss,
		RangeCandles:   cfg.RangeCandles,
		EntryCutoff:    cfg.EntryCutoff,
		ForceExit:      cfg.ForceExit,
		FillTimeout:    time.Second * time.Duration(cfg.FillTimeout),
		Paper:          cfg.Paper,
		SlippageBPS:    cfg.SlippageBPS,
		DBPath:         cfg.DBPath,
		DBEndpoint:     cfg.DBEndpoint,
		DBUser:         cfg.DBUser,
		DBPass:         cfg.DBPass,
		RedisAddr:      cfg.RedisAddr,
		RedisStream:    cfg.RedisStream,
		EventsChannel:  cfg.EventsChannel,
		HTTPAddr:       cfg.HTTPAddr,
		Clock:          schedule.SystemClock{},
		Cancel:         cancel,
	}
	trader, err := service.NewTrader(ctx, &traderCfg)
	if err != nil {
		if errors.Is(err, service.ErrNotTradingDay) || errors.Is(err, service.ErrSessionOver) {
			log.Info().Msgf("nothing to trade: %v", err)
			return
		}
		log.Error().Msgf("creating trader service: %v", err)
		os.Exit(1)
	}

	go handleTermination(ctx, cancel)
	trader.Run(ctx)
}
