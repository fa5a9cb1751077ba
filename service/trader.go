package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dnldd/orb/database"
	"github.com/dnldd/orb/fetch"
	"github.com/dnldd/orb/gateway"
	"github.com/dnldd/orb/market"
	"github.com/dnldd/orb/metrics"
	"github.com/dnldd/orb/notify"
	"github.com/dnldd/orb/position"
	"github.com/dnldd/orb/risk"
	"github.com/dnldd/orb/schedule"
	"github.com/dnldd/orb/shared"
	"github.com/dnldd/orb/upstox"
	"github.com/go-co-op/gocron"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// summaryTimeout bounds waiting on the position manager for the daily summary.
	summaryTimeout = time.Second * 10
	// shutdownTimeout bounds the http server shutdown.
	shutdownTimeout = time.Second * 5
)

var (
	// ErrNotTradingDay is returned when the trader is started on a weekend or exchange holiday.
	ErrNotTradingDay = errors.New("not a trading day")
	// ErrSessionOver is returned when the trader is started after the daily summary.
	ErrSessionOver = errors.New("session is over")
)

// TraderConfig represents the configuration struct for the trader service.
type TraderConfig struct {
	// Market is the traded instrument name.
	Market string
	// Instrument is the broker instrument key.
	Instrument string
	// AccessToken is the broker's daily access token.
	AccessToken string
	// TradingCapital is the capital an entry is sized from.
	TradingCapital float64
	// Leverage is the intraday margin multiplier.
	Leverage float64
	// ProfitTarget is the realized profit that halts trading for the day.
	ProfitTarget float64
	// MaxLoss is the realized loss that halts trading for the day.
	MaxLoss float64
	// RangeCandles is the number of candles the opening range is built from.
	RangeCandles int
	// EntryCutoff is the session time entries stop, formatted as 15:04.
	EntryCutoff string
	// ForceExit is the session time open positions are closed, formatted as 15:04.
	ForceExit string
	// FillTimeout bounds how long an order may remain unconfirmed.
	FillTimeout time.Duration
	// Paper enables the simulated execution gateway.
	Paper bool
	// SlippageBPS is the paper gateway slippage in basis points.
	SlippageBPS float64
	// DBPath is the local trade journal file.
	DBPath string
	// DBEndpoint is the rqlite endpoint, used instead of the local journal when set.
	DBEndpoint string
	// DBUser is the rqlite user.
	DBUser string
	// DBPass is the rqlite user pass.
	DBPass string
	// RedisAddr is the redis address, optional.
	RedisAddr string
	// RedisStream is the redis stream 5-minute candles are read from instead of polling the
	// broker, optional.
	RedisStream string
	// EventsChannel is the redis channel events are published to, optional.
	EventsChannel string
	// HTTPAddr is the metrics and event stream listen address, optional.
	HTTPAddr string
	// Clock is the source of decision time, defaults to the system clock.
	Clock schedule.Clock
	// Fetcher overrides the broker candle fetcher.
	Fetcher shared.CandleFetcher
	// Gateway overrides the execution gateway.
	Gateway shared.ExecutionGateway
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sane inputs.
func (cfg *TraderConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.Instrument == "" {
		errs = errors.Join(errs, fmt.Errorf("instrument cannot be an empty string"))
	}
	brokerFeed := cfg.Fetcher == nil && cfg.RedisStream == ""
	brokerOrders := cfg.Gateway == nil && !cfg.Paper
	if cfg.AccessToken == "" && (brokerFeed || brokerOrders) {
		errs = errors.Join(errs, fmt.Errorf("access token cannot be an empty string"))
	}
	if cfg.DBPath == "" && cfg.DBEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database path or endpoint required"))
	}
	if cfg.RedisStream != "" && cfg.RedisAddr == "" {
		errs = errors.Join(errs, fmt.Errorf("redis address required to read candle stream"))
	}
	if cfg.EventsChannel != "" && cfg.RedisAddr == "" {
		errs = errors.Join(errs, fmt.Errorf("redis address required to publish events"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	return errs
}

// Trader represents the intraday opening range breakout trading service.
type Trader struct {
	cfg             *TraderConfig
	schedule        *schedule.Schedule
	store           shared.TradeStorer
	closeStore      func() error
	redis           *redis.Client
	jobScheduler    *gocron.Scheduler
	fetchManager    *fetch.Manager
	redisFeed       *fetch.RedisFeed
	positionManager *position.Manager
	notifier        *notify.Notifier
	hub             *notify.Hub
	metrics         *metrics.Metrics
	server          *http.Server
	logger          *zerolog.Logger
	wg              sync.WaitGroup
}

// NewTrader initializes a new trader service.
func NewTrader(ctx context.Context, cfg *TraderConfig) (*Trader, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "orb").Logger()

	if cfg.Clock == nil {
		cfg.Clock = schedule.SystemClock{}
	}

	now := cfg.Clock.Now()
	if !schedule.IsTradingDay(now) {
		return nil, fmt.Errorf("%s: %w", shared.DayKey(now), ErrNotTradingDay)
	}

	sched, err := schedule.NewSchedule(&schedule.ScheduleConfig{
		EntryCutoff: cfg.EntryCutoff,
		ForceExit:   cfg.ForceExit,
	}, now)
	if err != nil {
		return nil, &shared.ConfigInvalidError{Err: err}
	}
	if !now.Before(sched.Summary()) {
		return nil, fmt.Errorf("%s: %w", sched.Day(), ErrSessionOver)
	}

	t := &Trader{
		cfg:      cfg,
		schedule: sched,
		logger:   &logger,
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}

	err = t.setupStore(ctx)
	if err != nil {
		return nil, err
	}

	restored, err := t.store.FetchRiskState(ctx, sched.Day())
	if err != nil {
		return nil, fmt.Errorf("restoring risk state: %w", err)
	}

	guardLogger := logger.With().Str("component", "riskguard").Logger()
	guard, err := risk.NewGuard(&risk.GuardConfig{
		Day:          sched.Day(),
		ProfitTarget: cfg.ProfitTarget,
		MaxLoss:      cfg.MaxLoss,
		Logger:       &guardLogger,
	})
	if err != nil {
		return nil, &shared.ConfigInvalidError{Err: err}
	}
	if restored != nil {
		err = guard.Restore(restored)
		if err != nil {
			return nil, fmt.Errorf("restoring risk state: %w", err)
		}
		logger.Info().Msgf("restored %s risk state: realized %.2f, trades %d, halted %v",
			restored.Day, restored.RealizedPNL, restored.Trades, restored.Halted)
	}

	marketLogger := logger.With().Str("component", "market").Logger()
	tracker, err := market.NewMarket(&market.MarketConfig{
		Market:       cfg.Market,
		RangeCandles: cfg.RangeCandles,
		SessionOpen:  sched.Open(),
		Logger:       &marketLogger,
	})
	if err != nil {
		return nil, &shared.ConfigInvalidError{Err: err}
	}

	if cfg.RedisAddr != "" {
		t.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	err = t.setupNotifier()
	if err != nil {
		return nil, err
	}

	client, err := t.setupGateway()
	if err != nil {
		return nil, err
	}

	positionLogger := logger.With().Str("component", "positionmanager").Logger()
	t.positionManager, err = position.NewManager(&position.ManagerConfig{
		Market:           cfg.Market,
		TradingCapital:   cfg.TradingCapital,
		Leverage:         cfg.Leverage,
		FillTimeout:      cfg.FillTimeout,
		Schedule:         sched,
		Clock:            cfg.Clock,
		Tracker:          tracker,
		Guard:            guard,
		Gateway:          cfg.Gateway,
		Notify:           t.notifier.Notify,
		PersistTrade:     t.store.PersistTrade,
		PersistRiskState: t.store.PersistRiskState,
		Metrics:          t.metrics,
		Logger:           &positionLogger,
	})
	if err != nil {
		return nil, &shared.ConfigInvalidError{Err: err}
	}

	t.jobScheduler = schedule.NewJobScheduler()

	err = t.setupFeed(client)
	if err != nil {
		return nil, err
	}

	err = schedule.ScheduleAt(t.jobScheduler, sched.Config().ForceExit, t.positionManager.SendDeadline)
	if err != nil {
		return nil, err
	}
	err = schedule.ScheduleAt(t.jobScheduler, sched.Config().Summary, func() {
		t.Summarize(context.Background())
	})
	if err != nil {
		return nil, err
	}

	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", t.metrics.Handler())
		mux.Handle("/events", t.hub)
		t.server = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 5,
		}
	}

	return t, nil
}

// setupStore opens the trade journal.
func (t *Trader) setupStore(ctx context.Context) error {
	dbLogger := t.logger.With().Str("component", "database").Logger()

	switch {
	case t.cfg.DBEndpoint != "":
		db, err := database.NewRQLite(ctx, &database.RQLiteConfig{
			Endpoint: t.cfg.DBEndpoint,
			User:     t.cfg.DBUser,
			Pass:     t.cfg.DBPass,
			Logger:   &dbLogger,
		})
		if err != nil {
			return fmt.Errorf("creating rqlite store: %w", err)
		}
		t.store = db
		t.closeStore = func() error { return nil }

	default:
		db, err := database.NewSQLite(ctx, &database.SQLiteConfig{
			Path:   t.cfg.DBPath,
			Logger: &dbLogger,
		})
		if err != nil {
			return fmt.Errorf("creating sqlite store: %w", err)
		}
		t.store = db
		t.closeStore = db.Close
	}

	return nil
}

// setupNotifier builds the event sinks and the notifier delivering to them.
func (t *Trader) setupNotifier() error {
	eventLogger := t.logger.With().Str("component", "events").Logger()
	t.hub = notify.NewHub(&eventLogger)

	sinks := []notify.Sink{notify.NewLogSink(&eventLogger), t.hub}
	if t.cfg.EventsChannel != "" {
		publisher, err := notify.NewRedisPublisher(t.redis, t.cfg.EventsChannel)
		if err != nil {
			return fmt.Errorf("creating redis publisher: %w", err)
		}
		sinks = append(sinks, publisher)
	}

	notifierLogger := t.logger.With().Str("component", "notifier").Logger()
	notifier, err := notify.NewNotifier(&notify.NotifierConfig{
		Sinks:   sinks,
		Metrics: t.metrics,
		Logger:  &notifierLogger,
	})
	if err != nil {
		return fmt.Errorf("creating notifier: %w", err)
	}
	t.notifier = notifier

	return nil
}

// setupGateway resolves the execution gateway. The broker client is returned when one was
// created so the feed can share it.
func (t *Trader) setupGateway() (*upstox.Client, error) {
	var client *upstox.Client
	if t.cfg.AccessToken != "" {
		clientLogger := t.logger.With().Str("component", "upstox").Logger()
		var err error
		client, err = upstox.NewClient(&upstox.ClientConfig{
			Instrument:  t.cfg.Instrument,
			AccessToken: t.cfg.AccessToken,
			Logger:      &clientLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating upstox client: %w", err)
		}
	}

	switch {
	case t.cfg.Gateway != nil:
	case t.cfg.Paper:
		paperLogger := t.logger.With().Str("component", "paper").Logger()
		paper, err := gateway.NewPaper(&gateway.PaperConfig{
			SlippageBPS: t.cfg.SlippageBPS,
			Clock:       t.cfg.Clock,
			Logger:      &paperLogger,
		})
		if err != nil {
			return nil, &shared.ConfigInvalidError{Err: err}
		}
		t.cfg.Gateway = paper
	case client != nil:
		t.cfg.Gateway = client
	default:
		return nil, fmt.Errorf("no execution gateway available")
	}

	return client, nil
}

// setupFeed builds the candle feed, a redis stream when configured and otherwise broker
// polling.
func (t *Trader) setupFeed(client *upstox.Client) error {
	feedLogger := t.logger.With().Str("component", "feed").Logger()

	if t.cfg.RedisStream != "" {
		feed, err := fetch.NewRedisFeed(&fetch.RedisFeedConfig{
			Client:     t.redis,
			Stream:     t.cfg.RedisStream,
			Market:     t.cfg.Market,
			SendCandle: t.positionManager.SendCandle,
			Logger:     &feedLogger,
		})
		if err != nil {
			return fmt.Errorf("creating redis feed: %w", err)
		}
		t.redisFeed = feed
		return nil
	}

	fetcher := t.cfg.Fetcher
	if fetcher == nil {
		if client == nil {
			return fmt.Errorf("no candle fetcher available")
		}
		fetcher = client
	}

	fetchMgr, err := fetch.NewManager(&fetch.ManagerConfig{
		Market:       t.cfg.Market,
		Instrument:   t.cfg.Instrument,
		Fetcher:      fetcher,
		Schedule:     t.schedule,
		Clock:        t.cfg.Clock,
		JobScheduler: t.jobScheduler,
		SendCandle:   t.positionManager.SendCandle,
		Logger:       &feedLogger,
	})
	if err != nil {
		return fmt.Errorf("creating fetch manager: %w", err)
	}
	t.fetchManager = fetchMgr

	return nil
}

// Summarize emits the daily summary and shuts the trader down.
func (t *Trader) Summarize(ctx context.Context) {
	defer t.cfg.Cancel()

	resp := make(chan shared.DailyRiskState, 1)
	t.positionManager.SendSummaryRequest(position.SummaryRequest{Response: resp})

	var state shared.DailyRiskState
	select {
	case state = <-resp:
	case <-time.After(summaryTimeout):
		t.logger.Error().Msg("timed out waiting on daily risk state")
		return
	}

	trades, err := t.store.FetchTrades(ctx, t.schedule.Open())
	if err != nil {
		t.logger.Error().Msgf("fetching trades for summary: %v", err)
	}

	msg := fmt.Sprintf("%s: realized %.2f over %d trade(s)", state.Day, state.RealizedPNL, state.Trades)
	if state.Halted {
		msg += fmt.Sprintf(", halted (%s)", state.HaltReason)
	}
	for _, trade := range trades {
		msg += fmt.Sprintf("; %s %d @ %.2f -> %.2f (%s) %.2f", trade.Market, trade.Quantity,
			trade.EntryPrice, trade.ExitPrice, trade.ExitReason, trade.PNL)
	}

	event := shared.NewEvent(shared.EventSummary, t.cfg.Market, t.cfg.Clock.Now(), "%s", msg)
	event.PNL = state.RealizedPNL
	t.notifier.Notify(event)
}

// Run handles the lifecycle processes of the trader service.
func (t *Trader) Run(ctx context.Context) {
	t.logger.Info().Msgf("trading %s on %s (cutoff %s, force exit %s)", t.cfg.Market,
		t.schedule.Day(), t.schedule.Config().EntryCutoff, t.schedule.Config().ForceExit)

	t.wg.Add(3)

	go func() {
		t.positionManager.Run(ctx)
		t.wg.Done()
	}()

	go func() {
		t.notifier.Run(ctx)
		t.wg.Done()
	}()

	go func() {
		switch {
		case t.redisFeed != nil:
			t.redisFeed.Run(ctx)
		default:
			t.fetchManager.Run(ctx)
		}
		t.wg.Done()
	}()

	if t.fetchManager != nil {
		// Catch up on candles closed before startup.
		t.fetchManager.SendPoll()
	}

	if t.server != nil {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			err := t.server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				t.logger.Error().Msgf("serving http: %v", err)
			}
		}()
	}

	t.jobScheduler.StartAsync()

	<-ctx.Done()

	t.jobScheduler.Stop()
	if t.server != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := t.server.Shutdown(sctx)
		cancel()
		if err != nil {
			t.logger.Error().Msgf("shutting down http server: %v", err)
		}
	}

	t.wg.Wait()

	t.hub.Close()
	if t.redis != nil {
		t.redis.Close()
	}
	err := t.closeStore()
	if err != nil {
		t.logger.Error().Msgf("closing store: %v", err)
	}
}
