package upstox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the upstox v2 api root.
	DefaultBaseURL = "https://api.upstox.com/v2"
	// defaultPollInterval is the default interval between order status checks.
	defaultPollInterval = time.Second * 2
	// requestTimeout bounds a single api request.
	requestTimeout = time.Second * 15
	// orderTimestampLayout is the layout of order timestamps.
	orderTimestampLayout = "2006-01-02 15:04:05"
	// orderTag tags orders placed by the trader.
	orderTag = "orb"
)

// Order statuses reported by the broker.
const (
	statusComplete  = "complete"
	statusRejected  = "rejected"
	statusCancelled = "cancelled"
)

// ClientConfig represents the configuration of the upstox client.
type ClientConfig struct {
	// BaseURL is the api root, defaults to DefaultBaseURL.
	BaseURL string
	// Instrument is the instrument key orders are placed for, defaults to the intent's market.
	Instrument string
	// AccessToken is the daily bearer token.
	AccessToken string
	// APIKey is the developer app key, only needed for logins.
	APIKey string
	// APISecret is the developer app secret, only needed for logins.
	APISecret string
	// RedirectURI is the developer app redirect uri, only needed for logins.
	RedirectURI string
	// PollInterval is the interval between order status checks.
	PollInterval time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ClientConfig) Validate() error {
	var errs error

	if cfg.AccessToken == "" && cfg.APIKey == "" {
		errs = errors.Join(errs, fmt.Errorf("access token or api key required"))
	}
	if cfg.PollInterval < 0 {
		errs = errors.Join(errs, fmt.Errorf("poll interval cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Client is the upstox v2 rest client. It fetches intraday candles and places, confirms and
// cancels intraday market orders.
type Client struct {
	cfg  *ClientConfig
	rest *resty.Client
}

// Ensure the client implements the candle fetcher and execution gateway interfaces.
var _ shared.CandleFetcher = (*Client)(nil)
var _ shared.ExecutionGateway = (*Client)(nil)

// NewClient initializes a new upstox client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Api-Version", "2.0")
	if cfg.AccessToken != "" {
		rest.SetAuthToken(cfg.AccessToken)
	}

	return &Client{cfg: cfg, rest: rest}, nil
}

// apiError extracts the broker's error message from a failed response.
func apiError(resp *resty.Response) error {
	msg := gjson.GetBytes(resp.Body(), "errors.0.message").String()
	if msg == "" {
		msg = resp.String()
	}

	return fmt.Errorf("status %d: %s", resp.StatusCode(), msg)
}

// ParseCandles parses intraday candles from the provided candle arrays. Each array holds
// timestamp, open, high, low, close, volume and open interest in that order.
func ParseCandles(data []gjson.Result) ([]shared.Candle, error) {
	candles := make([]shared.Candle, 0, len(data))

	for idx := range data {
		fields := data[idx].Array()
		if len(fields) < 6 {
			return nil, fmt.Errorf("candle %d has %d fields", idx, len(fields))
		}

		date, err := time.Parse(time.RFC3339, fields[0].String())
		if err != nil {
			return nil, fmt.Errorf("parsing candle date: %w", err)
		}

		candles = append(candles, shared.Candle{
			Open:   fields[1].Float(),
			High:   fields[2].Float(),
			Low:    fields[3].Float(),
			Close:  fields[4].Float(),
			Volume: fields[5].Float(),
			Date:   date.In(shared.IST),
		})
	}

	return candles, nil
}

// FetchIntradayCandles fetches the current session's 1-minute candles for the provided
// instrument key.
func (c *Client) FetchIntradayCandles(ctx context.Context, instrument string) ([]shared.Candle, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("instrument", instrument).
		Get("/historical-candle/intraday/{instrument}/1minute")
	if err != nil {
		return nil, fmt.Errorf("fetching intraday candles for %s: %w", instrument, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching intraday candles for %s: %w", instrument, apiError(resp))
	}

	candles, err := ParseCandles(gjson.GetBytes(resp.Body(), "data.candles").Array())
	if err != nil {
		return nil, fmt.Errorf("parsing intraday candles for %s: %w", instrument, err)
	}

	return candles, nil
}

// PlaceOrder places an intraday market order for the provided intent.
func (c *Client) PlaceOrder(ctx context.Context, intent *shared.OrderIntent) (string, error) {
	if intent.Quantity < 1 {
		return "", fmt.Errorf("order quantity must be at least 1, got %d", intent.Quantity)
	}

	instrument := c.cfg.Instrument
	if instrument == "" {
		instrument = intent.Market
	}

	payload := map[string]any{
		"quantity":           intent.Quantity,
		"product":            "I",
		"validity":           "DAY",
		"price":              0,
		"tag":                orderTag,
		"instrument_token":   instrument,
		"order_type":         "MARKET",
		"transaction_type":   intent.Side.String(),
		"disclosed_quantity": 0,
		"trigger_price":      0,
		"is_amo":             false,
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/order/place")
	if err != nil {
		return "", fmt.Errorf("placing %s order: %w", intent.Side, err)
	}
	if resp.IsError() {
		return "", &shared.OrderRejectedError{Side: intent.Side, Reason: apiError(resp).Error()}
	}

	orderID := gjson.GetBytes(resp.Body(), "data.order_id").String()
	if orderID == "" {
		return "", fmt.Errorf("no order id returned for %s order: %s", intent.Side, resp.String())
	}

	c.cfg.Logger.Info().Msgf("placed %s order %s for %d of %s (%s)", intent.Side, orderID,
		intent.Quantity, intent.Market, intent.Reason)

	return orderID, nil
}

// orderStatus fetches the details of the provided order.
func (c *Client) orderStatus(ctx context.Context, orderID string) (gjson.Result, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("order_id", orderID).
		Get("/order/details")
	if err != nil {
		return gjson.Result{}, fmt.Errorf("fetching order %s: %w", orderID, err)
	}
	if resp.IsError() {
		return gjson.Result{}, fmt.Errorf("fetching order %s: %w", orderID, apiError(resp))
	}

	return gjson.GetBytes(resp.Body(), "data"), nil
}

// AwaitFill polls the provided order until it completes, is rejected or the context is done.
func (c *Client) AwaitFill(ctx context.Context, orderID string, side shared.Side) (*shared.Fill, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		details, err := c.orderStatus(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.cfg.Logger.Error().Msgf("checking order status: %v", err)
			continue
		}

		switch details.Get("status").String() {
		case statusComplete:
			fill := &shared.Fill{
				OrderID:  orderID,
				Side:     side,
				Price:    details.Get("average_price").Float(),
				Quantity: details.Get("filled_quantity").Int(),
				Time:     time.Now().In(shared.IST),
			}
			if fill.Quantity == 0 {
				fill.Quantity = details.Get("quantity").Int()
			}

			stamp := details.Get("exchange_timestamp").String()
			if at, err := time.ParseInLocation(orderTimestampLayout, stamp, shared.IST); err == nil {
				fill.Time = at
			}

			return fill, nil

		case statusRejected, statusCancelled:
			return nil, &shared.OrderRejectedError{
				OrderID: orderID,
				Side:    side,
				Reason:  fmt.Sprintf("%s: %s", details.Get("status").String(), details.Get("status_message").String()),
			}
		}
	}
}

// CancelOrder cancels the provided open order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("order_id", orderID).
		Delete("/order/cancel")
	if err != nil {
		return fmt.Errorf("cancelling order %s: %w", orderID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("cancelling order %s: %w", orderID, apiError(resp))
	}

	return nil
}

// OpenQuantity returns the net intraday quantity held for the provided market, read from the
// broker's short-term positions.
func (c *Client) OpenQuantity(ctx context.Context, market string) (int64, error) {
	instrument := c.cfg.Instrument
	if instrument == "" {
		instrument = market
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		Get("/portfolio/short-term-positions")
	if err != nil {
		return 0, fmt.Errorf("fetching positions: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("fetching positions: %w", apiError(resp))
	}

	var qty int64
	for _, pos := range gjson.GetBytes(resp.Body(), "data").Array() {
		if pos.Get("instrument_token").String() != instrument {
			continue
		}
		qty += pos.Get("quantity").Int()
	}

	return qty, nil
}

// AuthorizationURL returns the login page url an operator authorizes the app at.
func (c *Client) AuthorizationURL() string {
	params := url.Values{}
	params.Add("response_type", "code")
	params.Add("client_id", c.cfg.APIKey)
	params.Add("redirect_uri", c.cfg.RedirectURI)

	return c.cfg.BaseURL + "/login/authorization/dialog?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for the day's access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" || c.cfg.RedirectURI == "" {
		return "", fmt.Errorf("api key, api secret and redirect uri are required to log in")
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"code":          code,
			"client_id":     c.cfg.APIKey,
			"client_secret": c.cfg.APISecret,
			"redirect_uri":  c.cfg.RedirectURI,
			"grant_type":    "authorization_code",
		}).
		Post("/login/authorization/token")
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("exchanging authorization code: %w", apiError(resp))
	}

	token := gjson.GetBytes(resp.Body(), "access_token").String()
	if token == "" {
		return "", fmt.Errorf("no access token returned: %s", resp.String())
	}

	return token, nil
}
