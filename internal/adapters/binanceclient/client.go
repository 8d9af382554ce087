package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"candleflow/internal/domain"
	"candleflow/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// Binance caps klines responses at 1500 rows per request.
	klinesPageLimit = 1500
)

// Client implements the ports.MarketDataProvider interface using the
// go-binance library.
type Client struct {
	futuresClient  *futures.Client
	logger         ports.Logger
	reconnectBase  time.Duration
	reconnectMax   time.Duration
}

// Config holds configuration specific to the Binance adapter.
type Config struct {
	APIKey        string
	SecretKey     string
	UseTestnet    bool
	Logger        ports.Logger
	ReconnectBase time.Duration // Initial reconnect delay for the live feed
	ReconnectMax  time.Duration // Delay ceiling for the live feed
}

// New creates a new Binance market data adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	base := cfg.ReconnectBase
	if base <= 0 {
		base = time.Second
	}
	max := cfg.ReconnectMax
	if max <= 0 {
		max = 30 * time.Second
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		reconnectBase: base,
		reconnectMax:  max,
	}, nil
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code

		var mappedErr error
		switch apiErr.Code {
		case -1003:
			mappedErr = ports.ErrRateLimited
		case -1021:
			mappedErr = ports.ErrTimeout
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1120, -1121:
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUpstreamUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, operation+" failed with API error", fields)
		return finalErr
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "use of closed network connection"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUpstreamUnavailable, err)
	}

	c.logger.Error(ctx, err, operation+" failed", fields)
	return finalErr
}

// GetKlinesRange fetches all candles for symbol/interval between start and end,
// paging through the upstream limit until the range is covered.
func (c *Client) GetKlinesRange(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.Candle, error) {
	op := "GetKlinesRange"
	var all []*domain.Candle
	from := start

	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(string(interval)).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(klinesPageLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			candle, err := translateKline(bk, symbol, interval)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
			}
			all = append(all, candle)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime)
		if from.After(end) || len(klines) < klinesPageLimit {
			break
		}
	}

	c.logger.Debug(ctx, op+" complete", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(all)})
	return all, nil
}

// StreamTicks consumes the combined aggregate-trade stream for the given
// symbols, invoking handler for each tick in arrival order. Blocks until ctx
// is canceled; transport failures trigger reconnects with exponential backoff.
func (c *Client) StreamTicks(ctx context.Context, symbols []string, handler func(tick domain.Tick), errHandler func(err error)) error {
	op := "StreamTicks"

	wsHandler := func(event *futures.WsAggTradeEvent) {
		tick, err := translateAggTrade(event)
		if err != nil {
			c.logger.Warn(ctx, op+": dropping malformed tick", map[string]interface{}{"error": err.Error()})
			return
		}
		handler(tick)
	}
	wsErrHandler := func(err error) {
		errHandler(c.handleError(ctx, err, op+" websocket"))
	}

	retry := &backoff.Backoff{
		Min:    c.reconnectBase,
		Max:    c.reconnectMax,
		Factor: 2,
		Jitter: true,
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		doneCh, stopCh, err := futures.WsCombinedAggTradeServe(symbols, wsHandler, wsErrHandler)
		if err != nil {
			d := retry.Duration()
			c.logger.Warn(ctx, op+": connection failed, retrying", map[string]interface{}{"delay": d.String(), "error": err.Error()})
			select {
			case <-time.After(d):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		c.logger.Info(ctx, op+": live feed connected", map[string]interface{}{"symbols": strings.Join(symbols, ",")})
		retry.Reset()

		select {
		case <-doneCh:
			c.logger.Warn(ctx, op+": live feed closed, reconnecting")
		case <-ctx.Done():
			close(stopCh)
			return ctx.Err()
		}
	}
}

// --- Translation Helpers ---

func translateAggTrade(event *futures.WsAggTradeEvent) (domain.Tick, error) {
	if event == nil {
		return domain.Tick{}, errors.New("received nil aggregate trade event")
	}
	price, err := strconv.ParseFloat(event.Price, 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("parsing trade price '%s': %w", event.Price, err)
	}
	qty, err := strconv.ParseFloat(event.Quantity, 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("parsing trade quantity '%s': %w", event.Quantity, err)
	}
	return domain.Tick{
		Symbol:    event.Symbol,
		Price:     price,
		Quantity:  qty,
		Timestamp: time.UnixMilli(event.TradeTime),
	}, nil
}

func translateKline(bk *futures.Kline, symbol string, interval domain.Interval) (*domain.Candle, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return &domain.Candle{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
