package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"candleflow/internal/backtest"
	"candleflow/internal/distributor"
	"candleflow/internal/domain"
	"candleflow/internal/ports"
	"candleflow/internal/strategy"
	"candleflow/internal/subscription"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// BacktestService is the slice of the backtest layer the API exposes.
type BacktestService interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Result, error)
	GetRun(runID string) (*backtest.Result, error)
	ListRuns() []*backtest.Result
	StrategyIDs() []string
}

// Server exposes the REST API and the WebSocket candle feed.
type Server struct {
	addr        string
	candles     backtest.CandleSource
	backtests   BacktestService
	registry    *subscription.Registry
	distributor *distributor.Distributor
	logger      ports.Logger
	router      *gin.Engine
	upgrader    websocket.Upgrader
}

// Config holds the server's dependencies.
type Config struct {
	Addr        string
	Candles     backtest.CandleSource
	Backtests   BacktestService
	Registry    *subscription.Registry
	Distributor *distributor.Distributor
	Logger      ports.Logger
}

// NewServer builds the API server and registers its routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Candles == nil {
		return nil, fmt.Errorf("candle source is required")
	}
	if cfg.Backtests == nil {
		return nil, fmt.Errorf("backtest service is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("subscription registry is required")
	}
	if cfg.Distributor == nil {
		return nil, fmt.Errorf("distributor is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:        cfg.Addr,
		candles:     cfg.Candles,
		backtests:   cfg.Backtests,
		registry:    cfg.Registry,
		distributor: cfg.Distributor,
		logger:      cfg.Logger,
		router:      router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	api.GET("/intervals", s.handleIntervals)
	api.GET("/candles", s.handleCandles)
	api.GET("/strategies", s.handleStrategies)
	api.POST("/backtest/runs", s.handleRunStart)
	api.GET("/backtest/runs", s.handleRunList)
	api.GET("/backtest/runs/:id", s.handleRunDetail)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIntervals(c *gin.Context) {
	codes := make([]string, 0)
	for _, iv := range domain.SupportedIntervals() {
		codes = append(codes, string(iv))
	}
	c.JSON(http.StatusOK, gin.H{"intervals": codes})
}

func (s *Server) handleCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.Query("interval")
	if symbol == "" || interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and interval are required"})
		return
	}
	start, err := parseMillis(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a unix millisecond timestamp"})
		return
	}
	end, err := parseMillis(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a unix millisecond timestamp"})
		return
	}

	candles, err := s.candles.FetchHistoricalCandles(c.Request.Context(), symbol, interval, start, end)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "candles": candles})
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.backtests.StrategyIDs()})
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req struct {
		StrategyID     string          `json:"strategyId" binding:"required"`
		Symbol         string          `json:"symbol" binding:"required"`
		Interval       string          `json:"interval" binding:"required"`
		StartTS        int64           `json:"startTs" binding:"required"`
		EndTS          int64           `json:"endTs" binding:"required"`
		InitialCapital float64         `json:"initialCapital" binding:"required"`
		Params         strategy.Params `json:"params"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.backtests.Run(c.Request.Context(), backtest.Request{
		StrategyID:     req.StrategyID,
		Symbol:         req.Symbol,
		Interval:       req.Interval,
		Start:          time.UnixMilli(req.StartTS).UTC(),
		End:            time.UnixMilli(req.EndTS).UTC(),
		InitialCapital: req.InitialCapital,
		Params:         req.Params,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": result})
}

func (s *Server) handleRunList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.backtests.ListRuns()})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.backtests.GetRun(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		userID = uuid.New().String()
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn(c.Request.Context(), "WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	s.logger.Info(c.Request.Context(), "WebSocket client connected", map[string]interface{}{"userID": userID})
	client := newClient(userID, conn, s.registry, s.distributor, s.logger)
	client.run(c.Request.Context())
	s.logger.Info(context.Background(), "WebSocket client disconnected", map[string]interface{}{"userID": userID})
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info(ctx, "API server listening", map[string]interface{}{"addr": s.addr})

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// statusFor maps domain sentinels to HTTP status codes. User errors are 4xx,
// upstream trouble is 5xx.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrInvalidInterval),
		errors.Is(err, ports.ErrInvalidRange),
		errors.Is(err, ports.ErrInvalidStrategy),
		errors.Is(err, ports.ErrInsufficientData),
		errors.Is(err, ports.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ports.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ports.ErrUpstreamUnavailable),
		errors.Is(err, ports.ErrConnectionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
