// Package web exposes the engine state over HTTP: JSON snapshots, an SSE
// stream of state changes and prometheus metrics. It is read-only.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal"
	"github.com/vadiminshakov/hyperlev/internal/domain"
	"github.com/vadiminshakov/hyperlev/internal/services/catalog"
	"github.com/vadiminshakov/hyperlev/internal/storage/orderjournal"
)

const heartbeatInterval = 30 * time.Second

type stateSource interface {
	State() internal.TradingViewState
	Subscribe() chan internal.TradingViewState
	Unsubscribe(ch chan internal.TradingViewState)
	Markets(query string, mode catalog.SortMode) []internal.MarketRow
	Candles(ctx context.Context, symbol, timeframe string) ([]domain.MarketCandle, error)
}

type journalReader interface {
	RecordsAfter(index uint64) ([]orderjournal.IndexedRecord, error)
}

// Server serves the state API.
type Server struct {
	Addr    string
	Engine  stateSource
	Journal journalReader
	logger  *zap.Logger
}

// NewServer creates a new web server instance. journal may be nil.
func NewServer(addr string, engine stateSource, journal journalReader, logger *zap.Logger) *Server {
	return &Server{Addr: addr, Engine: engine, Journal: journal, logger: logger}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("state API listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router builds the gin engine with all routes.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/state", s.handleState)
	api.GET("/state/stream", s.handleStateStream)
	api.GET("/markets", s.handleMarkets)
	api.GET("/candles", s.handleCandles)
	api.GET("/orders", s.handleOrders)

	return r
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.State())
}

func (s *Server) handleStateStream(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates := s.Engine.Subscribe()
	defer s.Engine.Unsubscribe(updates)

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	send := func(st internal.TradingViewState) bool {
		payload, err := json.Marshal(st)
		if err != nil {
			s.logger.Error("state stream encode", zap.Error(err))
			return false
		}
		fmt.Fprintf(w, "event: state\n")
		fmt.Fprintf(w, "data: %s\n\n", payload)
		w.Flush()
		return true
	}

	if !send(s.Engine.State()) {
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			w.Flush()
		case st, ok := <-updates:
			if !ok {
				return
			}
			if !send(st) {
				return
			}
		}
	}
}

func (s *Server) handleMarkets(c *gin.Context) {
	mode := catalog.SortMode(c.DefaultQuery("sort", string(catalog.SortDefault)))
	switch mode {
	case catalog.SortDefault, catalog.SortGainers, catalog.SortLosers:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown sort %q", mode)})
		return
	}
	c.JSON(http.StatusOK, s.Engine.Markets(c.Query("q"), mode))
}

func (s *Server) handleCandles(c *gin.Context) {
	candles, err := s.Engine.Candles(c.Request.Context(), c.Query("symbol"), c.DefaultQuery("tf", "15m"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, candles)
}

func (s *Server) handleOrders(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order journal not available"})
		return
	}
	after, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "after must be a non-negative integer"})
		return
	}
	records, err := s.Journal.RecordsAfter(after)
	if err != nil {
		s.logger.Error("failed to read order journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read order journal"})
		return
	}
	if records == nil {
		records = []orderjournal.IndexedRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
