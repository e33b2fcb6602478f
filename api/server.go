// Package api provides the HTTP REST API server for cclview.
//
// It exposes endpoints for implied-currency valuations, ticker headlines,
// and WebSocket streaming of completed runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cclview/cclview/internal/ccl"
	"github.com/cclview/cclview/internal/config"
	"github.com/cclview/cclview/internal/report"
	"github.com/cclview/cclview/internal/session"
	"github.com/cclview/cclview/internal/timeseries"
	"github.com/cclview/cclview/pkg/models"
)

// Valuer runs valuation requests. Satisfied by *session.Orchestrator.
type Valuer interface {
	Run(ctx context.Context, req session.Request) (*models.Valuation, error)
}

// NewsProvider fetches recent headlines for a ticker.
type NewsProvider interface {
	FetchNews(ctx context.Context, ticker string, limit int) ([]models.NewsArticle, error)
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	valuer Valuer
	news   NewsProvider
	wsHub  *WSHub
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, valuer Valuer, news NewsProvider) *Server {
	srv := &Server{
		cfg:    cfg,
		valuer: valuer,
		news:   news,
		wsHub:  NewWSHub(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start WebSocket hub
	go s.wsHub.Run()

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/valuation", s.handleValuation)
		r.Post("/valuation/chart", s.handleValuationChart)
		r.Get("/news/{ticker}", s.handleNews)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ValuationRequest is the body for POST /api/v1/valuation.
type ValuationRequest struct {
	Tickers []string `json:"tickers"`
	Start   string   `json:"start"`          // YYYY-MM-DD
	End     string   `json:"end,omitempty"`  // YYYY-MM-DD, default today
	Mode    string   `json:"mode,omitempty"` // "raw", "present" (default), "start"
	SMA     int      `json:"sma,omitempty"`  // rolling-mean overlay window, 0 = off
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"version":    "dev",
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	v, status, err := s.runValuation(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	// Notify WebSocket clients that a fresh valuation exists.
	s.wsHub.Broadcast(WSMessage{
		Type: "valuation_complete",
		Data: map[string]interface{}{
			"tickers": len(v.Series),
			"mode":    v.Mode,
		},
	})

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    v,
	})
}

func (s *Server) handleValuationChart(w http.ResponseWriter, r *http.Request) {
	v, status, err := s.runValuation(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	svg := report.ValuationChart(v, report.ChartConfig{})
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(svg)) //nolint:errcheck
}

// runValuation decodes and executes a valuation request shared by the JSON
// and SVG endpoints. The returned status only matters when err is non-nil.
func (s *Server) runValuation(r *http.Request) (*models.Valuation, int, error) {
	var req ValuationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, http.StatusBadRequest, errors.New("invalid request body")
	}
	if len(req.Tickers) == 0 {
		return nil, http.StatusBadRequest, errors.New("tickers are required")
	}

	start, err := timeseries.ParseDate(req.Start)
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("invalid start date; use YYYY-MM-DD")
	}
	end := timeseries.Today()
	if req.End != "" {
		if end, err = timeseries.ParseDate(req.End); err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid end date; use YYYY-MM-DD")
		}
	}

	mode := models.ModeReturnToPresent
	if req.Mode != "" {
		if mode, err = models.ParseDisplayMode(req.Mode); err != nil {
			return nil, http.StatusBadRequest, err
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	v, err := s.valuer.Run(ctx, session.Request{
		Tickers:   normalizeTickers(req.Tickers),
		Start:     start,
		End:       end,
		Mode:      mode,
		SMAWindow: req.SMA,
	})
	if err != nil {
		if errors.Is(err, ccl.ErrMissingReferenceData) {
			return nil, http.StatusBadGateway, err
		}
		return nil, http.StatusBadRequest, err
	}
	return v, http.StatusOK, nil
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	limit := 20
	if s.cfg != nil && s.cfg.News.Limit > 0 {
		limit = s.cfg.News.Limit
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	articles, err := s.news.FetchNews(ctx, strings.ToUpper(ticker), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    articles,
	})
}

// ============================================================
// Helpers
// ============================================================

func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}
