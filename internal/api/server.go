// Package api serves the read-only operational surface: health, Prometheus
// metrics and JSON snapshots of balance, positions and orders. It never
// mutates trading state.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/markethours"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/wallet"
)

// PositionSource enumerates open positions.
type PositionSource interface {
	All() []model.Position
	TotalUnrealized() money.Money
}

// OrderSource lists the session's recorded orders.
type OrderSource interface {
	Orders(ctx context.Context) ([]model.Order, error)
}

// Server is the operational HTTP server.
type Server struct {
	sessionID string
	wallet    *wallet.Wallet
	positions PositionSource
	orders    OrderSource
	srv       *http.Server
	log       *slog.Logger
}

// New builds the server on addr (e.g. ":9090").
func New(addr, sessionID string, w *wallet.Wallet, pos PositionSource, ord OrderSource) *Server {
	s := &Server{
		sessionID: sessionID,
		wallet:    w,
		positions: pos,
		orders:    ord,
		log:       slog.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/balance", s.handleBalance)
	mux.HandleFunc("/api/v1/positions", s.handlePositions)
	mux.HandleFunc("/api/v1/orders", s.handleOrders)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown. Errors other than graceful close are logged.
func (s *Server) Start() {
	go func() {
		s.log.Info("api listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("api server failed", "err", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	bal := s.wallet.Snapshot()
	unrealized := s.positions.TotalUnrealized()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":     s.sessionID,
		"market":         markethours.StatusString(time.Now()),
		"available":      bal.Available,
		"used":           bal.Used,
		"realized_pnl":   bal.RealizedPnL,
		"unrealized_pnl": unrealized,
		"total":          s.wallet.TotalWithUnrealized(unrealized),
		"open_positions": len(s.positions.All()),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.wallet.Snapshot())
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.positions.All())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.Orders(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}
