package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"invest-desk/config"
	"invest-desk/internal/app"
	"invest-desk/internal/market"
	"invest-desk/observability"
	"invest-desk/services"

	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
		},
	}

	if h.app.Store() != nil {
		ctx := r.Context()
		if err := h.app.Store().Health(ctx); err == nil {
			status["services"].(map[string]string)["database"] = "connected"
		} else {
			status["services"].(map[string]string)["database"] = "disconnected"
			status["status"] = "degraded"
		}
	} else {
		status["services"].(map[string]string)["database"] = "not_configured"
	}

	registry := services.GetGlobalRegistry()
	status["circuit_breakers"] = registry.Status()
	if registry.AnyOpen() {
		status["status"] = "degraded"
	}

	h.jsonResponse(w, status)
}

// HandleListStocks returns one page of the stock universe
func (h *Handler) HandleListStocks(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, h.cfg.Market.ListPageSize)
	offset := h.ParseIntParam(r, "offset", 0)

	page := h.app.Market().ListStocks(r.Context(), offset, limit)
	h.jsonResponse(w, page)
}

// HandleGetStock returns the detail view for one symbol
func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if err := market.ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	days := h.cfg.Market.DefaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			h.jsonError(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = d
	}

	detail, err := h.app.Market().GetStock(r.Context(), symbol, days)
	if err != nil {
		switch {
		case errors.Is(err, market.ErrNoData):
			h.jsonError(w, "no data available", http.StatusNotFound)
		case errors.Is(err, market.ErrInvalidSymbol):
			h.jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			h.internalError(w, r, err)
		}
		return
	}

	h.jsonResponse(w, detail)
}

// HandleGetPortfolio returns the dashboard view for the authenticated user
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	portfolio, err := h.app.Market().Portfolio(r.Context(), userID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.jsonResponse(w, portfolio)
}

// HandleAddTicker starts tracking a ticker for the authenticated user
func (h *Handler) HandleAddTicker(w http.ResponseWriter, r *http.Request) {
	var req TickerRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil || json.Unmarshal(body, &req) != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if err := market.ValidateSymbol(ticker); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	added, err := h.app.Market().AddTicker(r.Context(), UserIDFromContext(r.Context()), ticker)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	if !added {
		h.jsonResponse(w, MessageResponse{Message: "Ticker already exists"})
		return
	}
	h.jsonResponse(w, MessageResponse{Message: "Ticker added"})
}

// HandleRemoveTicker stops tracking a ticker for the authenticated user
func (h *Handler) HandleRemoveTicker(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	if err := market.ValidateSymbol(ticker); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := h.app.Market().RemoveTicker(r.Context(), UserIDFromContext(r.Context()), ticker)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	if !removed {
		h.jsonError(w, "Ticker not tracked", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, MessageResponse{Message: "Ticker removed"})
}

// MaxListLimit caps the page size a client may request
const MaxListLimit = 100

// ParseLimitParam parses the limit query parameter, capped at MaxListLimit
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return min(l, MaxListLimit)
		}
	}
	return defaultLimit
}

// ParseIntParam parses a non-negative integer query parameter
func (h *Handler) ParseIntParam(r *http.Request, name string, defaultValue int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return defaultValue
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// internalError logs err and answers with a generic 500
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.WithContext(r.Context()).Error("request failed",
		"method", r.Method, "path", r.URL.Path, "error", err)
	h.jsonError(w, "internal server error", http.StatusInternalServerError)
}

// TickerRequest is the body of a ticker add request
type TickerRequest struct {
	Ticker string `json:"ticker"`
}

// MessageResponse represents a message response
type MessageResponse struct {
	Message string `json:"message"`
}
