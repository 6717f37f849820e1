package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"rental-agent/internal/dispatch"
	"rental-agent/internal/kafka"
	"rental-agent/internal/orders"
	"rental-agent/internal/redisx"
)

// TurnHandler is what the chat handler needs from the dispatcher; the
// indirection keeps handler tests free of real collaborators.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, text, requestToken string) (*dispatch.Result, error)
}

type ChatHandler struct {
	Dispatcher TurnHandler
	Orders     *orders.Service
	Redis      *redis.Client
}

type ChatReq struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	// RequestToken lets the front end retry a turn without duplicating
	// a create.
	RequestToken string `json:"request_token,omitempty"`
}

func (h *ChatHandler) Register(r *chi.Mux) {
	r.Post("/chat", h.handleTurn)
	r.Get("/orders/{id}", h.getOrder)
}

func (h *ChatHandler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req ChatReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	token := req.RequestToken
	if token == "" {
		token = r.Header.Get("X-Request-Token")
	}

	res, err := h.Dispatcher.HandleTurn(r.Context(), req.SessionID, req.Text, token)
	if err != nil {
		// Client gone or store down; nothing partial is visible either way.
		if errors.Is(err, context.Canceled) {
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "turn failed"})
		return
	}

	if res.Order != nil && h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, res.Order.OrderID)
		_ = h.Redis.Set(r.Context(), key, kafka.MustMarshal(res.Order), redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ChatHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first, DB as fallback
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	order, err := h.Orders.Query(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		_ = h.Redis.Set(ctx, key, kafka.MustMarshal(order), redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, order)
}
