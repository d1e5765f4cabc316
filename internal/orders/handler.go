package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/engravehub/backoffice/internal/domain"
)

// Publisher publishes completion events keyed by order id. Satisfied by
// messaging.Producer; may be nil when the service runs without Kafka.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	repo       *OrderRepository
	reconciler *Reconciler
	producer   Publisher
	logger     *slog.Logger
}

func NewHandler(repo *OrderRepository, reconciler *Reconciler, producer Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		repo:       repo,
		reconciler: reconciler,
		producer:   producer,
		logger:     logger,
	}
}

type createItemRequest struct {
	ProductID      string `json:"product_id"`
	CustomRef      string `json:"custom_ref"`
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type createOrderRequest struct {
	CustomerName  string              `json:"customer_name"`
	CustomerEmail string              `json:"customer_email"`
	ShippingCents int64               `json:"shipping_cents"`
	Notes         string              `json:"notes"`
	Items         []createItemRequest `json:"items"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	var subtotal int64
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			h.writeError(w, http.StatusBadRequest, "item quantity must be positive")
			return
		}
		if it.ProductID == "" && it.CustomRef == "" {
			h.writeError(w, http.StatusBadRequest, "item needs a product_id or a custom_ref")
			return
		}
		subtotal += int64(it.Quantity) * it.UnitPriceCents
		items = append(items, domain.LineItem{
			ProductID:      it.ProductID,
			CustomRef:      it.CustomRef,
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}

	order := &domain.Order{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         items,
		Status:        domain.OrderStatusPending,
		SubtotalCents: subtotal,
		ShippingCents: req.ShippingCents,
		TotalCents:    subtotal + req.ShippingCents,
		Notes:         req.Notes,
		CreatedAt:     time.Now().UTC(),
	}

	if err := h.repo.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "customer_email", order.CustomerEmail)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.reconciler.TransitionStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			h.writeError(w, http.StatusBadRequest, "invalid status value")
		case errors.Is(err, ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ErrAlreadyCompleted):
			h.writeError(w, http.StatusConflict, "order already completed")
		case errors.Is(err, ErrNoLineItems):
			h.writeError(w, http.StatusUnprocessableEntity, "order has no line items to reconcile")
		default:
			h.logger.Error("failed to transition order status", "error", err, "id", id, "status", req.Status)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if h.producer != nil && order.Status == domain.OrderStatusCompleted {
		event := domain.OrderCompletedEvent{
			OrderID:       order.ID,
			CustomerName:  order.CustomerName,
			CustomerEmail: order.CustomerEmail,
			Items:         order.Items,
			TotalCents:    order.TotalCents,
			CompletedAt:   time.Now().UTC(),
		}
		if err := h.producer.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order completed event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
