package inventory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/engravehub/backoffice/internal/domain"
)

type Handler struct {
	repo   *ProductRepository
	logger *slog.Logger
}

func NewHandler(repo *ProductRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	SKU               string `json:"sku"`
	Name              string `json:"name"`
	Material          string `json:"material"`
	PriceCents        int64  `json:"price_cents"`
	CostCents         int64  `json:"cost_cents"`
	QuantityOnHand    int    `json:"quantity_on_hand"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SKU == "" || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "sku and name are required")
		return
	}
	if req.QuantityOnHand < 0 {
		h.writeError(w, http.StatusBadRequest, "quantity_on_hand cannot be negative")
		return
	}

	product := &domain.Product{
		SKU:               req.SKU,
		Name:              req.Name,
		Material:          req.Material,
		PriceCents:        req.PriceCents,
		CostCents:         req.CostCents,
		QuantityOnHand:    req.QuantityOnHand,
		LowStockThreshold: req.LowStockThreshold,
	}

	if err := h.repo.Create(r.Context(), product); err != nil {
		if errors.Is(err, ErrSKUTaken) {
			h.writeError(w, http.StatusConflict, "sku already in use")
			return
		}
		h.logger.Error("failed to create product", "error", err, "sku", req.SKU)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "sku", product.SKU)
	h.writeJSON(w, http.StatusCreated, product)
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) HandleAdjustStock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Delta == 0 {
		h.writeError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}

	product, err := h.repo.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		h.logger.Error("failed to adjust stock", "error", err, "id", id, "delta", req.Delta)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.logger.Info("stock adjusted", "product_id", product.ID, "delta", req.Delta, "quantity_on_hand", product.QuantityOnHand)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListLowStock(r.Context())
	if err != nil {
		h.logger.Error("failed to list low stock products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
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
