package quotes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type Handler struct {
	service *Service
	repo    *QuoteRepository
	logger  *slog.Logger
}

func NewHandler(service *Service, repo *QuoteRepository, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		repo:    repo,
		logger:  logger,
	}
}

type quoteItemRequest struct {
	ProductID      string `json:"product_id"`
	CustomRef      string `json:"custom_ref"`
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type createQuoteRequest struct {
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	Items         []quoteItemRequest `json:"items"`
}

// HandleCreate is the public quote wizard endpoint: it prices the requested
// items and persists an open quote.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]QuoteItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, QuoteItem{
			ProductID:      it.ProductID,
			CustomRef:      it.CustomRef,
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}

	quote, err := h.service.Price(r.Context(), req.CustomerName, req.CustomerEmail, items)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyQuote), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrUnpricedCustom):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrUnknownProduct):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error("failed to price quote", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if err := h.repo.Create(r.Context(), quote); err != nil {
		h.logger.Error("failed to create quote", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("quote created", "quote_id", quote.ID, "total_cents", quote.TotalCents)
	h.writeJSON(w, http.StatusCreated, quote)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing quote id")
		return
	}

	quote, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get quote", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if quote == nil {
		h.writeError(w, http.StatusNotFound, "quote not found")
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing quote id")
		return
	}

	order, err := h.repo.Convert(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrQuoteNotFound):
			h.writeError(w, http.StatusNotFound, "quote not found")
		case errors.Is(err, ErrAlreadyConverted):
			h.writeError(w, http.StatusConflict, "quote already converted")
		case errors.Is(err, ErrQuoteNotOpen):
			h.writeError(w, http.StatusUnprocessableEntity, "quote is not open")
		default:
			h.logger.Error("failed to convert quote", "error", err, "id", id)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.logger.Info("quote converted", "quote_id", id, "order_id", order.ID)
	h.writeJSON(w, http.StatusCreated, order)
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
