package reports

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	repo   *ReportRepository
	logger *slog.Logger
}

func NewHandler(repo *ReportRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	report, err := h.repo.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("failed to build dashboard report", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
