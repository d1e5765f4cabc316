package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/engravehub/backoffice/internal/domain"
)

// InvoiceHandler reacts to order completion events: it asks the render
// service (a headless-browser PDF renderer) for an invoice document, then
// mails the customer a link to it. The renderer and the mailer are external
// services reached over HTTP.
type InvoiceHandler struct {
	renderServiceURL string
	emailServiceURL  string
	httpClient       *http.Client
	logger           *slog.Logger
}

func NewInvoiceHandler(renderServiceURL, emailServiceURL string, client *http.Client, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		renderServiceURL: renderServiceURL,
		emailServiceURL:  emailServiceURL,
		httpClient:       client,
		logger:           logger,
	}
}

func (h *InvoiceHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order completed event: %w", err)
	}

	h.logger.Info("processing order completed event", "order_id", event.OrderID)

	documentURL, err := h.renderInvoice(ctx, event)
	if err != nil {
		h.logger.Error("failed to render invoice", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("render invoice: %w", err)
	}

	if err := h.sendInvoiceEmail(ctx, event, documentURL); err != nil {
		h.logger.Error("failed to send invoice email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send invoice email: %w", err)
	}

	h.logger.Info("invoice delivered", "order_id", event.OrderID, "document_url", documentURL)
	return nil
}

type renderRequest struct {
	Template string `json:"template"`
	Data     any    `json:"data"`
}

type renderResponse struct {
	DocumentURL string `json:"document_url"`
}

func (h *InvoiceHandler) renderInvoice(ctx context.Context, event domain.OrderCompletedEvent) (string, error) {
	body := renderRequest{
		Template: "invoice",
		Data:     event,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.renderServiceURL+"/render", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("render service returned status %d", resp.StatusCode)
	}

	var rendered renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&rendered); err != nil {
		return "", fmt.Errorf("decode render response: %w", err)
	}

	return rendered.DocumentURL, nil
}

func (h *InvoiceHandler) sendInvoiceEmail(ctx context.Context, event domain.OrderCompletedEvent, documentURL string) error {
	body := map[string]string{
		"to":      event.CustomerEmail,
		"subject": "Your order is ready: " + event.OrderID,
		"body": fmt.Sprintf("Hi %s, your order %s has been completed. Your invoice: %s",
			event.CustomerName, event.OrderID, documentURL),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
