package webhooks

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/fr0stylo/linevault/internal/app/services"
	"github.com/fr0stylo/linevault/internal/line"
)

const maxPayloadBytes = 1 << 20

// Handler processes LINE webhook deliveries. The platform expects a fast
// 2xx acknowledgment once the signature checks out, regardless of per-event
// outcomes.
type Handler struct {
	ingest *services.WebhookIngestService
	log    *slog.Logger
}

// NewHandler constructs a webhook handler.
func NewHandler(ingest *services.WebhookIngestService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ingest: ingest, log: log}
}

// Handle validates and processes a webhook request.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) error {
	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if readErr != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return readErr
	}

	result, ingestErr := h.ingest.Ingest(r.Context(), services.IngestCommand{
		SignatureHeader: r.Header.Get(line.SignatureHeader),
		Body:            body,
	})
	switch services.ClassifyIngestError(ingestErr) {
	case services.IngestErrorInvalidSignature:
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return nil
	case services.IngestErrorInvalidPayload:
		http.Error(w, "invalid webhook payload", http.StatusBadRequest)
		return nil
	}
	if ingestErr != nil {
		return ingestErr
	}

	h.log.InfoContext(r.Context(), "Webhook batch processed",
		"received", result.Received,
		"persisted", result.Persisted,
		"skipped", result.Skipped,
		"failed", len(result.Failures))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"message":"OK"}`))
	return nil
}
