package redemption_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-deals/internal/errs"
	"ms-deals/internal/models"
	"ms-deals/internal/utils"
)

// StreamRedemptions streams confirmations for the caller's merchant as Server-Sent Events.
func (h *Handler) StreamRedemptions(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, h.Logger, "SSE", errs.New("streaming unsupported"))
		return
	}

	setupSSEHeaders(w)
	ctx := r.Context()
	eventChan := h.EventEmitter.Subscribe(ctx, principal.MerchantID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"merchantId\":%q}\n\n", principal.MerchantID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to redemption stream for merchant: %s", principal.MerchantID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			writeEvent(w, event, h)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from redemption stream for: %s", principal.MerchantID))
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event models.RedemptionEvent, h *Handler) {
	jsonData, err := json.Marshal(event)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize redemption event: %v", err))
		return
	}
	fmt.Fprintf(w, "event: redemption\ndata: %s\n\n", jsonData)
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
