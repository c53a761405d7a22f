package redemption_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-deals/internal/auth"
	"ms-deals/internal/availability"
	"ms-deals/internal/errs"
	"ms-deals/internal/logger"
	"ms-deals/internal/models"
	"ms-deals/internal/redemptions"
	"ms-deals/internal/redemptions/qr"
	"ms-deals/internal/sse"
	"ms-deals/internal/utils"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	maxBatchDeals     = 100
)

type Handler struct {
	RedemptionService *redemptions.RedemptionService
	Resolver          *auth.Resolver
	QRGenerator       *qr.QRGenerator
	EventEmitter      *sse.RedemptionEventEmitter
	Logger            *logger.Logger
}

func NewHandler(service *redemptions.RedemptionService, resolver *auth.Resolver, qrGen *qr.QRGenerator, emitter *sse.RedemptionEventEmitter, log *logger.Logger) *Handler {
	return &Handler{
		RedemptionService: service,
		Resolver:          resolver,
		QRGenerator:       qrGen,
		EventEmitter:      emitter,
		Logger:            log,
	}
}

// RegisterPublicRoutes registers issuing, code lookup and availability
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/api/deals/{dealId}/availability", h.GetAvailability)
	r.Post("/api/deals/availability", h.GetAvailabilityBatch)
	r.Post("/api/deals/{dealId}/redemptions", h.IssueRedemption)
	r.Get("/api/redemptions/{code}", h.GetRedemption)
	r.Get("/api/redemptions/{code}/qr", h.GetRedemptionQR)
}

// RegisterProtectedRoutes registers staff routes; the caller applies auth middleware
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/api/deals/{dealId}/redemptions", h.ListRedemptions)
	r.Post("/api/redemptions/confirm", h.ConfirmRedemption)
	r.Get("/api/merchant/redemptions/stream", h.StreamRedemptions)
}

func (h *Handler) IssueRedemption(w http.ResponseWriter, r *http.Request) {
	red, err := h.RedemptionService.Issue(r.Context(), chi.URLParam(r, "dealId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "REDEMPTION", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Redemption code issued", red))
}

func (h *Handler) GetRedemption(w http.ResponseWriter, r *http.Request) {
	red, err := h.RedemptionService.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		utils.WriteError(w, h.Logger, "REDEMPTION", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Redemption retrieved", red))
}

func (h *Handler) GetRedemptionQR(w http.ResponseWriter, r *http.Request) {
	red, err := h.RedemptionService.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		utils.WriteError(w, h.Logger, "REDEMPTION", err)
		return
	}
	png, err := h.QRGenerator.CodePNG(red.Code)
	if err != nil {
		utils.WriteError(w, h.Logger, "REDEMPTION", errs.Unexpected(err, "render code qr"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// GetAvailability never blocks the deal page: a slow or failing count is served as unknown.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "dealId")
	view, err := h.RedemptionService.Availability(r.Context(), dealID)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			utils.WriteError(w, h.Logger, "REDEMPTION", err)
			return
		}
		h.Logger.Warn("REDEMPTION", fmt.Sprintf("Availability for %s degraded: %v", dealID, err))
		view = availability.Unknown(dealID)
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Availability", view))
}

func (h *Handler) GetAvailabilityBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DealIDs []string `json:"dealIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, h.Logger, "REDEMPTION", errs.Validation("invalid request body: %v", err))
		return
	}
	ids := redemptions.DedupeIDs(body.DealIDs)
	if len(ids) == 0 {
		utils.WriteError(w, h.Logger, "REDEMPTION", errs.Validation("dealIds is required"))
		return
	}
	if len(ids) > maxBatchDeals {
		utils.WriteError(w, h.Logger, "REDEMPTION", errs.Validation("at most %d dealIds per request", maxBatchDeals))
		return
	}

	views, err := h.RedemptionService.AvailabilityBatch(r.Context(), ids)
	if err != nil {
		h.Logger.Warn("REDEMPTION", fmt.Sprintf("Batch availability degraded: %v", err))
		views = make(map[string]availability.View, len(ids))
		for _, id := range ids {
			views[id] = availability.Unknown(id)
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d deals", len(views)), views))
}

func (h *Handler) ConfirmRedemption(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, h.Logger, "REDEMPTION", errs.Validation("invalid request body: %v", err))
		return
	}
	if redemptions.NormalizeCode(body.Code) == "" {
		utils.WriteError(w, h.Logger, "REDEMPTION", errs.Validation("code is required"))
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	red, err := h.RedemptionService.Confirm(r.Context(), principal, body.Code, r.Header.Get(IdempotencyHeader))
	if err != nil {
		utils.WriteError(w, h.Logger, "REDEMPTION", err)
		return
	}

	msg := "Redemption confirmed"
	if red.Replayed {
		msg = "Redemption already confirmed by this request"
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(msg, red))
}

func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	list, err := h.RedemptionService.ListByDeal(r.Context(), principal, chi.URLParam(r, "dealId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "REDEMPTION", err)
		return
	}
	if list == nil {
		list = []models.Redemption{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d redemptions", len(list)), list))
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, err := h.Resolver.Resolve(r.Context())
	if err != nil {
		h.Logger.LogSecurity("PRINCIPAL", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		utils.WriteError(w, h.Logger, "AUTH", err)
		return auth.Principal{}, false
	}
	return p, true
}
