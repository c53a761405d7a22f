package deal_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-deals/internal/auth"
	"ms-deals/internal/deals"
	"ms-deals/internal/errs"
	"ms-deals/internal/logger"
	"ms-deals/internal/models"
	"ms-deals/internal/redemptions/qr"
	"ms-deals/internal/utils"
)

type Handler struct {
	DealService     *deals.DealService
	MerchantService *deals.MerchantService
	Resolver        *auth.Resolver
	QRGenerator     *qr.QRGenerator
	Logger          *logger.Logger
}

func NewHandler(dealService *deals.DealService, merchantService *deals.MerchantService, resolver *auth.Resolver, qrGen *qr.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{
		DealService:     dealService,
		MerchantService: merchantService,
		Resolver:        resolver,
		QRGenerator:     qrGen,
		Logger:          log,
	}
}

// RegisterPublicRoutes registers the customer-facing deal reads
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/api/deals/{dealId}", h.GetDeal)
	r.Get("/api/deals/code/{shortCode}", h.GetDealByShortCode)
	r.Get("/api/deals/{dealId}/qr", h.GetDealQR)
}

// RegisterProtectedRoutes registers merchant routes; the caller applies auth middleware
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/api/merchant", h.RegisterMerchant)
	r.Get("/api/merchant", h.GetMerchant)
	r.Get("/api/merchant/deals", h.ListMerchantDeals)
	r.Post("/api/deals", h.CreateDeal)
	r.Patch("/api/deals/{dealId}", h.UpdateDeal)
	r.Delete("/api/deals/{dealId}", h.DeleteDeal)
	r.Post("/api/deals/{dealId}/repost", h.RepostDeal)
}

func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := h.DealService.GetDeal(r.Context(), chi.URLParam(r, "dealId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Deal retrieved", deal))
}

func (h *Handler) GetDealByShortCode(w http.ResponseWriter, r *http.Request) {
	deal, err := h.DealService.GetDealByShortCode(r.Context(), chi.URLParam(r, "shortCode"))
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Deal retrieved", deal))
}

func (h *Handler) GetDealQR(w http.ResponseWriter, r *http.Request) {
	deal, err := h.DealService.GetDeal(r.Context(), chi.URLParam(r, "dealId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	png, err := h.QRGenerator.DealPNG(deal)
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", errs.Unexpected(err, "render deal qr"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) RegisterMerchant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, h.Logger, "DEAL", errs.Validation("invalid request body"))
		return
	}
	merchant, err := h.MerchantService.Register(r.Context(), auth.UserID(r.Context()), body.Name)
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Merchant registered", merchant))
}

func (h *Handler) GetMerchant(w http.ResponseWriter, r *http.Request) {
	merchant, err := h.MerchantService.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Merchant retrieved", merchant))
}

func (h *Handler) ListMerchantDeals(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	list, err := h.DealService.ListByMerchant(r.Context(), principal)
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	if list == nil {
		list = []models.Deal{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d deals", len(list)), list))
}

func (h *Handler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	var input models.DealInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteError(w, h.Logger, "DEAL", errs.Validation("invalid request body: %v", err))
		return
	}
	if err := deals.ValidateInput(input); err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	deal, err := h.DealService.CreateDeal(r.Context(), principal, input)
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Deal created", deal))
}

func (h *Handler) UpdateDeal(w http.ResponseWriter, r *http.Request) {
	var patch models.DealPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.WriteError(w, h.Logger, "DEAL", errs.Validation("invalid request body: %v", err))
		return
	}
	if err := deals.ValidatePatch(patch); err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	deal, err := h.DealService.UpdateDeal(r.Context(), principal, chi.URLParam(r, "dealId"), patch)
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Deal updated", deal))
}

func (h *Handler) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.DealService.DeleteDeal(r.Context(), principal, chi.URLParam(r, "dealId")); err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Deal deleted", nil))
}

func (h *Handler) RepostDeal(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	deal, err := h.DealService.RepostDeal(r.Context(), principal, chi.URLParam(r, "dealId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "DEAL", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Deal reposted", deal))
}

// principal resolves the caller's merchant, answering the error itself when it can't.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, err := h.Resolver.Resolve(r.Context())
	if err != nil {
		h.Logger.LogSecurity("PRINCIPAL", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		utils.WriteError(w, h.Logger, "AUTH", err)
		return auth.Principal{}, false
	}
	return p, true
}
