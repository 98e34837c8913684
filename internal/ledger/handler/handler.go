// Package handler exposes the ledger operations over HTTP.
package handler

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timevault/internal/auth"
	"timevault/internal/ledger/cache"
	"timevault/internal/ledger/models"
	"timevault/internal/ledger/service"
	"timevault/pkg/domain"
	dErrors "timevault/pkg/domain-errors"
	"timevault/pkg/platform/middleware/requestid"
	"timevault/pkg/platform/middleware/requesttime"
	"timevault/pkg/requestcontext"
)

// Handler adapts the ledger service to HTTP.
type Handler struct {
	svc     *service.Service
	tokens  *auth.Manager
	capsule *cache.CapsuleCache
	logger  *slog.Logger
}

// New builds a Handler. The capsule cache may be nil.
func New(svc *service.Service, tokens *auth.Manager, capsuleCache *cache.CapsuleCache, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, capsule: capsuleCache, logger: logger}
}

// NewRouter wires all routes. Reads are public; every state transition
// requires an authenticated signer.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/v1/auth/token", h.issueToken)

	r.Get("/v1/registry", h.getRegistry)
	r.Get("/v1/profiles/{address}", h.getProfile)
	r.Get("/v1/capsules/{address}", h.getCapsule)
	r.Get("/v1/accounts/{address}", h.getBalance)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSigner(h.tokens, h.logger))
		r.Post("/v1/registry", h.initializeGlobalState)
		r.Post("/v1/profiles", h.initializeUserProfile)
		r.Post("/v1/capsules", h.createTimeCapsule)
		r.Post("/v1/capsules/{address}/unlock", h.unlockTimeCapsule)
		r.Post("/v1/capsules/{address}/cancel", h.cancelTimeCapsule)
		r.Post("/v1/capsules/{address}/recipient", h.transferCapsuleRecipient)
		r.Delete("/v1/capsules/{address}", h.deleteTimeCapsule)
		r.Post("/v1/accounts/{address}/credit", h.creditAccount)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tokenRequest struct {
	Identity  string `json:"identity"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	identity, err := domain.ParseAddress(req.Identity)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid identity"))
		return
	}
	signature, err := hex.DecodeString(req.Signature)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid signature encoding"))
		return
	}
	now := requestcontext.Now(r.Context())
	if err := auth.VerifyChallenge(identity, req.Timestamp, signature, now); err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := h.tokens.IssueToken(identity, now)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type initRegistryRequest struct {
	FeeWallet      string `json:"fee_wallet"`
	PlatformFeeBps uint16 `json:"platform_fee_bps"`
}

func (h *Handler) initializeGlobalState(w http.ResponseWriter, r *http.Request) {
	var req initRegistryRequest
	if !h.decode(w, r, &req) {
		return
	}
	feeWallet, err := domain.ParseAddress(req.FeeWallet)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid fee wallet"))
		return
	}
	registry, err := h.svc.InitializeGlobalState(r.Context(), feeWallet, req.PlatformFeeBps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registry)
}

func (h *Handler) getRegistry(w http.ResponseWriter, r *http.Request) {
	registry, err := h.svc.GetRegistry(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registry)
}

type initProfileRequest struct {
	Username string `json:"username"`
}

func (h *Handler) initializeUserProfile(w http.ResponseWriter, r *http.Request) {
	var req initProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	profile, err := h.svc.InitializeUserProfile(r.Context(), req.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	profile, err := h.svc.GetProfile(r.Context(), address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type createCapsuleRequest struct {
	CapsuleID    uint64 `json:"capsule_id"`
	Recipient    string `json:"recipient"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	UnlockAt     int64  `json:"unlock_at"`
	LockedAmount uint64 `json:"locked_amount"`
	IsPublic     bool   `json:"is_public"`
	CapsuleType  string `json:"capsule_type"`
}

func (h *Handler) createTimeCapsule(w http.ResponseWriter, r *http.Request) {
	var req createCapsuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	recipient, err := domain.ParseAddress(req.Recipient)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid recipient"))
		return
	}
	capsuleType := models.CapsuleTypePersonal
	if req.CapsuleType != "" {
		if capsuleType, err = models.ParseCapsuleType(req.CapsuleType); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	capsule, err := h.svc.CreateTimeCapsule(r.Context(), service.CreateCapsuleParams{
		CapsuleID:    req.CapsuleID,
		Recipient:    recipient,
		Title:        req.Title,
		Message:      req.Message,
		UnlockAt:     time.Unix(req.UnlockAt, 0).UTC(),
		LockedAmount: req.LockedAmount,
		Public:       req.IsPublic,
		Type:         capsuleType,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, capsule)
}

func (h *Handler) getCapsule(w http.ResponseWriter, r *http.Request) {
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	if cached := h.capsule.Get(r.Context(), address); cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	capsule, err := h.svc.GetCapsule(r.Context(), address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.capsule.Set(r.Context(), capsule)
	writeJSON(w, http.StatusOK, capsule)
}

func (h *Handler) unlockTimeCapsule(w http.ResponseWriter, r *http.Request) {
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	capsule, err := h.svc.UnlockTimeCapsule(r.Context(), address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidate(r, address)
	writeJSON(w, http.StatusOK, capsule)
}

func (h *Handler) cancelTimeCapsule(w http.ResponseWriter, r *http.Request) {
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	capsule, err := h.svc.CancelTimeCapsule(r.Context(), address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidate(r, address)
	writeJSON(w, http.StatusOK, capsule)
}

type transferRecipientRequest struct {
	NewRecipient string `json:"new_recipient"`
}

func (h *Handler) transferCapsuleRecipient(w http.ResponseWriter, r *http.Request) {
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	var req transferRecipientRequest
	if !h.decode(w, r, &req) {
		return
	}
	newRecipient, err := domain.ParseAddress(req.NewRecipient)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid new recipient"))
		return
	}
	capsule, err := h.svc.TransferCapsuleRecipient(r.Context(), address, newRecipient)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidate(r, address)
	writeJSON(w, http.StatusOK, capsule)
}

func (h *Handler) deleteTimeCapsule(w http.ResponseWriter, r *http.Request) {
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteTimeCapsule(r.Context(), address); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidate(r, address)
	w.WriteHeader(http.StatusNoContent)
}

type creditRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *Handler) creditAccount(w http.ResponseWriter, r *http.Request) {
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Deposit(r.Context(), address, req.Amount); err != nil {
		h.writeError(w, r, err)
		return
	}
	balance, err := h.svc.GetBalance(r.Context(), address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: address.String(), Balance: balance})
}

type balanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	balance, err := h.svc.GetBalance(r.Context(), address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: address.String(), Balance: balance})
}

func (h *Handler) invalidate(r *http.Request, address domain.Address) {
	if err := h.capsule.Invalidate(r.Context(), address); err != nil {
		h.logger.Warn("capsule cache invalidation failed",
			"address", address.String(), "error", err)
	}
}

func (h *Handler) pathAddress(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	address, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid address"))
		return domain.Address{}, false
	}
	return address, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}
