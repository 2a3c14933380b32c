package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vtchat-platform/quotagate/internal/api"
	"github.com/vtchat-platform/quotagate/internal/auth"
)

// Handler exposes the admission controller over HTTP for the completion
// request handler and the usage-meter UI.
type Handler struct {
	svc        *Service
	validate   *validator.Validate
	upgradeURL string
}

// NewHandler creates a new rate limit Handler.
func NewHandler(svc *Service, upgradeURL string) *Handler {
	return &Handler{
		svc:        svc,
		validate:   validator.New(),
		upgradeURL: upgradeURL,
	}
}

type checkRequest struct {
	ModelID string `json:"model_id" validate:"required"`
}

// deniedResponse is the wire contract the chat frontend consumes on a 429.
// Field names are fixed by that contract and intentionally not snake_case.
type deniedResponse struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	LimitType       string `json:"limitType"`
	RemainingDaily  int    `json:"remainingDaily"`
	RemainingMinute int    `json:"remainingMinute"`
	ResetTime       string `json:"resetTime"`
	UpgradeURL      string `json:"upgradeUrl"`
}

// Check runs the admission decision for the authenticated account. Allowed
// verdicts come back as 200; denials as 429 with the retry contract body.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	req, ok := h.decodeModelRequest(w, r)
	if !ok {
		return
	}

	verdict, err := h.svc.CheckRateLimit(r.Context(), claims.AccountID, req.ModelID, claims.Premium())
	if err != nil {
		slog.Error("checking rate limit", "error", err, "account_id", claims.AccountID, "model_id", req.ModelID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	if !verdict.Allowed {
		h.writeDenied(w, verdict)
		return
	}

	api.JSON(w, http.StatusOK, verdict)
}

// Record counts one served request against the account's quotas.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	req, ok := h.decodeModelRequest(w, r)
	if !ok {
		return
	}

	if err := h.svc.RecordRequest(r.Context(), claims.AccountID, req.ModelID, claims.Premium()); err != nil {
		slog.Error("recording request", "error", err, "account_id", claims.AccountID, "model_id", req.ModelID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status returns the current usage projection, or 204 when the model is not
// metered for this account.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	modelID := r.URL.Query().Get("model_id")
	if modelID == "" {
		api.HandleError(w, api.NewBadRequestError("model_id query parameter is required"))
		return
	}

	status, err := h.svc.Status(r.Context(), claims.AccountID, modelID, claims.Premium())
	if err != nil {
		slog.Error("getting rate limit status", "error", err, "account_id", claims.AccountID, "model_id", modelID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	if status == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

func (h *Handler) decodeModelRequest(w http.ResponseWriter, r *http.Request) (checkRequest, bool) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return req, false
	}
	return req, true
}

func (h *Handler) writeDenied(w http.ResponseWriter, v *Verdict) {
	// The limiting quota's reset instant drives both the body and Retry-After.
	reset := v.ResetTime.Daily
	message := "You have reached the daily limit of requests. Please try again tomorrow, use your own API key, or upgrade for higher limits."
	if v.Reason == ReasonMinuteLimitExceeded {
		reset = v.ResetTime.Minute
		message = "You have reached your per-minute limit. Please wait a moment before trying again, or upgrade for higher limits."
	}

	retryAfter := int(time.Until(reset).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(deniedResponse{
		Error:           "Rate limit exceeded",
		Message:         message,
		LimitType:       v.Reason,
		RemainingDaily:  v.RemainingDaily,
		RemainingMinute: v.RemainingMinute,
		ResetTime:       reset.UTC().Format(time.RFC3339),
		UpgradeURL:      h.upgradeURL,
	})
}
