// Package handler is the thin HTTP layer over the disbursement controller.
// It does transport only: decode, delegate, encode a stable reason code.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"faucetd/internal/faucet"
	"faucetd/internal/faucet/service"
	"faucetd/internal/platform/middleware"
	dErrors "faucetd/pkg/domain-errors"
	admin "faucetd/pkg/platform/middleware/admin"
)

// Controller is the interface the handler needs from the service layer.
type Controller interface {
	Claim(ctx context.Context, rawAddr string, livenessProof bool) (*faucet.ClaimResult, error)
	Purge(ctx context.Context, rawAddr string) error
}

// Handler serves the faucet endpoints.
type Handler struct {
	controller Controller
	logger     *slog.Logger
	adminToken string
	throttle   func(http.Handler) http.Handler
}

// Option configures the Handler.
type Option func(*Handler)

// WithClaimThrottle applies an IP-level throttle to the claim endpoint.
func WithClaimThrottle(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.throttle = mw
	}
}

// New creates a faucet Handler.
func New(controller Controller, logger *slog.Logger, adminToken string, opts ...Option) *Handler {
	h := &Handler{
		controller: controller,
		logger:     logger,
		adminToken: adminToken,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the faucet routes on the given router. Claim requests get a
// generous timeout because a disbursement legitimately waits on ledger
// finality; the caller may give up early, the payout still completes.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(150 * time.Second))
		if h.throttle != nil {
			r.Use(h.throttle)
		}
		r.Post("/claim", h.handleClaim)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Delete("/claims/{address}", h.handlePurge)
	})
}

// claimRequest is the POST /claim body.
type claimRequest struct {
	Beneficiary   string `json:"beneficiary"`
	LivenessProof bool   `json:"liveness_proof"`
}

// claimResponse is the envelope for every claim answer, granted or not.
// Reason codes are stable API; raw error detail never crosses this boundary.
type claimResponse struct {
	Granted   bool   `json:"granted"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "malformed claim body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		writeDenied(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.controller.Claim(ctx, req.Beneficiary, req.LivenessProof)
	if err != nil {
		var rl *service.RateLimitedError
		if errors.As(err, &rl) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())+1))
		}
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			// Unclassified errors should not happen; log them loudly and hide detail.
			h.logger.ErrorContext(ctx, "unclassified claim error",
				"request_id", middleware.GetRequestID(ctx),
				"error", err.Error(),
			)
		}
		writeDenied(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		Granted:   true,
		Reference: result.TxHash,
	})
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")

	if err := h.controller.Purge(r.Context(), addr); err != nil {
		code := dErrors.CodeOf(err)
		writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{"error": string(code)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeDenied maps a domain error to its status and stable reason code.
func writeDenied(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, dErrors.ToHTTPStatus(code), claimResponse{
		Granted: false,
		Reason:  string(code),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
