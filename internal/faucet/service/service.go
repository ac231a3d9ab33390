// Package service implements the disbursement controller: the one idempotent
// claim operation per request, orchestrating claim ledger, eligibility check
// and executor.
//
// Per-request state machine:
//
//	Validating → CheckingClaim → CheckingEligibility → Disbursing → Committing → Done
//
// with exits to Denied/Failed at each step. The per-beneficiary lock spans
// CheckingClaim through Committing so two concurrent claims for the same
// address cannot both pass the window check.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"faucetd/internal/faucet"
	"faucetd/internal/faucet/metrics"
	"faucetd/internal/faucet/ports"
	dErrors "faucetd/pkg/domain-errors"
	"faucetd/pkg/platform/audit"
	"faucetd/pkg/platform/middleware/metadata"
	"faucetd/pkg/platform/sentinel"
)

var tracer = otel.Tracer("faucetd/internal/faucet/service")

// EligibilityChecker answers whether a beneficiary can receive the asset.
// An error means "unknown" and the claim is denied (fail closed); errors
// wrapping sentinel.ErrUnavailable are reported as unavailable rather than
// not eligible.
type EligibilityChecker interface {
	HasTrustline(ctx context.Context, addr faucet.Address) (bool, error)
}

// Disburser executes one payout attempt to a terminal three-way outcome.
type Disburser interface {
	Execute(ctx context.Context, req faucet.DisbursementRequest) faucet.Outcome
}

// Config is the controller's fixed policy, validated once at construction.
// Nothing here is ever derived from client input.
type Config struct {
	AssetCode       string
	AssetIssuer     string
	Amount          decimal.Decimal
	Window          time.Duration
	ValidityLedgers uint32
}

func (c Config) validate() error {
	if c.AssetCode == "" || c.AssetIssuer == "" {
		return fmt.Errorf("asset code and issuer are required")
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("payout amount must be positive")
	}
	if c.Window <= 0 {
		return fmt.Errorf("claim window must be positive")
	}
	if c.ValidityLedgers == 0 {
		return fmt.Errorf("validity window must be at least one ledger")
	}
	return nil
}

// RateLimitedError carries when the beneficiary may claim again. Transport
// extracts RetryAfter for the Retry-After header.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("claim window not elapsed, retry in %s", e.RetryAfter.Round(time.Second))
}

// Service is the disbursement controller.
type Service struct {
	cfg      Config
	store    ports.GrantStore
	checker  EligibilityChecker
	disburse Disburser
	auditor  ports.AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	locks    *keyedMutex
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher sets the audit sink. Nil-safe: without one, decisions
// are only logged.
func WithAuditPublisher(p ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates the controller.
func New(cfg Config, store ports.GrantStore, checker EligibilityChecker, disburse Disburser, opts ...Option) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid faucet config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("grant store is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("eligibility checker is required")
	}
	if disburse == nil {
		return nil, fmt.Errorf("disburser is required")
	}

	s := &Service{
		cfg:      cfg,
		store:    store,
		checker:  checker,
		disburse: disburse,
		logger:   slog.Default(),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Claim runs one disbursement request through the state machine.
//
// Guarantees: at most one in-flight disbursement per beneficiary within this
// process; no claim record is written unless a terminal success was observed;
// a failed record write after a confirmed payout still reports success (the
// funds moved; the window is best-effort for that one request).
func (s *Service) Claim(ctx context.Context, rawAddr string, livenessProof bool) (*faucet.ClaimResult, error) {
	ctx, span := tracer.Start(ctx, "faucet.claim")
	defer span.End()

	// Validating. Nothing leaves the process before this passes.
	addr, err := faucet.ParseAddress(rawAddr)
	if err != nil {
		s.deny(ctx, span, "", dErrors.CodeInvalidBeneficiary)
		return nil, err
	}
	span.SetAttributes(attribute.String("faucet.beneficiary", addr.String()))
	if !livenessProof {
		s.deny(ctx, span, addr.String(), dErrors.CodeLivenessRequired)
		return nil, dErrors.New(dErrors.CodeLivenessRequired, "liveness proof is required")
	}

	// The lock spans claim check through commit; release on every exit.
	if s.metrics != nil {
		s.metrics.InFlightClaims.Inc()
		defer s.metrics.InFlightClaims.Dec()
	}
	release := s.locks.lock(addr)
	defer release()

	// CheckingClaim. Store unavailable fails closed: denying a valid claim is
	// recoverable, double-granting is not.
	last, err := s.store.LastGrant(ctx, addr)
	if err != nil {
		s.logger.ErrorContext(ctx, "claim store read failed",
			"beneficiary", addr.String(),
			"error", err,
		)
		s.deny(ctx, span, addr.String(), dErrors.CodeUnavailable)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "claim store unavailable")
	}
	if last != nil {
		elapsed := s.now().Sub(*last)
		if elapsed < s.cfg.Window {
			s.deny(ctx, span, addr.String(), dErrors.CodeRateLimited)
			return nil, dErrors.Wrap(
				&RateLimitedError{RetryAfter: s.cfg.Window - elapsed},
				dErrors.CodeRateLimited, "already claimed within window")
		}
	}

	// CheckingEligibility. Denied either way on a query failure, but node
	// unavailability (including an open ledger breaker) surfaces as
	// unavailable so callers know to retry later rather than open a
	// trustline they already have.
	eligible, err := s.checker.HasTrustline(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			s.deny(ctx, span, addr.String(), dErrors.CodeUnavailable)
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "eligibility check unavailable")
		}
		s.deny(ctx, span, addr.String(), dErrors.CodeNotEligible)
		return nil, dErrors.Wrap(err, dErrors.CodeNotEligible, "eligibility could not be verified")
	}
	if !eligible {
		s.deny(ctx, span, addr.String(), dErrors.CodeNotEligible)
		return nil, dErrors.New(dErrors.CodeNotEligible, "no trustline for asset")
	}

	// Disbursing. The executor runs on a context detached from the caller:
	// once a payout starts it must run to completion server-side, a client
	// disconnect must never leave it half-applied.
	execCtx := context.WithoutCancel(ctx)
	start := s.now()
	outcome := s.disburse.Execute(execCtx, faucet.DisbursementRequest{
		Destination:     addr,
		AssetCode:       s.cfg.AssetCode,
		AssetIssuer:     s.cfg.AssetIssuer,
		Amount:          s.cfg.Amount,
		ValidityLedgers: s.cfg.ValidityLedgers,
	})
	if s.metrics != nil {
		s.metrics.ObserveDisbursement(s.now().Sub(start))
	}
	span.SetAttributes(attribute.String("faucet.outcome", string(outcome.Status)))

	switch outcome.Status {
	case faucet.OutcomeRejected:
		// Nothing was disbursed; no record, immediate retry is allowed.
		s.observe(ctx, audit.Event{
			Action:      audit.ActionDisbursementRejected,
			Beneficiary: addr.String(),
			Reason:      outcome.Reason,
		}, string(dErrors.CodeLedgerRejected))
		return nil, dErrors.New(dErrors.CodeLedgerRejected, "ledger rejected the payout")

	case faucet.OutcomeIndeterminate:
		// The payout may have landed. Still no record: granting rate-limit
		// credit for an unconfirmed payout would deny a beneficiary whose
		// payment never arrived. The converse risk (double-send on retry) is
		// accepted and surfaced via the audit stream for reconciliation.
		s.observe(ctx, audit.Event{
			Action:      audit.ActionDisbursementIndeterminate,
			Beneficiary: addr.String(),
			TxHash:      outcome.TxHash,
			Reason:      outcome.Reason,
		}, string(dErrors.CodeIndeterminate))
		return nil, dErrors.New(dErrors.CodeIndeterminate, "payout unconfirmed before timeout")
	}

	// Committing. The payout is confirmed on-ledger; record the grant. A
	// store failure here must not turn a real payout into an error response.
	grantedAt := s.now()
	if err := s.store.RecordGrant(execCtx, addr, grantedAt); err != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: grant commit failed after confirmed payout",
			"beneficiary", addr.String(),
			"tx_hash", outcome.TxHash,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.GrantCommitFailures.Inc()
		}
		s.emit(ctx, audit.Event{
			Action:      audit.ActionGrantCommitFailed,
			Beneficiary: addr.String(),
			TxHash:      outcome.TxHash,
			Reason:      err.Error(),
		})
	}

	s.observe(ctx, audit.Event{
		Action:      audit.ActionGrantIssued,
		Beneficiary: addr.String(),
		TxHash:      outcome.TxHash,
	}, "granted")
	s.logger.InfoContext(ctx, "faucet grant issued",
		"beneficiary", addr.String(),
		"tx_hash", outcome.TxHash,
		"amount", s.cfg.Amount.String(),
		"asset", s.cfg.AssetCode,
	)

	return &faucet.ClaimResult{
		Granted:   true,
		TxHash:    outcome.TxHash,
		GrantedAt: grantedAt,
	}, nil
}

// Purge removes a beneficiary's claim record (administrative only).
func (s *Service) Purge(ctx context.Context, rawAddr string) error {
	addr, err := faucet.ParseAddress(rawAddr)
	if err != nil {
		return err
	}

	release := s.locks.lock(addr)
	defer release()

	if err := s.store.PurgeGrant(ctx, addr); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no claim record for beneficiary")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "claim store unavailable")
	}

	s.emit(ctx, audit.Event{
		Action:      audit.ActionGrantPurged,
		Beneficiary: addr.String(),
	})
	s.logger.InfoContext(ctx, "claim record purged", "beneficiary", addr.String())
	return nil
}

// Window exposes the configured claim window (read-only, for transport hints).
func (s *Service) Window() time.Duration { return s.cfg.Window }

// deny records a denied claim in metrics, audit and the span.
func (s *Service) deny(ctx context.Context, span trace.Span, beneficiary string, code dErrors.Code) {
	span.SetAttributes(attribute.String("faucet.denied", string(code)))
	if s.metrics != nil {
		s.metrics.ObserveClaim(string(code))
	}
	s.emit(ctx, audit.Event{
		Action:      audit.ActionGrantDenied,
		Beneficiary: beneficiary,
		Reason:      string(code),
	})
}

// observe records a terminal executor-backed result.
func (s *Service) observe(ctx context.Context, event audit.Event, result string) {
	if s.metrics != nil {
		s.metrics.ObserveClaim(result)
	}
	s.emit(ctx, event)
}

// emit sends an audit event enriched with client metadata. Fail-open by
// contract of the publisher; nil publisher means log-only operation.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.ClientIP = metadata.GetClientIP(ctx)
	event.UserAgent = metadata.GetUserAgent(ctx)
	s.auditor.Emit(ctx, event)
}
