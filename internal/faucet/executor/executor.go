// Package executor performs a single payout against the external ledger:
// fetch network state, build the payment with a ledger-height validity window,
// sign, submit, and wait for a terminal result within a hard bound.
//
// The outcome is deliberately three-way. A submitted transaction can still
// land after the client stops waiting, so "no confirmation before timeout" is
// its own state (Indeterminate), distinct from an observed terminal failure
// (Rejected). Callers must not treat Indeterminate as retry-safe.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"faucetd/internal/faucet"
	"faucetd/internal/faucet/ledger"
	"faucetd/internal/faucet/ports"
)

// Executor builds, signs, submits and confirms payout transactions for one
// signing authority.
type Executor struct {
	gateway ports.LedgerGateway
	signer  ports.Signer
	logger  *slog.Logger

	waitBound    time.Duration
	pollInterval time.Duration

	// submitMu serializes sequence allocation through submission. The
	// authority's sequence is a single external counter; two in-flight
	// submissions built on the same sequence guarantee one terminal failure.
	submitMu sync.Mutex
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithWaitBound sets the hard upper bound on waiting for a terminal result
// after submission.
func WithWaitBound(d time.Duration) Option {
	return func(e *Executor) {
		e.waitBound = d
	}
}

// WithPollInterval sets how often transaction status is polled while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) {
		e.pollInterval = d
	}
}

// New creates an Executor.
func New(gateway ports.LedgerGateway, signer ports.Signer, opts ...Option) (*Executor, error) {
	if gateway == nil {
		return nil, fmt.Errorf("ledger gateway is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	e := &Executor{
		gateway:      gateway,
		signer:       signer,
		logger:       slog.Default(),
		waitBound:    60 * time.Second,
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs one disbursement attempt to a terminal Outcome. It never
// retries: retrying a payment without a ledger-recognized dedupe key risks a
// double-send, so anything unconfirmed surfaces as Indeterminate for operator
// reconciliation.
func (e *Executor) Execute(ctx context.Context, req faucet.DisbursementRequest) faucet.Outcome {
	hash, lastLedger, out := e.buildAndSubmit(ctx, req)
	if out != nil {
		return *out
	}
	return e.awaitTerminal(ctx, hash, lastLedger)
}

// buildAndSubmit covers every step up to and including broadcast, holding the
// submit mutex so concurrent payouts serialize on sequence allocation. A nil
// outcome means the transaction is in flight and must be awaited.
func (e *Executor) buildAndSubmit(ctx context.Context, req faucet.DisbursementRequest) (hash string, lastLedger uint32, out *faucet.Outcome) {
	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	// Failures up to the submit call are safe: nothing has been broadcast,
	// so they classify as Rejected and the caller may retry immediately.
	var (
		fee   string
		state *ledger.AccountState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fee, err = e.gateway.BaseFee(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		state, err = e.gateway.AccountState(gctx, e.signer.Address().String())
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.WarnContext(ctx, "ledger state fetch failed", "error", err)
		return "", 0, rejected("network_state_unavailable")
	}

	lastLedger = state.ValidatedLedger + req.ValidityLedgers
	payment := &ledger.Payment{
		TransactionType: "Payment",
		Account:         e.signer.Address().String(),
		Destination:     req.Destination.String(),
		Amount: ledger.IssuedAmount{
			Currency: req.AssetCode,
			Issuer:   req.AssetIssuer,
			Value:    req.Amount.String(),
		},
		Fee:                fee,
		Sequence:           state.Sequence,
		LastLedgerSequence: lastLedger,
	}

	blob, hash, err := e.signer.Sign(payment)
	if err != nil {
		e.logger.ErrorContext(ctx, "payment signing failed", "error", err)
		return "", 0, rejected("signing_failed")
	}

	result, err := e.gateway.Submit(ctx, blob)
	if err != nil {
		// The broadcast may or may not have reached the network before the
		// transport failed. From here on, nothing is retry-safe.
		e.logger.ErrorContext(ctx, "submit transport failure",
			"tx_hash", hash,
			"error", err,
		)
		return "", 0, indeterminate(hash, "submit_unconfirmed")
	}
	if result.Terminal() {
		e.logger.WarnContext(ctx, "submission rejected locally",
			"tx_hash", hash,
			"engine_result", result.EngineResult,
		)
		return "", 0, rejected(result.EngineResult)
	}

	e.logger.InfoContext(ctx, "payment submitted",
		"tx_hash", hash,
		"destination", req.Destination.String(),
		"sequence", state.Sequence,
		"last_ledger", lastLedger,
	)
	return hash, lastLedger, nil
}

// awaitTerminal polls transaction status until a validated terminal result,
// provable expiry of the validity window, or the wait bound.
func (e *Executor) awaitTerminal(ctx context.Context, hash string, lastLedger uint32) faucet.Outcome {
	deadline := time.NewTimer(e.waitBound)
	defer deadline.Stop()
	tick := time.NewTicker(e.pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return *indeterminate(hash, "wait_canceled")
		case <-deadline.C:
			return *indeterminate(hash, "confirmation_timeout")
		case <-tick.C:
		}

		status, err := e.gateway.TxStatus(ctx, hash)
		if err != nil {
			// Transient lookup failure: keep polling until the bound.
			continue
		}
		if status.Found && status.Validated {
			if status.Succeeded() {
				return faucet.Outcome{Status: faucet.OutcomeSuccess, TxHash: hash, Reason: status.Result}
			}
			return *rejected(status.Result)
		}
		if !status.Found {
			// Not in any validated ledger. Once the network has closed past
			// LastLedgerSequence the transaction can never apply, which is a
			// provable terminal failure rather than a timeout.
			state, err := e.gateway.AccountState(ctx, e.signer.Address().String())
			if err != nil {
				continue
			}
			if state.ValidatedLedger > lastLedger {
				return *rejected("validity_window_expired")
			}
		}
	}
}

func rejected(reason string) *faucet.Outcome {
	return &faucet.Outcome{Status: faucet.OutcomeRejected, Reason: reason}
}

func indeterminate(hash, reason string) *faucet.Outcome {
	return &faucet.Outcome{Status: faucet.OutcomeIndeterminate, TxHash: hash, Reason: reason}
}
