// Package eligibility verifies the precondition for receiving the asset: an
// existing trustline from the beneficiary to the issuing authority. The check
// is recomputed on every request: the line can be revoked between claims, so
// nothing here is cached.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"

	"faucetd/internal/faucet"
	"faucetd/internal/faucet/ledger"
)

// LinesQuerier is the slice of the ledger gateway this checker needs.
type LinesQuerier interface {
	AccountLines(ctx context.Context, account, peer string) ([]ledger.TrustLine, error)
}

// Checker answers "can this beneficiary receive the asset right now".
type Checker struct {
	gateway   LinesQuerier
	assetCode string
	issuer    string
	logger    *slog.Logger
}

// Option configures the Checker.
type Option func(*Checker)

// WithLogger sets a logger for query failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// New creates a trustline checker for one asset code and issuer.
func New(gateway LinesQuerier, assetCode, issuer string, opts ...Option) (*Checker, error) {
	if gateway == nil {
		return nil, fmt.Errorf("ledger gateway is required")
	}
	if assetCode == "" || issuer == "" {
		return nil, fmt.Errorf("asset code and issuer are required")
	}
	c := &Checker{
		gateway:   gateway,
		assetCode: assetCode,
		issuer:    issuer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HasTrustline reports whether the beneficiary holds a trustline for the
// configured asset toward the issuer.
//
// Errors mean "unknown", never "yes": when the ledger cannot be queried the
// caller must treat the beneficiary as not eligible (fail closed). Assuming
// eligibility on an unreachable ledger would let a claim proceed to a payout
// that the network will reject anyway, or worse, one it will accept for an
// account that cannot hold the asset.
func (c *Checker) HasTrustline(ctx context.Context, addr faucet.Address) (bool, error) {
	lines, err := c.gateway.AccountLines(ctx, addr.String(), c.issuer)
	if err != nil {
		c.logger.WarnContext(ctx, "trustline query failed",
			"beneficiary", addr.String(),
			"error", err,
		)
		return false, fmt.Errorf("query trustlines: %w", err)
	}
	for _, line := range lines {
		if line.Currency == c.assetCode {
			return true, nil
		}
	}
	return false, nil
}
