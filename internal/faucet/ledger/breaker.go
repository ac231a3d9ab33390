package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"faucetd/pkg/platform/circuit"
	"faucetd/pkg/platform/sentinel"
)

// Gateway is the ledger method set the breaker wraps. *Client satisfies it.
type Gateway interface {
	AccountLines(ctx context.Context, account, peer string) ([]TrustLine, error)
	AccountState(ctx context.Context, account string) (*AccountState, error)
	BaseFee(ctx context.Context) (string, error)
	Submit(ctx context.Context, txBlob string) (*SubmitResult, error)
	TxStatus(ctx context.Context, hash string) (*TxResult, error)
}

// BreakerGateway guards the read-only ledger queries with a circuit breaker:
// when the node has been failing, claims are denied fast instead of stacking
// timeouts against a dead endpoint. After the breaker's cooldown a trial read
// is let through, so a recovered node closes the breaker on its own. Submit
// and TxStatus always pass through,
// because a payment already in flight must be submitted and polled to a
// terminal answer no matter what the breaker thinks of the node.
type BreakerGateway struct {
	next    Gateway
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// WithBreaker wraps a gateway with breaker-guarded reads.
func WithBreaker(next Gateway, breaker *circuit.Breaker, logger *slog.Logger) *BreakerGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerGateway{next: next, breaker: breaker, logger: logger}
}

func (g *BreakerGateway) AccountLines(ctx context.Context, account, peer string) ([]TrustLine, error) {
	if !g.breaker.Allow() {
		return nil, g.openErr("account_lines")
	}
	lines, err := g.next.AccountLines(ctx, account, peer)
	g.record(err)
	return lines, err
}

func (g *BreakerGateway) AccountState(ctx context.Context, account string) (*AccountState, error) {
	if !g.breaker.Allow() {
		return nil, g.openErr("account_info")
	}
	state, err := g.next.AccountState(ctx, account)
	g.record(err)
	return state, err
}

func (g *BreakerGateway) BaseFee(ctx context.Context) (string, error) {
	if !g.breaker.Allow() {
		return "", g.openErr("fee")
	}
	fee, err := g.next.BaseFee(ctx)
	g.record(err)
	return fee, err
}

func (g *BreakerGateway) Submit(ctx context.Context, txBlob string) (*SubmitResult, error) {
	return g.next.Submit(ctx, txBlob)
}

func (g *BreakerGateway) TxStatus(ctx context.Context, hash string) (*TxResult, error) {
	return g.next.TxStatus(ctx, hash)
}

func (g *BreakerGateway) openErr(method string) error {
	return fmt.Errorf("%s: %w: ledger breaker open", method, sentinel.ErrUnavailable)
}

// record feeds the breaker. Only unavailability counts as a failure; a node
// that answers with a negative result is healthy.
func (g *BreakerGateway) record(err error) {
	if errors.Is(err, sentinel.ErrUnavailable) {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.Warn("ledger breaker opened", "breaker", g.breaker.Name())
		}
		return
	}
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.Info("ledger breaker closed", "breaker", g.breaker.Name())
		}
	}
}
