package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faucetd/pkg/platform/circuit"
	"faucetd/pkg/platform/sentinel"
)

// flakyGateway fails reads with an unavailability error while down.
type flakyGateway struct {
	down    bool
	reads   int
	submits int
	polls   int
}

func (g *flakyGateway) err() error {
	if g.down {
		return fmt.Errorf("node: %w", sentinel.ErrUnavailable)
	}
	return nil
}

func (g *flakyGateway) AccountLines(context.Context, string, string) ([]TrustLine, error) {
	g.reads++
	return nil, g.err()
}

func (g *flakyGateway) AccountState(context.Context, string) (*AccountState, error) {
	g.reads++
	if err := g.err(); err != nil {
		return nil, err
	}
	return &AccountState{Sequence: 1, ValidatedLedger: 100}, nil
}

func (g *flakyGateway) BaseFee(context.Context) (string, error) {
	g.reads++
	if err := g.err(); err != nil {
		return "", err
	}
	return "12", nil
}

func (g *flakyGateway) Submit(context.Context, string) (*SubmitResult, error) {
	g.submits++
	return &SubmitResult{EngineResult: "tesSUCCESS"}, nil
}

func (g *flakyGateway) TxStatus(context.Context, string) (*TxResult, error) {
	g.polls++
	return &TxResult{Found: true, Validated: true, Result: "tesSUCCESS"}, nil
}

func TestBreakerGatewayShortCircuitsReads(t *testing.T) {
	ctx := context.Background()
	next := &flakyGateway{down: true}
	g := WithBreaker(next, circuit.New("ledger", circuit.WithFailureThreshold(2)), nil)

	_, err := g.BaseFee(ctx)
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	_, err = g.AccountState(ctx, "rAccount1")
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))

	// Breaker is now open: reads are refused without touching the node.
	before := next.reads
	_, err = g.AccountLines(ctx, "rAccount1", "rIssuer1")
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	assert.Equal(t, before, next.reads)
}

func TestBreakerGatewayRecoversAfterCooldown(t *testing.T) {
	ctx := context.Background()
	next := &flakyGateway{down: true}
	breaker := circuit.New("ledger",
		circuit.WithFailureThreshold(1),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(20*time.Millisecond),
	)
	g := WithBreaker(next, breaker, nil)

	_, err := g.BaseFee(ctx)
	require.Error(t, err)
	require.True(t, breaker.IsOpen())

	// The node comes back, but the cooldown is still running: reads are
	// refused without touching it.
	next.down = false
	before := next.reads
	for i := 0; i < 100; i++ {
		_, err = g.BaseFee(ctx)
		require.True(t, errors.Is(err, sentinel.ErrUnavailable))
	}
	assert.Equal(t, before, next.reads)

	// Cooldown elapses: a trial read goes through, succeeds, and closes the
	// breaker with no operator intervention.
	time.Sleep(40 * time.Millisecond)
	fee, err := g.BaseFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, "12", fee)
	assert.False(t, breaker.IsOpen())

	lines, err := g.AccountLines(ctx, "rAccount1", "rIssuer1")
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestBreakerGatewayReopensOnFailedTrial(t *testing.T) {
	ctx := context.Background()
	next := &flakyGateway{down: true}
	breaker := circuit.New("ledger",
		circuit.WithFailureThreshold(1),
		circuit.WithCooldown(20*time.Millisecond),
	)
	g := WithBreaker(next, breaker, nil)

	_, _ = g.BaseFee(ctx)
	require.True(t, breaker.IsOpen())

	// Node still down when the trial read goes through: breaker re-opens and
	// the next read is refused without a network call.
	time.Sleep(40 * time.Millisecond)
	_, err := g.BaseFee(ctx)
	require.True(t, errors.Is(err, sentinel.ErrUnavailable))
	require.True(t, breaker.IsOpen())

	before := next.reads
	_, err = g.AccountState(ctx, "rAccount1")
	require.True(t, errors.Is(err, sentinel.ErrUnavailable))
	assert.Equal(t, before, next.reads)
}

func TestBreakerGatewayNeverBlocksSubmitOrPolling(t *testing.T) {
	ctx := context.Background()
	next := &flakyGateway{down: true}
	breaker := circuit.New("ledger", circuit.WithFailureThreshold(1))
	g := WithBreaker(next, breaker, nil)

	_, _ = g.BaseFee(ctx)
	require.True(t, breaker.IsOpen())

	// An in-flight payment must still be submitted and polled to an answer.
	_, err := g.Submit(ctx, "DEADBEEF")
	assert.NoError(t, err)
	result, err := g.TxStatus(ctx, "HASH1")
	assert.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, 1, next.submits)
	assert.Equal(t, 1, next.polls)
}
