//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"faucetd/pkg/platform/audit"
	"faucetd/pkg/testutil/containers"
)

func TestPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	broker := containers.NewRedpandaContainer(t).Broker
	const topic = "faucet.audit.test"

	pub, err := New(ctx, []string{broker}, topic)
	require.NoError(t, err)

	event := audit.Event{
		Action:      audit.ActionGrantIssued,
		Beneficiary: "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH",
		TxHash:      "ABCDEF0123",
	}
	pub.Emit(ctx, event)

	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, pub.Close(flushCtx))

	// Consume the topic from the beginning and verify the event round-trips.
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancelPoll := context.WithTimeout(ctx, 15*time.Second)
	defer cancelPoll()
	fetches := consumer.PollFetches(pollCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)

	// Key is the beneficiary so per-beneficiary history stays ordered.
	assert.Equal(t, event.Beneficiary, string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, audit.ActionGrantIssued, got.Action)
	assert.Equal(t, event.Beneficiary, got.Beneficiary)
	assert.Equal(t, event.TxHash, got.TxHash)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestPublisherTopicCreationIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	broker := containers.NewRedpandaContainer(t).Broker
	const topic = "faucet.audit.idempotent"

	first, err := New(ctx, []string{broker}, topic)
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	// A restart recreating the same topic must not fail.
	second, err := New(ctx, []string{broker}, topic)
	require.NoError(t, err)
	require.NoError(t, second.Close(ctx))
}

func TestPublisherValidation(t *testing.T) {
	_, err := New(context.Background(), nil, "topic")
	assert.Error(t, err)
	_, err = New(context.Background(), []string{"localhost:9092"}, "")
	assert.Error(t, err)
}
