package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

type sent struct {
	env   mq.Envelope
	queue mq.Queue
	delay time.Duration
}

type recordingPublisher struct {
	sent []sent
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, env mq.Envelope, queue mq.Queue) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sent{env: env, queue: queue})
	return nil
}

func (p *recordingPublisher) PublishDelayed(ctx context.Context, env mq.Envelope, queue mq.Queue, delay time.Duration) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sent{env: env, queue: queue, delay: delay})
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRequest_AttemptCounter(t *testing.T) {
	first := NewRequest(mq.MessageTypeCreateRecord, mq.QueueCreateRecord, mq.Payload{"asset": "a1"}, "download failed")
	assert.Equal(t, 2, first.Attempt)
	assert.Equal(t, 2, first.Envelope().Payload.Attempt())

	second := NewRequest(mq.MessageTypeCreateRecord, mq.QueueCreateRecord, first.Envelope().Payload, "download failed")
	assert.Equal(t, 3, second.Attempt)

	// Исходный payload не меняется
	_, ok := first.Payload["count"]
	assert.False(t, ok)

	assert.Equal(t, 2, NewRequest(mq.MessageTypeWebhook, "", nil, "").Attempt)
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()
	p.Delays[mq.MessageTypeWebhook] = 5 * time.Second

	assert.Equal(t, 5*time.Second, p.Delay(mq.MessageTypeWebhook, 2))
	assert.Equal(t, 5*time.Second, p.Delay(mq.MessageTypeWebhook, 7))
	assert.Equal(t, DefaultDelay, p.Delay(mq.MessageTypeSubdefCreation, 2))

	p.Backoff = BackoffExponential
	p.MaxDelay = 30 * time.Second
	assert.Equal(t, 5*time.Second, p.Delay(mq.MessageTypeWebhook, 2))
	assert.Equal(t, 10*time.Second, p.Delay(mq.MessageTypeWebhook, 3))
	assert.Equal(t, 20*time.Second, p.Delay(mq.MessageTypeWebhook, 4))
	assert.Equal(t, 30*time.Second, p.Delay(mq.MessageTypeWebhook, 5))
	assert.Equal(t, 30*time.Second, p.Delay(mq.MessageTypeWebhook, 50))
}

func TestPolicy_Exhausted(t *testing.T) {
	p := DefaultPolicy()
	assert.False(t, p.Exhausted(1000), "unbounded by default")

	p.MaxAttempts = 3
	assert.False(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))
}

func TestPolicyFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"RETRY_DELAY_MS", "RETRY_DELAYS", "RETRY_BACKOFF", "RETRY_MAX_DELAY_MS", "RETRY_MAX_ATTEMPTS"} {
			t.Setenv(key, "")
		}

		p, err := PolicyFromEnv()
		require.NoError(t, err)
		assert.Equal(t, DefaultDelay, p.DefaultDelay)
		assert.Equal(t, BackoffFixed, p.Backoff)
		assert.Zero(t, p.MaxAttempts)
	})

	t.Run("configured", func(t *testing.T) {
		t.Setenv("RETRY_DELAY_MS", "2500")
		t.Setenv("RETRY_DELAYS", "createRecord=30000, webhook=500")
		t.Setenv("RETRY_BACKOFF", "exponential")
		t.Setenv("RETRY_MAX_DELAY_MS", "60000")
		t.Setenv("RETRY_MAX_ATTEMPTS", "5")

		p, err := PolicyFromEnv()
		require.NoError(t, err)
		assert.Equal(t, 2500*time.Millisecond, p.DefaultDelay)
		assert.Equal(t, 30*time.Second, p.Delays[mq.MessageTypeCreateRecord])
		assert.Equal(t, 500*time.Millisecond, p.Delays[mq.MessageTypeWebhook])
		assert.Equal(t, BackoffExponential, p.Backoff)
		assert.Equal(t, time.Minute, p.MaxDelay)
		assert.Equal(t, 5, p.MaxAttempts)
	})

	invalid := map[string][2]string{
		"delay":        {"RETRY_DELAY_MS", "soon"},
		"unknown type": {"RETRY_DELAYS", "resizeVideo=100"},
		"no equals":    {"RETRY_DELAYS", "webhook"},
		"backoff":      {"RETRY_BACKOFF", "linear"},
		"attempts":     {"RETRY_MAX_ATTEMPTS", "-1"},
	}
	for name, kv := range invalid {
		t.Run("invalid "+name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := PolicyFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestCycle_Schedule(t *testing.T) {
	pub := &recordingPublisher{}
	policy := DefaultPolicy()
	policy.Delays[mq.MessageTypeCreateRecord] = 30 * time.Second
	cycle := NewCycle(pub, policy, quietLogger())

	before := testutil.ToFloat64(telemetry.RetriesScheduled.WithLabelValues(string(mq.MessageTypeCreateRecord)))

	req := NewRequest(mq.MessageTypeCreateRecord, mq.QueueCreateRecord, mq.Payload{"asset": "a1", "commit_id": "c1"}, "Error when downloading assets!")
	require.NoError(t, cycle.Schedule(t.Context(), req))

	require.Len(t, pub.sent, 1)
	got := pub.sent[0]
	assert.Equal(t, mq.QueueCreateRecord, got.queue)
	assert.Equal(t, 30*time.Second, got.delay)
	assert.Equal(t, mq.MessageTypeCreateRecord, got.env.MessageType)
	assert.Equal(t, 2, got.env.Payload.Attempt())
	assert.Equal(t, "a1", got.env.Payload.String("asset"))

	after := testutil.ToFloat64(telemetry.RetriesScheduled.WithLabelValues(string(mq.MessageTypeCreateRecord)))
	assert.Equal(t, before+1, after)
}

func TestCycle_ScheduleFallsBackToTypeQueue(t *testing.T) {
	pub := &recordingPublisher{}
	cycle := NewCycle(pub, DefaultPolicy(), quietLogger())

	require.NoError(t, cycle.Schedule(t.Context(), NewRequest(mq.MessageTypePopulateIndex, "", mq.Payload{"databoxId": 1}, "index busy")))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, mq.QueuePopulateIndex, pub.sent[0].queue)

	err := cycle.Schedule(t.Context(), NewRequest("resizeVideo", "", nil, ""))
	assert.ErrorIs(t, err, mq.ErrUnknownMessageType)
}

func TestCycle_ExhaustedGoesToDeadLetter(t *testing.T) {
	pub := &recordingPublisher{}
	policy := DefaultPolicy()
	policy.MaxAttempts = 3
	cycle := NewCycle(pub, policy, quietLogger())

	before := testutil.ToFloat64(telemetry.DeadLettered.WithLabelValues(string(mq.MessageTypeWebhook)))

	req := NewRequest(mq.MessageTypeWebhook, mq.QueueWebhook, mq.Payload{"count": 3}, "503")
	require.Equal(t, 4, req.Attempt)
	require.NoError(t, cycle.Schedule(t.Context(), req))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, mq.QueueDeadLetter, pub.sent[0].queue)
	assert.Zero(t, pub.sent[0].delay)
	assert.Equal(t, 4, pub.sent[0].env.Payload.Attempt())

	after := testutil.ToFloat64(telemetry.DeadLettered.WithLabelValues(string(mq.MessageTypeWebhook)))
	assert.Equal(t, before+1, after)
}

func TestCycle_PublishFailure(t *testing.T) {
	brokerErr := errors.New("broker down")
	cycle := NewCycle(&recordingPublisher{err: brokerErr}, DefaultPolicy(), quietLogger())

	err := cycle.Schedule(t.Context(), NewRequest(mq.MessageTypeWebhook, mq.QueueWebhook, nil, "timeout"))
	assert.ErrorIs(t, err, brokerErr)
}
