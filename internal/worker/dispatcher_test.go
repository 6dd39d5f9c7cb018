package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/retry"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

func newDelivery(t mq.MessageType, q mq.Queue, payload mq.Payload) *mq.Delivery {
	return &mq.Delivery{Queue: q, Envelope: mq.NewEnvelope(t, payload)}
}

func TestDispatcher_Done(t *testing.T) {
	reg := NewRegistry()
	var gotLogger bool
	reg.Register(mq.MessageTypeSubdefCreation, func() Worker {
		return funcWorker(func(ctx context.Context, payload mq.Payload) Outcome {
			gotLogger = telemetry.FromContext(ctx) != nil
			return Done()
		})
	})

	retrier := &fakeRetrier{}
	d := NewDispatcher(DispatcherConfig{Registry: reg, Retrier: retrier, Logger: quietLogger()})

	err := d.Handle(context.Background(), newDelivery(mq.MessageTypeSubdefCreation, mq.QueueSubdef, mq.Payload{"recordId": 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotLogger {
		t.Error("worker should receive a logger in context")
	}
	if len(retrier.requests) != 0 {
		t.Errorf("expected no retry, got %d", len(retrier.requests))
	}
}

func TestDispatcher_UnknownType(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Registry: NewRegistry(), Logger: quietLogger()})

	err := d.Handle(context.Background(), newDelivery("resizeVideo", mq.QueueSubdef, nil))
	if !errors.Is(err, mq.ErrUnknownMessageType) {
		t.Errorf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestDispatcher_RetryAttempts(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mq.MessageTypeExportMail, func() Worker {
		return funcWorker(func(ctx context.Context, payload mq.Payload) Outcome {
			// Воркер возвращает новый payload без count
			return RetryLater(mq.Payload{"destinationMails": []string{"b@example.com"}}, "some mails failed")
		})
	})

	retrier := &fakeRetrier{}
	d := NewDispatcher(DispatcherConfig{Registry: reg, Retrier: retrier, Logger: quietLogger()})

	tests := []struct {
		payload mq.Payload
		want    int
	}{
		{mq.Payload{}, 2},
		{mq.Payload{"count": 2}, 3},
		{mq.Payload{"count": 7}, 8},
	}

	for _, tt := range tests {
		if err := d.Handle(context.Background(), newDelivery(mq.MessageTypeExportMail, mq.QueueExport, tt.payload)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		req := retrier.requests[len(retrier.requests)-1]
		if req.Attempt != tt.want {
			t.Errorf("count=%v: expected attempt %d, got %d", tt.payload["count"], tt.want, req.Attempt)
		}
		if req.Queue != mq.QueueExport || req.MessageType != mq.MessageTypeExportMail {
			t.Errorf("unexpected request target: %s %s", req.MessageType, req.Queue)
		}
		if req.Reason != "some mails failed" {
			t.Errorf("unexpected reason: %s", req.Reason)
		}
		if got := req.Envelope().Payload.Strings("destinationMails"); len(got) != 1 || got[0] != "b@example.com" {
			t.Errorf("unexpected retry payload: %v", req.Envelope().Payload)
		}
	}
}

func TestDispatcher_RetryScheduleFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mq.MessageTypeWebhook, func() Worker {
		return funcWorker(func(ctx context.Context, payload mq.Payload) Outcome {
			return RetryLater(nil, "timeout")
		})
	})

	scheduleErr := errors.New("broker down")
	d := NewDispatcher(DispatcherConfig{Registry: reg, Retrier: &fakeRetrier{err: scheduleErr}, Logger: quietLogger()})

	err := d.Handle(context.Background(), newDelivery(mq.MessageTypeWebhook, mq.QueueWebhook, mq.Payload{"url": "x"}))
	if !errors.Is(err, scheduleErr) {
		t.Errorf("expected schedule error to reach the consumer, got %v", err)
	}
}

// recordingPublisher — retry.Publisher, записывающий отложенные публикации.
type recordingPublisher struct {
	env   mq.Envelope
	queue mq.Queue
	delay time.Duration
	calls int
}

func (p *recordingPublisher) Publish(ctx context.Context, env mq.Envelope, queue mq.Queue) error {
	return p.PublishDelayed(ctx, env, queue, 0)
}

func (p *recordingPublisher) PublishDelayed(ctx context.Context, env mq.Envelope, queue mq.Queue, delay time.Duration) error {
	p.env, p.queue, p.delay = env, queue, delay
	p.calls++
	return nil
}

// Сбой скачивания в createRecord: исходное сообщение подтверждается,
// в createrecord-queue уходит копия с count=2 после задержки.
func TestDispatcher_CreateRecordDownloadFailure(t *testing.T) {
	uploader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assets/a1":
			w.Write([]byte(`{"originalName":"photo.jpg","formData":{"collection_destination":"5"}}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer uploader.Close()

	host := &fakeHost{}
	reg := NewRegistry()
	reg.Register(mq.MessageTypeCreateRecord, func() Worker {
		return NewCreateRecordWorker(CreateRecordConfig{
			Host:      host,
			Commits:   newFakeCommits(),
			Publisher: &fakePublisher{},
			TempDir:   t.TempDir(),
		})
	})

	pub := &recordingPublisher{}
	policy := retry.DefaultPolicy()
	policy.Delays[mq.MessageTypeCreateRecord] = 30 * time.Second

	d := NewDispatcher(DispatcherConfig{
		Registry: reg,
		Retrier:  retry.NewCycle(pub, policy, quietLogger()),
		Logger:   quietLogger(),
	})

	payload := mq.Payload{"base_url": uploader.URL, "asset": "a1", "assetToken": "tok", "commit_id": "c1"}
	if err := d.Handle(context.Background(), newDelivery(mq.MessageTypeCreateRecord, mq.QueueCreateRecord, payload)); err != nil {
		t.Fatalf("expected ack, got error: %v", err)
	}

	if pub.calls != 1 {
		t.Fatalf("expected one re-publication, got %d", pub.calls)
	}
	if pub.queue != mq.QueueCreateRecord {
		t.Errorf("expected %s, got %s", mq.QueueCreateRecord, pub.queue)
	}
	if pub.delay != 30*time.Second {
		t.Errorf("expected 30s delay, got %s", pub.delay)
	}
	if pub.env.MessageType != mq.MessageTypeCreateRecord {
		t.Errorf("unexpected type %s", pub.env.MessageType)
	}
	if got := pub.env.Payload.Attempt(); got != 2 {
		t.Errorf("expected count=2, got %d", got)
	}
	if pub.env.Payload.String("asset") != "a1" {
		t.Errorf("payload not preserved: %v", pub.env.Payload)
	}
	if len(host.recordReqs) != 0 {
		t.Error("record must not be created after a failed download")
	}
}
