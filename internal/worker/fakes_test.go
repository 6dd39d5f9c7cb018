package worker

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/shaiso/Conveyor/internal/hostapi"
	"github.com/shaiso/Conveyor/internal/mailer"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/retry"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

func testContext() context.Context {
	return telemetry.WithLogger(context.Background(), quietLogger())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Publisher ---

type publishedMessage struct {
	Type    mq.MessageType
	Payload mq.Payload
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	logs     []string
	err      error
	failOn   func(mq.Payload) bool
}

func (p *fakePublisher) PublishMessage(ctx context.Context, t mq.MessageType, payload mq.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.failOn != nil && p.failOn(payload) {
		return mq.ErrPublish
	}
	p.messages = append(p.messages, publishedMessage{Type: t, Payload: payload})
	return nil
}

func (p *fakePublisher) PushLog(ctx context.Context, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append(p.logs, message)
	return nil
}

// --- Host ---

type fakeHost struct {
	subdefs    []hostapi.Subdef
	subdefErr  error
	subdefReqs []hostapi.SubdefRequest

	metaErr  error
	metaReqs []hostapi.MetadataRequest

	record     *hostapi.RecordResult
	recordErr  error
	recordReqs []hostapi.RecordRequest
	recordFile []byte

	archive     *hostapi.ExportArchive
	archiveErr  error
	archiveReqs []string

	indexErr  error
	indexReqs []hostapi.IndexRequest
}

func (h *fakeHost) GenerateSubdefs(ctx context.Context, req hostapi.SubdefRequest) ([]hostapi.Subdef, error) {
	h.subdefReqs = append(h.subdefReqs, req)
	return h.subdefs, h.subdefErr
}

func (h *fakeHost) WriteMetadatas(ctx context.Context, req hostapi.MetadataRequest) error {
	h.metaReqs = append(h.metaReqs, req)
	return h.metaErr
}

func (h *fakeHost) CreateRecord(ctx context.Context, req hostapi.RecordRequest) (*hostapi.RecordResult, error) {
	h.recordReqs = append(h.recordReqs, req)
	if data, err := readFile(req.FilePath); err == nil {
		h.recordFile = data
	}
	if h.recordErr != nil {
		return nil, h.recordErr
	}
	if h.record == nil {
		return &hostapi.RecordResult{RecordID: 1}, nil
	}
	return h.record, nil
}

func (h *fakeHost) BuildExportArchive(ctx context.Context, token string) (*hostapi.ExportArchive, error) {
	h.archiveReqs = append(h.archiveReqs, token)
	if h.archiveErr != nil {
		return nil, h.archiveErr
	}
	if h.archive == nil {
		return &hostapi.ExportArchive{SenderName: "Alice", SenderMail: "alice@example.com"}, nil
	}
	return h.archive, nil
}

func (h *fakeHost) PopulateIndex(ctx context.Context, req hostapi.IndexRequest) error {
	h.indexReqs = append(h.indexReqs, req)
	return h.indexErr
}

// --- CommitTracker ---

type fakeCommits struct {
	commits     map[string][]string
	registerErr error
	markErr     error
}

func newFakeCommits() *fakeCommits {
	return &fakeCommits{commits: make(map[string][]string)}
}

func (c *fakeCommits) Register(ctx context.Context, commitID string, assets []string) error {
	if c.registerErr != nil {
		return c.registerErr
	}
	if _, ok := c.commits[commitID]; ok {
		return repo.ErrAlreadyExists
	}
	c.commits[commitID] = append([]string(nil), assets...)
	return nil
}

func (c *fakeCommits) MarkDone(ctx context.Context, commitID, assetID string) (int, error) {
	if c.markErr != nil {
		return 0, c.markErr
	}
	assets, ok := c.commits[commitID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	var rest []string
	for _, a := range assets {
		if a != assetID {
			rest = append(rest, a)
		}
	}
	c.commits[commitID] = rest
	return len(rest), nil
}

func (c *fakeCommits) Delete(ctx context.Context, commitID string) error {
	if _, ok := c.commits[commitID]; !ok {
		return repo.ErrNotFound
	}
	delete(c.commits, commitID)
	return nil
}

// --- Mailer ---

type fakeMailer struct {
	sent   []mailer.Mail
	failTo map[string]bool
}

func (m *fakeMailer) Send(ctx context.Context, mail mailer.Mail) error {
	if m.failTo[mail.To] {
		return mailer.ErrSend
	}
	m.sent = append(m.sent, mail)
	return nil
}

// --- LogJournal ---

type fakeJournal struct {
	lines []string
	err   error
}

func (j *fakeJournal) Append(ctx context.Context, message string) (*repo.LogEntry, error) {
	if j.err != nil {
		return nil, j.err
	}
	j.lines = append(j.lines, message)
	return &repo.LogEntry{Message: message}, nil
}

// --- Retrier ---

type fakeRetrier struct {
	requests []retry.Request
	err      error
}

func (r *fakeRetrier) Schedule(ctx context.Context, req retry.Request) error {
	r.requests = append(r.requests, req)
	return r.err
}

// --- Worker ---

type funcWorker func(ctx context.Context, payload mq.Payload) Outcome

func (f funcWorker) Process(ctx context.Context, payload mq.Payload) Outcome {
	return f(ctx, payload)
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
