package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"repochat/internal/domain"
	"repochat/internal/domain/models"
	"repochat/internal/domain/repositories"
	"repochat/internal/service/llm"
	"repochat/internal/stream"
)

// --- in-memory fakes ---

type fakeRepos struct {
	mu    sync.Mutex
	repos map[string]*models.Repository
}

func (f *fakeRepos) Create(ctx context.Context, repo *models.Repository) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo.ID = fmt.Sprintf("repo-%d", len(f.repos)+1)
	f.repos[repo.ID] = repo
	return nil
}

func (f *fakeRepos) GetByID(ctx context.Context, repoID, userID string) (*models.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repos[repoID]
	if !ok || repo.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return repo, nil
}

func (f *fakeRepos) GetByURL(ctx context.Context, url, userID string) (*models.Repository, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeRepos) ListByUser(ctx context.Context, userID string) ([]models.Repository, error) {
	return nil, nil
}

func (f *fakeRepos) UpdateFileCount(ctx context.Context, repoID string, count int) error {
	return nil
}

type fakeFiles struct {
	entries  []models.FileEntry
	contents map[string]string
}

func (f *fakeFiles) ReplaceAll(ctx context.Context, repoID string, entries []models.FileEntry, contents map[string]string) error {
	return nil
}

func (f *fakeFiles) ListEntries(ctx context.Context, repoID string) ([]models.FileEntry, error) {
	return f.entries, nil
}

func (f *fakeFiles) GetEntry(ctx context.Context, repoID, path string) (*models.FileEntry, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeFiles) GetContent(ctx context.Context, repoID, path string) (string, error) {
	c, ok := f.contents[path]
	if !ok {
		return "", domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeFiles) ListContents(ctx context.Context, repoID string) (map[string]string, error) {
	return f.contents, nil
}

func (f *fakeFiles) Insert(ctx context.Context, entry *models.FileEntry, content string) error {
	return nil
}

type fakeSessions struct {
	mu         sync.Mutex
	sessions   map[string]*models.Session
	lockedInTx bool
}

// Like the real repository, Create stores the caller's timestamps
// verbatim; setting them is the service's job.
func (f *fakeSessions) Create(ctx context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.ID = fmt.Sprintf("sess-%d", len(f.sessions)+1)
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessions) GetByID(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok || sess.UserID != userID || sess.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

func (f *fakeSessions) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.DeletedAt == nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessions) UpdateTitle(ctx context.Context, sessionID, userID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return domain.ErrNotFound
	}
	sess.Title = title
	return nil
}

func (f *fakeSessions) SoftDelete(ctx context.Context, sessionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return domain.ErrNotFound
	}
	now := time.Now()
	sess.DeletedAt = &now
	return nil
}

func (f *fakeSessions) Touch(ctx context.Context, sessionID string) error {
	return nil
}

func (f *fakeSessions) Lock(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return domain.ErrNotFound
	}
	f.lockedInTx = inTx(ctx)
	return nil
}

type fakeMessages struct {
	mu          sync.Mutex
	messages    []*models.Message
	countedInTx bool
}

// Like the real repository, Create persists the caller's CreatedAt
// verbatim.
func (f *fakeMessages) Create(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = fmt.Sprintf("msg-%d", len(f.messages)+1)
	copied := *msg
	f.messages = append(f.messages, &copied)
	return nil
}

func (f *fakeMessages) GetByID(ctx context.Context, messageID, userID string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == messageID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListBySession orders by (CreatedAt, ID), the same contract the SQL
// query has.
func (f *fakeMessages) ListBySession(ctx context.Context, sessionID, userID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeMessages) Commit(ctx context.Context, messageID, content, status string, truncated bool, errMsg *string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == messageID {
			m.Content = content
			m.Status = status
			m.Truncated = truncated
			m.Error = errMsg
			m.CompletedAt = &completedAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeMessages) CountInFlight(ctx context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countedInTx = inTx(ctx)
	n := 0
	for _, m := range f.messages {
		if m.SessionID == sessionID && m.Role == models.RoleAssistant &&
			(m.Status == models.MessageStatusPending || m.Status == models.MessageStatusStreaming) {
			n++
		}
	}
	return n, nil
}

type txKey struct{}

// fakeTxMgr marks the context so fakes can tell whether a call ran inside
// a transaction.
type fakeTxMgr struct{}

func (fakeTxMgr) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(context.WithValue(ctx, txKey{}, true))
}

func inTx(ctx context.Context) bool {
	marked, _ := ctx.Value(txKey{}).(bool)
	return marked
}

// scriptProvider replays scripted events; with waitCancel set it emits its
// text events and then blocks until the context is cancelled.
type scriptProvider struct {
	events     []llm.StreamEvent
	waitCancel bool
}

func (p *scriptProvider) Name() string                  { return "script" }
func (p *scriptProvider) SupportsModel(model string) bool { return true }

func (p *scriptProvider) StreamResponse(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent, len(p.events)+1)
	go func() {
		defer close(ch)
		for _, ev := range p.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				ch <- llm.StreamEvent{Err: ctx.Err()}
				return
			}
		}
		if p.waitCancel {
			<-ctx.Done()
			ch <- llm.StreamEvent{Err: ctx.Err()}
		}
	}()
	return ch, nil
}

// --- harness ---

type harness struct {
	svc      *Service
	repos    *fakeRepos
	sessions *fakeSessions
	messages *fakeMessages
	hub      *stream.Hub
}

func newHarness(t *testing.T, provider llm.Provider) *harness {
	t.Helper()

	repos := &fakeRepos{repos: map[string]*models.Repository{
		"repo-1": {ID: "repo-1", UserID: "user-1", URL: "https://github.com/a/b", Name: "a/b"},
	}}
	files := &fakeFiles{
		entries: []models.FileEntry{
			{RepoID: "repo-1", Path: "main.go", Kind: models.KindFile},
			{RepoID: "repo-1", Path: "README.md", Kind: models.KindFile},
		},
		contents: map[string]string{
			"main.go":   "package main",
			"README.md": "# readme",
		},
	}
	sessions := &fakeSessions{sessions: make(map[string]*models.Session)}
	messages := &fakeMessages{}

	registry := llm.NewRegistry()
	registry.Register(provider)

	hub := stream.NewHub()
	svc := NewService(sessions, messages, repos, files, fakeTxMgr{}, registry, hub,
		"lorem-fast", slog.New(slog.DiscardHandler))

	return &harness{svc: svc, repos: repos, sessions: sessions, messages: messages, hub: hub}
}

func (h *harness) createSession(t *testing.T) *models.Session {
	t.Helper()
	sess, err := h.svc.CreateSession(context.Background(), "user-1", CreateSessionRequest{RepoID: "repo-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

// waitForStatus polls until the message leaves the streaming state.
func (h *harness) waitForStatus(t *testing.T, messageID string) *models.Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg, err := h.messages.GetByID(context.Background(), messageID, "user-1")
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if msg.Status != models.MessageStatusStreaming && msg.Status != models.MessageStatusPending {
			return msg
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("message never left the streaming state")
	return nil
}

// --- tests ---

func TestCreateSession_UnknownRepo(t *testing.T) {
	h := newHarness(t, &scriptProvider{})

	_, err := h.svc.CreateSession(context.Background(), "user-1", CreateSessionRequest{RepoID: "repo-404"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSendQuery_StreamsAndCommits(t *testing.T) {
	provider := &scriptProvider{events: []llm.StreamEvent{
		{Text: "hello "},
		{Text: "world"},
		{Done: true, StopReason: "end_turn"},
	}}
	h := newHarness(t, provider)
	sess := h.createSession(t)

	res, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "what does main.go do?"})
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}
	if res.UserMessage.Status != models.MessageStatusComplete {
		t.Errorf("user message status = %q, want complete", res.UserMessage.Status)
	}

	msg := h.waitForStatus(t, res.AssistantMessage.ID)
	if msg.Status != models.MessageStatusComplete {
		t.Errorf("status = %q, want complete", msg.Status)
	}
	if msg.Content != "hello world" {
		t.Errorf("content = %q, want %q", msg.Content, "hello world")
	}
	if msg.Truncated {
		t.Error("expected truncated = false")
	}
}

func TestSendQuery_MaxTokensMarksTruncated(t *testing.T) {
	provider := &scriptProvider{events: []llm.StreamEvent{
		{Text: "partial"},
		{Done: true, StopReason: "max_tokens"},
	}}
	h := newHarness(t, provider)
	sess := h.createSession(t)

	res, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}

	msg := h.waitForStatus(t, res.AssistantMessage.ID)
	if msg.Status != models.MessageStatusComplete || !msg.Truncated {
		t.Errorf("got status=%q truncated=%v, want complete/truncated", msg.Status, msg.Truncated)
	}
}

func TestSendQuery_RejectsConcurrentQuery(t *testing.T) {
	h := newHarness(t, &scriptProvider{waitCancel: true})
	sess := h.createSession(t)

	res, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "first"})
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}

	_, err = h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "second"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second query err = %v, want ErrConflict", err)
	}

	// Unblock the first stream so the goroutine finishes.
	if err := h.svc.Interrupt(context.Background(), res.AssistantMessage.ID, "user-1"); err != nil {
		t.Fatalf("Interrupt: %v", err)
	}
	h.waitForStatus(t, res.AssistantMessage.ID)
}

func TestInterrupt_CommitsPartialAsCancelled(t *testing.T) {
	provider := &scriptProvider{
		events:     []llm.StreamEvent{{Text: "partial answer "}},
		waitCancel: true,
	}
	h := newHarness(t, provider)
	sess := h.createSession(t)

	res, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}
	msgID := res.AssistantMessage.ID

	// Let the delta land before interrupting.
	waitForContent := time.Now().Add(5 * time.Second)
	for {
		st := h.hub.Get(msgID)
		if st != nil {
			ch := st.Subscribe("probe")
			var buffered int
			drain := true
			for drain {
				select {
				case _, ok := <-ch:
					if !ok {
						drain = false
					} else {
						buffered++
					}
				default:
					drain = false
				}
			}
			st.Unsubscribe("probe")
			// start event + at least one delta
			if buffered >= 2 {
				break
			}
		}
		if time.Now().After(waitForContent) {
			t.Fatal("delta never published")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := h.svc.Interrupt(context.Background(), msgID, "user-1"); err != nil {
		t.Fatalf("Interrupt: %v", err)
	}

	msg := h.waitForStatus(t, msgID)
	if msg.Status != models.MessageStatusCancelled {
		t.Errorf("status = %q, want cancelled", msg.Status)
	}
	if !msg.Truncated {
		t.Error("expected truncated = true")
	}
	if !strings.Contains(msg.Content, "partial answer") {
		t.Errorf("content = %q, want accumulated partial", msg.Content)
	}
}

func TestInterrupt_CompletedMessageConflicts(t *testing.T) {
	provider := &scriptProvider{events: []llm.StreamEvent{
		{Text: "done"},
		{Done: true, StopReason: "end_turn"},
	}}
	h := newHarness(t, provider)
	sess := h.createSession(t)

	res, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}
	h.waitForStatus(t, res.AssistantMessage.ID)

	err = h.svc.Interrupt(context.Background(), res.AssistantMessage.ID, "user-1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestSendQuery_ProviderErrorCommitsErrorStatus(t *testing.T) {
	provider := &scriptProvider{events: []llm.StreamEvent{
		{Text: "before failure "},
		{Err: errors.New("upstream exploded")},
	}}
	h := newHarness(t, provider)
	sess := h.createSession(t)

	res, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}

	msg := h.waitForStatus(t, res.AssistantMessage.ID)
	if msg.Status != models.MessageStatusError {
		t.Errorf("status = %q, want error", msg.Status)
	}
	if msg.Error == nil || !strings.Contains(*msg.Error, "upstream exploded") {
		t.Errorf("error = %v, want upstream cause", msg.Error)
	}
	if !strings.Contains(msg.Content, "before failure") {
		t.Errorf("content = %q, want partial preserved", msg.Content)
	}
}

func TestSendQuery_DerivesSessionTitle(t *testing.T) {
	provider := &scriptProvider{events: []llm.StreamEvent{{Done: true, StopReason: "end_turn"}}}
	h := newHarness(t, provider)
	sess := h.createSession(t)

	res, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "  explain   the   auth flow  "})
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}
	h.waitForStatus(t, res.AssistantMessage.ID)

	updated, err := h.svc.GetSession(context.Background(), sess.ID, "user-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if updated.Title != "explain the auth flow" {
		t.Errorf("title = %q, want derived from query", updated.Title)
	}
}

func TestSendQuery_SetsMessageTimestamps(t *testing.T) {
	provider := &scriptProvider{events: []llm.StreamEvent{{Done: true, StopReason: "end_turn"}}}
	h := newHarness(t, provider)
	sess := h.createSession(t)

	if sess.CreatedAt.IsZero() || sess.UpdatedAt.IsZero() {
		t.Fatal("session timestamps not set on create")
	}

	res, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}
	h.waitForStatus(t, res.AssistantMessage.ID)

	if res.UserMessage.CreatedAt.IsZero() || res.AssistantMessage.CreatedAt.IsZero() {
		t.Fatal("message timestamps not set on create")
	}
	// The log orders by (created_at, id); the user turn must sort before
	// the assistant turn it provoked.
	if !res.UserMessage.CreatedAt.Before(res.AssistantMessage.CreatedAt) {
		t.Errorf("user created_at %v not before assistant created_at %v",
			res.UserMessage.CreatedAt, res.AssistantMessage.CreatedAt)
	}

	log, err := h.svc.ListMessages(context.Background(), sess.ID, "user-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(log) != 2 || log[0].Role != models.RoleUser || log[1].Role != models.RoleAssistant {
		t.Fatalf("log order = %+v, want user then assistant", log)
	}
}

func TestSendQuery_InFlightCheckRunsInTransaction(t *testing.T) {
	h := newHarness(t, &scriptProvider{waitCancel: true})
	sess := h.createSession(t)

	res, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}

	// The session lock and the in-flight count must share the transaction
	// that inserts the assistant row, or two writers can both observe zero.
	if !h.sessions.lockedInTx {
		t.Error("session was not locked inside the transaction")
	}
	if !h.messages.countedInTx {
		t.Error("in-flight count ran outside the transaction")
	}

	if err := h.svc.Interrupt(context.Background(), res.AssistantMessage.ID, "user-1"); err != nil {
		t.Fatalf("Interrupt: %v", err)
	}
	h.waitForStatus(t, res.AssistantMessage.ID)
}

func TestSendQuery_ValidatesContent(t *testing.T) {
	h := newHarness(t, &scriptProvider{})
	sess := h.createSession(t)

	_, err := h.svc.SendQuery(context.Background(), sess.ID, "user-1", SendQueryRequest{Content: "   "})
	if err == nil {
		t.Fatal("expected validation error for blank content")
	}
}
