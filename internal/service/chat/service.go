// Package chat manages chat sessions and their append-only conversation
// logs, and drives streamed assistant responses end to end: persistence,
// provider streaming, and fan-out to connected clients.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"repochat/internal/config"
	"repochat/internal/domain"
	"repochat/internal/domain/models"
	"repochat/internal/domain/repositories"
	"repochat/internal/service/llm"
	"repochat/internal/stream"
)

const defaultMaxTokens = 4096

// Service implements session and message operations.
type Service struct {
	sessions repositories.SessionRepository
	messages repositories.MessageRepository
	repos    repositories.RepoRepository
	files    repositories.FileRepository
	txMgr    repositories.TransactionManager

	providers *llm.Registry
	hub       *stream.Hub
	builder   *ContextBuilder

	defaultModel string
	logger       *slog.Logger
}

// NewService creates the chat service.
func NewService(
	sessions repositories.SessionRepository,
	messages repositories.MessageRepository,
	repos repositories.RepoRepository,
	files repositories.FileRepository,
	txMgr repositories.TransactionManager,
	providers *llm.Registry,
	hub *stream.Hub,
	defaultModel string,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions:     sessions,
		messages:     messages,
		repos:        repos,
		files:        files,
		txMgr:        txMgr,
		providers:    providers,
		hub:          hub,
		builder:      NewContextBuilder(),
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// CreateSessionRequest creates a new session bound to a loaded repository.
type CreateSessionRequest struct {
	RepoID string `json:"repo_id"`
	Title  string `json:"title"`
}

// Validate checks the request fields.
func (r CreateSessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RepoID, validation.Required),
		validation.Field(&r.Title, validation.Length(0, config.MaxSessionTitleLength)),
	)
}

// CreateSession creates a session for one of the user's repositories.
func (s *Service) CreateSession(ctx context.Context, userID string, req CreateSessionRequest) (*models.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	if _, err := s.repos.GetByID(ctx, req.RepoID, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &models.Session{
		UserID:    userID,
		RepoID:    req.RepoID,
		Title:     strings.TrimSpace(req.Title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session created", "session_id", session.ID, "repo_id", req.RepoID)
	return session, nil
}

// GetSession returns one of the user's sessions.
func (s *Service) GetSession(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	return s.sessions.GetByID(ctx, sessionID, userID)
}

// ListSessions returns the user's sessions, most recently active first.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// UpdateSessionTitle renames a session.
func (s *Service) UpdateSessionTitle(ctx context.Context, sessionID, userID, title string) error {
	title = strings.TrimSpace(title)
	err := validation.Validate(title,
		validation.Required,
		validation.Length(1, config.MaxSessionTitleLength))
	if err != nil {
		return &domain.ValidationError{Message: fmt.Sprintf("title: %v", err)}
	}
	return s.sessions.UpdateTitle(ctx, sessionID, userID, title)
}

// DeleteSession soft-deletes a session. Its log stays in storage but is no
// longer reachable through any API.
func (s *Service) DeleteSession(ctx context.Context, sessionID, userID string) error {
	return s.sessions.SoftDelete(ctx, sessionID, userID)
}

// GetMessage returns one message, scoped to the owning user.
func (s *Service) GetMessage(ctx context.Context, messageID, userID string) (*models.Message, error) {
	return s.messages.GetByID(ctx, messageID, userID)
}

// ListMessages returns the session's conversation log in append order.
func (s *Service) ListMessages(ctx context.Context, sessionID, userID string) ([]models.Message, error) {
	return s.messages.ListBySession(ctx, sessionID, userID)
}

// SendQueryRequest submits a user query for a streamed response.
type SendQueryRequest struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Validate checks the request fields.
func (r SendQueryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content,
			validation.Required,
			validation.Length(1, config.MaxQueryLength)),
	)
}

// QueryResult is what SendQuery hands back: the persisted user message and
// the assistant placeholder whose stream clients then attach to.
type QueryResult struct {
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
}

// SendQuery appends the user's message, creates a streaming assistant
// placeholder, and starts response generation in the background. A session
// allows one in-flight response at a time; a second query while one is
// streaming is a conflict.
func (s *Service) SendQuery(ctx context.Context, sessionID, userID string, req SendQueryRequest) (*QueryResult, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	session, err := s.sessions.GetByID(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}
	provider, err := s.providers.GetForModel(model)
	if err != nil {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unsupported model %q", model)}
	}

	llmReq, err := s.buildRequest(ctx, session, userID, model, req.Content)
	if err != nil {
		return nil, err
	}

	content := req.Content
	now := time.Now().UTC()
	userMsg := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   content,
		Status:    models.MessageStatusComplete,
		CreatedAt: now,
	}
	assistantMsg := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Status:    models.MessageStatusStreaming,
		Model:     &model,
		// Must sort after the user turn even when the clock reads equal at
		// storage precision; the log orders by (created_at, id).
		CreatedAt: now.Add(time.Microsecond),
	}

	err = s.txMgr.ExecTx(ctx, func(txCtx context.Context) error {
		// The in-flight check and the inserts must be atomic: the session
		// row lock serializes concurrent queries on the same session.
		if err := s.sessions.Lock(txCtx, sessionID); err != nil {
			return err
		}
		inFlight, err := s.messages.CountInFlight(txCtx, sessionID)
		if err != nil {
			return err
		}
		if inFlight > 0 {
			return &domain.ConflictError{
				Message:      "a response is already streaming in this session",
				ResourceType: "session",
				ResourceID:   sessionID,
			}
		}
		if err := s.messages.Create(txCtx, userMsg); err != nil {
			return err
		}
		if err := s.messages.Create(txCtx, assistantMsg); err != nil {
			return err
		}
		if session.Title == "" {
			if err := s.sessions.UpdateTitle(txCtx, sessionID, userID, deriveTitle(content)); err != nil {
				return err
			}
		}
		return s.sessions.Touch(txCtx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	// The response outlives the submitting request, so generation runs on
	// its own context; the hub holds the cancel for interrupts.
	streamCtx, cancel := context.WithCancel(context.Background())
	st := s.hub.Create(assistantMsg.ID, cancel)

	if event, err := models.NewMessageStartEvent(assistantMsg.ID, model); err == nil {
		st.Publish(event)
	}

	go s.runStream(streamCtx, st, assistantMsg.ID, provider, llmReq)

	s.logger.Info("query accepted",
		"session_id", sessionID,
		"message_id", assistantMsg.ID,
		"model", model,
		"provider", provider.Name())
	return &QueryResult{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// Interrupt cancels an in-flight assistant response. The partial content
// is committed by the runner; this only triggers the cancellation.
func (s *Service) Interrupt(ctx context.Context, messageID, userID string) error {
	msg, err := s.messages.GetByID(ctx, messageID, userID)
	if err != nil {
		return err
	}
	if msg.Role != models.RoleAssistant ||
		(msg.Status != models.MessageStatusPending && msg.Status != models.MessageStatusStreaming) {
		return &domain.ConflictError{
			Message:      "message is not streaming",
			ResourceType: "message",
			ResourceID:   messageID,
		}
	}

	if !s.hub.Cancel(messageID) {
		return &domain.ConflictError{
			Message:      "no active stream for message",
			ResourceType: "message",
			ResourceID:   messageID,
		}
	}

	s.logger.Info("stream interrupted", "message_id", messageID)
	return nil
}

// buildRequest assembles the provider request: repository-aware system
// prompt plus the completed conversation history and the new query.
func (s *Service) buildRequest(ctx context.Context, session *models.Session, userID, model, query string) (*llm.Request, error) {
	repo, err := s.repos.GetByID(ctx, session.RepoID, userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.files.ListEntries(ctx, session.RepoID)
	if err != nil {
		return nil, err
	}
	forest, err := buildForest(entries)
	if err != nil {
		return nil, err
	}

	contents, err := s.files.ListContents(ctx, session.RepoID)
	if err != nil {
		return nil, err
	}

	history, err := s.messages.ListBySession(ctx, session.ID, userID)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		// Unfinished or failed turns never reach the model.
		if m.Status != models.MessageStatusComplete || m.Content == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: models.RoleUser, Content: strings.TrimSpace(query)})

	return &llm.Request{
		Model:     model,
		System:    s.builder.BuildSystemPrompt(repo.Name, query, forest, contents),
		Messages:  messages,
		MaxTokens: defaultMaxTokens,
	}, nil
}

// deriveTitle makes a session title from the first query.
func deriveTitle(query string) string {
	title := strings.Join(strings.Fields(query), " ")
	const max = 80
	if runes := []rune(title); len(runes) > max {
		title = string(runes[:max]) + "..."
	}
	return title
}
