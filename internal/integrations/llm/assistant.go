package llm

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticketdesk/internal/domain"
	"ticketdesk/internal/logging"
	"ticketdesk/internal/storage/sqlite"
)

const (
	noDataContext       = "No data available."
	defaultContextRows  = 20
	defaultHistoryTurns = 10
	historyLimit        = 50
)

var (
	ErrEmptyPrompt = errors.New("empty prompt")
	ErrNoProvider  = errors.New("no llm provider configured")
)

var personas = map[string]string{
	domain.ModuleIT:      "You are an IT Support Specialist.",
	domain.ModuleCyber:   "You are a Cyber Security Analyst.",
	domain.ModuleDataSci: "You are a Data Scientist.",
}

// Tailer returns the most recent records of one domain store.
type Tailer interface {
	Tail(ctx context.Context, n int) ([]domain.Ticket, error)
}

// Assistant answers questions about one module's records and keeps the
// conversation in the chat log.
type Assistant struct {
	db           *sql.DB
	stores       map[domain.Domain]Tailer
	provider     Provider
	contextRows  int
	historyTurns int
	now          func() time.Time
}

type AssistantOption func(*Assistant)

// WithContextRows sets how many trailing records are sent as data context.
func WithContextRows(n int) AssistantOption {
	return func(a *Assistant) {
		if n > 0 {
			a.contextRows = n
		}
	}
}

// WithHistoryTurns sets how many prior messages are replayed to the provider.
func WithHistoryTurns(n int) AssistantOption {
	return func(a *Assistant) {
		if n >= 0 {
			a.historyTurns = n
		}
	}
}

func withClock(now func() time.Time) AssistantOption {
	return func(a *Assistant) { a.now = now }
}

func NewAssistant(db *sql.DB, stores map[domain.Domain]Tailer, provider Provider, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		db:           db,
		stores:       stores,
		provider:     provider,
		contextRows:  defaultContextRows,
		historyTurns: defaultHistoryTurns,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Context renders the last records of the module's store as CSV with a
// header row.
func (a *Assistant) Context(ctx context.Context, module string) (string, error) {
	d, ok := domain.DomainForModule(module)
	if !ok {
		return noDataContext, nil
	}
	store, ok := a.stores[d]
	if !ok {
		return noDataContext, nil
	}
	rows, err := store.Tail(ctx, a.contextRows)
	if err != nil {
		return "", fmt.Errorf("load %s context: %w", module, err)
	}
	if len(rows) == 0 {
		return noDataContext, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ticket_id", "date", "issue_type", "description", "priority", "status"})
	for _, r := range rows {
		_ = w.Write([]string{r.TicketID, r.Date, r.IssueType, r.Description, r.Priority, r.Status})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("render %s context: %w", module, err)
	}
	return buf.String(), nil
}

// Ask sends the prompt with the module persona, data context and recent
// history to the provider. The prompt and reply are recorded only when the
// provider answers.
func (a *Assistant) Ask(ctx context.Context, username, module, prompt string) (string, error) {
	module = strings.ToUpper(strings.TrimSpace(module))
	if _, ok := domain.DomainForModule(module); !ok {
		return "", fmt.Errorf("unknown module %q", module)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	if a.provider == nil {
		return "", ErrNoProvider
	}
	logger := logging.WithFields("username", username, "module", module)

	history, err := a.History(ctx, username, module)
	if err != nil {
		return "", err
	}
	dataContext, err := a.Context(ctx, module)
	if err != nil {
		return "", err
	}

	if len(history) > a.historyTurns {
		history = history[len(history)-a.historyTurns:]
	}
	turns := make([]Turn, 0, len(history)+1)
	for _, m := range history {
		role := roleAssistant
		if m.Sender == domain.SenderUser {
			role = roleUser
		}
		turns = append(turns, Turn{Role: role, Content: m.Message})
	}
	turns = append(turns, Turn{Role: roleUser, Content: prompt})

	reply, usage, err := a.provider.Complete(ctx, systemPrompt(module, dataContext), turns)
	if err != nil {
		logger.Error("assistant request failed", "err", err)
		return "", err
	}
	if err := a.save(ctx, username, module, domain.SenderUser, prompt); err != nil {
		return "", err
	}
	if err := a.save(ctx, username, module, domain.SenderAssistant, reply); err != nil {
		return "", err
	}
	logger.Info("assistant replied", "turns", len(turns), "tokens", usage.TotalTokens())
	return reply, nil
}

// History returns the stored conversation, oldest first.
func (a *Assistant) History(ctx context.Context, username, module string) ([]domain.ChatMessage, error) {
	return sqlite.GetChatHistory(ctx, a.db, username, strings.ToUpper(module), historyLimit)
}

func (a *Assistant) ClearHistory(ctx context.Context, username, module string) (int64, error) {
	return sqlite.DeleteChatHistory(ctx, a.db, username, strings.ToUpper(module))
}

func (a *Assistant) save(ctx context.Context, username, module, sender, message string) error {
	_, err := sqlite.SaveChatMessage(ctx, a.db, domain.ChatMessage{
		Username:  username,
		Module:    module,
		Sender:    sender,
		Message:   message,
		Timestamp: a.now(),
	})
	return err
}

func systemPrompt(module, dataContext string) string {
	persona, ok := personas[module]
	if !ok {
		persona = "You are a helpful assistant."
	}
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nYou have access to the following live data from the database (most recent entries):\n---\n")
	b.WriteString(strings.TrimRight(dataContext, "\n"))
	b.WriteString("\n---\nAnswer the user's question based on this data. ")
	b.WriteString("If they ask for stats (count, average), calculate them from the data above.")
	return b.String()
}
