package llm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ticketdesk/internal/domain"
	"ticketdesk/internal/storage/sqlite"
)

type fakeProvider struct {
	reply  string
	err    error
	system string
	turns  []Turn
	calls  int
}

func (f *fakeProvider) Complete(_ context.Context, system string, turns []Turn) (string, Usage, error) {
	f.calls++
	f.system = system
	f.turns = append([]Turn(nil), turns...)
	if f.err != nil {
		return "", Usage{}, f.err
	}
	return f.reply, Usage{InputTokens: 10, OutputTokens: 5}, nil
}

func newTestAssistant(t *testing.T, p Provider, opts ...AssistantOption) (*Assistant, *sql.DB, map[domain.Domain]*sqlite.DomainStore) {
	t.Helper()
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "assistant.db"), false)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stores := sqlite.Stores(db)
	tailers := make(map[domain.Domain]Tailer, len(stores))
	for d, s := range stores {
		tailers[d] = s
	}
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.Local)
	opts = append(opts, withClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return NewAssistant(db, tailers, p, opts...), db, stores
}

func TestContextEmptyStore(t *testing.T) {
	a, _, _ := newTestAssistant(t, &fakeProvider{})
	got, err := a.Context(context.Background(), domain.ModuleIT)
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if got != noDataContext {
		t.Fatalf("expected %q, got %q", noDataContext, got)
	}
	if got, _ := a.Context(context.Background(), "HR"); got != noDataContext {
		t.Fatalf("unknown module should have no data, got %q", got)
	}
}

func TestContextRendersLastRows(t *testing.T) {
	a, _, stores := newTestAssistant(t, &fakeProvider{}, WithContextRows(2))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := stores[domain.Cybersecurity].Create(ctx, "Phishing", fmt.Sprintf("mail %d, urgent", i), "High", "Open"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := a.Context(ctx, "cyber")
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %q", got)
	}
	if lines[0] != "ticket_id,date,issue_type,description,priority,status" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "TICK-1002,") || !strings.Contains(lines[1], `"mail 1, urgent"`) {
		t.Fatalf("unexpected first row %q", lines[1])
	}
}

func TestAskPersistsBothTurns(t *testing.T) {
	p := &fakeProvider{reply: "There is one open ticket."}
	a, _, stores := newTestAssistant(t, p)
	ctx := context.Background()
	if _, err := stores[domain.ITOperations].Create(ctx, "Hardware", "fan noise", "Low", "Open"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	reply, err := a.Ask(ctx, "alice", "it", "How many tickets are open?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if reply != p.reply {
		t.Fatalf("unexpected reply %q", reply)
	}
	if !strings.HasPrefix(p.system, "You are an IT Support Specialist.") {
		t.Fatalf("missing persona in system prompt: %q", p.system)
	}
	if !strings.Contains(p.system, "TICK-1001,") {
		t.Fatalf("missing data context in system prompt: %q", p.system)
	}
	if diff := cmp.Diff([]Turn{{Role: roleUser, Content: "How many tickets are open?"}}, p.turns); diff != "" {
		t.Fatalf("turns mismatch (-want +got):\n%s", diff)
	}

	history, err := a.History(ctx, "alice", domain.ModuleIT)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	var got []string
	for _, m := range history {
		got = append(got, m.Sender+": "+m.Message)
	}
	want := []string{"user: How many tickets are open?", "assistant: There is one open ticket."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestAskReplaysRecentHistory(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	a, _, _ := newTestAssistant(t, p, WithHistoryTurns(2))
	ctx := context.Background()

	for _, q := range []string{"first", "second"} {
		if _, err := a.Ask(ctx, "alice", domain.ModuleDataSci, q); err != nil {
			t.Fatalf("Ask failed: %v", err)
		}
	}
	if _, err := a.Ask(ctx, "alice", domain.ModuleDataSci, "third"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	want := []Turn{
		{Role: roleUser, Content: "second"},
		{Role: roleAssistant, Content: "ok"},
		{Role: roleUser, Content: "third"},
	}
	if diff := cmp.Diff(want, p.turns); diff != "" {
		t.Fatalf("turns mismatch (-want +got):\n%s", diff)
	}
}

func TestAskErrors(t *testing.T) {
	p := &fakeProvider{err: errors.New("rate limited")}
	a, _, _ := newTestAssistant(t, p)
	ctx := context.Background()

	if _, err := a.Ask(ctx, "alice", "HR", "hi"); err == nil {
		t.Fatal("expected unknown module error")
	}
	if _, err := a.Ask(ctx, "alice", domain.ModuleIT, "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("provider must not be called for invalid input, got %d calls", p.calls)
	}
	if _, err := a.Ask(ctx, "alice", domain.ModuleIT, "hi"); err == nil {
		t.Fatal("expected provider error")
	}
	history, _ := a.History(ctx, "alice", domain.ModuleIT)
	if len(history) != 0 {
		t.Fatalf("failed request must not be recorded, got %+v", history)
	}

	p.err, p.reply = nil, "ok"
	if _, err := a.Ask(ctx, "alice", domain.ModuleIT, "hi again"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if diff := cmp.Diff([]Turn{{Role: roleUser, Content: "hi again"}}, p.turns); diff != "" {
		t.Fatalf("turns after a failed request (-want +got):\n%s", diff)
	}
	history, _ = a.History(ctx, "alice", domain.ModuleIT)
	if len(history) != 2 {
		t.Fatalf("expected 2 recorded messages, got %+v", history)
	}
}

func TestClearHistory(t *testing.T) {
	a, _, _ := newTestAssistant(t, &fakeProvider{reply: "ok"})
	ctx := context.Background()
	if _, err := a.Ask(ctx, "alice", domain.ModuleIT, "hi"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if _, err := a.Ask(ctx, "alice", domain.ModuleCyber, "hi"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	n, err := a.ClearHistory(ctx, "alice", "it")
	if err != nil || n != 2 {
		t.Fatalf("ClearHistory = %d, %v; want 2, nil", n, err)
	}
	if rest, _ := a.History(ctx, "alice", domain.ModuleCyber); len(rest) != 2 {
		t.Fatalf("other module history must survive, got %d", len(rest))
	}
}
