package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ticketdesk/internal/config"
	"ticketdesk/internal/integrations/llm"
)

type testEnv struct {
	dir    string
	dbPath string
}

func setupEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{
		"SOURCE_IT", "SOURCE_CYBER", "SOURCE_DATASCI", "FALLBACK_DIR",
		"VOCABULARY_PATH", "RELOAD_SCHEDULE", "ADMIN_USERNAME", "ADMIN_PASSWORD",
		"LLM_PROVIDER", "LLM_MODEL", "ANTHROPIC_API_KEY", "OPENAI_API_KEY",
		"LOG_FORMAT", "RESET_ON_START", "LLM_CONTEXT_ROWS", "LLM_HISTORY_TURNS",
		"EXTERNAL_HTTP_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
	env := testEnv{dir: dir, dbPath: filepath.Join(dir, "ticketdesk.db")}
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("DB_PATH", env.dbPath)
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SOURCE_IT", filepath.Join(dir, "IT.csv"))
	t.Setenv("SOURCE_CYBER", filepath.Join(dir, "Cybersec.csv"))
	t.Setenv("SOURCE_DATASCI", filepath.Join(dir, "DataSci.csv"))
	return env
}

func (e testEnv) writeSource(t *testing.T, name, body string) {
	t.Helper()
	content := "Ticket ID,Date,Domain,Description,Priority,Status\n" + body
	if err := os.WriteFile(filepath.Join(e.dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

type stubProvider struct {
	reply string
	calls int
}

func (s *stubProvider) Complete(context.Context, string, []llm.Turn) (string, llm.Usage, error) {
	s.calls++
	return s.reply, llm.Usage{}, nil
}

func noProvider(config.Config) (llm.Provider, error) {
	return nil, errors.New("no provider in tests")
}

func run(t *testing.T, rt *runtime, args ...string) (string, error) {
	t.Helper()
	if rt == nil {
		rt = &runtime{newProvider: noProvider}
	}
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), rt, args, &stdout, &stderr)
	return stdout.String(), err
}

func TestIngestThenList(t *testing.T) {
	env := setupEnv(t)
	env.writeSource(t, "IT.csv",
		"TICK-9001,2024-01-05,IT,Server,Failure,on,rack,3,High,Open\n"+
			"TICK-9002,2024-01-06,IT,Open\n")
	env.writeSource(t, "Cybersec.csv", "C-17,2024-03-10,Cybersecurity,Phishing credential page,Critical,Resolved\n")

	out, err := run(t, nil, "ingest")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	for _, want := range []string{"Skipped:  1", "Missing:  DATASCI"} {
		if !strings.Contains(out, want) {
			t.Fatalf("ingest output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, nil, "tickets", "list", "--domain", "IT")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "TICK-9001") || !strings.Contains(out, "Server Failure") || !strings.Contains(out, "on rack 3") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	out, err = run(t, nil, "tickets", "stats", "--domain", "cyber")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	for _, want := range []string{"Total:            1", "High or Critical: 1", "Resolved:         1", "Next ID:          TICK-1001", "Phishing"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output missing %q:\n%s", want, out)
		}
	}

	// A second ingest leaves the stores unchanged.
	if _, err := run(t, nil, "ingest"); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	out, err = run(t, nil, "tickets", "stats", "--domain", "IT")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out, "Total:            1") {
		t.Fatalf("expected idempotent reload:\n%s", out)
	}
}

func TestTicketLifecycle(t *testing.T) {
	setupEnv(t)

	out, err := run(t, nil, "tickets", "create", "--domain", "DATASCI",
		"--issue-type", "Dataset", "--description", "refresh sales data", "--priority", "High")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if strings.TrimSpace(out) != "Created TICK-1001" {
		t.Fatalf("unexpected create output %q", out)
	}

	out, err = run(t, nil, "tickets", "update", "--domain", "DATASCI", "--id", "TICK-1001", "--status", "Resolved")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if strings.TrimSpace(out) != "Updated TICK-1001" {
		t.Fatalf("unexpected update output %q", out)
	}

	out, err = run(t, nil, "tickets", "list", "--domain", "DATASCI", "--format", "markdown")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "| TICK-1001 |") || !strings.Contains(out, "Resolved") || !strings.Contains(out, "refresh sales data") {
		t.Fatalf("update not reflected:\n%s", out)
	}

	out, err = run(t, nil, "tickets", "update", "--domain", "DATASCI", "--id", "TICK-4242", "--status", "Open")
	if err != nil || !strings.Contains(out, "not found") {
		t.Fatalf("update missing = %q, %v", out, err)
	}

	out, err = run(t, nil, "tickets", "delete", "--domain", "DATASCI", "--id", "TICK-1001")
	if err != nil || strings.TrimSpace(out) != "Deleted TICK-1001" {
		t.Fatalf("delete = %q, %v", out, err)
	}
	out, err = run(t, nil, "tickets", "delete", "--domain", "DATASCI", "--id", "TICK-1001")
	if err != nil || !strings.Contains(out, "not found") {
		t.Fatalf("second delete = %q, %v", out, err)
	}
}

func TestCreateStampsDateInConfiguredTimezone(t *testing.T) {
	setupEnv(t)
	t.Setenv("TIMEZONE", "Pacific/Kiritimati")
	// 2024-01-01 12:00 UTC is already 2024-01-02 at UTC+14.
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rt := &runtime{newProvider: noProvider, clock: func() time.Time { return fixed }}

	out, err := run(t, rt, "tickets", "create", "--domain", "IT", "--issue-type", "Hardware", "--description", "fan noise")
	if err != nil || strings.TrimSpace(out) != "Created TICK-1001" {
		t.Fatalf("create = %q, %v", out, err)
	}
	out, err = run(t, nil, "tickets", "list", "--domain", "IT")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "2024-01-02") {
		t.Fatalf("expected date in configured timezone:\n%s", out)
	}
}

func TestTicketValidation(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown domain", []string{"tickets", "list", "--domain", "HR"}},
		{"bad priority", []string{"tickets", "create", "--domain", "IT", "--priority", "Urgent"}},
		{"bad status", []string{"tickets", "create", "--domain", "IT", "--status", "Closed"}},
		{"issue type of another domain", []string{"tickets", "create", "--domain", "IT", "--issue-type", "Phishing"}},
		{"bad format", []string{"tickets", "list", "--domain", "IT", "--format", "xml"}},
		{"missing domain", []string{"tickets", "list"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, nil, tt.args...); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}

func TestUsersRegisterAndLogin(t *testing.T) {
	setupEnv(t)
	t.Setenv("ADMIN_PASSWORD", "root-pw")

	out, err := run(t, nil, "users", "login", "--user", "admin", "--password", "root-pw")
	if err != nil || !strings.Contains(out, "Logged in as admin (admin)") {
		t.Fatalf("admin login = %q, %v", out, err)
	}

	if _, err := run(t, nil, "users", "register", "-u", "alice", "-p", "s3cret"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := run(t, nil, "users", "register", "-u", "alice", "-p", "other"); err == nil {
		t.Fatal("expected duplicate register error")
	}
	if _, err := run(t, nil, "users", "login", "-u", "alice", "-p", "wrong"); err == nil {
		t.Fatal("expected wrong password error")
	}
	if _, err := run(t, nil, "users", "passwd", "-u", "alice", "-p", "s3cret", "--new-password", "n3w"); err != nil {
		t.Fatalf("passwd failed: %v", err)
	}
	out, err = run(t, nil, "users", "login", "-u", "alice", "-p", "n3w")
	if err != nil || !strings.Contains(out, "Logged in as alice (user)") {
		t.Fatalf("login after passwd = %q, %v", out, err)
	}
}

func TestAskAndChatHistory(t *testing.T) {
	env := setupEnv(t)
	env.writeSource(t, "Cybersec.csv", "C-17,2024-03-10,Cybersecurity,Phishing credential page,Critical,Open\n")
	if _, err := run(t, nil, "ingest"); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if _, err := run(t, nil, "users", "register", "-u", "alice", "-p", "pw"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	stub := &stubProvider{reply: "One phishing incident is open."}
	rt := &runtime{newProvider: func(config.Config) (llm.Provider, error) { return stub, nil }}
	out, err := run(t, rt, "ask", "-d", "CYBER", "-u", "alice", "-p", "pw", "how", "many", "phishing?")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if strings.TrimSpace(out) != stub.reply || stub.calls != 1 {
		t.Fatalf("unexpected ask output %q (calls=%d)", out, stub.calls)
	}

	if _, err := run(t, nil, "ask", "-d", "CYBER", "-u", "alice", "-p", "bad", "hi"); err == nil {
		t.Fatal("expected authentication error")
	}

	out, err = run(t, nil, "chat", "history", "-d", "CYBER", "-u", "alice", "-p", "pw")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "user: how many phishing?") || !strings.Contains(out, "assistant: One phishing incident is open.") {
		t.Fatalf("unexpected history:\n%s", out)
	}

	out, err = run(t, nil, "chat", "clear", "-d", "CYBER", "-u", "alice", "-p", "pw")
	if err != nil || strings.TrimSpace(out) != "Deleted 2 messages" {
		t.Fatalf("clear = %q, %v", out, err)
	}
}

func TestWatchRequiresSchedule(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, nil, "watch"); err == nil {
		t.Fatal("expected error without reload_schedule")
	}
}

func TestInvalidConfigIsReported(t *testing.T) {
	setupEnv(t)
	t.Setenv("LLM_PROVIDER", "cohere")
	if _, err := run(t, nil, "tickets", "list", "--domain", "IT"); err == nil {
		t.Fatal("expected config validation error")
	}
}
