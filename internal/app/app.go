// Package app wires configuration, storage and the services behind the
// ticketdesk command line.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"ticketdesk/internal/auth"
	"ticketdesk/internal/classify"
	"ticketdesk/internal/config"
	"ticketdesk/internal/domain"
	"ticketdesk/internal/httpx"
	"ticketdesk/internal/ingest"
	"ticketdesk/internal/integrations/llm"
	"ticketdesk/internal/logging"
	"ticketdesk/internal/storage/sqlite"
)

// version is set at build time via -ldflags.
var version = "dev"

type runtime struct {
	cfg        config.Config
	db         *sql.DB
	stores     map[domain.Domain]*sqlite.DomainStore
	classifier *classify.Classifier

	newProvider func(config.Config) (llm.Provider, error)
	// clock defaults to time.Now.
	clock func() time.Time
}

func Main() {
	if err := Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Execute runs the command line with args, writing to stdout and stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	return execute(ctx, &runtime{newProvider: llm.NewProvider}, args, stdout, stderr)
}

func execute(ctx context.Context, rt *runtime, args []string, stdout, stderr io.Writer) error {
	defer rt.close()
	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// setup loads configuration and installs the logger. It runs before every
// command; the database is opened on demand.
func (rt *runtime) setup(configPath string, logOut io.Writer) error {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt.cfg = cfg

	logging.Setup(cfg.LogLevel, cfg.LogFormat, logOut)
	applied := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	slog.Debug("config loaded",
		"db_path", cfg.DBPath,
		"llm_provider", cfg.LLMProvider,
		"timezone", cfg.Timezone,
		"external_http_timeout", applied,
	)

	vocab := classify.DefaultVocabulary()
	if cfg.VocabularyPath != "" {
		vocab, err = classify.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return err
		}
		slog.Debug("vocabulary loaded", "path", cfg.VocabularyPath, "terms", vocab.Len())
	}
	rt.classifier = classify.New(vocab)
	return nil
}

// open initializes the database once per process and seeds the admin
// account when a password is configured.
func (rt *runtime) open(ctx context.Context, reset bool) error {
	if rt.db != nil {
		return nil
	}
	db, err := sqlite.InitDB(rt.cfg.DBPath, reset)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	rt.db = db
	rt.stores = sqlite.Stores(db, sqlite.WithClock(rt.now))
	slog.Debug("database initialized", "path", rt.cfg.DBPath, "reset", reset)

	if _, err := auth.NewService(db).EnsureAdmin(ctx, rt.cfg.AdminUsername, rt.cfg.AdminPassword); err != nil {
		return err
	}
	return nil
}

// now returns the current time in the configured location.
func (rt *runtime) now() time.Time {
	clock := rt.clock
	if clock == nil {
		clock = time.Now
	}
	t := clock()
	if rt.cfg.Location != nil {
		t = t.In(rt.cfg.Location)
	}
	return t
}

func (rt *runtime) close() {
	if rt.db != nil {
		_ = rt.db.Close()
		rt.db = nil
	}
}

func (rt *runtime) store(flag string) (*sqlite.DomainStore, error) {
	d, err := parseDomainFlag(flag)
	if err != nil {
		return nil, err
	}
	s, ok := rt.stores[d]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sqlite.ErrUnknownDomain, d)
	}
	return s, nil
}

func (rt *runtime) orchestrator() *ingest.Orchestrator {
	loaders := make(map[domain.Domain]ingest.Loader, len(rt.stores))
	for d, s := range rt.stores {
		loaders[d] = s
	}
	sources := make([]ingest.Source, 0, len(domain.Domains))
	for _, d := range domain.Domains {
		module := d.Module()
		sources = append(sources, ingest.Source{Module: module, Path: rt.cfg.SourceFor(module)})
	}
	return &ingest.Orchestrator{
		Sources:     sources,
		FallbackDir: rt.cfg.FallbackDir,
		Classifier:  rt.classifier,
		Stores:      loaders,
	}
}

func (rt *runtime) assistant() (*llm.Assistant, error) {
	provider, err := rt.newProvider(rt.cfg)
	if err != nil {
		return nil, err
	}
	tailers := make(map[domain.Domain]llm.Tailer, len(rt.stores))
	for d, s := range rt.stores {
		tailers[d] = s
	}
	return llm.NewAssistant(rt.db, tailers, provider,
		llm.WithContextRows(rt.cfg.LLMContextRows),
		llm.WithHistoryTurns(rt.cfg.LLMHistoryTurns),
	), nil
}

// transcripts returns an assistant without a provider, for reading and
// clearing chat history.
func (rt *runtime) transcripts() *llm.Assistant {
	return llm.NewAssistant(rt.db, nil, nil)
}

// authenticate resolves credentials to a user or returns an error suitable
// for the command line.
func (rt *runtime) authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := auth.NewService(rt.db).Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("invalid username or password")
	}
	return u, nil
}

// parseDomainFlag accepts a module key (IT, CYBER, DATASCI) or a domain name.
func parseDomainFlag(v string) (domain.Domain, error) {
	d, err := domain.ParseDomain(v)
	if err != nil {
		return "", fmt.Errorf("%w: %q (want IT, CYBER or DATASCI)", sqlite.ErrUnknownDomain, v)
	}
	return d, nil
}
