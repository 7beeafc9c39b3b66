// Package ingest loads the per-domain source files into the domain stores.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticketdesk/internal/classify"
	"ticketdesk/internal/domain"
	"ticketdesk/internal/logging"
)

const maxLineBytes = 1 << 20

// Source is one delimited file, named by its module key.
type Source struct {
	Module string
	Path   string
}

// Loader receives classified records for one domain.
type Loader interface {
	BulkLoad(ctx context.Context, records []domain.Ticket) (int, error)
	Count(ctx context.Context) (int, error)
}

type Orchestrator struct {
	Sources []Source
	// FallbackDir is searched for a source's base name when the configured
	// path does not exist.
	FallbackDir string
	Classifier  *classify.Classifier
	Stores      map[domain.Domain]Loader
}

// Report summarizes one ingestion run.
type Report struct {
	RunID    string
	Loaded   map[domain.Domain]int
	// Stored is the row count of each store after the run.
	Stored   map[domain.Domain]int
	Skipped  int
	Unrouted int
	Missing  []string
	Failed   map[string]string
	Duration time.Duration
}

func (r Report) Total() int {
	total := 0
	for _, n := range r.Loaded {
		total += n
	}
	return total
}

// Run reads every source, classifies each data line and bulk-loads the
// results into the store of the classified domain. Missing or unreadable
// files and unclassifiable lines are counted, not returned; only storage
// failures abort the run.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{
		RunID:  uuid.NewString(),
		Loaded: make(map[domain.Domain]int, len(domain.Domains)),
		Stored: make(map[domain.Domain]int, len(domain.Domains)),
		Failed: make(map[string]string),
	}
	logger := logging.WithFields("run_id", report.RunID)
	logger.Info("ingestion started", "sources", len(o.Sources))

	classifier := o.Classifier
	if classifier == nil {
		classifier = classify.New(nil)
	}

	batches := make(map[domain.Domain][]domain.Ticket, len(domain.Domains))
	for _, src := range o.Sources {
		path, ok := o.resolve(src.Path)
		if !ok {
			logger.Warn("source file not found", "module", src.Module, "path", src.Path)
			report.Missing = append(report.Missing, src.Module)
			continue
		}

		lines, err := readDataLines(path)
		if err != nil {
			logger.Error("source file unreadable", "module", src.Module, "path", path, "err", err)
			report.Failed[src.Module] = err.Error()
			continue
		}

		parsed := 0
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			t, err := classifier.ClassifyLine(classify.SplitLine(line))
			if err != nil {
				report.Skipped++
				continue
			}
			if _, ok := o.Stores[t.Domain]; !ok {
				report.Unrouted++
				continue
			}
			batches[t.Domain] = append(batches[t.Domain], t)
			parsed++
		}
		logger.Info("source parsed", "module", src.Module, "path", path, "lines", len(lines), "routed", parsed)
	}

	for _, d := range domain.Domains {
		records := batches[d]
		if len(records) == 0 {
			continue
		}
		n, err := o.Stores[d].BulkLoad(ctx, records)
		if err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("load %s: %w", d, err)
		}
		report.Loaded[d] = n
	}
	for _, d := range domain.Domains {
		store, ok := o.Stores[d]
		if !ok {
			continue
		}
		n, err := store.Count(ctx)
		if err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("count %s: %w", d, err)
		}
		report.Stored[d] = n
	}

	report.Duration = time.Since(start)
	logger.Info("ingestion finished",
		"it", report.Loaded[domain.ITOperations],
		"cyber", report.Loaded[domain.Cybersecurity],
		"datasci", report.Loaded[domain.DataScience],
		"skipped", report.Skipped,
		"unrouted", report.Unrouted,
		"missing", strings.Join(report.Missing, ","),
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

func (o *Orchestrator) resolve(path string) (string, bool) {
	if fileExists(path) {
		return path, true
	}
	if o.FallbackDir == "" {
		return "", false
	}
	fallback := filepath.Join(o.FallbackDir, filepath.Base(path))
	if fileExists(fallback) {
		logging.WithFields("path", path).Info("source found in fallback location", "fallback", fallback)
		return fallback, true
	}
	return "", false
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// readDataLines returns every line after the header.
func readDataLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("source vanished: %w", err)
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
