package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticketdesk/internal/domain"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrUnknownDomain  = errors.New("unknown domain")
)

const dateLayout = "2006-01-02"

// DomainStore is the CRUD surface over one domain table. Every method is a
// single unit of work; nothing is cached between calls.
type DomainStore struct {
	db     *sql.DB
	domain domain.Domain
	table  string
	now    func() time.Time
}

type Option func(*DomainStore)

// WithClock sets the clock used to stamp created tickets.
func WithClock(now func() time.Time) Option {
	return func(s *DomainStore) { s.now = now }
}

func NewDomainStore(db *sql.DB, d domain.Domain, opts ...Option) (*DomainStore, error) {
	table := d.Table()
	if table == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, d)
	}
	s := &DomainStore{db: db, domain: d, table: table, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Stores returns one store per routable domain.
func Stores(db *sql.DB, opts ...Option) map[domain.Domain]*DomainStore {
	out := make(map[domain.Domain]*DomainStore, len(domain.Domains))
	for _, d := range domain.Domains {
		s, _ := NewDomainStore(db, d, opts...)
		out[d] = s
	}
	return out
}

func (s *DomainStore) Domain() domain.Domain { return s.domain }

// Create allocates the next identifier and inserts the ticket in one
// transaction, returning the new identifier.
func (s *DomainStore) Create(ctx context.Context, issueType, description, priority, status string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin create %s: %w", s.table, err)
	}
	defer tx.Rollback()

	id, err := nextID(ctx, tx, s.table)
	if err != nil {
		return "", err
	}
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (ticket_id, date, issue_type, description, priority, status)
		 VALUES (?, ?, ?, ?, ?, ?)`, s.table),
		id, s.now().Format(dateLayout), issueType, description, priority, status,
	)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", s.table, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit create %s: %w", s.table, err)
	}
	return id, nil
}

// ReadAll returns every ticket in insertion order. A missing table reads as
// empty.
func (s *DomainStore) ReadAll(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT ticket_id, date, issue_type, description, priority, status
		 FROM %s ORDER BY rowid`, s.table),
	)
	if isMissingTable(err) {
		return []domain.Ticket{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.table, err)
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		t, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// Tail returns the last n tickets in insertion order.
func (s *DomainStore) Tail(ctx context.Context, n int) ([]domain.Ticket, error) {
	all, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (s *DomainStore) Get(ctx context.Context, ticketID string) (domain.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT ticket_id, date, issue_type, description, priority, status
		 FROM %s WHERE ticket_id = ?`, s.table),
		ticketID,
	)
	t, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
		return domain.Ticket{}, ErrTicketNotFound
	}
	return t, err
}

// Update overwrites the mutable fields of ticketID. It reports false, with
// no error, when the ticket does not exist.
func (s *DomainStore) Update(ctx context.Context, ticketID, issueType, description, priority, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s
		 SET issue_type = ?, description = ?, priority = ?, status = ?
		 WHERE ticket_id = ?`, s.table),
		issueType, description, priority, status, ticketID,
	)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete removes ticketID. It reports false, with no error, when the ticket
// does not exist.
func (s *DomainStore) Delete(ctx context.Context, ticketID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ticket_id = ?`, s.table), ticketID)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// BulkLoad writes records with insert-or-replace semantics keyed on
// ticket_id. Replaced rows keep their position so repeated loads read back
// identically.
func (s *DomainStore) BulkLoad(ctx context.Context, records []domain.Ticket) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk load %s: %w", s.table, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (ticket_id, date, issue_type, description, priority, status)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ticket_id) DO UPDATE SET
		   date = excluded.date,
		   issue_type = excluded.issue_type,
		   description = excluded.description,
		   priority = excluded.priority,
		   status = excluded.status`, s.table),
	)
	if err != nil {
		return 0, fmt.Errorf("prepare bulk load %s: %w", s.table, err)
	}
	defer stmt.Close()

	loaded := 0
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.TicketID, r.Date, r.IssueType, r.Description, r.Priority, r.Status); err != nil {
			return 0, fmt.Errorf("bulk load %s ticket %s: %w", s.table, r.TicketID, err)
		}
		loaded++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk load %s: %w", s.table, err)
	}
	return loaded, nil
}

func (s *DomainStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	if isMissingTable(err) {
		return 0, nil
	}
	return n, err
}

// NextID returns the identifier Create would allocate now.
func (s *DomainStore) NextID(ctx context.Context) (string, error) {
	return nextID(ctx, s.db, s.table)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *DomainStore) scan(row rowScanner) (domain.Ticket, error) {
	var t domain.Ticket
	var date, issueType, description, priority, status sql.NullString
	if err := row.Scan(&t.TicketID, &date, &issueType, &description, &priority, &status); err != nil {
		return domain.Ticket{}, err
	}
	t.Domain = s.domain
	t.Date = date.String
	t.IssueType = issueType.String
	t.Description = description.String
	t.Priority = priority.String
	t.Status = status.String
	return t, nil
}
