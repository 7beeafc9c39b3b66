package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	ticketIDPrefix = "TICK-"
	firstTicketNum = 1001
)

var ErrTicketIDsExhausted = errors.New("ticket id space exhausted")

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ParseTicketID returns the numeric suffix of a TICK-<n> identifier.
// Identifiers in any other scheme report false.
func ParseTicketID(id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, ticketIDPrefix)
	if !ok || rest == "" || rest[0] < '0' || rest[0] > '9' {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func FormatTicketID(n int64) string {
	return ticketIDPrefix + strconv.FormatInt(n, 10)
}

// nextID scans the identifiers of table and returns one past the highest
// TICK-<n>, or TICK-1001 when there is none. Bulk-loaded identifiers from
// other schemes are ignored.
func nextID(ctx context.Context, q queryer, table string) (string, error) {
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf(`SELECT ticket_id FROM %s WHERE ticket_id LIKE 'TICK-%%'`, table),
	)
	if err != nil {
		return "", fmt.Errorf("scan ids %s: %w", table, err)
	}
	defer rows.Close()

	var max int64
	found := false
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		n, ok := ParseTicketID(id)
		if !ok {
			continue
		}
		if !found || n > max {
			max, found = n, true
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if !found {
		return FormatTicketID(firstTicketNum), nil
	}
	if max == math.MaxInt64 {
		return "", fmt.Errorf("%w: %s holds %s", ErrTicketIDsExhausted, table, FormatTicketID(max))
	}
	return FormatTicketID(max + 1), nil
}
