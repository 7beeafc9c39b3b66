// Package classify turns loosely formatted ticket lines into normalized
// records.
//
// Source lines look like
//
//	TICK-9001,2024-01-05,IT,Operations,Server Failure on rack 3,High,Open
//
// but the domain marker may span one or two fields and the description may
// itself be split across several. The last two fields are always priority
// and status.
package classify

import (
	"errors"
	"strings"

	"ticketdesk/internal/domain"
)

// MinFields is the shortest line that can be classified.
const MinFields = 5

var ErrTooFewFields = errors.New("too few fields")

// Result is the classification of one line.
type Result struct {
	Domain      domain.Domain
	IssueType   string
	Description string
}

type Classifier struct {
	vocab *Vocabulary
}

// New returns a classifier over vocab. A nil vocab uses DefaultVocabulary.
func New(vocab *Vocabulary) *Classifier {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Classifier{vocab: vocab}
}

func (c *Classifier) Vocabulary() *Vocabulary { return c.vocab }

// SplitLine strips every double quote from line and splits it on commas,
// trimming each field.
func SplitLine(line string) []string {
	line = strings.TrimSpace(strings.ReplaceAll(line, `"`, ""))
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Classify determines domain, issue type and description for fields.
func (c *Classifier) Classify(fields []string) (Result, error) {
	if len(fields) < MinFields {
		return Result{}, ErrTooFewFields
	}

	d, start := detectDomain(fields)
	end := len(fields) - 2
	full := ""
	if start < end {
		full = strings.Join(fields[start:end], " ")
	}

	res := Result{Domain: d, IssueType: domain.OtherIssueType, Description: full}
	if term, ok := c.vocab.Match(full); ok {
		res.IssueType = term.Token
		desc := strings.TrimPrefix(full, term.Token)
		desc = strings.TrimSpace(strings.Trim(strings.TrimSpace(desc), ","))
		if desc != "" {
			res.Description = desc
		}
	}
	return res, nil
}

// ClassifyLine classifies fields into a full ticket. The first two fields
// are the external ticket id and the date; priority and status are taken
// verbatim from the last two.
func (c *Classifier) ClassifyLine(fields []string) (domain.Ticket, error) {
	res, err := c.Classify(fields)
	if err != nil {
		return domain.Ticket{}, err
	}
	n := len(fields)
	return domain.Ticket{
		TicketID:    fields[0],
		Date:        fields[1],
		Domain:      res.Domain,
		IssueType:   res.IssueType,
		Description: res.Description,
		Priority:    fields[n-2],
		Status:      fields[n-1],
	}, nil
}

// detectDomain reads the domain marker starting at field 2 and returns the
// index where the description begins. A bare "IT" is a one-field marker; every
// other IT Operations or Data Science marker occupies fields 2 and 3.
func detectDomain(fields []string) (domain.Domain, int) {
	col2 := fields[2]
	col3 := ""
	if len(fields) > 3 {
		col3 = fields[3]
	}

	switch {
	case col2 == "IT" && col3 == "Operations", col2 == "IT Operations":
		return domain.ITOperations, 4
	case col2 == "IT":
		return domain.ITOperations, 3
	case col2 == "Cybersecurity":
		return domain.Cybersecurity, 3
	case col2 == "Data" && col3 == "Science":
		return domain.DataScience, 4
	default:
		return domain.Unknown, 2
	}
}
