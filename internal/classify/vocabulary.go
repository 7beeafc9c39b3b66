package classify

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ticketdesk/internal/domain"
)

// Term is one known issue-type token and the domain it belongs to.
type Term struct {
	Domain domain.Domain
	Token  string
}

type vocabularyFile struct {
	Terms []vocabularyTerm `yaml:"terms"`
}

type vocabularyTerm struct {
	Domain string `yaml:"domain"`
	Token  string `yaml:"token"`
}

// Vocabulary is an ordered set of issue-type tokens. Matching walks the
// tokens longest first so that no token shadows a longer token it is a
// prefix of.
type Vocabulary struct {
	terms   []Term
	byMatch []Term
}

// NewVocabulary copies terms, dropping blanks and exact duplicates.
func NewVocabulary(terms []Term) *Vocabulary {
	v := &Vocabulary{}
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t.Token = strings.TrimSpace(t.Token)
		if t.Token == "" || seen[t.Token] {
			continue
		}
		seen[t.Token] = true
		v.terms = append(v.terms, t)
	}

	v.byMatch = make([]Term, len(v.terms))
	copy(v.byMatch, v.terms)
	sort.SliceStable(v.byMatch, func(i, j int) bool {
		return len(v.byMatch[i].Token) > len(v.byMatch[j].Token)
	})
	return v
}

// DefaultVocabulary returns the built-in token set for the three domains.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary([]Term{
		{Domain: domain.Cybersecurity, Token: "Malware"},
		{Domain: domain.Cybersecurity, Token: "Ransomware"},
		{Domain: domain.Cybersecurity, Token: "Trojan"},
		{Domain: domain.Cybersecurity, Token: "Phishing"},
		{Domain: domain.Cybersecurity, Token: "DDoS"},
		{Domain: domain.ITOperations, Token: "Server Failure"},
		{Domain: domain.ITOperations, Token: "Network Down"},
		{Domain: domain.ITOperations, Token: "VPN Access"},
		{Domain: domain.ITOperations, Token: "Hardware"},
		{Domain: domain.ITOperations, Token: "Software"},
		{Domain: domain.DataScience, Token: "Analytics"},
		{Domain: domain.DataScience, Token: "Data Cleaning"},
		{Domain: domain.DataScience, Token: "Model Training"},
		{Domain: domain.DataScience, Token: "Visualization"},
		{Domain: domain.DataScience, Token: "Dataset"},
	})
}

// LoadVocabulary reads a YAML vocabulary file of the form
//
//	terms:
//	  - domain: Cybersecurity
//	    token: Phishing
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary yaml: %w", err)
	}
	terms := make([]Term, 0, len(f.Terms))
	for i, raw := range f.Terms {
		d, err := domain.ParseDomain(raw.Domain)
		if err != nil {
			return nil, fmt.Errorf("vocabulary term %d: %w", i, err)
		}
		terms = append(terms, Term{Domain: d, Token: raw.Token})
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("vocabulary %s has no terms", path)
	}
	return NewVocabulary(terms), nil
}

// Match returns the first token, longest first, that text starts with.
func (v *Vocabulary) Match(text string) (Term, bool) {
	for _, t := range v.byMatch {
		if strings.HasPrefix(text, t.Token) {
			return t, true
		}
	}
	return Term{}, false
}

// IssueTypes lists the tokens of d in declaration order followed by Other.
func (v *Vocabulary) IssueTypes(d domain.Domain) []string {
	var out []string
	for _, t := range v.terms {
		if t.Domain == d {
			out = append(out, t.Token)
		}
	}
	return append(out, domain.OtherIssueType)
}

// ValidIssueType reports whether issueType is selectable for d.
func (v *Vocabulary) ValidIssueType(d domain.Domain, issueType string) bool {
	for _, it := range v.IssueTypes(d) {
		if it == issueType {
			return true
		}
	}
	return false
}

func (v *Vocabulary) Len() int { return len(v.terms) }
