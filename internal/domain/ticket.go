package domain

import (
	"fmt"
	"strings"
)

// Domain partitions tickets into separate stores.
type Domain string

const (
	ITOperations  Domain = "IT Operations"
	Cybersecurity Domain = "Cybersecurity"
	DataScience   Domain = "Data Science"
	Unknown       Domain = "Unknown"
)

// Domains lists the routable domains in ingestion order.
var Domains = []Domain{ITOperations, Cybersecurity, DataScience}

// Module keys are the short names used for source files and chat transcripts.
const (
	ModuleIT      = "IT"
	ModuleCyber   = "CYBER"
	ModuleDataSci = "DATASCI"
)

const OtherIssueType = "Other"

var (
	Priorities = []string{"Low", "Medium", "High", "Critical"}
	Statuses   = []string{"Open", "In Progress", "Resolved"}
)

type Ticket struct {
	TicketID    string
	Date        string
	Domain      Domain
	IssueType   string
	Description string
	Priority    string
	Status      string
}

// Module returns the short module key for d, or "" for Unknown.
func (d Domain) Module() string {
	switch d {
	case ITOperations:
		return ModuleIT
	case Cybersecurity:
		return ModuleCyber
	case DataScience:
		return ModuleDataSci
	default:
		return ""
	}
}

// Table returns the SQLite table backing d.
func (d Domain) Table() string {
	switch d {
	case ITOperations:
		return "it_tickets"
	case Cybersecurity:
		return "security_incidents"
	case DataScience:
		return "data_science_projects"
	default:
		return ""
	}
}

// ParseDomain accepts a domain name or a module key, case-insensitively.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "it", "it operations", "it-operations", "itops":
		return ITOperations, nil
	case "cyber", "cybersecurity", "security":
		return Cybersecurity, nil
	case "datasci", "data science", "data-science", "ds":
		return DataScience, nil
	default:
		return Unknown, fmt.Errorf("unknown domain %q", s)
	}
}

// DomainForModule maps a module key back to its domain.
func DomainForModule(module string) (Domain, bool) {
	for _, d := range Domains {
		if strings.EqualFold(d.Module(), strings.TrimSpace(module)) {
			return d, true
		}
	}
	return Unknown, false
}

func ValidPriority(p string) bool {
	return contains(Priorities, p)
}

func ValidStatus(s string) bool {
	return contains(Statuses, s)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
