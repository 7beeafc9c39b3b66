package domain

// Summary holds the headline metrics of one domain's tickets.
type Summary struct {
	Total          int
	HighOrCritical int
	Resolved       int
	ByIssueType    map[string]int
	ByStatus       map[string]int
}

func Summarize(tickets []Ticket) Summary {
	s := Summary{
		Total:       len(tickets),
		ByIssueType: make(map[string]int),
		ByStatus:    make(map[string]int),
	}
	for _, t := range tickets {
		if t.Priority == "High" || t.Priority == "Critical" {
			s.HighOrCritical++
		}
		if t.Status == "Resolved" {
			s.Resolved++
		}
		s.ByIssueType[t.IssueType]++
		s.ByStatus[t.Status]++
	}
	return s
}
