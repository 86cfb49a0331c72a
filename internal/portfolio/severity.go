package portfolio

// Severity grades strategy gaps and assumption fragility.
type Severity string

const (
	SeverityMinor       Severity = "minor"
	SeverityModerate    Severity = "moderate"
	SeveritySignificant Severity = "significant"
	SeverityCritical    Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityMinor:       1,
	SeverityModerate:    2,
	SeveritySignificant: 3,
	SeverityCritical:    4,
}

// Rank orders severities; unknown values rank 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Escalate returns the next severity level, saturating at critical.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityMinor:
		return SeverityModerate
	case SeverityModerate:
		return SeveritySignificant
	default:
		return SeverityCritical
	}
}
