package governance

import "time"

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

const (
	EntityMonthClose = "MONTH_CLOSE"
	ActionClose      = "CLOSE"
)

type MonthClose struct {
	MonthEnd time.Time  `json:"monthEnd"`
	Month    string     `json:"month"`
	Status   Status     `json:"status"`
	ClosedAt *time.Time `json:"closedAt,omitempty"`
	ClosedBy string     `json:"closedBy,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

func (m MonthClose) Closed() bool {
	return m.Status == StatusClosed
}

type CloseInput struct {
	Month        string `json:"month"`
	Reason       string `json:"reason"`
	Confirmation string `json:"confirmation"`
}

// GuardResult tells the caller whether a closed month was bypassed, so the
// audit entry can be tagged as an override.
type GuardResult struct {
	Override     bool
	ClosedMonths []string
}
