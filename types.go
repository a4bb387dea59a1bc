package outreach

import (
	"time"

	"github.com/google/uuid"
)

// CompanyProfile is what a Researcher knows about a company.
// No internal package imports; safe to use from outside the module.
type CompanyProfile struct {
	Overview           string
	RecentDevelopments string
	MarketPosition     string
	Competitors        []string
	Technology         []string
	Size               string // enterprise, large, medium, small or ""
	Industry           string
	GrowthTrend        string // up, flat, down or ""
}

// PersonProfile is what a Researcher knows about a person.
type PersonProfile struct {
	Role            string
	Background      string
	Interests       []string
	PainPoints      []string
	LinkedInActive  bool
	RecentJobChange bool
}

// GeneratedOutreach describes a persisted outreach draft.
type GeneratedOutreach struct {
	MessageID    uuid.UUID
	TicketID     uuid.UUID
	AgentID      uuid.UUID
	RunID        uuid.UUID
	MessageType  string
	OverallScore float64
	CreatedAt    time.Time
}
