package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ticket categories and statuses the outreach pipeline filters on.
const (
	CategoryProspect = "prospect"
	StatusNew        = "new"
)

// Ticket priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Prospect is the person an outreach message is addressed to.
type Prospect struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Role    string `json:"role"`
	Email   string `json:"email"`
}

// Ticket is the subset of a support/CRM ticket the pipeline reads.
type Ticket struct {
	ID              uuid.UUID      `json:"id"`
	ProjectID       uuid.UUID      `json:"project_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Status          string         `json:"status"`
	Priority        string         `json:"priority"`
	Category        string         `json:"category"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Prospect        Prospect       `json:"prospect"`
	LastContactedAt *time.Time     `json:"last_contacted_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// MessageDirection distinguishes what we sent from what the prospect sent.
type MessageDirection string

const (
	DirectionOutbound MessageDirection = "outbound"
	DirectionInbound  MessageDirection = "inbound"
	DirectionInternal MessageDirection = "internal"
)

// Message is one entry of a ticket's conversation.
type Message struct {
	ID                 uuid.UUID        `json:"id"`
	TicketID           uuid.UUID        `json:"ticket_id"`
	SenderID           *uuid.UUID       `json:"sender_id,omitempty"`
	Direction          MessageDirection `json:"direction"`
	Content            string           `json:"content"`
	MessageType        string           `json:"message_type,omitempty"`
	EffectivenessScore *float64         `json:"effectiveness_score,omitempty"`
	SentimentScore     *float64         `json:"sentiment_score,omitempty"`
	Metadata           map[string]any   `json:"metadata,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Activity types with meaning to the tone and engagement rules.
const (
	ActivityMeetingScheduled = "meeting_scheduled"
	ActivityEmailReply       = "email_reply"
	ActivityLinkClick        = "link_click"
	ActivityEmailOpen        = "email_open"
	ActivityMeeting          = "meeting"
	ActivityCall             = "call"

	ActivityOutreachGenerated = "outreach_generated"
	ActivityOutreachFailed    = "outreach_generation_failed"
)

// Activity is a timeline event on a ticket (meeting, email open, ...).
type Activity struct {
	ID          uuid.UUID      `json:"id"`
	TicketID    uuid.UUID      `json:"ticket_id"`
	ActorID     *uuid.UUID     `json:"actor_id,omitempty"`
	Type        string         `json:"activity_type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Summary is an AI or human written digest of a ticket's history.
type Summary struct {
	ID        uuid.UUID  `json:"id"`
	TicketID  uuid.UUID  `json:"ticket_id"`
	Content   string     `json:"summary"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Interactions is the full history attached to a ticket.
type Interactions struct {
	Messages   []Message  `json:"messages"`
	Activities []Activity `json:"activities"`
	Summaries  []Summary  `json:"summaries"`
}

// Normalize replaces nil slices with empty ones.
func (i *Interactions) Normalize() {
	if i.Messages == nil {
		i.Messages = []Message{}
	}
	if i.Activities == nil {
		i.Activities = []Activity{}
	}
	if i.Summaries == nil {
		i.Summaries = []Summary{}
	}
}

// Empty reports whether there is no recorded history at all.
func (i Interactions) Empty() bool {
	return len(i.Messages) == 0 && len(i.Activities) == 0
}

// ProjectContext describes the project a prospect ticket belongs to.
type ProjectContext struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// CompanyResearch is what the research provider knows about a company.
type CompanyResearch struct {
	Overview           string   `json:"overview"`
	RecentDevelopments string   `json:"recent_developments"`
	MarketPosition     string   `json:"market_position"`
	Competitors        []string `json:"competitors"`
	Technology         []string `json:"technology"`
	Size               string   `json:"size"`
	Industry           string   `json:"industry"`
	GrowthTrend        string   `json:"growth_trend,omitempty"`
}

// PersonResearch is what the research provider knows about a person.
type PersonResearch struct {
	Role            string   `json:"role"`
	Background      string   `json:"background"`
	Interests       []string `json:"interests"`
	PainPoints      []string `json:"pain_points"`
	LinkedInActive  bool     `json:"linkedin_active,omitempty"`
	RecentJobChange bool     `json:"recent_job_change,omitempty"`
}

// ResearchData is the enrichment attached to an OutreachContext. It is either
// absent or carries both halves.
type ResearchData struct {
	Company CompanyResearch `json:"company"`
	Person  PersonResearch  `json:"person"`
}

// OutreachContext is the input of one generation run. It is owned by that run.
type OutreachContext struct {
	Prospect       Prospect        `json:"prospect"`
	Ticket         Ticket          `json:"ticket"`
	Interactions   Interactions    `json:"interactions"`
	ProjectContext *ProjectContext `json:"project_context,omitempty"`
	ResearchData   *ResearchData   `json:"research_data,omitempty"`
	Instructions   string          `json:"instructions,omitempty"`
}

// Validate checks the required prospect and ticket fields and normalizes the
// interaction history. It returns a *ValidationError naming the first missing
// field.
func (c *OutreachContext) Validate() error {
	for _, r := range []struct {
		field string
		value string
	}{
		{"prospect.name", c.Prospect.Name},
		{"prospect.company", c.Prospect.Company},
		{"prospect.role", c.Prospect.Role},
		{"prospect.email", c.Prospect.Email},
	} {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field}
		}
	}
	if c.Ticket.ID == uuid.Nil {
		return &ValidationError{Field: "ticket.id"}
	}
	if strings.TrimSpace(c.Ticket.Title) == "" {
		return &ValidationError{Field: "ticket.title"}
	}
	if strings.TrimSpace(c.Ticket.Status) == "" {
		return &ValidationError{Field: "ticket.status"}
	}
	c.Interactions.Normalize()
	return nil
}

// GenerationHints carries optional caller instructions for a generation run.
type GenerationHints struct {
	Prompt string `json:"prompt,omitempty"`
}

// BatchFilters narrows the tickets a batch run operates on. Nil fields do not
// filter.
type BatchFilters struct {
	Status          *string `json:"status,omitempty"`
	Category        *string `json:"category,omitempty"`
	Priority        *string `json:"priority,omitempty"`
	LastContactDays *int    `json:"last_contact_days,omitempty"`
}
