package model

import (
	"time"

	"github.com/google/uuid"
)

// Stage is the depth of an existing relationship with a prospect.
type Stage string

const (
	StageNew         Stage = "new"
	StageDeveloping  Stage = "developing"
	StageEstablished Stage = "established"
)

// RelationshipMetrics are the numbers a Stage is derived from.
type RelationshipMetrics struct {
	TotalInteractions   int        `json:"total_interactions"`
	ResponseRate        float64    `json:"response_rate"`
	AverageSentiment    float64    `json:"average_sentiment"`
	LastInteractionDate *time.Time `json:"last_interaction_date"`
}

// RelationshipStage is derived from interaction history, never stored.
type RelationshipStage struct {
	Stage   Stage               `json:"stage"`
	Metrics RelationshipMetrics `json:"metrics"`
}

// TaskStatus is the state of a tracked pipeline step.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is one timed step of a pipeline run.
type Task struct {
	Name       string     `json:"task_name"`
	Status     TaskStatus `json:"status"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMS *int64     `json:"duration_ms,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// TaskTracking is the timeline attached to a generation result.
type TaskTracking struct {
	Tasks           []Task `json:"tasks"`
	TotalDurationMS int64  `json:"total_duration_ms"`
	CompletedTasks  int    `json:"completed_tasks"`
	FailedTasks     int    `json:"failed_tasks"`
}

// SummarizeTasks builds the summary view of a task list. The total duration
// is the duration of the first (outermost) task.
func SummarizeTasks(tasks []Task) TaskTracking {
	tt := TaskTracking{Tasks: tasks}
	if tt.Tasks == nil {
		tt.Tasks = []Task{}
	}
	for _, t := range tasks {
		switch t.Status {
		case TaskCompleted:
			tt.CompletedTasks++
		case TaskFailed:
			tt.FailedTasks++
		}
	}
	if len(tasks) > 0 && tasks[0].DurationMS != nil {
		tt.TotalDurationMS = *tasks[0].DurationMS
	}
	return tt
}

// Example is a previously sent message that scored well.
type Example struct {
	MessageID          uuid.UUID `json:"message_id"`
	Body               string    `json:"body"`
	EffectivenessScore float64   `json:"effectiveness_score"`
	Embedding          []float32 `json:"-"`
	Similarity         float64   `json:"similarity"`
}

// Tone is the register a message is written in.
type Tone string

const (
	ToneFormal        Tone = "formal"
	ToneFriendly      Tone = "friendly"
	ToneCollaborative Tone = "collaborative"
	ToneUrgent        Tone = "urgent"
	ToneProfessional  Tone = "professional"
)

// ContextualFactors summarize the engagement signals used for a message.
type ContextualFactors struct {
	EngagementScore     float64    `json:"engagement_score"`
	InteractionCount    int        `json:"interaction_count"`
	LastInteractionDate *time.Time `json:"last_interaction_date"`
	RelevantActivities  []string   `json:"relevant_activities"`
}

// Insights are qualitative observations derived from research and relationship.
type Insights struct {
	CompanyHighlights []string `json:"company_highlights"`
	PersonHighlights  []string `json:"person_highlights"`
	TalkingPoints     []string `json:"talking_points"`
	RelationshipNote  string   `json:"relationship_note"`
}

// Scores are the per-dimension quality scores of a generated message, each in [0,1].
type Scores struct {
	Personalization float64 `json:"personalization"`
	Relevance       float64 `json:"relevance"`
	Engagement      float64 `json:"engagement"`
	Tone            float64 `json:"tone"`
	CallToAction    float64 `json:"call_to_action"`
}

// Mean returns the unweighted mean of the five scores.
func (s Scores) Mean() float64 {
	return (s.Personalization + s.Relevance + s.Engagement + s.Tone + s.CallToAction) / 5
}

// KeyMetrics are secondary quality metrics of a generated message.
type KeyMetrics struct {
	Readability      float64 `json:"readability"`
	BusinessContext  float64 `json:"business_context"`
	ValueProposition float64 `json:"value_proposition"`
}

// Sentiment labels returned by content analysis.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// ContentAnalysis is the NLP view of a generated message.
type ContentAnalysis struct {
	Sentiment   string   `json:"sentiment"`
	Intent      string   `json:"intent"`
	Keywords    []string `json:"keywords"`
	Readability float64  `json:"readability"`
}

// Analysis is the quality assessment attached to a generated message.
type Analysis struct {
	Scores       Scores          `json:"scores"`
	OverallScore float64         `json:"overall_score"`
	KeyMetrics   KeyMetrics      `json:"key_metrics"`
	Strengths    []string        `json:"strengths"`
	Improvements []string        `json:"improvements"`
	NLPAnalysis  ContentAnalysis `json:"nlp_analysis"`
	Insights     Insights        `json:"insights"`
	Fallback     bool            `json:"fallback,omitempty"`
}

// GenerationMetadata describes how a message was produced.
type GenerationMetadata struct {
	RunID             uuid.UUID         `json:"run_id"`
	Timestamp         time.Time         `json:"timestamp"`
	MessageType       string            `json:"message_type"`
	Tone              Tone              `json:"tone"`
	Relationship      RelationshipStage `json:"relationship"`
	ContextualFactors ContextualFactors `json:"contextual_factors"`
	ExamplesUsed      int               `json:"examples_used"`
	Analysis          Analysis          `json:"analysis"`
	TaskTracking      TaskTracking      `json:"task_tracking"`
}

// GenerationResult is the output of one generation run.
type GenerationResult struct {
	Message  string             `json:"message"`
	Metadata GenerationMetadata `json:"metadata"`
}

// BatchItem is one successful generation inside a batch.
type BatchItem struct {
	TicketID  uuid.UUID          `json:"ticket_id"`
	MessageID *uuid.UUID         `json:"message_id,omitempty"`
	Message   string             `json:"message"`
	Metadata  GenerationMetadata `json:"metadata"`
}

// BatchFailure is one failed generation inside a batch.
type BatchFailure struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Error    string    `json:"error"`
}

// BatchSummary aggregates a batch run. AverageGenerationMS is the wall clock
// of the whole batch divided by the number of tickets.
type BatchSummary struct {
	Total               int   `json:"total"`
	Succeeded           int   `json:"succeeded"`
	Failed              int   `json:"failed"`
	AverageGenerationMS int64 `json:"average_generation_time_ms"`
}

// BatchGenerationResult is the output of a batch run.
type BatchGenerationResult struct {
	Successful []BatchItem    `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
	Summary    BatchSummary   `json:"summary"`
}

// ProspectResearchOutcome is the result of researching one prospect ticket.
type ProspectResearchOutcome struct {
	TicketID           uuid.UUID     `json:"ticket_id"`
	SessionID          uuid.UUID     `json:"session_id"`
	QualificationScore float64       `json:"qualification_score"`
	Priority           string        `json:"priority"`
	Research           *ResearchData `json:"research,omitempty"`
}

// ResearchReport is the output of the research_prospects action.
type ResearchReport struct {
	Researched []ProspectResearchOutcome `json:"researched"`
	Failed     []BatchFailure            `json:"failed"`
}
