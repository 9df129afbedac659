package domain

import "time"

// Stage names the pipeline stage in which an event occurred.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageFilter   Stage = "filter"
	StageScreen   Stage = "screen"
	StageResearch Stage = "research"
	StageScore    Stage = "score"
)

// OutcomeKind tags the end of one candidate's journey through the pipeline.
type OutcomeKind string

const (
	OutcomeScored   OutcomeKind = "scored"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeSkipped  OutcomeKind = "skipped"
	OutcomeFailed   OutcomeKind = "failed"
)

// Skip reasons for OutcomeSkipped.
const (
	SkipReasonBudget   = "budget"
	SkipReasonDeadline = "deadline"
	SkipReasonCapped   = "capped"
)

// CandidateOutcome records how one candidate's journey ended. Funnel counts
// in the RunRecord are tallies over these tags.
type CandidateOutcome struct {
	ContractID string
	Kind       OutcomeKind
	Stage      Stage
	Reason     string
}

// StageError captures a single-candidate failure. These are recorded, never
// propagated as run failures.
type StageError struct {
	ContractID string
	Stage      Stage
	Message    string
}

// TerminationReason describes how a run ended.
type TerminationReason string

const (
	// TerminationCompleted covers normal completion, including runs with
	// partial budget/deadline skips and per-candidate errors.
	TerminationCompleted TerminationReason = "completed"
	// TerminationBudgetExhausted is used when the ceiling was already spent
	// before any candidate could be screened.
	TerminationBudgetExhausted TerminationReason = "budget-exhausted"
	// TerminationFatal is used when the run aborted at Fetching or earlier.
	TerminationFatal TerminationReason = "fatal-error"
)

// FunnelCounts are the per-stage candidate counts for one run.
type FunnelCounts struct {
	Fetched    int
	Filtered   int
	Screened   int
	Escalated  int
	Researched int
	Scored     int
	Rejected   int
	Skipped    int
	Failed     int
}

// RunRecord aggregates one pipeline execution. The orchestrator owns it
// exclusively during the run; it is sealed (read-only) at the end and handed
// whole to the reporting collaborators.
type RunRecord struct {
	ID            string
	StartedAt     time.Time
	EndedAt       time.Time
	Funnel        FunnelCounts
	TotalCost     float64
	Opportunities []Opportunity
	Outcomes      []CandidateOutcome
	Errors        []StageError
	Termination   TerminationReason
}
