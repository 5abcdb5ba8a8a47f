package models

import "time"

// Status is the final state of one Target.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Data-quality flags recorded on a CrawlReport. They never fail a target.
const (
	FlagReviewCountMismatch         = "review_count_mismatch"
	FlagReportedReviewCountMismatch = "reported_review_count_mismatch"
	FlagReportedRatingDrift         = "reported_average_rating_drift"
	FlagUnexplainedPartial          = "unexplained_partial"

	// FlagDuplicateRecordDropped marks a report whose record was already emitted by an
	// earlier target under the same product id.
	FlagDuplicateRecordDropped = "duplicate_record_dropped"
)

// Counts summarises how many items a target produced.
type Counts struct {
	Variants  int `json:"variants"`
	Reviews   int `json:"reviews"`
	Questions int `json:"questions"`
	Answers   int `json:"answers"`
}

// CrawlReport is produced once per Target.
type CrawlReport struct {
	Target                Target    `json:"target"`
	Status                Status    `json:"status"`
	ErrorClass            string    `json:"error_class,omitempty"`
	Error                 string    `json:"error,omitempty"`
	StartedAt             time.Time `json:"started_at"`
	FinishedAt            time.Time `json:"finished_at"`
	DurationMS            int64     `json:"duration_ms"`
	Counts                Counts    `json:"counts"`
	ReviewsPagesFetched   int       `json:"reviews_pages_fetched"`
	QuestionsPagesFetched int       `json:"questions_pages_fetched"`
	ProductsDiscovered    int       `json:"products_discovered,omitempty"`
	QualityFlags          []string  `json:"quality_flags,omitempty"`
}

// Entry is what the export boundary receives: a report and, unless the target failed or
// was a category, its record.
type Entry struct {
	Record *ProductRecord `json:"record"`
	Report CrawlReport    `json:"report"`
}

// Outcome is the raw result of processing one Target, before validation.
type Outcome struct {
	Target     Target
	Record     *ProductRecord
	Category   *CategoryResult
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// CategoryResult describes a finished category expansion.
type CategoryResult struct {
	Discovered int
	Listing    CollectionState
}

// RunStats are the scheduler-side session counters.
type RunStats struct {
	SessionID        string
	StartedAt        time.Time
	FinishedAt       time.Time
	TargetsQueued    int
	DuplicateTargets int
	Retries          int
	Fatal            error
}

// SessionSummary is emitted once at the end of a crawl.
type SessionSummary struct {
	SessionID        string              `json:"session_id"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	Targets          int                 `json:"targets"`
	Success          int                 `json:"success"`
	Partial          int                 `json:"partial"`
	Failed           int                 `json:"failed"`
	ProductsEmitted  int                 `json:"products_emitted"`
	TargetsQueued    int                 `json:"targets_queued"`
	DuplicateTargets int                 `json:"duplicate_targets"`
	Reviews          int                 `json:"reviews"`
	Questions        int                 `json:"questions"`
	Variants         int                 `json:"variants"`
	Retries          int                 `json:"retries"`
	QualityFlags     map[string]int      `json:"quality_flags"`
	ErrorSamples     map[string][]string `json:"error_samples"`
	Fatal            string              `json:"fatal,omitempty"`
}

// ApplyRun copies scheduler counters onto the summary.
func (s *SessionSummary) ApplyRun(run RunStats) {
	s.SessionID = run.SessionID
	s.StartedAt = run.StartedAt
	s.FinishedAt = run.FinishedAt
	s.TargetsQueued = run.TargetsQueued
	s.DuplicateTargets = run.DuplicateTargets
	s.Retries = run.Retries
	if run.Fatal != nil {
		s.Fatal = run.Fatal.Error()
	}
}
