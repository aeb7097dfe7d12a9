package domain

import (
	"strings"
	"time"
)

// LogicalDraft is the structured intermediate content derived from the paper.
type LogicalDraft struct {
	Title          string   `json:"title"`
	Claims         []string `json:"claims"`
	KeyFindings    []string `json:"key_findings"`
	NarrativeOrder []string `json:"narrative_order"`
}

// Empty reports whether the draft carries no usable content.
func (d LogicalDraft) Empty() bool {
	return strings.TrimSpace(d.Title) == "" && len(d.Claims) == 0 && len(d.KeyFindings) == 0
}

// Equivalent compares two drafts after whitespace and case normalisation.
// Model output is not byte-stable, so this is the comparison used when a
// stage is re-run on an unchanged state.
func (d LogicalDraft) Equivalent(other LogicalDraft) bool {
	return normalize(d.Title) == normalize(other.Title) &&
		equalNormalized(d.Claims, other.Claims) &&
		equalNormalized(d.KeyFindings, other.KeyFindings) &&
		equalNormalized(d.NarrativeOrder, other.NarrativeOrder)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func equalNormalized(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if normalize(a[i]) != normalize(b[i]) {
			return false
		}
	}
	return true
}

// VisualNote is the vision model's reading of one figure.
type VisualNote struct {
	FigureID string     `json:"figure_id"`
	Kind     FigureKind `json:"kind"`
	Page     int        `json:"page,omitempty"`
	Analysis string     `json:"analysis"`
}

// Post is the final platform-ready artifact.
type Post struct {
	Platform string   `json:"platform"`
	Title    string   `json:"title"`
	Markdown string   `json:"markdown"`
	Hashtags []string `json:"hashtags,omitempty"`
	FigureID string   `json:"figure_id,omitempty"`
	// Assembled is set when the post was composed without the adaptation stage.
	Assembled bool `json:"assembled,omitempty"`
}

// StageStatus is the outcome of one stage execution.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
)

// StageRecord keeps timing and status for one executed stage.
type StageRecord struct {
	Name      string        `json:"name"`
	Status    StageStatus   `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// GenerationState accumulates one project's work in progress. Stages take
// it by value and return the updated copy.
type GenerationState struct {
	Project     Project        `json:"project"`
	Mode        string         `json:"mode"`
	Fingerprint string         `json:"fingerprint"`
	Document    *Document      `json:"document,omitempty"`
	Metadata    *PaperMetadata `json:"metadata,omitempty"`
	Figures     []Figure       `json:"-"`
	Draft       *LogicalDraft  `json:"draft,omitempty"`
	VisualNotes []VisualNote   `json:"visual_notes,omitempty"`
	Post        *Post          `json:"post,omitempty"`
	Stages      []StageRecord  `json:"stages"`
}

// NewGenerationState starts an empty state for project.
func NewGenerationState(project Project, mode PipelineMode) GenerationState {
	return GenerationState{Project: project, Mode: mode.String()}
}

// ProjectStatus is the runner state machine position.
type ProjectStatus string

const (
	StatusPending   ProjectStatus = "pending"
	StatusRunning   ProjectStatus = "running"
	StatusSucceeded ProjectStatus = "succeeded"
	StatusFailed    ProjectStatus = "failed"
)

// Terminal reports whether no further transition can happen.
func (s ProjectStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}
