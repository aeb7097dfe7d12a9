package domain

import "time"

// ResultStatus is the per-project outcome recorded in a summary.
type ResultStatus string

const (
	ResultSucceeded ResultStatus = "succeeded"
	ResultFailed    ResultStatus = "failed"
	ResultSkipped   ResultStatus = "skipped"
)

// RunResult is one project's outcome.
type RunResult struct {
	ProjectID  string        `json:"project_id"`
	Status     ResultStatus  `json:"status"`
	OutputPath string        `json:"output_path,omitempty"`
	ErrorKind  ErrorKind     `json:"error_kind,omitempty"`
	Message    string        `json:"message,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Succeeded builds a success result.
func Succeeded(projectID, outputPath string, took time.Duration) RunResult {
	return RunResult{ProjectID: projectID, Status: ResultSucceeded, OutputPath: outputPath, Duration: took}
}

// Failed builds a failure result from err.
func Failed(projectID string, err error, took time.Duration) RunResult {
	return RunResult{ProjectID: projectID, Status: ResultFailed, ErrorKind: KindOf(err), Message: err.Error(), Duration: took}
}

// Skipped builds a result for a project that was not processed.
func Skipped(projectID, reason string) RunResult {
	return RunResult{ProjectID: projectID, Status: ResultSkipped, Message: reason}
}

// RunSummary aggregates results in completion order.
type RunSummary struct {
	RunID      string      `json:"run_id"`
	Mode       string      `json:"mode"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Total      int         `json:"total"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	Results    []RunResult `json:"results"`
}

// Record appends r and updates the counters. Skips do not count towards Total,
// which is the number of projects that were run.
func (s *RunSummary) Record(r RunResult) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case ResultSucceeded:
		s.Total++
		s.Succeeded++
	case ResultFailed:
		s.Total++
		s.Failed++
	case ResultSkipped:
		s.Skipped++
	}
}

// Failures returns failed results in completion order.
func (s RunSummary) Failures() []RunResult {
	return s.filter(ResultFailed)
}

// Skips returns skipped entries.
func (s RunSummary) Skips() []RunResult {
	return s.filter(ResultSkipped)
}

// FailedIDs lists the projects to re-run.
func (s RunSummary) FailedIDs() []string {
	failures := s.Failures()
	ids := make([]string, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.ProjectID)
	}
	return ids
}

func (s RunSummary) filter(status ResultStatus) []RunResult {
	var out []RunResult
	for _, r := range s.Results {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}
