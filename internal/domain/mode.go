package domain

import (
	"fmt"
	"strings"
)

// Stage identifiers.
const (
	StageLogicalDraft       = "logical_draft"
	StageVisualAnalysis     = "visual_analysis"
	StagePlatformAdaptation = "platform_adaptation"
	StageOriginal           = "original"
	StageFewshot            = "fewshot"
	StageWithFigure         = "with_figure"
)

// ModeKind enumerates the families of pipeline modes.
type ModeKind string

const (
	ModeFull     ModeKind = "full"
	ModeBaseline ModeKind = "baseline"
	ModeAblation ModeKind = "ablation"
)

// PipelineMode selects the stage sequence for a whole run.
type PipelineMode struct {
	Kind ModeKind
	Name string
}

// FullMode is the default three-stage pipeline.
var FullMode = PipelineMode{Kind: ModeFull, Name: string(ModeFull)}

var fullSequence = []string{StageLogicalDraft, StageVisualAnalysis, StagePlatformAdaptation}

var baselineStages = map[string]string{
	"original":    StageOriginal,
	"fewshot":     StageFewshot,
	"with_figure": StageWithFigure,
}

var ablationTargets = map[string]string{
	"no_logical_draft":       StageLogicalDraft,
	"no_visual_analysis":     StageVisualAnalysis,
	"no_platform_adaptation": StagePlatformAdaptation,
}

// String renders the mode as used in logs, summaries and the run ledger.
func (m PipelineMode) String() string {
	if m.Kind == ModeFull || m.Kind == "" {
		return string(ModeFull)
	}
	return string(m.Kind) + ":" + m.Name
}

// ParseMode resolves the baseline/ablation selectors into a mode. Both
// empty selects the full pipeline.
func ParseMode(baseline, ablation string) (PipelineMode, error) {
	baseline = strings.TrimSpace(strings.ToLower(baseline))
	ablation = strings.TrimSpace(strings.ToLower(ablation))

	switch {
	case baseline != "" && ablation != "":
		return PipelineMode{}, &ConfigurationError{Reason: fmt.Sprintf("baseline mode %q and ablation %q are mutually exclusive", baseline, ablation)}
	case baseline != "":
		if _, ok := baselineStages[baseline]; !ok {
			return PipelineMode{}, &ConfigurationError{Reason: fmt.Sprintf("unknown baseline mode %q (want one of %s)", baseline, strings.Join(BaselineNames(), ", "))}
		}
		return PipelineMode{Kind: ModeBaseline, Name: baseline}, nil
	case ablation != "":
		if _, ok := ablationTargets[ablation]; !ok {
			return PipelineMode{}, &ConfigurationError{Reason: fmt.Sprintf("unknown ablation %q (want one of %s)", ablation, strings.Join(AblationNames(), ", "))}
		}
		return PipelineMode{Kind: ModeAblation, Name: ablation}, nil
	default:
		return FullMode, nil
	}
}

// Plan returns the ordered stage identifiers executed for mode.
func Plan(mode PipelineMode) ([]string, error) {
	switch mode.Kind {
	case ModeFull, "":
		return append([]string(nil), fullSequence...), nil
	case ModeBaseline:
		name, ok := baselineStages[mode.Name]
		if !ok {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown baseline mode %q", mode.Name)}
		}
		return []string{name}, nil
	case ModeAblation:
		removed, ok := ablationTargets[mode.Name]
		if !ok {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown ablation %q", mode.Name)}
		}
		plan := make([]string, 0, len(fullSequence)-1)
		for _, name := range fullSequence {
			if name != removed {
				plan = append(plan, name)
			}
		}
		return plan, nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown mode kind %q", mode.Kind)}
	}
}

// BaselineNames lists accepted --baseline-mode values in a stable order.
func BaselineNames() []string {
	return []string{"original", "fewshot", "with_figure"}
}

// AblationNames lists accepted --ablation values in a stable order.
func AblationNames() []string {
	return []string{"no_logical_draft", "no_visual_analysis", "no_platform_adaptation"}
}
