package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestPlanFull(t *testing.T) {
	t.Parallel()

	plan, err := Plan(FullMode)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	want := []string{StageLogicalDraft, StageVisualAnalysis, StagePlatformAdaptation}
	if !reflect.DeepEqual(plan, want) {
		t.Fatalf("unexpected plan: %v", plan)
	}
}

func TestPlanBaselines(t *testing.T) {
	t.Parallel()

	want := map[string]string{
		"original":    StageOriginal,
		"fewshot":     StageFewshot,
		"with_figure": StageWithFigure,
	}
	for _, name := range BaselineNames() {
		mode, err := ParseMode(name, "")
		if err != nil {
			t.Fatalf("ParseMode(%s): %v", name, err)
		}
		plan, err := Plan(mode)
		if err != nil {
			t.Fatalf("Plan(%s): %v", name, err)
		}
		if len(plan) != 1 || plan[0] != want[name] {
			t.Fatalf("baseline %s: unexpected plan %v", name, plan)
		}
	}
}

func TestPlanAblations(t *testing.T) {
	t.Parallel()

	removed := map[string]string{
		"no_logical_draft":       StageLogicalDraft,
		"no_visual_analysis":     StageVisualAnalysis,
		"no_platform_adaptation": StagePlatformAdaptation,
	}
	for _, name := range AblationNames() {
		mode, err := ParseMode("", name)
		if err != nil {
			t.Fatalf("ParseMode(%s): %v", name, err)
		}
		plan, err := Plan(mode)
		if err != nil {
			t.Fatalf("Plan(%s): %v", name, err)
		}
		if len(plan) != 2 {
			t.Fatalf("ablation %s: expected 2 stages, got %v", name, plan)
		}
		for _, stage := range plan {
			if stage == removed[name] {
				t.Fatalf("ablation %s still contains %s", name, stage)
			}
		}
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode("", "no_visual_analysis")
	if err != nil {
		t.Fatalf("ParseMode: %v", err)
	}
	first, _ := Plan(mode)
	for i := 0; i < 10; i++ {
		next, _ := Plan(mode)
		if !reflect.DeepEqual(first, next) {
			t.Fatalf("plan changed between calls: %v vs %v", first, next)
		}
	}
	want := []string{StageLogicalDraft, StagePlatformAdaptation}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("unexpected order: %v", first)
	}
}

func TestParseModeRejectsConflicts(t *testing.T) {
	t.Parallel()

	_, err := ParseMode("fewshot", "no_logical_draft")
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestParseModeRejectsUnknown(t *testing.T) {
	t.Parallel()

	cases := [][2]string{{"zero-shot", ""}, {"", "no_everything"}}
	for _, tc := range cases {
		_, err := ParseMode(tc[0], tc[1])
		if KindOf(err) != KindConfiguration {
			t.Fatalf("ParseMode(%q, %q): expected configuration error, got %v", tc[0], tc[1], err)
		}
	}
}

func TestParseModeDefaultsToFull(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode("  ", "")
	if err != nil {
		t.Fatalf("ParseMode: %v", err)
	}
	if mode != FullMode {
		t.Fatalf("expected full mode, got %+v", mode)
	}
	if mode.String() != "full" {
		t.Fatalf("unexpected mode string %q", mode.String())
	}
}
