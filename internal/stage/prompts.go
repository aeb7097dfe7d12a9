package stage

import (
	"fmt"
	"strings"

	"PaperPromoter/internal/domain"
)

// maxPaperRunes bounds how much extracted text is placed in a prompt.
const maxPaperRunes = 12000

const draftSystemPrompt = `You are a research communicator. You read academic papers and distil them into a structured outline for a social media post. Answer with a single JSON object and nothing else.`

const visionSystemPrompt = `You are an expert at reading scientific figures and tables. Describe what the image shows and the single most important takeaway, in at most 120 words.`

func truncateRunes(s string, limit int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit]) + "\n[...]"
}

func paperHeader(state domain.GenerationState) string {
	var b strings.Builder
	if m := state.Metadata; m != nil {
		if m.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", m.Title)
		}
		if len(m.Authors) > 0 {
			fmt.Fprintf(&b, "Authors: %s\n", strings.Join(m.Authors, ", "))
		}
		if m.URL != "" {
			fmt.Fprintf(&b, "Link: %s\n", m.URL)
		}
		if m.Abstract != "" {
			fmt.Fprintf(&b, "Abstract: %s\n", m.Abstract)
		}
	}
	if d := state.Document; d != nil && len(d.Sections) > 0 {
		fmt.Fprintf(&b, "Sections: %s\n", strings.Join(d.Sections, " | "))
	}
	return b.String()
}

func paperText(state domain.GenerationState) string {
	if state.Document == nil {
		return ""
	}
	return truncateRunes(state.Document.Text, maxPaperRunes)
}

func draftPrompt(state domain.GenerationState) domain.Prompt {
	var b strings.Builder
	b.WriteString("Read the paper below and return JSON with the keys:\n")
	b.WriteString(`  "title": a short, plain-language headline` + "\n")
	b.WriteString(`  "claims": the paper's main claims, one sentence each` + "\n")
	b.WriteString(`  "key_findings": concrete results with numbers where available` + "\n")
	b.WriteString(`  "narrative_order": the order in which a post should present hook, problem, method, results and takeaway` + "\n\n")
	b.WriteString(paperHeader(state))
	b.WriteString("\nPaper text:\n")
	b.WriteString(paperText(state))
	return domain.Prompt{System: draftSystemPrompt, User: b.String()}
}

func visionPrompt(state domain.GenerationState, fig domain.Figure) domain.Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "This %s comes from a research paper", fig.Kind)
	if state.Draft != nil && state.Draft.Title != "" {
		fmt.Fprintf(&b, " summarised as %q", state.Draft.Title)
	}
	b.WriteString(".")
	if len(fig.CaptionData) > 0 {
		b.WriteString(" Its caption is included in the image.")
	}
	b.WriteString(" Explain what it shows and why it matters for a general technical audience.")
	return domain.Prompt{System: visionSystemPrompt, User: b.String()}
}

func platformSystemPrompt(p Platform) string {
	return fmt.Sprintf(
		"You write %s posts that promote academic papers. Write in %s. Tone: %s. Format: %s. "+
			"Start with a markdown '# ' title line. Keep the post under %d characters and end with at most %d hashtags.",
		p.DisplayName, p.Language, p.Tone, p.Format, p.MaxChars, p.MaxHashtags)
}

func adaptationPrompt(state domain.GenerationState, p Platform) domain.Prompt {
	var b strings.Builder
	b.WriteString(paperHeader(state))
	if d := state.Draft; d != nil {
		b.WriteString("\nOutline:\n")
		writeDraft(&b, *d)
	} else {
		b.WriteString("\nPaper text:\n")
		b.WriteString(paperText(state))
		b.WriteString("\n")
	}
	if len(state.VisualNotes) > 0 {
		b.WriteString("\nFigure notes:\n")
		for _, n := range state.VisualNotes {
			fmt.Fprintf(&b, "- [%s] %s\n", n.FigureID, n.Analysis)
		}
	}
	fmt.Fprintf(&b, "\nWrite the %s now.", p.DisplayName)
	return domain.Prompt{System: platformSystemPrompt(p), User: b.String()}
}

func writeDraft(b *strings.Builder, d domain.LogicalDraft) {
	if d.Title != "" {
		fmt.Fprintf(b, "Title: %s\n", d.Title)
	}
	writeList(b, "Claims", d.Claims)
	writeList(b, "Key findings", d.KeyFindings)
	if len(d.NarrativeOrder) > 0 {
		fmt.Fprintf(b, "Narrative order: %s\n", strings.Join(d.NarrativeOrder, " -> "))
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func baselinePrompt(state domain.GenerationState, p Platform, examples []string, figureNote string) domain.Prompt {
	var b strings.Builder
	for i, ex := range examples {
		fmt.Fprintf(&b, "Example %d:\n%s\n\n", i+1, ex)
	}
	b.WriteString(paperHeader(state))
	b.WriteString("\nPaper text:\n")
	b.WriteString(paperText(state))
	if figureNote != "" {
		fmt.Fprintf(&b, "\n\nKey figure: %s", figureNote)
	}
	fmt.Fprintf(&b, "\n\nWrite a %s promoting this paper.", p.DisplayName)
	return domain.Prompt{System: platformSystemPrompt(p), User: b.String()}
}
