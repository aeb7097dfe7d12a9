package stage

import (
	"errors"
	"fmt"
	"strings"

	"PaperPromoter/internal/domain"
)

// AssemblePost composes a post from the draft and visual notes without a
// model call. It is used when the adaptation stage is ablated.
func AssemblePost(state domain.GenerationState, p Platform) (domain.Post, error) {
	d := state.Draft
	if d == nil || d.Empty() {
		return domain.Post{}, errors.New("no draft to assemble a post from")
	}

	var b strings.Builder
	title := d.Title
	if title == "" && state.Metadata != nil {
		title = state.Metadata.Title
	}
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	for _, c := range d.Claims {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	if len(d.KeyFindings) > 0 {
		b.WriteString("\n**Key findings**\n\n")
		for _, f := range d.KeyFindings {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	for _, n := range state.VisualNotes {
		fmt.Fprintf(&b, "\n**%s**: %s\n", n.FigureID, strings.TrimSpace(n.Analysis))
	}
	if m := state.Metadata; m != nil && m.URL != "" {
		fmt.Fprintf(&b, "\n%s\n", m.URL)
	}

	post := domain.Post{
		Platform:  p.Name,
		Title:     title,
		Markdown:  strings.TrimSpace(b.String()),
		Assembled: true,
	}
	if len(state.VisualNotes) > 0 {
		post.FigureID = state.VisualNotes[0].FigureID
	}
	return post, nil
}
