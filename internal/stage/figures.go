package stage

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"PaperPromoter/internal/domain"
)

// DefaultPairThreshold is the largest index distance at which a caption is
// still attached to a figure.
const DefaultPairThreshold = 30

var figureNamePattern = regexp.MustCompile(`^([a-zA-Z_]+)_(\d+)_score([\d.]+)$`)

const (
	partFigure        = "figure"
	partFigureCaption = "figure_caption"
	partTable         = "table"
	partCaptionAbove  = "table_caption_above"
	partCaptionBelow  = "table_caption_below"
)

var captionKinds = map[string][]string{
	partFigure: {partFigureCaption},
	partTable:  {partCaptionAbove, partCaptionBelow},
}

type figurePart struct {
	path  string
	group string
	kind  string
	index int
}

// FigurePair is a figure or table file with its matched caption, if any.
type FigurePair struct {
	Group        string
	Kind         domain.FigureKind
	Index        int
	Path         string
	CaptionPath  string
	CaptionAbove bool
}

// ID names the pair uniquely within a project.
func (p FigurePair) ID() string {
	if p.Index < 0 {
		return p.Group
	}
	name := fmt.Sprintf("%s_%d", p.Kind, p.Index)
	if p.Group != "" && p.Group != "." {
		name = strings.ReplaceAll(p.Group, string(filepath.Separator), "_") + "_" + name
	}
	return name
}

// PairFigureFiles matches supplied figure and table crops with their
// caption crops. Files are grouped per page directory; inside a group each
// item takes the nearest unused caption whose index is within threshold.
// Paired items come first, then unpaired figures and tables, then files
// that do not follow the naming convention. Stand-alone captions are dropped.
func PairFigureFiles(root string, paths []string, threshold int) []FigurePair {
	if threshold <= 0 {
		threshold = DefaultPairThreshold
	}

	groups := map[string]map[string][]figurePart{}
	var plain []FigurePair
	for _, path := range paths {
		part, ok := parseFigurePath(root, path)
		if !ok {
			plain = append(plain, FigurePair{Group: plainFigureID(root, path), Kind: domain.FigureKindFigure, Index: -1, Path: path})
			continue
		}
		if groups[part.group] == nil {
			groups[part.group] = map[string][]figurePart{}
		}
		groups[part.group][part.kind] = append(groups[part.group][part.kind], part)
	}

	groupNames := make([]string, 0, len(groups))
	for g := range groups {
		groupNames = append(groupNames, g)
	}
	sort.Strings(groupNames)

	var paired, unpaired []FigurePair
	for _, g := range groupNames {
		byKind := groups[g]
		for _, parts := range byKind {
			sort.Slice(parts, func(i, j int) bool { return parts[i].index < parts[j].index })
		}
		used := map[string]map[int]bool{}

		for _, itemKind := range []string{partFigure, partTable} {
			for _, item := range byKind[itemKind] {
				best, bestDiff := figurePart{}, math.MaxInt
				for _, capKind := range captionKinds[itemKind] {
					for _, c := range byKind[capKind] {
						if used[capKind][c.index] {
							continue
						}
						if d := absInt(item.index - c.index); d < bestDiff {
							best, bestDiff = c, d
						}
					}
				}

				pair := FigurePair{Group: g, Kind: domain.FigureKind(itemKind), Index: item.index, Path: item.path}
				if best.path != "" && bestDiff <= threshold {
					if used[best.kind] == nil {
						used[best.kind] = map[int]bool{}
					}
					used[best.kind][best.index] = true
					pair.CaptionPath = best.path
					pair.CaptionAbove = best.kind == partCaptionAbove
					paired = append(paired, pair)
					continue
				}
				unpaired = append(unpaired, pair)
			}
		}
	}

	sort.Slice(plain, func(i, j int) bool { return plain[i].Path < plain[j].Path })
	out := append(paired, unpaired...)
	return append(out, plain...)
}

// LoadFigurePairs reads pair files into figures.
func LoadFigurePairs(pairs []FigurePair) ([]domain.Figure, error) {
	figures := make([]domain.Figure, 0, len(pairs))
	for _, p := range pairs {
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return nil, fmt.Errorf("read figure %s: %w", p.Path, err)
		}
		fig := domain.Figure{
			ID:           p.ID(),
			Kind:         p.Kind,
			Source:       domain.FigureFromSupplied,
			Path:         p.Path,
			Data:         data,
			CaptionAbove: p.CaptionAbove,
		}
		if p.CaptionPath != "" {
			caption, err := os.ReadFile(p.CaptionPath)
			if err != nil {
				return nil, fmt.Errorf("read caption %s: %w", p.CaptionPath, err)
			}
			fig.CaptionData = caption
		}
		figures = append(figures, fig)
	}
	return figures, nil
}

// plainFigureID derives an ID from the path below root without the
// extension, so equal file names in different folders stay distinct.
func plainFigureID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(rel, string(filepath.Separator), "_")
}

// parseFigurePath recognises <kind>_<index>_score<score>.<ext>. The group
// is the directory holding the file, or its parent when the file sits in a
// per-kind subdirectory.
func parseFigurePath(root, path string) (figurePart, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := figureNamePattern.FindStringSubmatch(stem)
	if m == nil {
		return figurePart{}, false
	}
	kind := m[1]
	switch kind {
	case partFigure, partFigureCaption, partTable, partCaptionAbove, partCaptionBelow:
	default:
		return figurePart{}, false
	}
	index, err := strconv.Atoi(m[2])
	if err != nil {
		return figurePart{}, false
	}

	dir := filepath.Dir(path)
	if filepath.Base(dir) == kind {
		dir = filepath.Dir(dir)
	}
	group, err := filepath.Rel(root, dir)
	if err != nil {
		group = dir
	}
	return figurePart{path: path, group: group, kind: kind, index: index}, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
