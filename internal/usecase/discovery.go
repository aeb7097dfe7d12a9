package usecase

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"PaperPromoter/internal/domain"
)

var figureExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DiscoverProjects lists one project per immediate, non-hidden subdirectory
// of inputDir holding at least one PDF. Folders without a PDF are returned
// as skip results. An unreadable inputDir is a configuration error.
func DiscoverProjects(inputDir string, logger *slog.Logger) ([]domain.Project, []domain.RunResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, nil, &domain.ConfigurationError{Reason: "read input directory " + inputDir, Err: err}
	}

	var (
		projects []domain.Project
		skips    []domain.RunResult
	)
	for _, entry := range entries {
		if hidden(entry.Name()) {
			continue
		}
		dir := filepath.Join(inputDir, entry.Name())
		if entry.Type()&fs.ModeSymlink != 0 {
			resolved, err := resolveLink(dir)
			if err != nil {
				logger.Warn("skipping broken project link", "project", entry.Name(), "error", err)
				skips = append(skips, domain.Skipped(entry.Name(), "unreadable: "+err.Error()))
				continue
			}
			if resolved == "" {
				continue
			}
			dir = resolved
		} else if !entry.IsDir() {
			continue
		}
		project, err := scanProject(entry.Name(), dir)
		if err != nil {
			logger.Warn("skipping unreadable project", "project", entry.Name(), "error", err)
			skips = append(skips, domain.Skipped(entry.Name(), "unreadable: "+err.Error()))
			continue
		}
		if len(project.PDFPaths) == 0 {
			logger.Warn("skipping project without pdf", "project", entry.Name())
			skips = append(skips, domain.Skipped(entry.Name(), "no pdf found"))
			continue
		}
		projects = append(projects, project)
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, skips, nil
}

// resolveLink follows a symlinked entry. It returns "" when the target is
// not a directory.
func resolveLink(path string) (string, error) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", nil
	}
	return target, nil
}

// scanProject collects PDFs directly in dir and figure images anywhere below it.
func scanProject(id, dir string) (domain.Project, error) {
	project := domain.Project{ID: id, Dir: dir}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		switch {
		case ext == ".pdf" && filepath.Dir(path) == dir:
			project.PDFPaths = append(project.PDFPaths, path)
		case figureExtensions[ext]:
			project.FigurePaths = append(project.FigurePaths, path)
		}
		return nil
	})
	if err != nil {
		return domain.Project{}, err
	}
	sort.Strings(project.PDFPaths)
	sort.Strings(project.FigurePaths)
	return project, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
