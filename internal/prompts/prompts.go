// Package prompts loads and validates the audit conversation prompt
// templates, with per-language variants and graceful fallback to the
// default language.
package prompts

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

//go:embed templates/*.md
var templateFS embed.FS

// DefaultLanguage is used when no localized template exists.
const DefaultLanguage = "en"

// RequiredSections must be present for a template to be considered usable.
var RequiredSections = []string{
	"# ROLE",
	"# FACT SCHEMA",
	"# OUTPUT FORMAT",
	"# CONVERSATION RULES",
}

// ValidationResult reports the structural check of a loaded template.
type ValidationResult struct {
	Valid           bool
	MissingSections []string
}

// Loader resolves audit prompt templates. An optional override directory
// lets deployments replace the embedded templates with files on disk.
type Loader struct {
	overrideDir string
}

// NewLoader creates a Loader using only the embedded templates.
func NewLoader() *Loader {
	return &Loader{}
}

// NewLoaderWithOverrides creates a Loader that prefers templates from dir.
func NewLoaderWithOverrides(dir string) *Loader {
	return &Loader{overrideDir: dir}
}

// LoadAuditPrompt returns the audit system prompt for the given language,
// falling back to the default language when the localized template is
// missing or structurally invalid. The returned ValidationResult describes
// the template actually returned.
func (l *Loader) LoadAuditPrompt(language string) (string, ValidationResult, error) {
	language = normalizeLanguage(language)

	content, err := l.read(language)
	if err == nil {
		if result := Validate(content); result.Valid {
			slog.Debug("prompts.LoadAuditPrompt: template loaded", "language", language, "length", len(content))
			return content, result, nil
		} else {
			slog.Warn("prompts.LoadAuditPrompt: localized template invalid, falling back", "language", language, "missingSections", result.MissingSections)
		}
	} else if language != DefaultLanguage {
		slog.Warn("prompts.LoadAuditPrompt: localized template missing, falling back", "language", language, "error", err)
	}

	if language == DefaultLanguage {
		if err != nil {
			return "", ValidationResult{}, fmt.Errorf("default audit prompt unavailable: %w", err)
		}
		result := Validate(content)
		return "", result, fmt.Errorf("default audit prompt invalid, missing sections: %s", strings.Join(result.MissingSections, ", "))
	}

	content, err = l.read(DefaultLanguage)
	if err != nil {
		return "", ValidationResult{}, fmt.Errorf("default audit prompt unavailable: %w", err)
	}
	result := Validate(content)
	if !result.Valid {
		return "", result, fmt.Errorf("default audit prompt invalid, missing sections: %s", strings.Join(result.MissingSections, ", "))
	}
	slog.Debug("prompts.LoadAuditPrompt: default template loaded as fallback", "requestedLanguage", language)
	return content, result, nil
}

// Validate checks that all required sections are present.
func Validate(content string) ValidationResult {
	var missing []string
	for _, section := range RequiredSections {
		if !strings.Contains(content, section) {
			missing = append(missing, section)
		}
	}
	return ValidationResult{Valid: len(missing) == 0, MissingSections: missing}
}

func (l *Loader) read(language string) (string, error) {
	name := fmt.Sprintf("audit_%s.md", language)

	if l.overrideDir != "" {
		path := l.overrideDir + string(os.PathSeparator) + name
		if data, err := os.ReadFile(path); err == nil {
			slog.Debug("prompts.read: using override template", "path", path)
			return strings.TrimSpace(string(data)), nil
		}
	}

	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("no audit template for language %q: %w", language, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func normalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return DefaultLanguage
	}
	// "en-US" -> "en"
	if i := strings.IndexAny(language, "-_"); i > 0 {
		language = language[:i]
	}
	return language
}
