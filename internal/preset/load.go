package preset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadResult contains a loaded preset and any warnings encountered.
type LoadResult struct {
	Preset   *Preset
	Warnings []string
}

// Load reads and validates a preset from a YAML file on disk.
func Load(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("preset file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}
	result, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

// Parse decodes and validates preset YAML. Unknown keys produce
// warnings with did-you-mean suggestions rather than errors.
func Parse(data []byte) (*LoadResult, error) {
	warnings := checkUnknownKeys(data)

	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid preset YAML: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &LoadResult{Preset: &p, Warnings: warnings}, nil
}

// knownTopLevelKeys are the valid top-level keys in a preset file.
var knownTopLevelKeys = []string{"name", "description", "files", "modes", "review", "settings"}

// knownReviewKeys are the valid keys under the "review" section.
var knownReviewKeys = []string{"enabled", "check_prompt", "filter_prompt", "fix_prompt", "scope"}

// knownSettingsKeys are the valid keys under the "settings" section.
var knownSettingsKeys = []string{
	"agent", "model", "commit_message_template", "prompt_suffix",
	"max_iterations", "max_failures", "squash", "squash_on_failure",
}

// checkUnknownKeys checks for unknown keys in the YAML data and returns warnings.
func checkUnknownKeys(data []byte) []string {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// Let the main decoder report the error.
		return nil
	}

	var warnings []string
	warnings = append(warnings, unknownKeyWarnings(raw, knownTopLevelKeys, "")...)
	if review, ok := raw["review"].(map[string]any); ok {
		warnings = append(warnings, unknownKeyWarnings(review, knownReviewKeys, "review")...)
	}
	if settings, ok := raw["settings"].(map[string]any); ok {
		warnings = append(warnings, unknownKeyWarnings(settings, knownSettingsKeys, "settings")...)
	}
	return warnings
}

func unknownKeyWarnings(section map[string]any, known []string, sectionName string) []string {
	var warnings []string
	for key := range section {
		if contains(known, key) {
			continue
		}
		warning := fmt.Sprintf("unknown key %q", key)
		if sectionName != "" {
			warning = fmt.Sprintf("unknown key %q in %s section", key, sectionName)
		}
		if suggestion := findSimilar(key, known); suggestion != "" {
			warning += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		warnings = append(warnings, warning)
	}
	return warnings
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// findSimilar finds the most similar string from candidates using Levenshtein
// distance. Returns empty string if no candidate is within 3 edits.
func findSimilar(input string, candidates []string) string {
	const maxDistance = 3
	bestMatch := ""
	bestDistance := maxDistance + 1

	for _, candidate := range candidates {
		dist := levenshtein(input, candidate)
		if dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshtein calculates the Levenshtein distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	matrix := make([][]int, len(ra)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(rb)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(ra)][len(rb)]
}
