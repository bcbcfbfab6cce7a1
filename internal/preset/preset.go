// Package preset provides the preset model: the named modes the loop
// cycles through, the optional review configuration, and per-preset
// settings. Presets are loaded from YAML files or from the builtin set.
package preset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Mode is a named, fixed instruction set the agent executes for one
// invocation. Ordering within a preset defines the cycle order.
type Mode struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

// ReviewConfig configures the validation pass that runs after each full
// cycle of modes. A nil ReviewConfig on the preset means review is
// skipped entirely.
type ReviewConfig struct {
	Enabled      bool     `yaml:"enabled"`
	CheckPrompt  string   `yaml:"check_prompt"`
	FilterPrompt string   `yaml:"filter_prompt"`
	FixPrompt    string   `yaml:"fix_prompt"`
	ScopeGlobs   []string `yaml:"scope"`
}

// FileScope narrows the files the agent is pointed at via the {files}
// placeholder in mode prompts.
type FileScope struct {
	Pattern string   `yaml:"pattern"`
	Exclude []string `yaml:"exclude"`
}

// Settings holds per-preset run settings. All fields are pointers so
// the config resolver can tell "unset" apart from zero values.
type Settings struct {
	Agent                 *string `yaml:"agent"`
	Model                 *string `yaml:"model"`
	CommitMessageTemplate *string `yaml:"commit_message_template"`
	PromptSuffix          *string `yaml:"prompt_suffix"`
	MaxIterations         *int    `yaml:"max_iterations"`
	MaxFailures           *int    `yaml:"max_failures"`
	Squash                *bool   `yaml:"squash"`
	SquashOnFailure       *bool   `yaml:"squash_on_failure"`
}

// Preset is a loaded preset definition. Immutable once loaded.
type Preset struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Files       *FileScope    `yaml:"files"`
	Modes       []Mode        `yaml:"modes"`
	Review      *ReviewConfig `yaml:"review"`
	Settings    Settings      `yaml:"settings"`
}

// DefaultCommitTemplate is the commit message used for mode iteration
// commits when the preset does not override it.
const DefaultCommitTemplate = "[{mode}] iteration {n}"

// placeholderPattern matches {word} template placeholders.
var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// knownPlaceholders is the enumerated set of recognized template
// placeholders. Templates are validated at load time, not at use time.
var knownPlaceholders = []string{"mode", "n", "files"}

// Validate checks structural invariants. An empty mode list is a
// configuration error, and every template string may only use
// recognized placeholders.
func (p *Preset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("preset must have a name")
	}
	if len(p.Modes) == 0 {
		return fmt.Errorf("preset %q must have at least one mode", p.Name)
	}
	for i, m := range p.Modes {
		if m.Name == "" {
			return fmt.Errorf("preset %q: mode %d has no name", p.Name, i)
		}
		if strings.TrimSpace(m.Prompt) == "" {
			return fmt.Errorf("preset %q: mode %q has an empty prompt", p.Name, m.Name)
		}
		if err := validatePlaceholders(m.Prompt); err != nil {
			return fmt.Errorf("preset %q: mode %q prompt: %w", p.Name, m.Name, err)
		}
	}
	if p.Settings.CommitMessageTemplate != nil {
		if err := validatePlaceholders(*p.Settings.CommitMessageTemplate); err != nil {
			return fmt.Errorf("preset %q: commit_message_template: %w", p.Name, err)
		}
	}
	if p.Settings.PromptSuffix != nil {
		if err := validatePlaceholders(*p.Settings.PromptSuffix); err != nil {
			return fmt.Errorf("preset %q: prompt_suffix: %w", p.Name, err)
		}
	}
	if p.Review != nil {
		for _, glob := range p.Review.ScopeGlobs {
			if strings.TrimSpace(glob) == "" {
				return fmt.Errorf("preset %q: review scope contains an empty glob", p.Name)
			}
		}
	}
	return nil
}

// validatePlaceholders rejects {word} tokens outside the recognized set.
func validatePlaceholders(s string) error {
	for _, match := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		name := match[1]
		known := false
		for _, k := range knownPlaceholders {
			if name == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown placeholder {%s} (recognized: {mode}, {n}, {files})", name)
		}
	}
	return nil
}

// FileList renders the preset's file scope for the {files} placeholder.
// Returns an empty string when the preset has no file scope.
func (p *Preset) FileList() string {
	if p.Files == nil || p.Files.Pattern == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.Files.Pattern)
	for _, ex := range p.Files.Exclude {
		b.WriteString("\nexclude: ")
		b.WriteString(ex)
	}
	return b.String()
}

// Expand substitutes the recognized placeholders in s. The iteration
// number n is rendered one-based for human-facing text.
func (p *Preset) Expand(s, modeName string, n int) string {
	r := strings.NewReplacer(
		"{mode}", modeName,
		"{n}", strconv.Itoa(n),
		"{files}", p.FileList(),
	)
	return r.Replace(s)
}

// FullPrompt composes the prompt for one agent invocation: the mode's
// prompt with placeholders expanded, followed by the configured suffix.
func (p *Preset) FullPrompt(mode Mode, suffix string, iteration int) string {
	prompt := p.Expand(mode.Prompt, mode.Name, iteration+1)
	if suffix != "" {
		prompt = strings.TrimRight(prompt, "\n") + "\n\n" + p.Expand(suffix, mode.Name, iteration+1)
	}
	return prompt
}

// CommitMessage formats the commit message for a mode iteration commit
// using the preset's template, falling back to DefaultCommitTemplate.
// The iteration count shown is the one-based attempt number.
func (p *Preset) CommitMessage(modeName string, iteration int) string {
	tmpl := DefaultCommitTemplate
	if p.Settings.CommitMessageTemplate != nil && *p.Settings.CommitMessageTemplate != "" {
		tmpl = *p.Settings.CommitMessageTemplate
	}
	return p.Expand(tmpl, modeName, iteration+1)
}

// ReviewEnabled reports whether the post-cycle review pass should run.
func (p *Preset) ReviewEnabled() bool {
	return p.Review != nil && p.Review.Enabled
}
