// Package config resolves run settings from flags, environment
// variables, and preset settings.
// Precedence: flags > env vars > preset settings > defaults.
package config

import (
	"os"
	"strconv"

	"github.com/richhaase/agent-loop/internal/preset"
)

// RunSettings holds the final resolved settings for one loop run.
type RunSettings struct {
	// Agent is the agent CLI to drive (opencode, claude, codex).
	Agent string
	// Model is the model identifier passed to the agent.
	Model string
	// MaxIterations bounds the number of attempts; 0 means unlimited.
	MaxIterations int
	// MaxFailures bounds consecutive failed invocations; 0 means unlimited.
	MaxFailures int
	// Squash collapses the run's commits into one on termination.
	Squash bool
	// SquashOnFailure also squashes when the failure budget stops the run.
	SquashOnFailure bool
	// PromptSuffix is appended to every mode prompt.
	PromptSuffix string
}

// Defaults holds the built-in default values.
var Defaults = RunSettings{
	Agent:           "opencode",
	Model:           "", // agent's own default model
	MaxIterations:   0,
	MaxFailures:     0,
	Squash:          true,
	SquashOnFailure: true,
	PromptSuffix:    "",
}

// FlagState tracks whether a flag was explicitly set on the command line.
type FlagState struct {
	AgentSet          bool
	ModelSet          bool
	MaxIterationsSet  bool
	MaxFailuresSet    bool
	NoSquashSet       bool
	NoSquashOnFailSet bool
	PromptSuffixSet   bool
}

// EnvState captures env var values and whether they were set.
type EnvState struct {
	Agent              string
	AgentSet           bool
	Model              string
	ModelSet           bool
	MaxIterations      int
	MaxIterationsSet   bool
	MaxFailures        int
	MaxFailuresSet     bool
	Squash             bool
	SquashSet          bool
	SquashOnFailure    bool
	SquashOnFailureSet bool
	PromptSuffix       string
	PromptSuffixSet    bool
}

// LoadEnvState reads ALOOP_* environment variables and returns their state.
func LoadEnvState() EnvState {
	var state EnvState

	if v := os.Getenv("ALOOP_AGENT"); v != "" {
		state.Agent = v
		state.AgentSet = true
	}
	if v := os.Getenv("ALOOP_MODEL"); v != "" {
		state.Model = v
		state.ModelSet = true
	}
	if v := os.Getenv("ALOOP_MAX_ITERATIONS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			state.MaxIterations = i
			state.MaxIterationsSet = true
		}
	}
	if v := os.Getenv("ALOOP_MAX_FAILURES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			state.MaxFailures = i
			state.MaxFailuresSet = true
		}
	}
	if v := os.Getenv("ALOOP_SQUASH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			state.Squash = b
			state.SquashSet = true
		}
	}
	if v := os.Getenv("ALOOP_SQUASH_ON_FAILURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			state.SquashOnFailure = b
			state.SquashOnFailureSet = true
		}
	}
	if v := os.Getenv("ALOOP_PROMPT_SUFFIX"); v != "" {
		state.PromptSuffix = v
		state.PromptSuffixSet = true
	}

	return state
}

// Resolve merges preset settings with env vars and flags.
// Precedence: flags > env vars > preset settings > defaults.
func Resolve(ps preset.Settings, envState EnvState, flagState FlagState, flagValues RunSettings) RunSettings {
	result := Defaults

	// Apply preset settings (if set)
	if ps.Agent != nil {
		result.Agent = *ps.Agent
	}
	if ps.Model != nil {
		result.Model = *ps.Model
	}
	if ps.MaxIterations != nil {
		result.MaxIterations = *ps.MaxIterations
	}
	if ps.MaxFailures != nil {
		result.MaxFailures = *ps.MaxFailures
	}
	if ps.Squash != nil {
		result.Squash = *ps.Squash
	}
	if ps.SquashOnFailure != nil {
		result.SquashOnFailure = *ps.SquashOnFailure
	}
	if ps.PromptSuffix != nil {
		result.PromptSuffix = *ps.PromptSuffix
	}

	// Apply env var values (if set)
	if envState.AgentSet {
		result.Agent = envState.Agent
	}
	if envState.ModelSet {
		result.Model = envState.Model
	}
	if envState.MaxIterationsSet {
		result.MaxIterations = envState.MaxIterations
	}
	if envState.MaxFailuresSet {
		result.MaxFailures = envState.MaxFailures
	}
	if envState.SquashSet {
		result.Squash = envState.Squash
	}
	if envState.SquashOnFailureSet {
		result.SquashOnFailure = envState.SquashOnFailure
	}
	if envState.PromptSuffixSet {
		result.PromptSuffix = envState.PromptSuffix
	}

	// Apply flag values (if explicitly set)
	if flagState.AgentSet {
		result.Agent = flagValues.Agent
	}
	if flagState.ModelSet {
		result.Model = flagValues.Model
	}
	if flagState.MaxIterationsSet {
		result.MaxIterations = flagValues.MaxIterations
	}
	if flagState.MaxFailuresSet {
		result.MaxFailures = flagValues.MaxFailures
	}
	if flagState.NoSquashSet {
		result.Squash = flagValues.Squash
	}
	if flagState.NoSquashOnFailSet {
		result.SquashOnFailure = flagValues.SquashOnFailure
	}
	if flagState.PromptSuffixSet {
		result.PromptSuffix = flagValues.PromptSuffix
	}

	return result
}
