package agent

import (
	"fmt"
	"io"
)

// SupportedAgents lists all valid agent names.
var SupportedAgents = []string{"opencode", "claude", "codex"}

// DefaultAgent is the agent used when none is configured.
const DefaultAgent = "opencode"

// New creates an Agent by name. Live output is written to stream while
// the agent runs; stream may be nil to capture output silently.
func New(name, model string, stream io.Writer) (Agent, error) {
	switch name {
	case "opencode":
		return NewOpencodeAgent(model, stream), nil
	case "claude":
		return NewClaudeAgent(model, stream), nil
	case "codex":
		return NewCodexAgent(model, stream), nil
	default:
		return nil, fmt.Errorf("unknown agent %q, supported: opencode, claude, codex", name)
	}
}
