package agent

import "fmt"

// ExecutionMode controls how a session's agent is scheduled by callers.
// The registry stores it per session; changing it never replaces the agent.
type ExecutionMode string

const (
	// ModeInteractive serves a live caller awaiting each response.
	ModeInteractive ExecutionMode = "interactive"

	// ModeBackground runs detached from any live caller.
	ModeBackground ExecutionMode = "background"

	// ModeSubTask runs on behalf of another session's agent.
	ModeSubTask ExecutionMode = "sub_task"
)

// ParseExecutionMode converts a string to an ExecutionMode.
// An empty string parses as interactive.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(s) {
	case ModeInteractive, "":
		return ModeInteractive, nil
	case ModeBackground:
		return ModeBackground, nil
	case ModeSubTask:
		return ModeSubTask, nil
	default:
		return "", fmt.Errorf("agent: unknown execution mode %q", s)
	}
}

// String returns the mode name.
func (m ExecutionMode) String() string {
	return string(m)
}

// Valid reports whether the mode is one of the defined values.
func (m ExecutionMode) Valid() bool {
	switch m {
	case ModeInteractive, ModeBackground, ModeSubTask:
		return true
	default:
		return false
	}
}
