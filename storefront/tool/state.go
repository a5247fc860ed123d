package tool

import (
	"encoding/json"
	"fmt"

	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

// CallState is the lifecycle of one tool call as reported by the agent.
type CallState int

const (
	CallStreaming CallState = iota + 1
	CallAvailable
	CallFulfilled
	CallFailed
)

func ParseCallState(s string) (CallState, error) {
	switch s {
	case "input-streaming":
		return CallStreaming, nil
	case "input-available":
		return CallAvailable, nil
	case "output-available":
		return CallFulfilled, nil
	case "output-error":
		return CallFailed, nil
	default:
		return 0, fmt.Errorf("%w: unknown tool call state %q", contract.ErrValidation, s)
	}
}

func (s CallState) String() string {
	switch s {
	case CallStreaming:
		return "input-streaming"
	case CallAvailable:
		return "input-available"
	case CallFulfilled:
		return "output-available"
	case CallFailed:
		return "output-error"
	default:
		return "unknown"
	}
}

func (s CallState) Terminal() bool {
	return s == CallFulfilled || s == CallFailed
}

func (s CallState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *CallState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: tool call state must be a string", contract.ErrValidation)
	}
	parsed, err := ParseCallState(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Call is one observation of a tool call: {toolCallId, state, input}.
type Call struct {
	ID    string            `json:"toolCallId"`
	Tool  contract.ToolName `json:"toolName"`
	State CallState         `json:"state"`
	Input json.RawMessage   `json:"input,omitempty"`
}
