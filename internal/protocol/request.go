package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Actions accepted from clients.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// Error codes carried by error events.
const (
	CodeInvalidJSON    = "invalid_json"
	CodeMissingAction  = "missing_action"
	CodeMissingSymbols = "missing_symbols"
	CodeUnknownAction  = "unknown_action"
	CodeNotAllowed     = "not_allowed"
)

// ProtocolError is a malformed or unsupported client message.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %s: %s", e.Code, e.Message)
}

// Request is a validated client message: Ping, Subscribe or Unsubscribe.
type Request interface {
	Action() string
}

// Ping asks for a pong carrying the server time.
type Ping struct{}

// Subscribe asks to join the topics of the listed symbols.
type Subscribe struct {
	Symbols []string
}

// Unsubscribe asks to leave the topics of the listed symbols.
type Unsubscribe struct {
	Symbols []string
}

func (Ping) Action() string        { return ActionPing }
func (Subscribe) Action() string   { return ActionSubscribe }
func (Unsubscribe) Action() string { return ActionUnsubscribe }

type rawRequest struct {
	Action  *string  `json:"action"`
	Symbols []string `json:"symbols"`
}

// Parse decodes and validates one inbound message. Any failure is a
// *ProtocolError.
func Parse(data []byte) (Request, error) {
	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ProtocolError{Code: CodeInvalidJSON, Message: "message is not a valid JSON object"}
	}

	if raw.Action == nil || *raw.Action == "" {
		return nil, &ProtocolError{Code: CodeMissingAction, Message: "action is required"}
	}

	switch *raw.Action {
	case ActionPing:
		return Ping{}, nil
	case ActionSubscribe, ActionUnsubscribe:
		symbols := normalizeSymbols(raw.Symbols)
		if len(symbols) == 0 {
			return nil, &ProtocolError{
				Code:    CodeMissingSymbols,
				Message: *raw.Action + " requires a non-empty symbols array",
			}
		}
		if *raw.Action == ActionSubscribe {
			return Subscribe{Symbols: symbols}, nil
		}
		return Unsubscribe{Symbols: symbols}, nil
	default:
		return nil, &ProtocolError{Code: CodeUnknownAction, Message: "unknown action: " + *raw.Action}
	}
}

// normalizeSymbols trims whitespace, drops empties and duplicates, and keeps
// first-seen order. Case is preserved.
func normalizeSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
