package classify

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Action tags the two classification outcomes on the wire.
type Action string

const (
	ActionFlag  Action = "FLAG"
	ActionReply Action = "REPLY"
)

// Decision is the outcome of classifying one review: either a Flag or a
// Reply. The set is closed.
type Decision interface {
	Action() Action
	Language() string
	isDecision()
}

// Flag means the review must not receive a generated reply.
type Flag struct {
	Reason           string
	DetectedLanguage string
}

func (Flag) Action() Action     { return ActionFlag }
func (f Flag) Language() string { return f.DetectedLanguage }
func (Flag) isDecision()        {}

// Reply carries a ready-to-send answer in the review's own language.
type Reply struct {
	Content          string
	DetectedLanguage string
}

func (Reply) Action() Action     { return ActionReply }
func (r Reply) Language() string { return r.DetectedLanguage }
func (Reply) isDecision()        {}

type wireDecision struct {
	Action           Action `json:"action"`
	Reason           string `json:"reason"`
	Content          string `json:"content"`
	DetectedLanguage string `json:"detectedLanguage"`
}

// DecodeDecision parses the oracle's JSON answer. Markdown code fences around
// the object are tolerated; anything else that is not a FLAG or REPLY object
// is a MalformedResponseError.
func DecodeDecision(raw string) (Decision, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, &MalformedResponseError{Raw: raw, Err: eris.New("empty response")}
	}

	var w wireDecision
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: eris.Wrap(err, "decode json")}
	}

	switch Action(strings.ToUpper(string(w.Action))) {
	case ActionFlag:
		return Flag{Reason: w.Reason, DetectedLanguage: w.DetectedLanguage}, nil
	case ActionReply:
		return Reply{Content: strings.TrimSpace(w.Content), DetectedLanguage: w.DetectedLanguage}, nil
	case "":
		return nil, &MalformedResponseError{Raw: raw, Err: eris.New("missing action")}
	default:
		return nil, &MalformedResponseError{Raw: raw, Err: eris.Errorf("unknown action %q", w.Action)}
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an info string such as "json".
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
