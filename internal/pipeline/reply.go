package pipeline

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("reply holds no JSON object")

// decodeReply reads the JSON object an agent was asked to reply with. Code
// fences and prose around the object are tolerated.
func decodeReply(text string, v any) error {
	text = stripFences(text)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return errNoJSONObject
	}
	return json.Unmarshal([]byte(text[start:end+1]), v)
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// payload renders a labelled JSON block for an agent message.
func payload(intro string, v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return intro
	}
	return intro + "\n\n" + string(b)
}
