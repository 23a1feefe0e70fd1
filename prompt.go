package vizn

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NormalizePrompt converts a prompt value to the text submitted to the capability.
//
// Text passes through untouched. Structured values (maps, slices, structs) are
// encoded as compact JSON; map keys are sorted by encoding/json, so the same
// value always produces the same text. HTML characters are not escaped.
func NormalizePrompt(prompt any) (string, error) {
	switch p := prompt.(type) {
	case string:
		return p, nil
	case []byte:
		return string(p), nil
	case json.RawMessage:
		var buf bytes.Buffer
		if err := json.Compact(&buf, p); err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnsupportedPrompt, err)
		}
		return buf.String(), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(prompt); err != nil {
		return "", fmt.Errorf("%w: %T: %w", ErrUnsupportedPrompt, prompt, err)
	}

	// Encode terminates each value with a newline
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// promptFromArgs extracts the prompt from agent-framework tool arguments.
// A lone "prompt" argument is unwrapped whatever its type; anything else is
// treated as structured input.
func promptFromArgs(args map[string]any) any {
	if len(args) == 1 {
		if p, ok := args["prompt"]; ok {
			return p
		}
	}
	return args
}
