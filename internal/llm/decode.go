package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoJSON indicates the reply contained no JSON object or array at all.
	ErrNoJSON = errors.New("llm: reply contains no json payload")
	// ErrBadJSON indicates a located payload failed to parse or validate.
	ErrBadJSON = errors.New("llm: reply json failed to parse")
)

// DecodeJSON extracts the JSON payload from a model reply and unmarshals it
// into v. Models frequently prefix their JSON with reasoning or markdown
// fences; everything before the first '{' or '[' is discarded, but from that
// point the payload must parse completely.
func DecodeJSON(reply string, v any) error {
	start := strings.IndexAny(reply, "{[")
	if start < 0 {
		return ErrNoJSON
	}
	decoder := json.NewDecoder(strings.NewReader(reply[start:]))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return nil
}
