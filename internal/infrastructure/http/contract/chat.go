// Package contract holds the JSON Schemas of request bodies accepted by
// the HTTP API.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ChatSchemaURL identifies the relay body schema
const ChatSchemaURL = "https://recipegen.local/schemas/chat-request.json"

// ChatSchema is the body of POST /api/chat
const ChatSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://recipegen.local/schemas/chat-request.json",
  "title": "ChatRequest",
  "type": "object",
  "properties": {
    "developer_message": {"type": "string", "maxLength": 4000},
    "user_message": {"type": "string", "minLength": 1, "maxLength": 16000},
    "model": {"type": "string", "minLength": 1, "maxLength": 100}
  },
  "required": ["developer_message", "user_message"],
  "additionalProperties": false
}`

var chatSchema = jsonschema.MustCompileString(ChatSchemaURL, ChatSchema)

// ErrMalformedJSON is returned for bodies that are not JSON at all
var ErrMalformedJSON = errors.New("request body is not valid JSON")

// ValidateChat checks raw against ChatSchema
func ValidateChat(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return chatSchema.Validate(doc)
}

// Violations flattens a validation error into one message per failing
// location
func Violations(err error) []string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}

	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}
