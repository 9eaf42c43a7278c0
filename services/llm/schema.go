// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// extractJSON pulls the first top-level JSON object or array out of text,
// tolerating providers that wrap their JSON in markdown code fences or
// trailing commentary.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	open, close := text[start], byte('}')
	if open == '[' {
		close = ']'
	}
	end := strings.LastIndexByte(text, close)
	if end < start {
		return text
	}
	return text[start : end+1]
}

// validateAgainstSchema checks raw JSON text against a JSON Schema document
// and returns the parsed document on success.
func validateAgainstSchema(rawJSON string, schema json.RawMessage) (json.RawMessage, error) {
	candidate := extractJSON(rawJSON)

	schemaLoader := gojsonschema.NewBytesLoader(schema)
	docLoader := gojsonschema.NewStringLoader(candidate)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("response failed schema validation: %s", strings.Join(msgs, "; "))
	}
	return json.RawMessage(candidate), nil
}

// repairPrompt builds the strict re-prompt issued once per provider when
// the first JSON-mode attempt fails validation.
func repairPrompt(original string, schema json.RawMessage, validationErr error) string {
	return fmt.Sprintf(
		"Your previous response did not match the required JSON schema (%s).\n"+
			"Schema:\n%s\n\n"+
			"Return ONLY valid JSON matching this schema, with no commentary, no markdown fences.\n\n"+
			"Original request:\n%s",
		validationErr, string(schema), original,
	)
}
