// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import "encoding/json"

// reportJSONSchema is the JSON Schema the LLM cascade must satisfy in JSON
// mode. risk_assessment is intentionally loose here — the analyzer always
// overwrites it with the deterministic scorer's output after parsing.
var reportJSONSchema json.RawMessage = json.RawMessage(`{
  "type": "object",
  "required": ["summary", "findings"],
  "properties": {
    "summary": {"type": "string"},
    "company_info": {"type": "object"},
    "legal_cases_count": {"type": "integer"},
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["category", "source", "sentiment", "key_points"],
        "properties": {
          "category": {"type": "string"},
          "source": {"type": "string"},
          "sentiment": {"type": "string", "enum": ["positive", "neutral", "negative"]},
          "key_points": {"type": "string"}
        }
      }
    },
    "citations": {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}}
  }
}`)
