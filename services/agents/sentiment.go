// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import "strings"

// positiveKeywords and negativeKeywords drive the collector's deterministic
// sentiment lexicon; this is an explicit rule, never an LLM call.
var positiveKeywords = []string{
	"award", "growth", "partnership", "expansion", "profit", "success",
	"leading", "innovative", "trusted", "reliable",
}

var negativeKeywords = []string{
	"scandal", "fraud", "lawsuit", "bankruptcy", "liquidation", "fine",
	"violation", "complaint", "debt", "layoffs", "investigation", "default",
}

// classifySentiment labels text positive/negative/neutral by counting
// lexicon hits; ties and an absence of hits both resolve to neutral.
func classifySentiment(text string) string {
	lower := strings.ToLower(text)
	pos, neg := 0, 0
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			pos++
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			neg++
		}
	}
	switch {
	case neg > pos:
		return "negative"
	case pos > neg:
		return "positive"
	default:
		return "neutral"
	}
}
