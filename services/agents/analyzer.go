// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/llm"
	"github.com/IvanKorch1289/client-analyze-agent/services/providers"
	"github.com/IvanKorch1289/client-analyze-agent/services/scoring"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// Analyzer serializes collected evidence, invokes the LLM cascade for a
// JSON-schema-conformant narrative, then always overwrites risk_assessment
// with the deterministic scorer's output.
type Analyzer struct {
	cascade *llm.Cascade
}

// NewAnalyzer builds an Analyzer over the given cascade.
func NewAnalyzer(cascade *llm.Cascade) *Analyzer { return &Analyzer{cascade: cascade} }

// llmReportShape is the subset of the LLM's JSON response the analyzer
// reads; risk_assessment in the LLM's own output is discarded.
type llmReportShape struct {
	Summary         string                `json:"summary"`
	CompanyInfo     json.RawMessage       `json:"company_info,omitempty"`
	LegalCasesCount int                   `json:"legal_cases_count"`
	Findings        []workflow.Finding    `json:"findings"`
	Citations       []string              `json:"citations"`
	Recommendations []string              `json:"recommendations"`
}

// Analyze implements workflow.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, state workflow.WorkflowState) (workflow.AnalyzeDelta, error) {
	log := logging.FromContext(ctx)
	assessment := scoreFromState(state)

	evidence, _ := json.MarshalIndent(map[string]any{
		"source_data":    state.SourceData,
		"search_results": state.SearchResults,
	}, "", "  ")

	prompt := buildAnalysisPrompt(state, string(evidence))

	result, doc, err := a.cascade.GenerateJSON(ctx, prompt, reportJSONSchema, llm.GenerationParams{})
	if err != nil {
		log.Warn("llm cascade exhausted, falling back to degraded report", "session_id", state.SessionID, "error", err)
		return workflow.AnalyzeDelta{Report: degradedReport(state, assessment)}, nil
	}

	var shaped llmReportShape
	if err := json.Unmarshal(doc, &shaped); err != nil {
		log.Warn("llm json unmarshal failed despite schema pass, falling back to degraded report", "session_id", state.SessionID, "error", err)
		return workflow.AnalyzeDelta{Report: degradedReport(state, assessment)}, nil
	}

	report := &workflow.ClientAnalysisReport{
		Metadata: workflow.ReportMetadata{
			ClientName: state.Task.ClientName, INN: state.Task.INN,
			AnalysisDate: time.Now(), SourcesUsed: sourcesUsed(state),
		},
		CompanyInfo:     shaped.CompanyInfo,
		LegalCasesCount:  shaped.LegalCasesCount,
		RiskAssessment:  assessment,
		Findings:        shaped.Findings,
		Summary:         shaped.Summary,
		Citations:       shaped.Citations,
		Recommendations: shaped.Recommendations,
		Confidence:      confidenceForFallback(result.FallbackDepth),
	}
	log.Info("analysis complete", "session_id", state.SessionID, "provider_used", result.ProviderUsed, "fallback_depth", result.FallbackDepth)
	return workflow.AnalyzeDelta{Report: report}, nil
}

func buildAnalysisPrompt(state workflow.WorkflowState, evidenceJSON string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze counterparty risk for %q", state.Task.ClientName)
	if state.Task.INN != "" {
		fmt.Fprintf(&b, " (INN %s)", state.Task.INN)
	}
	b.WriteString(".\n\nEvidence collected from external sources:\n")
	b.WriteString(evidenceJSON)
	if state.UserComment != "" {
		fmt.Fprintf(&b, "\n\nThe previous report was rejected with feedback: %q. Re-synthesize addressing this feedback using only the evidence above.\n", state.UserComment)
	}
	b.WriteString("\n\nReturn a JSON object with fields: summary, company_info, legal_cases_count, findings[] (category, source, sentiment, key_points), citations[], recommendations[].")
	return b.String()
}

func sourcesUsed(state workflow.WorkflowState) []string {
	var names []string
	for k, v := range state.SourceData {
		if v.Status == "success" {
			names = append(names, k)
		}
	}
	return names
}

// degradedReport is built entirely from deterministic inputs (the scorer)
// when the LLM cascade is unusable, per §4.7.
func degradedReport(state workflow.WorkflowState, assessment scoring.Assessment) *workflow.ClientAnalysisReport {
	var factorLines []string
	for _, f := range assessment.Factors {
		factorLines = append(factorLines, fmt.Sprintf("- %s", f.Description))
	}
	summary := fmt.Sprintf(
		"Automated degraded report for %s. Risk score %d/100 (%s). Narrative synthesis was unavailable; this report is derived solely from structured evidence.\n\n%s",
		state.Task.ClientName, assessment.Score, assessment.Level, strings.Join(factorLines, "\n"),
	)
	return &workflow.ClientAnalysisReport{
		Metadata: workflow.ReportMetadata{
			ClientName: state.Task.ClientName, INN: state.Task.INN,
			AnalysisDate: time.Now(), SourcesUsed: sourcesUsed(state),
		},
		RiskAssessment: assessment,
		Summary:        summary,
		Degraded:       true,
		Confidence:     degradedConfidence,
	}
}

// degradedConfidence is the fixed self-reported confidence for a report
// synthesized without the LLM cascade, per §3.1.
const degradedConfidence = 0.2

// confidenceForFallback derives a narrative report's confidence from how
// many providers the cascade had to fall back through before succeeding;
// each fallback hop costs confidence since a later provider in the fixed
// order is a weaker model.
func confidenceForFallback(fallbackDepth int) float64 {
	c := 0.95 - 0.1*float64(fallbackDepth)
	if c < degradedConfidence {
		return degradedConfidence
	}
	return c
}

// scoreFromState translates workflow evidence into scoring.Inputs and runs
// the deterministic scorer.
func scoreFromState(state workflow.WorkflowState) scoring.Assessment {
	in := scoring.Inputs{}

	if env, ok := state.SourceData["registry"]; ok && env.Status == "success" {
		var reg providers.CompanyRegistryInfo
		if json.Unmarshal(env.Payload, &reg) == nil {
			in.Registry = scoring.RegistryInput{
				Available: true, Status: reg.Status, Sanctioned: reg.Sanctioned,
				TerroristListed: reg.TerroristListed, TaxDebtMarker: reg.TaxDebtMarker,
			}
		}
	}

	if env, ok := state.SourceData["analytics"]; ok && env.Status == "success" {
		var af providers.AnalyticsFlags
		if json.Unmarshal(env.Payload, &af) == nil {
			in.Analytics = scoring.AnalyticsInput{
				Available: true, CreditRating: creditRatingFromFlags(af),
				LiquidityRatio: af.LiquidityRatio, DebtRatio: af.DebtRatio,
			}
		}
	}

	if env, ok := state.SourceData["court"]; ok && env.Status == "success" {
		var cc providers.CourtCasesResult
		if json.Unmarshal(env.Payload, &cc) == nil {
			for _, c := range cc.Cases {
				in.CourtCases = append(in.CourtCases, scoring.CourtCaseInput{
					Role: c.Role, IsBankruptcy: strings.Contains(strings.ToLower(c.Outcome), "bankrupt"),
				})
			}
		}
	}

	for _, s := range state.SearchResults {
		in.SearchHits = append(in.SearchHits, scoring.SearchHitInput{Text: s.Text, Sentiment: s.Sentiment})
	}

	return scoring.Score(in)
}

// creditRatingFromFlags has no direct rating field on AnalyticsFlags in
// this wire shape; a low credit_score maps to a coarse rating bucket the
// scorer's keyword matcher recognizes.
func creditRatingFromFlags(af providers.AnalyticsFlags) string {
	switch {
	case af.CreditScore > 0 && af.CreditScore < 400:
		return "CCC"
	case af.CreditScore > 0 && af.CreditScore < 600:
		return "BB"
	default:
		return ""
	}
}
