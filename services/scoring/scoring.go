// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scoring implements the deterministic risk scorer: a pure function
// from collected evidence to a 0-100 score, a level, and a list of
// human-readable factors. Nothing in this package touches the network,
// storage, or the LLM cascade.
package scoring

import (
	"fmt"
	"strings"
)

// Category is one of the four weighted risk dimensions.
type Category string

const (
	CategoryLegal      Category = "legal"
	CategoryFinancial  Category = "financial"
	CategoryReputation Category = "reputation"
	CategoryRegulatory Category = "regulatory"
)

// Weight and MaxRaw are the two published constants per category; Weight is
// carried for telemetry/reporting even though, matching the evidence this
// scorer is grounded on, the final score sums MaxRaw-capped category totals
// directly rather than multiplying by Weight a second time.
var (
	Weight = map[Category]float64{
		CategoryLegal:      0.35,
		CategoryFinancial:  0.30,
		CategoryReputation: 0.20,
		CategoryRegulatory: 0.15,
	}
	MaxRaw = map[Category]int{
		CategoryLegal:      40,
		CategoryFinancial:  30,
		CategoryReputation: 20,
		CategoryRegulatory: 15,
	}
)

// Severity labels a factor's weight in the explanation, independent of its
// numeric score_contribution.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Factor is one human-readable driver behind a non-zero category
// contribution.
type Factor struct {
	Category          Category `json:"category"`
	Description       string   `json:"description"`
	Severity          Severity `json:"severity"`
	ScoreContribution int      `json:"score_contribution"`
	Source            string   `json:"source"`
	Evidence          string   `json:"evidence,omitempty"`
}

// Level is the coarse risk bucket derived from Score per the scoring
// invariant: <25 low, <50 medium, <75 high, >=75 critical.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// LevelFromScore derives Level from a 0-100 score.
func LevelFromScore(score int) Level {
	switch {
	case score >= 75:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 25:
		return LevelMedium
	default:
		return LevelLow
	}
}

// CourtCaseInput is the subset of a court-provider case record the scorer
// needs; it is intentionally decoupled from services/providers so this
// package has zero dependency on HTTP/storage concerns.
type CourtCaseInput struct {
	Role           string // plaintiff | defendant
	IsBankruptcy   bool
}

// RegistryInput is the subset of registry-provider data the scorer needs.
type RegistryInput struct {
	Available       bool
	Status          string // active | liquidated | bankrupt
	Sanctioned      bool
	TerroristListed bool
	TaxDebtMarker   bool
}

// AnalyticsInput is the subset of analytics-provider data the scorer needs.
type AnalyticsInput struct {
	Available      bool
	CreditRating    string
	LiquidityRatio  *float64
	DebtRatio       *float64
}

// SearchHitInput is one sentiment-annotated search snippet.
type SearchHitInput struct {
	Text      string
	Sentiment string // positive | neutral | negative
}

// Inputs bundles everything the scorer consumes. Every field is optional;
// missing evidence simply contributes zero to its category (except the
// explicit "financial data unavailable" factor below, mirroring a provider
// outage being itself a risk signal).
type Inputs struct {
	Registry   RegistryInput
	Analytics  AnalyticsInput
	CourtCases []CourtCaseInput
	SearchHits []SearchHitInput
}

// Assessment is the scorer's full output.
type Assessment struct {
	Score   int      `json:"score"`
	Level   Level    `json:"level"`
	Factors []Factor `json:"factors"`
}

// Score computes the deterministic risk assessment for in. Identical inputs
// always yield identical outputs.
func Score(in Inputs) Assessment {
	var factors []Factor

	legal := scoreLegal(in, &factors)
	financial := scoreFinancial(in, &factors)
	reputation := scoreReputation(in, &factors)
	regulatory := scoreRegulatory(in, &factors)

	maxPossible := MaxRaw[CategoryLegal] + MaxRaw[CategoryFinancial] + MaxRaw[CategoryReputation] + MaxRaw[CategoryRegulatory]
	raw := legal + financial + reputation + regulatory

	normalized := int(roundHalfAwayFromZero(float64(raw) / float64(maxPossible) * 100))
	final := clamp(normalized, 0, 100)

	return Assessment{Score: final, Level: LevelFromScore(final), Factors: factors}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundHalfAwayFromZero(f float64) float64 {
	if f >= 0 {
		return float64(int(f + 0.5))
	}
	return float64(int(f - 0.5))
}

// scoreLegal mirrors the status-then-case-count cascade: a liquidation or
// bankruptcy status saturates the category outright; otherwise bankruptcy
// cases dominate, then a normalized defendant-case-count tier, offset
// slightly by plaintiff filings (initiating suits is a mild positive
// signal).
func scoreLegal(in Inputs, factors *[]Factor) int {
	max := MaxRaw[CategoryLegal]

	if in.Registry.Available {
		switch strings.ToLower(in.Registry.Status) {
		case "liquidated", "liquidating", "bankrupt":
			*factors = append(*factors, Factor{
				Category: CategoryLegal, Severity: SeverityCritical, ScoreContribution: max,
				Description: "Company is in liquidation or bankruptcy proceedings",
				Source:      "registry", Evidence: fmt.Sprintf("status=%s", in.Registry.Status),
			})
			return max
		case "active":
			*factors = append(*factors, Factor{
				Category: CategoryLegal, Severity: SeverityLow, ScoreContribution: 0,
				Description: "Company is active and registered", Source: "registry",
			})
		}
	}

	var bankruptcyCases, defendantCases, plaintiffCases int
	for _, c := range in.CourtCases {
		if c.IsBankruptcy {
			bankruptcyCases++
			continue
		}
		switch strings.ToLower(c.Role) {
		case "defendant":
			defendantCases++
		case "plaintiff":
			plaintiffCases++
		}
	}
	total := len(in.CourtCases) - bankruptcyCases
	if defendantCases == 0 && plaintiffCases == 0 {
		defendantCases = total
	}

	score := 0
	if bankruptcyCases > 0 {
		bs := min(max, 30+bankruptcyCases*3)
		score += bs
		*factors = append(*factors, Factor{
			Category: CategoryLegal, Severity: SeverityCritical, ScoreContribution: bs,
			Description: fmt.Sprintf("%d bankruptcy case(s) found", bankruptcyCases), Source: "court",
		})
	} else {
		defendantScore, severity := defendantTier(defendantCases)
		if defendantScore > 0 {
			score += defendantScore
			*factors = append(*factors, Factor{
				Category: CategoryLegal, Severity: severity, ScoreContribution: defendantScore,
				Description: fmt.Sprintf("%d litigation case(s) on record", defendantCases), Source: "court",
			})
		}
		if plaintiffCases > 0 {
			score = max0(score - 3)
			*factors = append(*factors, Factor{
				Category: CategoryLegal, Severity: SeverityLow, ScoreContribution: -3,
				Description: fmt.Sprintf("company initiates %d claim(s) of its own", plaintiffCases), Source: "court",
			})
		}
	}

	return clamp(score, 0, max)
}

func defendantTier(n int) (int, Severity) {
	switch {
	case n >= 100:
		return 25, SeverityHigh
	case n >= 50:
		return 20, SeverityHigh
	case n >= 20:
		return 15, SeverityMedium
	case n >= 10:
		return 10, SeverityMedium
	case n > 0:
		return 5, SeverityLow
	default:
		return 0, SeverityLow
	}
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var lowCreditRatings = []string{"CCC", "CC", "C", "D", "NR"}
var mediumCreditRatings = []string{"BB", "BB+", "BB-", "B", "B+", "B-"}

// scoreFinancial mirrors liquidity/debt-ratio thresholds plus a credit
// rating lookup; an unreachable analytics provider itself contributes a
// small penalty, since the absence of financial data is a risk signal.
func scoreFinancial(in Inputs, factors *[]Factor) int {
	max := MaxRaw[CategoryFinancial]
	if !in.Analytics.Available {
		*factors = append(*factors, Factor{
			Category: CategoryFinancial, Severity: SeverityMedium, ScoreContribution: 10,
			Description: "Financial analytics data unavailable", Source: "analytics",
		})
		return 10
	}

	score := 0
	if in.Analytics.LiquidityRatio != nil {
		lr := *in.Analytics.LiquidityRatio
		switch {
		case lr < 0.5:
			score += 28
			*factors = append(*factors, Factor{Category: CategoryFinancial, Severity: SeverityCritical, ScoreContribution: 28,
				Description: "Critically low liquidity", Source: "analytics", Evidence: fmt.Sprintf("liquidity_ratio=%.2f", lr)})
		case lr < 1.0:
			score += 18
			*factors = append(*factors, Factor{Category: CategoryFinancial, Severity: SeverityHigh, ScoreContribution: 18,
				Description: "Below-normal liquidity", Source: "analytics", Evidence: fmt.Sprintf("liquidity_ratio=%.2f", lr)})
		default:
			*factors = append(*factors, Factor{Category: CategoryFinancial, Severity: SeverityLow, ScoreContribution: 0,
				Description: "Healthy liquidity", Source: "analytics", Evidence: fmt.Sprintf("liquidity_ratio=%.2f", lr)})
		}
	}

	if in.Analytics.DebtRatio != nil {
		dr := *in.Analytics.DebtRatio
		switch {
		case dr > 0.8:
			score += 20
			*factors = append(*factors, Factor{Category: CategoryFinancial, Severity: SeverityHigh, ScoreContribution: 20,
				Description: "High debt load", Source: "analytics", Evidence: fmt.Sprintf("debt_ratio=%.2f", dr)})
		case dr > 0.6:
			score += 10
			*factors = append(*factors, Factor{Category: CategoryFinancial, Severity: SeverityMedium, ScoreContribution: 10,
				Description: "Elevated debt load", Source: "analytics", Evidence: fmt.Sprintf("debt_ratio=%.2f", dr)})
		}
	}

	rating := strings.ToUpper(in.Analytics.CreditRating)
	if containsAny(rating, lowCreditRatings) {
		score += 25
		*factors = append(*factors, Factor{Category: CategoryFinancial, Severity: SeverityCritical, ScoreContribution: 25,
			Description: "Low credit rating", Source: "analytics", Evidence: "rating=" + rating})
	} else if containsAny(rating, mediumCreditRatings) {
		score += 15
		*factors = append(*factors, Factor{Category: CategoryFinancial, Severity: SeverityHigh, ScoreContribution: 15,
			Description: "Speculative-grade credit rating", Source: "analytics", Evidence: "rating=" + rating})
	}

	return clamp(score, 0, max)
}

func containsAny(s string, substrs []string) bool {
	if s == "" {
		return false
	}
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var negativeKeywords = []string{"scandal", "fraud", "criminal case", "bankruptcy", "liquidation", "debt default", "unpaid debts", "complaint", "lawsuit threat"}

// scoreReputation aggregates sentiment-annotated search hits; scandal
// keywords dominate, then raw negative-sentiment counts.
func scoreReputation(in Inputs, factors *[]Factor) int {
	max := MaxRaw[CategoryReputation]

	negativeCount, scandalCount := 0, 0
	for _, hit := range in.SearchHits {
		text := strings.ToLower(hit.Text)
		if hit.Sentiment == "negative" {
			negativeCount++
		}
		for _, kw := range negativeKeywords[:4] {
			if strings.Contains(text, kw) {
				scandalCount++
				break
			}
		}
	}

	switch {
	case scandalCount > 0:
		score := min(max, 10+scandalCount*3)
		sev := SeverityMedium
		if scandalCount >= 2 {
			sev = SeverityHigh
		}
		*factors = append(*factors, Factor{Category: CategoryReputation, Severity: sev, ScoreContribution: score,
			Description: fmt.Sprintf("%d negative/scandal mention(s) found", scandalCount), Source: "search"})
		return score
	case negativeCount > 3:
		*factors = append(*factors, Factor{Category: CategoryReputation, Severity: SeverityMedium, ScoreContribution: 15,
			Description: fmt.Sprintf("multiple negative mentions (%d)", negativeCount), Source: "search"})
		return 15
	case negativeCount > 0:
		*factors = append(*factors, Factor{Category: CategoryReputation, Severity: SeverityLow, ScoreContribution: 5,
			Description: fmt.Sprintf("some negative mentions (%d)", negativeCount), Source: "search"})
		return 5
	default:
		*factors = append(*factors, Factor{Category: CategoryReputation, Severity: SeverityLow, ScoreContribution: 0,
			Description: "reputation is neutral or positive", Source: "search"})
		return 0
	}
}

var sanctionKeywords = []string{"sanctions", "sanctioned", "embargo", "trade restriction"}
var regulatoryKeywords = []string{"fine", "violation", "regulatory audit", "compliance review"}

// scoreRegulatory combines registry flags (exact, deterministic) with
// keyword scanning over search hits (soft signals).
func scoreRegulatory(in Inputs, factors *[]Factor) int {
	max := MaxRaw[CategoryRegulatory]
	score := 0

	if in.Registry.Available {
		if in.Registry.Sanctioned || in.Registry.TerroristListed {
			score += 15
			*factors = append(*factors, Factor{Category: CategoryRegulatory, Severity: SeverityHigh, ScoreContribution: 15,
				Description: "Registry marks the company as sanctioned or on a terrorist list", Source: "registry"})
		}
		if in.Registry.TaxDebtMarker {
			score += 5
			*factors = append(*factors, Factor{Category: CategoryRegulatory, Severity: SeverityMedium, ScoreContribution: 5,
				Description: "Registry marks outstanding tax debt", Source: "registry"})
		}
	}

	for _, hit := range in.SearchHits {
		text := strings.ToLower(hit.Text)
		if containsAny(text, sanctionKeywords) {
			score += 10
			*factors = append(*factors, Factor{Category: CategoryRegulatory, Severity: SeverityHigh, ScoreContribution: 10,
				Description: "Search evidence of sanction-related restrictions", Source: "search"})
			break
		}
	}
	for _, hit := range in.SearchHits {
		text := strings.ToLower(hit.Text)
		if containsAny(text, regulatoryKeywords) {
			score += 5
			*factors = append(*factors, Factor{Category: CategoryRegulatory, Severity: SeverityMedium, ScoreContribution: 5,
				Description: "Search evidence of a regulatory fine or audit", Source: "search"})
			break
		}
	}

	if score == 0 {
		*factors = append(*factors, Factor{Category: CategoryRegulatory, Severity: SeverityLow, ScoreContribution: 0,
			Description: "no regulatory issues found", Source: "combined"})
	}

	return clamp(score, 0, max)
}
