// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scoring

import "testing"

func TestLevelFromScore(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{0, LevelLow},
		{24, LevelLow},
		{25, LevelMedium},
		{49, LevelMedium},
		{50, LevelHigh},
		{74, LevelHigh},
		{75, LevelCritical},
		{100, LevelCritical},
	}
	for _, tt := range tests {
		if got := LevelFromScore(tt.score); got != tt.want {
			t.Errorf("LevelFromScore(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestScore_NoEvidenceIsLow(t *testing.T) {
	got := Score(Inputs{})
	if got.Level != LevelLow {
		t.Errorf("Score(empty) level = %v, want low", got.Level)
	}
	if got.Score < 0 || got.Score > 100 {
		t.Errorf("Score(empty) = %d, out of [0,100]", got.Score)
	}
	if len(got.Factors) == 0 {
		t.Error("Score(empty) produced no factors, want at least the 'unavailable analytics' factor")
	}
}

func TestScore_LiquidationSaturatesLegal(t *testing.T) {
	got := Score(Inputs{
		Registry: RegistryInput{Available: true, Status: "bankrupt"},
		Analytics: AnalyticsInput{Available: true},
	})
	legal := 0
	for _, f := range got.Factors {
		if f.Category == CategoryLegal {
			legal += f.ScoreContribution
		}
	}
	if legal != MaxRaw[CategoryLegal] {
		t.Errorf("Score(bankrupt) legal contribution = %d, want %d", legal, MaxRaw[CategoryLegal])
	}
	// A saturated legal category alone is 40 of 105 raw points: round(38.1) = 38.
	if got.Score != 38 || got.Level != LevelMedium {
		t.Errorf("Score(bankrupt) = %d/%v, want 38/medium", got.Score, got.Level)
	}
}

func TestScore_SanctionsAndTaxDebtRaiseRegulatory(t *testing.T) {
	clean := Score(Inputs{Analytics: AnalyticsInput{Available: true}})
	sanctioned := Score(Inputs{
		Registry:  RegistryInput{Available: true, Sanctioned: true, TaxDebtMarker: true},
		Analytics: AnalyticsInput{Available: true},
	})
	if sanctioned.Score <= clean.Score {
		t.Errorf("sanctioned score %d should exceed clean score %d", sanctioned.Score, clean.Score)
	}
}

func TestScore_NegativeSentimentRaisesReputation(t *testing.T) {
	clean := Score(Inputs{Analytics: AnalyticsInput{Available: true}})
	negative := Score(Inputs{
		Analytics: AnalyticsInput{Available: true},
		SearchHits: []SearchHitInput{
			{Text: "company involved in scandal and fraud allegations", Sentiment: "negative"},
			{Text: "reports of unpaid debts", Sentiment: "negative"},
		},
	})
	if negative.Score <= clean.Score {
		t.Errorf("negative-sentiment score %d should exceed clean score %d", negative.Score, clean.Score)
	}
}

func TestScore_Deterministic(t *testing.T) {
	in := Inputs{
		Registry:  RegistryInput{Available: true, Status: "active", TaxDebtMarker: true},
		Analytics: AnalyticsInput{Available: true, CreditRating: "BB", LiquidityRatio: floatPtr(0.4)},
		CourtCases: []CourtCaseInput{
			{Role: "defendant"}, {Role: "defendant"}, {Role: "plaintiff"},
		},
		SearchHits: []SearchHitInput{{Text: "routine coverage", Sentiment: "neutral"}},
	}
	first := Score(in)
	second := Score(in)
	if first.Score != second.Score || first.Level != second.Level || len(first.Factors) != len(second.Factors) {
		t.Errorf("Score is not deterministic: %+v vs %+v", first, second)
	}
}

func TestScore_ClampedToRange(t *testing.T) {
	many := make([]CourtCaseInput, 0, 200)
	for i := 0; i < 200; i++ {
		many = append(many, CourtCaseInput{Role: "defendant", IsBankruptcy: true})
	}
	got := Score(Inputs{
		Registry:   RegistryInput{Available: true, Sanctioned: true, TerroristListed: true, TaxDebtMarker: true},
		Analytics:  AnalyticsInput{Available: true, CreditRating: "CCC", LiquidityRatio: floatPtr(0.1), DebtRatio: floatPtr(0.95)},
		CourtCases: many,
		SearchHits: []SearchHitInput{
			{Text: "scandal fraud criminal case bankruptcy liquidation sanctions fine violation", Sentiment: "negative"},
		},
	})
	if got.Score < 0 || got.Score > 100 {
		t.Errorf("Score overflowed range: %d", got.Score)
	}
	if got.Level != LevelCritical {
		t.Errorf("Score(worst case) level = %v, want critical", got.Level)
	}
}

func floatPtr(f float64) *float64 { return &f }
