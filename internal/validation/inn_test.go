// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import "testing"

func TestValidateINN(t *testing.T) {
	tests := []struct {
		name    string
		inn     string
		wantErr bool
	}{
		{"valid legal entity inn", "7707083893", false},
		{"valid individual inn", "123456789047", false},
		{"empty", "", true},
		{"too short", "770708389", true},
		{"too long", "77070838931", true},
		{"non-digit characters", "770708389a", true},
		{"bad check digit 10", "7707083894", true},
		{"bad check digit n11", "123456789057", true},
		{"bad check digit n12", "123456789048", true},
		{"sql injection attempt", "7707083893'; DROP TABLE--", true},
		{"whitespace not trimmed by validate", " 7707083893", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateINN(tt.inn)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateINN(%q) error = %v, wantErr %v", tt.inn, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeINN(t *testing.T) {
	tests := []struct {
		name    string
		inn     string
		want    string
		wantErr bool
	}{
		{"passthrough", "7707083893", "7707083893", false},
		{"trims surrounding whitespace", "  7707083893  ", "7707083893", false},
		{"invalid rejected", "0000000001", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeINN(tt.inn)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeINN(%q) error = %v, wantErr %v", tt.inn, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeINN(%q) = %q, want %q", tt.inn, got, tt.want)
			}
		})
	}
}
