// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for identifiers that flow
// into external provider requests and storage keys, preventing malformed
// or adversarial input from reaching those layers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// innPattern matches the shape of a Russian taxpayer identification number
// before check-digit verification: exactly 10 or 12 digits.
var innPattern = regexp.MustCompile(`^\d{10}$|^\d{12}$`)

var weights10 = []int{2, 4, 10, 3, 5, 9, 4, 6, 8}
var weights11 = []int{7, 2, 4, 10, 3, 5, 9, 4, 6, 8}
var weights12 = []int{3, 7, 2, 4, 10, 3, 5, 9, 4, 6, 8}

// ValidateINN validates a Russian INN (legal-entity or individual) by shape
// and check-digit. Returns an error describing why the INN is invalid.
func ValidateINN(inn string) error {
	if inn == "" {
		return fmt.Errorf("inn cannot be empty")
	}
	if !innPattern.MatchString(inn) {
		return fmt.Errorf("invalid inn format: %q (must be 10 or 12 digits)", inn)
	}
	digits := make([]int, len(inn))
	for i, r := range inn {
		digits[i] = int(r - '0')
	}
	switch len(digits) {
	case 10:
		if checksum(digits[:9], weights10)%11%10 != digits[9] {
			return fmt.Errorf("invalid inn check digit: %q", inn)
		}
	case 12:
		c11 := checksum(digits[:10], weights11) % 11 % 10
		if c11 != digits[10] {
			return fmt.Errorf("invalid inn check digit (n11): %q", inn)
		}
		c12 := checksum(digits[:11], weights12) % 11 % 10
		if c12 != digits[11] {
			return fmt.Errorf("invalid inn check digit (n12): %q", inn)
		}
	}
	return nil
}

// checksum computes sum(digits[i] * weights[i]) over the shared length of
// both slices; callers slice digits to the weight vector's length.
func checksum(digits, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += digits[i] * w
	}
	return sum
}

// SanitizeINN trims whitespace and validates, returning the normalized INN.
func SanitizeINN(inn string) (string, error) {
	normalized := strings.TrimSpace(inn)
	if err := ValidateINN(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
