// Package healthscore evaluates a vehicle's maintenance state and produces
// prioritized recommendations and a single 0-100 health score.
//
// Rules run in a fixed order and each contributes at most one
// Recommendation. A rule whose inputs are missing abstains; it never fails
// the analysis. The score starts at 100, loses a fixed deduction per
// finding and is clamped to [0, 100]. Deductions are never negative, so
// adding a finding can only lower the score.
package healthscore
