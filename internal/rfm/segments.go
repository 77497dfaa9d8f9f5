// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package rfm

// SegmentRule names a segment and the score predicate that admits a
// customer into it.
type SegmentRule struct {
	Name  string
	Match func(r, f, m int) bool
}

// segmentRules is evaluated in order; the first matching rule wins.
// Order matters: a customer with R=5, F=5, M=1 is a Loyal Customer, not
// Needs Attention, because the loyalty rule is checked first.
var segmentRules = []SegmentRule{
	{"Champions", func(r, f, m int) bool { return r >= 4 && f >= 4 && m >= 4 }},
	{"Loyal Customers", func(r, f, m int) bool { return r >= 4 && f >= 3 }},
	{"Potential Loyalists", func(r, f, m int) bool { return r >= 3 && m >= 3 }},
	{"Big Spenders", func(r, f, m int) bool { return r <= 2 && m >= 3 }},
	{"At Risk", func(r, f, m int) bool { return r <= 2 && f <= 2 }},
	{"Needs Attention", func(r, f, m int) bool { return r >= 3 && f <= 2 }},
}

// defaultSegment is assigned when no rule matches.
const defaultSegment = "Other"

// SegmentLabel returns the segment name for an R/F/M score triple.
func SegmentLabel(r, f, m int) string {
	for _, rule := range segmentRules {
		if rule.Match(r, f, m) {
			return rule.Name
		}
	}
	return defaultSegment
}

// SegmentNames returns all segment names in rule priority order,
// including the default segment.
func SegmentNames() []string {
	names := make([]string, 0, len(segmentRules)+1)
	for _, rule := range segmentRules {
		names = append(names, rule.Name)
	}
	return append(names, defaultSegment)
}
