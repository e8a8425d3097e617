package rulebase

import (
	"fmt"
	"strings"

	"drivelogic-hq/reasoner/pkg/atom"
)

// Validate checks a rule base for duplicate ids, missing actions and
// malformed condition atoms. All problems are reported together.
func Validate(rb *RuleBase) error {
	var problems []Problem
	seen := make(map[int]int, len(rb.Rules))

	for i, r := range rb.Rules {
		if prev, ok := seen[r.ID]; ok {
			problems = append(problems, Problem{
				Index:   i,
				RuleID:  r.ID,
				Message: fmt.Sprintf("duplicate id (first declared at #%d)", prev),
			})
		} else {
			seen[r.ID] = i
		}

		if strings.TrimSpace(r.Action) == "" {
			problems = append(problems, Problem{Index: i, RuleID: r.ID, Message: "action is empty"})
		}

		for j, c := range r.Conditions {
			if _, err := atom.Parse(c); err != nil {
				problems = append(problems, Problem{
					Index:   i,
					RuleID:  r.ID,
					Message: fmt.Sprintf("condition %d %q: %v", j, c, err),
				})
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
