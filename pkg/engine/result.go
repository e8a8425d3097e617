package engine

import (
	"time"
)

// FiredRule is one action the engine decided on.
type FiredRule struct {
	RuleID int    `json:"rule_id"`
	Action string `json:"action"`
}

// Result is the outcome of reasoning about one scene.
type Result struct {
	SceneID string `json:"scene_id"`

	// Fired lists the actions in decision order.
	Fired []FiredRule `json:"actions_to_take"`

	// Intentions are the scene's stated intents, in order, duplicates kept.
	Intentions []string `json:"intention"`

	// Facts is the derived fact set the rules were matched against.
	Facts []string `json:"facts,omitempty"`

	// Defaulted is set when the default action was added.
	Defaulted bool `json:"defaulted"`

	// Overridden is set when the start override fired.
	Overridden bool `json:"overridden"`

	// Fingerprint identifies the rule base the scene was evaluated with.
	Fingerprint string `json:"fingerprint"`

	// CacheKey covers the rule base, the policy and the scene description.
	CacheKey string `json:"cache_key,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Actions returns the action names of the fired records, in order.
func (r *Result) Actions() []string {
	out := make([]string, len(r.Fired))
	for i, f := range r.Fired {
		out[i] = f.Action
	}
	return out
}

// HasRule reports whether a record with rule id fired.
func (r *Result) HasRule(id int) bool {
	for _, f := range r.Fired {
		if f.RuleID == id {
			return true
		}
	}
	return false
}

// UnmatchedIntentions returns the stated intents that no fired action
// covers, without duplicates. An intent is covered when it is itself a
// fired action or when synonyms lists a fired action under it.
func (r *Result) UnmatchedIntentions(synonyms map[string][]string) []string {
	fired := make(map[string]struct{}, len(r.Fired))
	for _, f := range r.Fired {
		fired[f.Action] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, intent := range r.Intentions {
		if _, ok := seen[intent]; ok {
			continue
		}
		seen[intent] = struct{}{}

		if _, ok := fired[intent]; ok {
			continue
		}
		covered := false
		for _, syn := range synonyms[intent] {
			if _, ok := fired[syn]; ok {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, intent)
		}
	}
	return out
}
