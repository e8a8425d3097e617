package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"drivelogic-hq/reasoner/pkg/atom"
	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/scene"
)

// Exclusion removes every rule in Remove from a result as soon as any rule
// in When has fired.
type Exclusion struct {
	When   []int `json:"when" yaml:"when"`
	Remove []int `json:"remove" yaml:"remove"`
}

// Policy holds the decisions applied after rule matching. Rule ids in a
// policy refer to the rule base, except DefaultRuleID and StartRuleID which
// tag records the engine adds itself.
type Policy struct {
	// Elevated rules suppress the default action when any of them fires.
	Elevated []int `json:"elevated" yaml:"elevated"`

	// Exclusions are applied in order, each to the result of the previous.
	Exclusions []Exclusion `json:"exclusions" yaml:"exclusions"`

	DefaultRuleID int    `json:"default_rule_id" yaml:"default_rule_id"`
	DefaultAction string `json:"default_action" yaml:"default_action"`

	StartRuleID int    `json:"start_rule_id" yaml:"start_rule_id"`
	StartAction string `json:"start_action" yaml:"start_action"`

	// OverrideDevice is the control device whose change from one of
	// OverrideFrom to OverrideTo adds the start record.
	OverrideDevice string   `json:"override_device" yaml:"override_device"`
	OverrideFrom   []string `json:"override_from" yaml:"override_from"`
	OverrideTo     string   `json:"override_to" yaml:"override_to"`

	// OvertakeMarker is the road-user state flagging ego as being overtaken.
	OvertakeMarker string `json:"overtake_marker" yaml:"overtake_marker"`
}

// DefaultPolicy returns the policy shipped with the UK rule base.
func DefaultPolicy() *Policy {
	return &Policy{
		Elevated: []int{
			1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 24, 25, 27, 28, 32, 33,
			44, 45, 46, 47, 48, 49, 50, 51, 52, 53, 54, 58, 63,
		},
		Exclusions: []Exclusion{
			// stop at signal overrides proceed while turning
			{When: []int{1, 8, 19, 20}, Remove: []int{2, 14, 15, 16, 17, 37, 38}},
		},
		DefaultRuleID:  70,
		DefaultAction:  "maintain_speed",
		StartRuleID:    58,
		StartAction:    "start",
		OverrideDevice: "traffic_light",
		OverrideFrom:   []string{"red", "amber"},
		OverrideTo:     "green",
		OvertakeMarker: "overtake_ego",
	}
}

// Validate checks that the policy is self-consistent.
func (p *Policy) Validate() error {
	if p.DefaultAction == "" {
		return fmt.Errorf("%w: default action is empty", ErrInvalidPolicy)
	}
	if p.StartAction == "" {
		return fmt.Errorf("%w: start action is empty", ErrInvalidPolicy)
	}
	if p.DefaultRuleID == p.StartRuleID {
		return fmt.Errorf("%w: default and start records share rule id %d", ErrInvalidPolicy, p.DefaultRuleID)
	}
	if p.OverrideDevice != "" && (len(p.OverrideFrom) == 0 || p.OverrideTo == "") {
		return fmt.Errorf("%w: override device %q needs both from and to states", ErrInvalidPolicy, p.OverrideDevice)
	}
	for i, ex := range p.Exclusions {
		if len(ex.When) == 0 || len(ex.Remove) == 0 {
			return fmt.Errorf("%w: exclusion %d must name rules on both sides", ErrInvalidPolicy, i)
		}
	}
	return nil
}

// check verifies the reserved ids against a compiled rule base. A default
// id that is also a rule id would make the default indistinguishable from
// the rule and is rejected. The start id may deliberately reuse a rule id
// so that the start record counts as elevated; that is only logged.
func (p *Policy) check(c *compiler.Compiled, logger *slog.Logger) error {
	if c.HasRule(p.DefaultRuleID) {
		return fmt.Errorf("%w: default rule id %d is used by the rule base", ErrInvalidPolicy, p.DefaultRuleID)
	}
	if c.HasRule(p.StartRuleID) {
		logger.Warn("start record shares its id with a rule",
			"rule_id", p.StartRuleID,
			"start_action", p.StartAction,
		)
	}
	return nil
}

// Fingerprint hashes the canonical JSON form of the policy. Two policies
// with the same fingerprint decide every scene alike.
func (p *Policy) Fingerprint() string {
	cp := p.clone()
	if cp.Exclusions == nil {
		cp.Exclusions = []Exclusion{}
	}
	data, _ := json.Marshal(cp)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// clone returns a deep copy, so callers cannot modify a policy in use.
func (p *Policy) clone() *Policy {
	cp := *p
	cp.Elevated = append([]int(nil), p.Elevated...)
	cp.OverrideFrom = append([]string(nil), p.OverrideFrom...)
	cp.Exclusions = make([]Exclusion, len(p.Exclusions))
	for i, ex := range p.Exclusions {
		cp.Exclusions[i] = Exclusion{
			When:   append([]int(nil), ex.When...),
			Remove: append([]int(nil), ex.Remove...),
		}
	}
	return &cp
}

// sceneOptions returns the fact derivation options implied by the policy.
func (p *Policy) sceneOptions() scene.Options {
	opts := scene.DefaultOptions()
	if p.OvertakeMarker != "" {
		opts.OvertakeMarker = p.OvertakeMarker
	}
	return opts
}

// overrideFires reports whether facts show the override device switching
// from a stopping state to OverrideTo.
func (p *Policy) overrideFires(facts scene.FactSet) bool {
	if p.OverrideDevice == "" {
		return false
	}
	if !facts.Contains(atom.Join(p.OverrideDevice, "is", p.OverrideTo)) {
		return false
	}
	for _, from := range p.OverrideFrom {
		if facts.Contains(atom.Join(p.OverrideDevice, "was", from)) {
			return true
		}
	}
	return false
}

func intSet(ids []int) map[int]struct{} {
	s := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
