package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"drivelogic-hq/reasoner/pkg/atom"
	"drivelogic-hq/reasoner/pkg/diag"
	"drivelogic-hq/reasoner/pkg/rulebase"
	"drivelogic-hq/reasoner/pkg/taxonomy"
)

// Exclusion records a rule dropped during compilation.
type Exclusion struct {
	RuleID int    `json:"rule_id"`
	Reason string `json:"reason"`
}

// Stats summarizes a compilation.
type Stats struct {
	// Rules is the number of rules given to the compiler.
	Rules int `json:"rules"`

	// Compiled is the number of rules present in the trie.
	Compiled int `json:"compiled"`

	// Excluded is the number of rules dropped.
	Excluded int `json:"excluded"`

	// ConditionSets is the number of expanded condition sets inserted.
	ConditionSets int `json:"condition_sets"`

	// Atoms is the size of the identifier table.
	Atoms int `json:"atoms"`

	// Nodes is the number of trie nodes including the root.
	Nodes int `json:"nodes"`

	// Duration is the wall time spent compiling.
	Duration time.Duration `json:"duration"`
}

// Compiled holds the artifacts derived from a rule base and a taxonomy.
// It is immutable and safe to share between goroutines.
type Compiled struct {
	table       *Table
	trie        *Trie
	rules       []rulebase.Rule
	excluded    []Exclusion
	taxonomy    *taxonomy.Taxonomy
	stats       Stats
	fingerprint string
}

// Table returns the identifier table.
func (c *Compiled) Table() *Table { return c.table }

// Trie returns the rule trie.
func (c *Compiled) Trie() *Trie { return c.trie }

// Taxonomy returns the taxonomy the rules were expanded with.
func (c *Compiled) Taxonomy() *taxonomy.Taxonomy { return c.taxonomy }

// Stats returns compilation statistics.
func (c *Compiled) Stats() Stats { return c.stats }

// Fingerprint identifies the (rules, taxonomy) input. Two compilations of
// equal input share a fingerprint.
func (c *Compiled) Fingerprint() string { return c.fingerprint }

// Rules returns the rules that made it into the trie, in declaration order.
func (c *Compiled) Rules() []rulebase.Rule {
	return append([]rulebase.Rule(nil), c.rules...)
}

// Excluded returns the rules dropped during compilation.
func (c *Compiled) Excluded() []Exclusion {
	return append([]Exclusion(nil), c.excluded...)
}

// HasRule reports whether a rule with id was compiled.
func (c *Compiled) HasRule(id int) bool {
	for _, r := range c.rules {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Dump writes the identifier table and the trie to sink.
func (c *Compiled) Dump(sink diag.Sink) {
	sink.Table(c.table.Entries())
	sink.Trie(c.trie.Render(c.table))
}

type options struct {
	logger *slog.Logger
	sink   diag.Sink
}

// Option configures Compile.
type Option func(*options)

// WithLogger sets the logger used for compilation progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSink sets the diagnostic sink. Excluded rules are reported to it as
// they are found and the table and trie are dumped once compilation ends.
func WithSink(sink diag.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// Compile expands rules over the taxonomy, interns every concrete atom and
// builds the rule trie.
//
// A rule is excluded as a whole when any of its conditions fails to parse or
// expands to nothing. A rule with no conditions attaches to the root and so
// fires for every fact set. Compile is a pure function of its input: equal
// input yields an equal table and an isomorphic trie.
func Compile(ctx context.Context, rules []rulebase.Rule, tax *taxonomy.Taxonomy, opts ...Option) (*Compiled, error) {
	o := options{logger: slog.Default(), sink: diag.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	c := &Compiled{
		table:    newTable(),
		trie:     newTrie(),
		taxonomy: tax,
	}

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("compilation cancelled: %w", err)
		}

		sets, err := expandRule(rule, tax)
		if err != nil {
			c.excluded = append(c.excluded, Exclusion{RuleID: rule.ID, Reason: err.Error()})
			o.sink.Excluded(rule.ID, err.Error())
			continue
		}

		leaf := Leaf{RuleID: rule.ID, Action: rule.Action}
		for _, set := range sets {
			c.trie.insert(c.path(set), leaf)
		}
		c.rules = append(c.rules, rule)
		c.stats.ConditionSets += len(sets)
	}

	fp, err := Fingerprint(rules, tax)
	if err != nil {
		return nil, err
	}
	c.fingerprint = fp

	c.stats.Rules = len(rules)
	c.stats.Compiled = len(c.rules)
	c.stats.Excluded = len(c.excluded)
	c.stats.Atoms = c.table.Len()
	c.stats.Nodes = c.trie.NodeCount()
	c.stats.Duration = time.Since(start)

	o.logger.Info("rule base compiled",
		"rules", c.stats.Rules,
		"compiled", c.stats.Compiled,
		"excluded", c.stats.Excluded,
		"condition_sets", c.stats.ConditionSets,
		"atoms", c.stats.Atoms,
		"nodes", c.stats.Nodes,
		"duration", c.stats.Duration,
	)

	c.Dump(o.sink)
	return c, nil
}

// expandRule returns the alternative concrete condition sets of rule: the
// cartesian product across its conditions of each condition's taxonomy
// expansion.
func expandRule(rule rulebase.Rule, tax *taxonomy.Taxonomy) ([][]atom.Atom, error) {
	candidates := make([][]atom.Atom, 0, len(rule.Conditions))
	for _, cond := range rule.Conditions {
		a, err := atom.Parse(cond)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", cond, err)
		}
		expanded, err := tax.Expand(a)
		if err != nil {
			return nil, err
		}
		if len(expanded) == 0 {
			return nil, fmt.Errorf("condition %q expands to no concrete atoms", cond)
		}
		candidates = append(candidates, expanded)
	}

	var sets [][]atom.Atom
	taxonomy.Product(candidates, func(choice []atom.Atom) {
		sets = append(sets, append([]atom.Atom(nil), choice...))
	})
	return sets, nil
}

// path interns the atoms of set and returns their ids sorted ascending with
// duplicates removed.
func (c *Compiled) path(set []atom.Atom) []ConditionID {
	ids := make([]ConditionID, 0, len(set))
	for _, a := range set {
		ids = append(ids, c.table.intern(a))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := ids[:0]
	for _, id := range ids {
		if len(out) > 0 && out[len(out)-1] == id {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Fingerprint hashes the canonical JSON form of rules and taxonomy.
func Fingerprint(rules []rulebase.Rule, tax *taxonomy.Taxonomy) (string, error) {
	doc := struct {
		Rules    []rulebase.Rule     `json:"rules"`
		Taxonomy map[string][]string `json:"taxonomy"`
	}{
		Rules:    rules,
		Taxonomy: tax.Map(),
	}
	if doc.Rules == nil {
		doc.Rules = []rulebase.Rule{}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint rule base: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
