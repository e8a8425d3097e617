package compiler

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"drivelogic-hq/reasoner/pkg/atom"
	"drivelogic-hq/reasoner/pkg/diag"
	"drivelogic-hq/reasoner/pkg/rulebase"
	"drivelogic-hq/reasoner/pkg/taxonomy"
)

func testTaxonomy() *taxonomy.Taxonomy {
	return taxonomy.MustNew(map[string][]string{
		"vulnerable_road_user": {"vulnerable_road_user", "cyclist", "pedestrian"},
	})
}

// pathOf follows atoms through the trie, interning nothing.
func pathOf(t *testing.T, c *Compiled, atoms ...string) *Node {
	t.Helper()
	ids := make([]ConditionID, 0, len(atoms))
	for _, s := range atoms {
		id, ok := c.Table().ID(atom.MustParse(s))
		if !ok {
			t.Fatalf("atom %q not in table", s)
		}
		ids = append(ids, id)
	}
	// ascending order, as inserted
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}

	n := c.Trie().Root()
	for _, id := range ids {
		child, ok := n.Child(id)
		if !ok {
			t.Fatalf("no trie path for %v", atoms)
		}
		n = child
	}
	return n
}

func TestCompile_TaxonomyExpansion(t *testing.T) {
	rules := []rulebase.Rule{
		{ID: 58, Action: "reduce_speed", Conditions: []string{"ego, approaching, vulnerable_road_user"}},
	}

	c, err := Compile(context.Background(), rules, testTaxonomy())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	if c.Table().Len() != 3 {
		t.Errorf("table has %d atoms, want 3", c.Table().Len())
	}
	for _, s := range []string{
		"ego, approaching, vulnerable_road_user",
		"ego, approaching, cyclist",
		"ego, approaching, pedestrian",
	} {
		n := pathOf(t, c, s)
		if got := n.Leaves(); len(got) != 1 || got[0] != (Leaf{RuleID: 58, Action: "reduce_speed"}) {
			t.Errorf("leaf for %q = %v", s, got)
		}
	}

	stats := c.Stats()
	if stats.ConditionSets != 3 || stats.Compiled != 1 || stats.Nodes != 4 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCompile_CartesianAcrossConditions(t *testing.T) {
	rules := []rulebase.Rule{
		{ID: 2, Action: "give_way", Conditions: []string{
			"ego, approaching, vulnerable_road_user",
			"vulnerable_road_user, same_lane_front_of, ego",
		}},
	}

	c, err := Compile(context.Background(), rules, testTaxonomy())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if got := c.Stats().ConditionSets; got != 9 {
		t.Errorf("ConditionSets = %d, want 9", got)
	}

	n := pathOf(t, c, "ego, approaching, pedestrian", "cyclist, same_lane_front_of, ego")
	if !n.Terminal() {
		t.Error("mixed alternative should still be a full condition set")
	}
}

func TestCompile_IntermediateNodesCarryNoLeaf(t *testing.T) {
	rules := []rulebase.Rule{
		{ID: 1, Action: "stop", Conditions: []string{"traffic_light, is, red", "ego, at, junction"}},
	}

	c, err := Compile(context.Background(), rules, nil)
	if err != nil {
		t.Fatal(err)
	}

	first, _ := c.Table().ID("traffic_light, is, red")
	n, ok := c.Trie().Root().Child(first)
	if !ok {
		t.Fatal("missing first node")
	}
	if n.Terminal() {
		t.Error("intermediate node must not carry a leaf")
	}
	if !pathOf(t, c, "traffic_light, is, red", "ego, at, junction").Terminal() {
		t.Error("final node must carry the leaf")
	}
}

func TestCompile_EmptyConditionsAttachToRoot(t *testing.T) {
	rules := []rulebase.Rule{{ID: 64, Action: "default_behaviour"}}

	c, err := Compile(context.Background(), rules, nil)
	if err != nil {
		t.Fatal(err)
	}
	leaves := c.Trie().Root().Leaves()
	if len(leaves) != 1 || leaves[0].RuleID != 64 {
		t.Errorf("root leaves = %v, want rule 64", leaves)
	}
}

func TestCompile_IdenticalConditionSetsKeepBothRules(t *testing.T) {
	rules := []rulebase.Rule{
		{ID: 10, Action: "slow_down", Conditions: []string{"ego, near, school"}},
		{ID: 11, Action: "watch_for_children", Conditions: []string{"ego,near,school"}},
	}

	c, err := Compile(context.Background(), rules, nil)
	if err != nil {
		t.Fatal(err)
	}
	leaves := pathOf(t, c, "ego, near, school").Leaves()
	if len(leaves) != 2 {
		t.Errorf("expected both rules at the shared node, got %v", leaves)
	}
}

func TestCompile_DuplicateConditionCollapses(t *testing.T) {
	rules := []rulebase.Rule{
		{ID: 5, Action: "stop", Conditions: []string{"ego, at, stop_line", "ego, at, stop_line"}},
	}

	c, err := Compile(context.Background(), rules, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !pathOf(t, c, "ego, at, stop_line").Terminal() {
		t.Error("a repeated condition should compile to a single-step path")
	}
}

func TestCompile_ExcludesMalformedRule(t *testing.T) {
	rec := diag.NewRecorder()
	rules := []rulebase.Rule{
		{ID: 7, Action: "stop", Conditions: []string{"ego, at, junction", "ego,,broken"}},
		{ID: 8, Action: "stop", Conditions: []string{"ego, at, junction"}},
	}

	c, err := Compile(context.Background(), rules, nil, WithSink(rec))
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	if c.HasRule(7) || !c.HasRule(8) {
		t.Errorf("HasRule: 7=%v 8=%v", c.HasRule(7), c.HasRule(8))
	}
	excluded := c.Excluded()
	if len(excluded) != 1 || excluded[0].RuleID != 7 {
		t.Fatalf("Excluded() = %v", excluded)
	}
	if _, ok := rec.ExcludedRules()[7]; !ok {
		t.Error("exclusion should be reported to the sink")
	}

	leaves := pathOf(t, c, "ego, at, junction").Leaves()
	if len(leaves) != 1 || leaves[0].RuleID != 8 {
		t.Errorf("rule 7 must not be partially compiled, leaves = %v", leaves)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	rules := []rulebase.Rule{
		{ID: 1, Action: "stop", Conditions: []string{"traffic_light, is, red"}},
		{ID: 2, Action: "give_way", Conditions: []string{"ego, approaching, vulnerable_road_user", "ego, at, crossing"}},
		{ID: 3, Action: "proceed", Conditions: []string{"traffic_light, is, green", "ego, at, crossing"}},
	}

	a, err := Compile(context.Background(), rules, testTaxonomy())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compile(context.Background(), rules, testTaxonomy())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a.Table().Entries(), b.Table().Entries()) {
		t.Error("identifier tables differ between compilations")
	}
	if !reflect.DeepEqual(a.Trie().Render(a.Table()), b.Trie().Render(b.Table())) {
		t.Error("tries differ between compilations")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprints differ between compilations")
	}
}

func TestCompile_DumpsToSink(t *testing.T) {
	rec := diag.NewRecorder()
	rules := []rulebase.Rule{
		{ID: 58, Action: "reduce_speed", Conditions: []string{"ego, approaching, pedestrian"}},
	}

	if _, err := Compile(context.Background(), rules, nil, WithSink(rec)); err != nil {
		t.Fatal(err)
	}

	table := rec.TableEntries()
	if len(table) != 1 || table[0].Atom != "ego, approaching, pedestrian" {
		t.Errorf("table dump = %v", table)
	}
	lines := rec.TrieLines()
	if len(lines) != 1 || !strings.Contains(lines[0], "rule 58: reduce_speed") {
		t.Errorf("trie dump = %v", lines)
	}
}

func TestCompile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compile(ctx, []rulebase.Rule{{ID: 1, Action: "stop"}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Compile() error = %v, want context.Canceled", err)
	}
}

func TestCompile_EmptyRuleBase(t *testing.T) {
	c, err := Compile(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Trie().NodeCount() != 1 || c.Trie().Root().Terminal() {
		t.Errorf("empty rule base should compile to a bare root")
	}
}

func TestFingerprint_ChangesWithInput(t *testing.T) {
	rules := []rulebase.Rule{{ID: 1, Action: "stop", Conditions: []string{"a, b, c"}}}
	a, err := Fingerprint(rules, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fingerprint(rules, testTaxonomy())
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("taxonomy change should change the fingerprint")
	}
}
