package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/config"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
	"drivelogic-hq/reasoner/pkg/results/storage"
	"drivelogic-hq/reasoner/pkg/rulebase"
	"drivelogic-hq/reasoner/pkg/scene"
	"drivelogic-hq/reasoner/pkg/taxonomy"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	rules := []rulebase.Rule{
		{ID: 1, Action: "stop", Conditions: []string{"traffic_light, is, red"}},
		{ID: 9, Action: "check_mirrors", Conditions: []string{"ego, intend, turn_left"}},
	}
	c, err := compiler.Compile(context.Background(), rules, taxonomy.Default())
	if err != nil {
		t.Fatal(err)
	}
	e, err := engine.New(c, engine.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func redLight(id string) Scene {
	return Scene{ID: id, Description: scene.Description{
		ControlDevice: []string{"(traffic_light, relevant, green, red)"},
	}}
}

func turning(id string) Scene {
	return Scene{ID: id, Description: scene.Description{
		Intention: []string{"(ego, turn_left)"},
	}}
}

func malformed(id string) Scene {
	return Scene{ID: id, Description: scene.Description{
		RoadUser: []string{"(car, in_front_of)"},
	}}
}

type fakeRecorder struct {
	mu                        sync.Mutex
	evaluated, cached, failed int
	batchErr                  error
	stored                    int
}

func (f *fakeRecorder) RecordBatch(evaluated, cached, failed int, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluated, f.cached, f.failed, f.batchErr = evaluated, cached, failed, err
}

func (f *fakeRecorder) RecordStored(backend string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if backend == "memory" && err == nil {
		f.stored++
	}
}

func TestRunner_Run(t *testing.T) {
	store := storage.NewMemoryStore()
	rec := &fakeRecorder{}
	r := New(newEngine(t), config.RunnerConfig{Workers: 3},
		WithStore(store, "memory"), WithRecorder(rec))

	scenes := []Scene{redLight("s1"), malformed("s2"), turning("s3"), redLight("s4")}
	sum, err := r.Run(context.Background(), scenes)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if sum.Evaluated != 3 || sum.Failed != 1 || sum.Cached != 0 {
		t.Errorf("summary = %+v", sum)
	}
	for i, o := range sum.Outcomes {
		if o.SceneID != scenes[i].ID {
			t.Errorf("outcome %d is %s, want %s", i, o.SceneID, scenes[i].ID)
		}
	}

	if !sum.Outcomes[0].Result.HasRule(1) {
		t.Errorf("s1 fired %+v, want rule 1", sum.Outcomes[0].Result.Fired)
	}
	var pe *scene.ParseError
	if !errors.As(sum.Outcomes[1].Err, &pe) || pe.Section != scene.SectionRoadUser {
		t.Errorf("s2 error = %v, want road_user ParseError", sum.Outcomes[1].Err)
	}
	if !sum.Outcomes[2].Result.Defaulted {
		t.Error("s3 should receive the default action")
	}
	if len(sum.Results()) != 3 {
		t.Errorf("Results() = %d, want 3", len(sum.Results()))
	}

	n, err := store.Count(context.Background(), &results.Query{RunID: sum.RunID})
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("stored %d records, want 4 including the failure", n)
	}
	if rec.evaluated != 3 || rec.failed != 1 || rec.stored != 4 || rec.batchErr != nil {
		t.Errorf("recorder = %+v", rec)
	}
}

func TestRunner_SkipCached(t *testing.T) {
	store := storage.NewMemoryStore()
	eng := newEngine(t)
	cfg := config.RunnerConfig{Workers: 2, SkipCached: true}
	scenes := []Scene{redLight("s1"), malformed("s2"), turning("s3")}

	first, err := New(eng, cfg, WithStore(store, "memory")).Run(context.Background(), scenes)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached != 0 {
		t.Fatalf("first run cached %d scenes", first.Cached)
	}

	second, err := New(eng, cfg, WithStore(store, "memory")).Run(context.Background(), scenes)
	if err != nil {
		t.Fatal(err)
	}
	// Failed scenes are evaluated again.
	if second.Cached != 2 || second.Failed != 1 || second.Evaluated != 0 {
		t.Errorf("second run = %+v", second)
	}
	got := second.Outcomes[0].Result
	if got == nil || !got.HasRule(1) || got.Fingerprint != first.Fingerprint {
		t.Errorf("cached result = %+v", got)
	}

	n, err := store.Count(context.Background(), &results.Query{RunID: second.RunID})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("second run stored %d records, want only the failure", n)
	}
}

func TestRunner_CachedResultInvalidation(t *testing.T) {
	sameRules := func(t *testing.T, eng *engine.Engine) *engine.Engine {
		return eng
	}
	slowDown := func(t *testing.T, eng *engine.Engine) *engine.Engine {
		p := engine.DefaultPolicy()
		p.DefaultRuleID = 71
		p.DefaultAction = "slow_down"
		e, err := engine.New(eng.Compiled(), p)
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	tests := []struct {
		name      string
		first     Scene
		second    Scene
		engine    func(t *testing.T, eng *engine.Engine) *engine.Engine
		wantFired []engine.FiredRule
	}{
		{
			name:      "scene description changed under the same id",
			first:     redLight("s1"),
			second:    turning("s1"),
			engine:    sameRules,
			wantFired: []engine.FiredRule{{RuleID: 9, Action: "check_mirrors"}, {RuleID: 70, Action: "maintain_speed"}},
		},
		{
			name:      "policy changed",
			first:     turning("s1"),
			second:    turning("s1"),
			engine:    slowDown,
			wantFired: []engine.FiredRule{{RuleID: 9, Action: "check_mirrors"}, {RuleID: 71, Action: "slow_down"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			eng := newEngine(t)
			cfg := config.RunnerConfig{Workers: 1, SkipCached: true}

			if _, err := New(eng, cfg, WithStore(store, "memory")).Run(context.Background(), []Scene{tt.first}); err != nil {
				t.Fatal(err)
			}

			sum, err := New(tt.engine(t, eng), cfg, WithStore(store, "memory")).Run(context.Background(), []Scene{tt.second})
			if err != nil {
				t.Fatal(err)
			}
			o := sum.Outcomes[0]
			if o.Cached || sum.Evaluated != 1 {
				t.Fatalf("stale result reused: cached=%v summary=%+v", o.Cached, sum)
			}
			if !equalFired(o.Result.Fired, tt.wantFired) {
				t.Errorf("fired = %+v, want %+v", o.Result.Fired, tt.wantFired)
			}
		})
	}
}

func TestRunner_CacheKeyIgnoresEmptySections(t *testing.T) {
	store := storage.NewMemoryStore()
	eng := newEngine(t)
	cfg := config.RunnerConfig{Workers: 1, SkipCached: true}

	first := turning("s1")
	if _, err := New(eng, cfg, WithStore(store, "memory")).Run(context.Background(), []Scene{first}); err != nil {
		t.Fatal(err)
	}

	second := turning("s1")
	second.Description.Situation = []string{}
	sum, err := New(eng, cfg, WithStore(store, "memory")).Run(context.Background(), []Scene{second})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Cached != 1 {
		t.Errorf("equivalent scene not reused: %+v", sum)
	}
}

func equalFired(a, b []engine.FiredRule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunner_FailFast(t *testing.T) {
	r := New(newEngine(t), config.RunnerConfig{Workers: 1, FailFast: true})

	scenes := []Scene{redLight("s1"), malformed("s2"), redLight("s3"), redLight("s4")}
	sum, err := r.Run(context.Background(), scenes)
	if !errors.Is(err, ErrSceneFailed) {
		t.Fatalf("Run() error = %v, want ErrSceneFailed", err)
	}
	if sum.Failed != 1 {
		t.Errorf("Failed = %d, want 1", sum.Failed)
	}
	if sum.Outcomes[0].Result == nil {
		t.Error("scene before the failure lost its result")
	}
	if sum.Evaluated+sum.Skipped+sum.Failed != len(scenes) {
		t.Errorf("summary does not account for every scene: %+v", sum)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := New(newEngine(t), config.RunnerConfig{}).Run(ctx, []Scene{redLight("s1"), redLight("s2")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if sum.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", sum.Skipped)
	}
}

func TestLoadScenes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.json")
	doc := `{
  "b": {"control_device": ["(traffic_light, relevant, green, red)"]},
  "a": {"intention": ["(ego, turn_left)"]}
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	scenes, err := LoadScenes(path)
	if err != nil {
		t.Fatalf("LoadScenes() error = %v", err)
	}
	if len(scenes) != 2 || scenes[0].ID != "a" || scenes[1].ID != "b" {
		t.Errorf("scenes = %+v", scenes)
	}
	if len(scenes[1].Description.ControlDevice) != 1 {
		t.Errorf("scene b lost its control devices")
	}
}

type fakeProgress struct {
	mu      sync.Mutex
	total   int64
	updates []int64
	done    bool
}

func (p *fakeProgress) Start(total int64) { p.total = total }

func (p *fakeProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, current)
}

func (p *fakeProgress) Finish() { p.done = true }

func TestRunner_Progress(t *testing.T) {
	p := &fakeProgress{}
	r := New(newEngine(t), config.RunnerConfig{Workers: 2}, WithProgress(p))

	if _, err := r.Run(context.Background(), []Scene{redLight("a"), turning("b"), malformed("c")}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if p.total != 3 {
		t.Errorf("total = %d, want 3", p.total)
	}
	if len(p.updates) != 3 {
		t.Fatalf("updates = %v, want 3", p.updates)
	}
	seen := make(map[int64]bool)
	for _, u := range p.updates {
		seen[u] = true
	}
	for i := int64(1); i <= 3; i++ {
		if !seen[i] {
			t.Errorf("missing update %d in %v", i, p.updates)
		}
	}
	if !p.done {
		t.Error("Finish() not called")
	}
}
