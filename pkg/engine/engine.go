package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/diag"
	"drivelogic-hq/reasoner/pkg/scene"
)

// Observer receives one call per evaluated scene. The metrics collector
// implements it.
type Observer interface {
	// ObserveInference records a successful evaluation.
	ObserveInference(ruleIDs []int, defaulted, overridden bool, removed int, duration time.Duration)

	// ObserveSceneError records a scene that failed fact compilation.
	ObserveSceneError(section string)
}

type nopObserver struct{}

func (nopObserver) ObserveInference([]int, bool, bool, int, time.Duration) {}
func (nopObserver) ObserveSceneError(string) {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSink sets the diagnostic sink receiving per-scene facts and results.
func WithSink(sink diag.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithObserver sets the evaluation observer.
func WithObserver(obs Observer) Option {
	return func(e *Engine) {
		if obs != nil {
			e.observer = obs
		}
	}
}

// WithTracer sets the tracer used for Reason spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// Engine matches scenes against a compiled rule base and applies the
// policy. It is safe for concurrent use; Reload swaps the rule base without
// disturbing evaluations in flight.
type Engine struct {
	compiled atomic.Pointer[compiler.Compiled]

	policy     *Policy
	policyHash string
	elevated   map[int]struct{}
	exclusions []exclusionSet

	logger   *slog.Logger
	sink     diag.Sink
	observer Observer
	tracer   trace.Tracer
}

type exclusionSet struct {
	when   map[int]struct{}
	remove map[int]struct{}
}

// New creates an engine for compiled. A nil policy means DefaultPolicy.
func New(compiled *compiler.Compiled, policy *Policy, opts ...Option) (*Engine, error) {
	if compiled == nil {
		return nil, ErrNilCompiled
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		policy:   policy.clone(),
		logger:   slog.Default(),
		sink:     diag.Discard,
		observer: nopObserver{},
		tracer:   noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	e.policyHash = e.policy.Fingerprint()

	e.elevated = intSet(e.policy.Elevated)
	for _, ex := range e.policy.Exclusions {
		e.exclusions = append(e.exclusions, exclusionSet{
			when:   intSet(ex.When),
			remove: intSet(ex.Remove),
		})
	}

	if err := e.policy.check(compiled, e.logger); err != nil {
		return nil, err
	}
	e.compiled.Store(compiled)

	return e, nil
}

// Policy returns a copy of the engine policy.
func (e *Engine) Policy() *Policy {
	return e.policy.clone()
}

// Compiled returns the rule base currently in use.
func (e *Engine) Compiled() *compiler.Compiled {
	return e.compiled.Load()
}

// CacheKey identifies the result desc would get from the current rule base
// and policy. Stored results are reusable only under an equal key.
func (e *Engine) CacheKey(desc scene.Description) string {
	return e.cacheKey(e.compiled.Load(), desc)
}

func (e *Engine) cacheKey(c *compiler.Compiled, desc scene.Description) string {
	h := sha256.New()
	for _, part := range []string{c.Fingerprint(), e.policyHash, desc.Fingerprint()} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Reload replaces the compiled rule base. The policy is checked against the
// new rule base first; on error the previous one stays in place.
func (e *Engine) Reload(compiled *compiler.Compiled) error {
	if compiled == nil {
		return ErrNilCompiled
	}
	if err := e.policy.check(compiled, e.logger); err != nil {
		return err
	}
	prev := e.compiled.Swap(compiled)

	e.logger.Info("rule base reloaded",
		"previous_fingerprint", prev.Fingerprint(),
		"fingerprint", compiled.Fingerprint(),
		"rules", compiled.Stats().Compiled,
	)
	return nil
}

// Infer returns the actions decided for a fact set.
func (e *Engine) Infer(facts scene.FactSet) []FiredRule {
	return e.infer(e.compiled.Load(), facts).fired
}

// Reason compiles desc into facts and infers its actions. A malformed
// description returns an error wrapping *scene.ParseError; the engine stays
// usable.
func (e *Engine) Reason(ctx context.Context, sceneID string, desc scene.Description) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Reason",
		trace.WithAttributes(attribute.String("drivelogic.scene_id", sceneID)),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	facts, err := scene.Compile(desc, e.policy.sceneOptions())
	if err != nil {
		section := ""
		var pe *scene.ParseError
		if errors.As(err, &pe) {
			section = pe.Section
		}
		e.observer.ObserveSceneError(section)
		span.RecordError(err)
		span.SetStatus(codes.Error, "scene compilation failed")
		return nil, fmt.Errorf("scene %s: %w", sceneID, err)
	}

	c := e.compiled.Load()
	inf := e.infer(c, facts.FactSet)
	elapsed := time.Since(start)

	e.sink.Facts(sceneID, inf.diagFacts)
	e.sink.Fired(sceneID, toDiag(inf.fired))

	ids := make([]int, len(inf.fired))
	for i, f := range inf.fired {
		ids[i] = f.RuleID
	}
	e.observer.ObserveInference(ids, inf.defaulted, inf.overridden, inf.removed, elapsed)

	span.SetAttributes(
		attribute.Int("drivelogic.facts", facts.FactSet.Len()),
		attribute.Int("drivelogic.matched_facts", inf.matched),
		attribute.IntSlice("drivelogic.fired", ids),
		attribute.Bool("drivelogic.defaulted", inf.defaulted),
	)
	span.SetStatus(codes.Ok, "")

	e.logger.Debug("scene evaluated",
		"scene_id", sceneID,
		"facts", facts.FactSet.Len(),
		"matched_facts", inf.matched,
		"fired", ids,
		"defaulted", inf.defaulted,
		"duration", elapsed,
	)

	return &Result{
		SceneID:     sceneID,
		Fired:       inf.fired,
		Intentions:  facts.Intentions,
		Facts:       facts.FactSet.Strings(),
		Defaulted:   inf.defaulted,
		Overridden:  inf.overridden,
		Fingerprint: c.Fingerprint(),
		CacheKey:    e.cacheKey(c, desc),
		Duration:    elapsed,
	}, nil
}

// inference is the full record of one Infer pass.
type inference struct {
	fired      []FiredRule
	diagFacts  []diag.Fact
	matched    int
	defaulted  bool
	overridden bool
	removed    int
}

func (e *Engine) infer(c *compiler.Compiled, facts scene.FactSet) inference {
	var inf inference

	// Map facts to identifiers; unknown atoms cannot take part in any rule.
	table := c.Table()
	atoms := facts.Atoms()
	ids := make([]compiler.ConditionID, 0, len(atoms))
	inf.diagFacts = make([]diag.Fact, 0, len(atoms))
	for _, a := range atoms {
		id, ok := table.ID(a)
		inf.diagFacts = append(inf.diagFacts, diag.Fact{Atom: string(a), ID: int(id), Known: ok})
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	inf.matched = len(ids)

	// Walk the trie. Active nodes are never dropped: a partial match stays
	// valid as further facts arrive. Only nodes active before id was seen
	// may advance on it.
	active := []*compiler.Node{c.Trie().Root()}
	for _, id := range ids {
		n := len(active)
		for i := 0; i < n; i++ {
			if child, ok := active[i].Child(id); ok {
				active = append(active, child)
			}
		}
	}

	seen := make(map[int]struct{})
	for _, node := range active {
		for _, leaf := range node.Leaves() {
			if _, ok := seen[leaf.RuleID]; ok {
				continue
			}
			seen[leaf.RuleID] = struct{}{}
			inf.fired = append(inf.fired, FiredRule{RuleID: leaf.RuleID, Action: leaf.Action})
		}
	}

	p := e.policy
	if p.overrideFires(facts) {
		inf.overridden = true
		inf.fired = appendRecord(inf.fired, FiredRule{RuleID: p.StartRuleID, Action: p.StartAction})
	}

	elevated := false
	for _, f := range inf.fired {
		if _, ok := e.elevated[f.RuleID]; ok {
			elevated = true
			break
		}
	}
	if !elevated {
		inf.defaulted = true
		inf.fired = appendRecord(inf.fired, FiredRule{RuleID: p.DefaultRuleID, Action: p.DefaultAction})
	}

	for _, ex := range e.exclusions {
		triggered := false
		for _, f := range inf.fired {
			if _, ok := ex.when[f.RuleID]; ok {
				triggered = true
				break
			}
		}
		if !triggered {
			continue
		}
		kept := inf.fired[:0]
		for _, f := range inf.fired {
			if _, ok := ex.remove[f.RuleID]; ok {
				inf.removed++
				continue
			}
			kept = append(kept, f)
		}
		inf.fired = kept
	}

	if inf.fired == nil {
		inf.fired = []FiredRule{}
	}
	return inf
}

// appendRecord adds r unless an identical record is already present.
func appendRecord(fired []FiredRule, r FiredRule) []FiredRule {
	for _, f := range fired {
		if f == r {
			return fired
		}
	}
	return append(fired, r)
}

func toDiag(fired []FiredRule) []diag.Fired {
	out := make([]diag.Fired, len(fired))
	for i, f := range fired {
		out[i] = diag.Fired{RuleID: f.RuleID, Action: f.Action}
	}
	return out
}
