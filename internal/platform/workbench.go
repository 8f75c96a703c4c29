package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cellmlhub/internal/cellml"
	"cellmlhub/internal/clone"
	"cellmlhub/internal/model"
	"cellmlhub/internal/observability"
	"cellmlhub/internal/storage"
	"cellmlhub/internal/units"
	"cellmlhub/internal/validate"
)

var ErrNotOwner = errors.New("actor does not own entity")

type Config struct {
	Store          storage.Store
	Logger         *zerolog.Logger
	Metrics        *observability.Collector
	TracerProvider trace.TracerProvider
	// Clock stamps validation results. Defaults to the wall clock in UTC.
	Clock func() time.Time
}

// Workbench runs every top-level operation as one transaction: the stored
// graph is loaded, the operation runs on a scratch copy and, only when it
// succeeds, the difference is written back in a single Apply.
type Workbench struct {
	store   storage.Store
	log     zerolog.Logger
	metrics *observability.Collector
	tp      trace.TracerProvider
	now     func() time.Time

	mu      sync.Mutex
	started bool
}

func NewWorkbench(cfg Config) *Workbench {
	w := &Workbench{
		store:   cfg.Store,
		log:     zerolog.Nop(),
		metrics: cfg.Metrics,
		tp:      cfg.TracerProvider,
		now:     cfg.Clock,
	}
	if cfg.Logger != nil {
		w.log = *cfg.Logger
	}
	if w.now == nil {
		w.now = func() time.Time { return time.Now().UTC().Round(0) }
	}
	return w
}

// operation describes one call for tracing and the closing log event.
type operation struct {
	name   string
	actor  model.Actor
	attrs  []attribute.KeyValue
	fields map[string]any
}

func newOperation(name string, actor model.Actor, attrs ...attribute.KeyValue) *operation {
	if actor != "" {
		attrs = append(attrs, attribute.String("actor", string(actor)))
	}
	return &operation{name: name, actor: actor, attrs: attrs, fields: map[string]any{}}
}

// Init prepares the store and installs the standard units.
func (w *Workbench) Init(ctx context.Context) error {
	if w.store == nil {
		return fmt.Errorf("store is required")
	}
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	if err := w.store.Init(ctx); err != nil {
		w.mu.Unlock()
		return err
	}
	w.started = true
	w.mu.Unlock()

	op := newOperation("Init", "")
	return w.mutate(ctx, op, func(g *model.Graph) error {
		added, err := units.Seed(g)
		op.fields["standard_units_added"] = added
		return err
	})
}

func (w *Workbench) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// mutate runs fn on a scratch graph and persists what it changed.
func (w *Workbench) mutate(ctx context.Context, op *operation, fn func(g *model.Graph) error) error {
	return w.run(ctx, op, true, fn)
}

// view runs fn on a freshly loaded graph without writing anything back.
func (w *Workbench) view(ctx context.Context, op *operation, fn func(g *model.Graph) error) error {
	return w.run(ctx, op, false, fn)
}

func (w *Workbench) run(ctx context.Context, op *operation, write bool, fn func(g *model.Graph) error) (err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, w.tp, "workbench."+op.name, op.attrs...)
	defer func() {
		elapsed := time.Since(start)
		w.metrics.ObserveDuration(op.name, elapsed)
		observability.EndSpan(span, err)
		w.logOperation(op, elapsed, err)
	}()

	if !w.Started() {
		return storage.ErrNotInitialized
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	before, err := w.store.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	if !write {
		return fn(before)
	}

	scratch := before.Clone()
	if err := fn(scratch); err != nil {
		return err
	}
	changes := model.Diff(before, scratch)
	op.fields["upserts"] = len(changes.Upserts)
	op.fields["deletes"] = len(changes.Deletes)
	if err := w.store.Apply(ctx, changes); err != nil {
		return fmt.Errorf("apply changes: %w", err)
	}
	return nil
}

func (w *Workbench) logOperation(op *operation, elapsed time.Duration, err error) {
	event := w.log.Info()
	if err != nil {
		event = w.log.Warn().Err(err)
	}
	event = event.Str("op", op.name).Dur("duration", elapsed)
	if op.actor != "" {
		event = event.Str("actor", string(op.actor))
	}
	event.Fields(op.fields).Msg("operation finished")
}

func checkOwner(g *model.Graph, ref model.Ref, actor model.Actor) error {
	e, err := g.MustGet(ref)
	if err != nil {
		return err
	}
	if err := units.CheckMutable(g, ref); err != nil {
		return err
	}
	if owner := e.Base().Owner; owner != actor {
		return fmt.Errorf("%w: %s belongs to %q", ErrNotOwner, ref, owner)
	}
	return nil
}

// ImportResult is the outcome of loading one document.
type ImportResult struct {
	ModelID  string   `json:"model_id"`
	Warnings []string `json:"warnings,omitempty"`
}

// ImportDocument parses r with parser and loads the result for actor.
func (w *Workbench) ImportDocument(ctx context.Context, r io.Reader, parser cellml.Parser, actor model.Actor) (ImportResult, error) {
	parsed, err := parser.Parse(r)
	if err != nil {
		return ImportResult{}, err
	}
	return w.ImportParsed(ctx, parsed, actor)
}

func (w *Workbench) ImportParsed(ctx context.Context, parsed cellml.ParsedModel, actor model.Actor) (ImportResult, error) {
	var result ImportResult
	op := newOperation("Import", actor, attribute.String("model.name", parsed.Name()))
	err := w.mutate(ctx, op, func(g *model.Graph) error {
		id, report, err := cellml.Load(g, parsed, actor)
		if err != nil {
			return err
		}
		result = ImportResult{ModelID: id, Warnings: report.Warnings}
		op.fields["model_id"] = id
		op.fields["warnings"] = len(report.Warnings)
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	for _, warning := range result.Warnings {
		w.log.Warn().Str("model_id", result.ModelID).Msg(warning)
	}
	w.metrics.ObserveImport(len(result.Warnings))
	return result, nil
}

// ValidationResult summarises one validation run.
type ValidationResult struct {
	Ref        model.Ref           `json:"ref"`
	Valid      bool                `json:"valid"`
	CheckedAt  time.Time           `json:"checked_at"`
	Issues     int                 `json:"issues"`
	ErrorCount int                 `json:"error_count"`
	Cycles     []validate.Cycle    `json:"cycles,omitempty"`
	Tree       *validate.ErrorNode `json:"tree,omitempty"`
}

// ValidateModel runs the full validation of a model and stores the
// validity of everything it checked.
func (w *Workbench) ValidateModel(ctx context.Context, modelID string) (ValidationResult, error) {
	target := model.Ref{Kind: model.KindModel, ID: modelID}
	return w.validate(ctx, newOperation("ValidateModel", "", attribute.String("model.id", modelID)), target,
		func(g *model.Graph, r *validate.Report) (bool, error) {
			if _, err := g.MustGet(target); err != nil {
				return false, err
			}
			return validate.Model(g, modelID, r), nil
		})
}

// ValidateEntity runs the local validator of a single entity.
func (w *Workbench) ValidateEntity(ctx context.Context, ref model.Ref) (ValidationResult, error) {
	return w.validate(ctx, newOperation("ValidateEntity", "", attribute.String("entity", ref.String())), ref,
		func(g *model.Graph, r *validate.Report) (bool, error) {
			return validate.Entity(g, ref, r)
		})
}

func (w *Workbench) validate(ctx context.Context, op *operation, target model.Ref, check func(*model.Graph, *validate.Report) (bool, error)) (ValidationResult, error) {
	var result ValidationResult
	err := w.mutate(ctx, op, func(g *model.Graph) error {
		r := validate.NewReport(w.now())
		valid, err := check(g, r)
		if err != nil {
			return err
		}
		r.Apply(g)
		result = ValidationResult{
			Ref:        target,
			Valid:      valid,
			CheckedAt:  r.CheckedAt,
			Issues:     r.IssueCount(),
			ErrorCount: r.ErrorCount(g, target),
			Cycles:     r.Cycles(),
			Tree:       r.Tree(g, target),
		}
		for _, cycle := range result.Cycles {
			w.log.Debug().Str("model_id", target.ID).Str("cycle", cycle.Description).Msg("cyclic variables")
		}
		op.fields["valid"] = valid
		op.fields["issues"] = result.Issues
		return nil
	})
	if err != nil {
		return ValidationResult{}, err
	}
	w.metrics.ObserveValidation(string(target.Kind), result.Valid, result.Issues, len(result.Cycles))
	return result, nil
}

// Errors returns the stored error tree of an entity, as left by the last
// validation.
func (w *Workbench) Errors(ctx context.Context, ref model.Ref) (*validate.ErrorNode, error) {
	var tree *validate.ErrorNode
	err := w.view(ctx, newOperation("Errors", "", attribute.String("entity", ref.String())), func(g *model.Graph) error {
		if _, err := g.MustGet(ref); err != nil {
			return err
		}
		tree = validate.Restore(g).Tree(g, ref)
		return nil
	})
	return tree, err
}

// Copy duplicates ref for actor using strategy. Private entities can only
// be copied by their owner.
func (w *Workbench) Copy(ctx context.Context, ref model.Ref, actor model.Actor, strategy clone.Strategy) (model.Ref, error) {
	var out model.Ref
	op := newOperation("Copy", actor, attribute.String("entity", ref.String()), attribute.String("strategy", string(strategy)))
	err := w.mutate(ctx, op, func(g *model.Graph) error {
		e, err := g.MustGet(ref)
		if err != nil {
			return err
		}
		if e.Base().Private && e.Base().Owner != actor {
			return fmt.Errorf("%w: %s is private", ErrNotOwner, ref)
		}
		out, err = clone.Copy(g, ref, actor, strategy)
		op.fields["copy"] = out.String()
		return err
	})
	if err != nil {
		return model.Ref{}, err
	}
	w.metrics.ObserveCopy(string(strategy))
	return out, nil
}

// Link attaches the relations of from to an existing entity owned by actor.
func (w *Workbench) Link(ctx context.Context, from, to model.Ref, actor model.Actor) error {
	op := newOperation("Link", actor, attribute.String("from", from.String()), attribute.String("to", to.String()))
	err := w.mutate(ctx, op, func(g *model.Graph) error {
		if err := checkOwner(g, to, actor); err != nil {
			return err
		}
		return clone.Link(g, from, to)
	})
	if err == nil {
		w.metrics.ObserveCopy(string(clone.StrategyLink))
	}
	return err
}

// DeepCopy duplicates the owned relations of from into an existing entity
// owned by actor.
func (w *Workbench) DeepCopy(ctx context.Context, from, to model.Ref, actor model.Actor) error {
	op := newOperation("DeepCopy", actor, attribute.String("from", from.String()), attribute.String("to", to.String()))
	err := w.mutate(ctx, op, func(g *model.Graph) error {
		if err := checkOwner(g, to, actor); err != nil {
			return err
		}
		return clone.Deep(g, from, to, actor)
	})
	if err == nil {
		w.metrics.ObserveCopy(string(clone.StrategyDeep))
	}
	return err
}

// CloneModel copies and relinks a whole model for actor. A clone that
// cannot resolve every reference leaves the store untouched.
func (w *Workbench) CloneModel(ctx context.Context, modelID string, actor model.Actor, opts clone.Options) (string, error) {
	var out string
	op := newOperation("CloneModel", actor, attribute.String("model.id", modelID), attribute.Bool("remove_suffix", opts.RemoveSuffix))
	err := w.mutate(ctx, op, func(g *model.Graph) error {
		m, err := g.MustGet(model.Ref{Kind: model.KindModel, ID: modelID})
		if err != nil {
			return err
		}
		if m.Base().Private && m.Base().Owner != actor {
			return fmt.Errorf("%w: model %s is private", ErrNotOwner, modelID)
		}
		out, err = clone.CopyAndLinkModel(g, modelID, actor, opts)
		op.fields["model_id"] = out
		return err
	})
	w.metrics.ObserveClone(err)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Delete removes ref when actor owns it and returns what was removed.
func (w *Workbench) Delete(ctx context.Context, ref model.Ref, actor model.Actor, mode clone.DeleteMode) ([]model.Ref, error) {
	var removed []model.Ref
	op := newOperation("Delete", actor, attribute.String("entity", ref.String()), attribute.String("mode", string(mode)))
	err := w.mutate(ctx, op, func(g *model.Graph) error {
		if err := checkOwner(g, ref, actor); err != nil {
			return err
		}
		var err error
		removed, err = clone.Delete(g, ref, mode)
		op.fields["removed"] = len(removed)
		return err
	})
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = clone.DeleteBase
	}
	w.metrics.ObserveDelete(string(mode), len(removed))
	return removed, nil
}

// RenameCompoundUnit renames a model-local unit owned by actor.
func (w *Workbench) RenameCompoundUnit(ctx context.Context, id, name string, actor model.Actor) error {
	ref := model.Ref{Kind: model.KindCompoundUnit, ID: id}
	op := newOperation("RenameCompoundUnit", actor, attribute.String("entity", ref.String()))
	return w.mutate(ctx, op, func(g *model.Graph) error {
		if err := checkOwner(g, ref, actor); err != nil {
			return err
		}
		if err := units.Rename(g, id, name); err != nil {
			return err
		}
		_, err := units.UpdateSymbol(g, id)
		return err
	})
}

// Connect makes two variables owned by actor equivalent.
func (w *Workbench) Connect(ctx context.Context, a, b string, actor model.Actor) error {
	op := newOperation("Connect", actor, attribute.String("variable.a", a), attribute.String("variable.b", b))
	return w.mutate(ctx, op, func(g *model.Graph) error {
		for _, id := range []string{a, b} {
			if err := checkOwner(g, model.Ref{Kind: model.KindVariable, ID: id}, actor); err != nil {
				return err
			}
		}
		return g.Connect(a, b)
	})
}

// Disconnect removes the equivalence between two variables owned by actor.
func (w *Workbench) Disconnect(ctx context.Context, a, b string, actor model.Actor) error {
	op := newOperation("Disconnect", actor, attribute.String("variable.a", a), attribute.String("variable.b", b))
	return w.mutate(ctx, op, func(g *model.Graph) error {
		for _, id := range []string{a, b} {
			if err := checkOwner(g, model.Ref{Kind: model.KindVariable, ID: id}, actor); err != nil {
				return err
			}
		}
		g.Disconnect(a, b)
		return nil
	})
}

// Export prints a stored model with printer.
func (w *Workbench) Export(ctx context.Context, modelID string, out io.Writer, printer cellml.Printer) error {
	return w.view(ctx, newOperation("Export", "", attribute.String("model.id", modelID)), func(g *model.Graph) error {
		doc, err := cellml.ConvertModel(g, modelID)
		if err != nil {
			return err
		}
		return printer.Print(out, doc)
	})
}

// ModelSummary is one row of the model listing.
type ModelSummary struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Owner      model.Actor `json:"owner"`
	Components int         `json:"components"`
	Units      int         `json:"units"`
	Checked    bool        `json:"checked"`
	Valid      bool        `json:"valid"`
	CheckedAt  time.Time   `json:"checked_at,omitempty"`
	ErrorCount int         `json:"error_count"`
}

// Models lists the stored models visible to actor: public models and the
// actor's own private ones.
func (w *Workbench) Models(ctx context.Context, actor model.Actor) ([]ModelSummary, error) {
	var out []ModelSummary
	err := w.view(ctx, newOperation("Models", actor), func(g *model.Graph) error {
		for _, m := range g.Models() {
			if m.Private && m.Owner != actor {
				continue
			}
			summary := ModelSummary{
				ID:         m.ID,
				Name:       m.Name,
				Owner:      m.Owner,
				Components: len(m.ComponentIDs),
				Units:      len(m.CompoundUnitIDs),
			}
			if m.Validity != nil {
				summary.Checked = true
				summary.Valid = m.Validity.Valid
				summary.CheckedAt = m.Validity.CheckedAt
				summary.ErrorCount = m.Validity.ErrorCount
			}
			out = append(out, summary)
		}
		return nil
	})
	return out, err
}

// SymbolResult describes a compound unit's display symbol.
type SymbolResult struct {
	Name       string  `json:"name"`
	Symbol     string  `json:"symbol"`
	Formula    string  `json:"formula"`
	Multiplier float64 `json:"multiplier"`
}

// Symbol returns the symbol of a compound unit, rebuilding and storing it
// when it was invalidated.
func (w *Workbench) Symbol(ctx context.Context, id string) (SymbolResult, error) {
	var out SymbolResult
	op := newOperation("Symbol", "", attribute.String("unit.id", id))
	err := w.mutate(ctx, op, func(g *model.Graph) error {
		cu, ok := g.CompoundUnit(id)
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrNotFound, model.Ref{Kind: model.KindCompoundUnit, ID: id})
		}
		symbol := cu.Symbol
		if symbol == "" {
			var err error
			if symbol, err = units.UpdateSymbol(g, id); err != nil {
				return err
			}
		}
		formula, err := units.FormulaOf(g, id)
		if err != nil {
			return err
		}
		out = SymbolResult{Name: cu.Name, Symbol: symbol, Formula: formula.String(), Multiplier: formula.Multiplier}
		return nil
	})
	return out, err
}
