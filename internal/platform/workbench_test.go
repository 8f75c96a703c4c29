package platform

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"cellmlhub/internal/cellml"
	"cellmlhub/internal/clone"
	"cellmlhub/internal/model"
	"cellmlhub/internal/observability"
	"cellmlhub/internal/storage"
	"cellmlhub/internal/units"
)

const hhDocument = `
name: hh
units:
  - name: millivolt
    factors:
      - reference: volt
        prefix: milli
components:
  - name: membrane
    variables:
      - name: V
        units: millivolt
        initial_value: "-75"
        interface: public
  - name: channel
    parent: membrane
    variables:
      - name: V
        units: millivolt
        interface: public
        equivalent:
          - component: membrane
            variable: V
`

const loopDocument = `
name: loop
components:
  - name: one
    variables:
      - name: A
        units: second
        equivalent: [{component: two, variable: B}]
  - name: two
    variables:
      - name: B
        units: second
        equivalent: [{component: three, variable: C}]
  - name: three
    variables:
      - name: C
        units: second
        equivalent: [{component: one, variable: A}]
`

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type bench struct {
	*Workbench
	store    *storage.MemoryStore
	metrics  *observability.Collector
	recorder *tracetest.SpanRecorder
	logs     *bytes.Buffer
}

func newBench(t *testing.T) *bench {
	t.Helper()
	collector, err := observability.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	recorder := tracetest.NewSpanRecorder()
	logs := &bytes.Buffer{}
	logger := zerolog.New(logs)
	store := storage.NewMemoryStore()

	w := NewWorkbench(Config{
		Store:          store,
		Logger:         &logger,
		Metrics:        collector,
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
		Clock:          func() time.Time { return fixedNow },
	})
	require.NoError(t, w.Init(context.Background()))
	return &bench{Workbench: w, store: store, metrics: collector, recorder: recorder, logs: logs}
}

func (b *bench) importDoc(t *testing.T, text string, actor model.Actor) ImportResult {
	t.Helper()
	result, err := b.ImportDocument(context.Background(), strings.NewReader(text), cellml.YAMLFormat{}, actor)
	require.NoError(t, err)
	return result
}

func (b *bench) graph(t *testing.T) *model.Graph {
	t.Helper()
	g, err := b.store.LoadGraph(context.Background())
	require.NoError(t, err)
	return g
}

func (b *bench) variable(t *testing.T, modelID, component, name string) *model.Variable {
	t.Helper()
	g := b.graph(t)
	c, ok := g.ModelComponentByName(modelID, component)
	require.True(t, ok, "component %s", component)
	v, ok := g.ComponentVariableByName(c.ID, name)
	require.True(t, ok, "variable %s", name)
	return v
}

func TestInitSeedsStandardUnitsOnce(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()

	stored, err := b.store.ListEntities(ctx, model.KindCompoundUnit)
	require.NoError(t, err)
	assert.Len(t, stored, len(units.Standard))

	again := NewWorkbench(Config{Store: b.store})
	require.NoError(t, again.Init(ctx))
	stored, err = b.store.ListEntities(ctx, model.KindCompoundUnit)
	require.NoError(t, err)
	assert.Len(t, stored, len(units.Standard))
}

func TestOperationsRequireInit(t *testing.T) {
	w := NewWorkbench(Config{Store: storage.NewMemoryStore()})
	_, err := w.Models(context.Background(), "alice")
	require.ErrorIs(t, err, storage.ErrNotInitialized)

	err = NewWorkbench(Config{}).Init(context.Background())
	require.Error(t, err)
}

func TestImportAndValidateModel(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	imported := b.importDoc(t, hhDocument, "alice")
	assert.Empty(t, imported.Warnings)

	result, err := b.ValidateModel(ctx, imported.ModelID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Zero(t, result.Issues)
	assert.Equal(t, fixedNow, result.CheckedAt)

	stored, ok, err := b.store.GetEntity(ctx, model.Ref{Kind: model.KindModel, ID: imported.ModelID})
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, stored.Base().Validity)
	assert.True(t, stored.Base().Validity.Valid)

	models, err := b.Models(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "hh", models[0].Name)
	assert.True(t, models[0].Checked)
	assert.Equal(t, 2, models[0].Components)

	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.Validations.WithLabelValues("model", "valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.Imports.WithLabelValues("false")))
	assert.Contains(t, b.logs.String(), `"op":"ValidateModel"`)
}

func TestValidationFindingsAreStored(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	imported := b.importDoc(t, strings.Replace(hhDocument, "- name: V\n        units: millivolt\n        initial_value", "- name: 9V\n        units: millivolt\n        initial_value", 1), "alice")

	result, err := b.ValidateModel(ctx, imported.ModelID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, 1, result.ErrorCount)
	require.NotNil(t, result.Tree)

	tree, err := b.Errors(ctx, model.Ref{Kind: model.KindModel, ID: imported.ModelID})
	require.NoError(t, err)
	assert.Equal(t, result.Tree, tree)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "membrane", tree.Children[0].Name)

	v := b.variable(t, imported.ModelID, "membrane", "9V")
	single, err := b.ValidateEntity(ctx, model.Ref{Kind: model.KindVariable, ID: v.ID})
	require.NoError(t, err)
	assert.False(t, single.Valid)
	assert.Equal(t, "11.1.1.1", single.Tree.Issues[0].SpecRef)
}

func TestValidateModelReportsCycles(t *testing.T) {
	b := newBench(t)
	imported := b.importDoc(t, loopDocument, "alice")

	result, err := b.ValidateModel(context.Background(), imported.ModelID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Cycles, 1)
	assert.Equal(t, "(one, A) -> (two, B) -> (three, C) -> (one, A)", result.Cycles[0].Description)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.CyclesDetected))
}

func TestCloneModelForAnotherActor(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	imported := b.importDoc(t, hhDocument, "alice")

	cloneID, err := b.CloneModel(ctx, imported.ModelID, "bob", clone.Options{RemoveSuffix: true})
	require.NoError(t, err)
	assert.NotEqual(t, imported.ModelID, cloneID)

	v := b.variable(t, cloneID, "channel", "V")
	assert.Equal(t, model.Actor("bob"), v.Owner)
	membraneV := b.variable(t, cloneID, "membrane", "V")
	assert.Equal(t, []string{membraneV.ID}, v.EquivalentIDs)

	result, err := b.ValidateModel(ctx, cloneID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.Clones.WithLabelValues("ok")))
}

func TestFailedCloneLeavesStoreUntouched(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	hh := b.importDoc(t, hhDocument, "alice")
	other := b.importDoc(t, "name: other\ncomponents:\n  - name: pump\n    variables:\n      - name: P\n        units: second\n", "alice")

	v := b.variable(t, hh.ModelID, "membrane", "V")
	p := b.variable(t, other.ModelID, "pump", "P")
	require.NoError(t, b.Connect(ctx, v.ID, p.ID, "alice"))

	before := b.graph(t)
	_, err := b.CloneModel(ctx, hh.ModelID, "alice", clone.Options{})
	require.ErrorIs(t, err, clone.ErrUnresolvedReference)
	assert.True(t, model.Diff(before, b.graph(t)).Empty())

	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.Clones.WithLabelValues("error")))
	spans := b.recorder.Ended()
	last := spans[len(spans)-1]
	assert.Equal(t, "workbench.CloneModel", last.Name())
	assert.Equal(t, codes.Error, last.Status().Code)
}

func TestOwnershipIsEnforced(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	imported := b.importDoc(t, hhDocument, "alice")
	g := b.graph(t)
	millivolt, ok := g.ModelUnitByName(imported.ModelID, "millivolt")
	require.True(t, ok)
	v := b.variable(t, imported.ModelID, "membrane", "V")
	cv := b.variable(t, imported.ModelID, "channel", "V")

	_, err := b.Delete(ctx, model.Ref{Kind: model.KindModel, ID: imported.ModelID}, "bob", clone.DeleteDeep)
	require.ErrorIs(t, err, ErrNotOwner)
	err = b.RenameCompoundUnit(ctx, millivolt.ID, "mvolt", "bob")
	require.ErrorIs(t, err, ErrNotOwner)
	err = b.Disconnect(ctx, v.ID, cv.ID, "bob")
	require.ErrorIs(t, err, ErrNotOwner)

	assert.True(t, model.Diff(g, b.graph(t)).Empty())
}

func TestStandardUnitsAreImmutableForEveryActor(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	imported := b.importDoc(t, hhDocument, "alice")
	before := b.graph(t)
	millivolt, ok := before.ModelUnitByName(imported.ModelID, "millivolt")
	require.True(t, ok)
	coulomb := model.Ref{Kind: model.KindCompoundUnit, ID: units.StandardID("coulomb")}
	factors := before.Factors(coulomb.ID)
	require.NotEmpty(t, factors)
	factor := model.Ref{Kind: model.KindUnit, ID: factors[0].ID}

	for _, actor := range []model.Actor{"", "alice"} {
		_, err := b.Delete(ctx, factor, actor, clone.DeleteBase)
		require.ErrorIs(t, err, units.ErrStandardUnitImmutable)
		_, err = b.Delete(ctx, coulomb, actor, clone.DeleteDeep)
		require.ErrorIs(t, err, units.ErrStandardUnitImmutable)
		err = b.RenameCompoundUnit(ctx, coulomb.ID, "charge", actor)
		require.ErrorIs(t, err, units.ErrStandardUnitImmutable)
		err = b.DeepCopy(ctx, model.Ref{Kind: model.KindCompoundUnit, ID: millivolt.ID}, coulomb, actor)
		require.ErrorIs(t, err, units.ErrStandardUnitImmutable)
		err = b.Link(ctx, model.Ref{Kind: model.KindCompoundUnit, ID: millivolt.ID}, coulomb, actor)
		require.ErrorIs(t, err, units.ErrStandardUnitImmutable)
	}

	assert.True(t, model.Diff(before, b.graph(t)).Empty())
}

func TestDeleteRenameAndSymbol(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	imported := b.importDoc(t, hhDocument, "alice")
	millivolt, ok := b.graph(t).ModelUnitByName(imported.ModelID, "millivolt")
	require.True(t, ok)

	require.NoError(t, b.RenameCompoundUnit(ctx, millivolt.ID, "mvolt", "alice"))
	symbol, err := b.Symbol(ctx, millivolt.ID)
	require.NoError(t, err)
	assert.Equal(t, "mvolt", symbol.Name)
	assert.Equal(t, "m(V)", symbol.Symbol)
	assert.Equal(t, "mV", symbol.Formula)

	err = b.RenameCompoundUnit(ctx, millivolt.ID, "second", "alice")
	require.ErrorIs(t, err, units.ErrStandardNameCollision)

	removed, err := b.Delete(ctx, model.Ref{Kind: model.KindModel, ID: imported.ModelID}, "alice", clone.DeleteDeep)
	require.NoError(t, err)
	assert.Contains(t, removed, model.Ref{Kind: model.KindModel, ID: imported.ModelID})
	g := b.graph(t)
	assert.Zero(t, g.Len(model.KindModel))
	assert.Zero(t, g.Len(model.KindVariable))
	assert.Equal(t, float64(len(removed)), testutil.ToFloat64(b.metrics.Deletes.WithLabelValues("deep")))
}

func TestConnectAndDisconnect(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	imported := b.importDoc(t, hhDocument, "alice")
	v := b.variable(t, imported.ModelID, "membrane", "V")
	cv := b.variable(t, imported.ModelID, "channel", "V")

	require.NoError(t, b.Disconnect(ctx, v.ID, cv.ID, "alice"))
	assert.Empty(t, b.variable(t, imported.ModelID, "membrane", "V").EquivalentIDs)

	require.NoError(t, b.Connect(ctx, cv.ID, v.ID, "alice"))
	assert.Equal(t, []string{cv.ID}, b.variable(t, imported.ModelID, "membrane", "V").EquivalentIDs)
}

func TestCopyRecordsMetrics(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	imported := b.importDoc(t, hhDocument, "alice")

	cp, err := b.Copy(ctx, model.Ref{Kind: model.KindModel, ID: imported.ModelID}, "bob", clone.StrategyLink)
	require.NoError(t, err)
	e, ok, err := b.store.GetEntity(ctx, cp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.Actor("bob"), e.Base().Owner)
	assert.Len(t, e.(*model.Model).ComponentIDs, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.Copies.WithLabelValues("link")))

	err = b.Link(ctx, model.Ref{Kind: model.KindModel, ID: imported.ModelID}, cp, "carol")
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestExportRoundTrip(t *testing.T) {
	b := newBench(t)
	ctx := context.Background()
	imported := b.importDoc(t, hhDocument, "alice")

	var out bytes.Buffer
	require.NoError(t, b.Export(ctx, imported.ModelID, &out, cellml.YAMLFormat{}))
	assert.Contains(t, out.String(), "name: hh")

	again := b.importDoc(t, out.String(), "bob")
	assert.Empty(t, again.Warnings)
	result, err := b.ValidateModel(ctx, again.ModelID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
