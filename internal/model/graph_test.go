package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildNested(t *testing.T) (*Graph, *Model) {
	t.Helper()
	g := NewGraph()
	m := &Model{Named: Named{ID: "m1", Name: "model"}}
	parent := &Component{Named: Named{ID: "c1", Name: "outer"}}
	child := &Component{Named: Named{ID: "c2", Name: "inner"}, ParentID: "c1"}
	m.ComponentIDs = []string{"c1", "c2"}
	for _, e := range []Entity{m, parent, child} {
		require.NoError(t, g.Add(e))
	}
	require.NoError(t, g.Add(&Variable{Named: Named{ID: "v1", Name: "x"}, ComponentID: "c1"}))
	require.NoError(t, g.Add(&Variable{Named: Named{ID: "v2", Name: "y"}, ComponentID: "c2"}))
	require.NoError(t, g.Add(&Math{Named: Named{ID: "mm1"}, ComponentID: "c1"}))
	return g, m
}

func TestGraphAddRejectsDuplicateIDs(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add(&Component{Named: Named{ID: "c1"}}))
	err := g.Add(&Component{Named: Named{ID: "c1"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestGraphAddAssignsID(t *testing.T) {
	g := NewGraph()
	c := &Component{Named: Named{Name: "c"}}
	require.NoError(t, g.Add(c))
	assert.NotEmpty(t, c.ID)
	got, ok := g.Component(c.ID)
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestEncapsulatedComponentsAreRootsOnly(t *testing.T) {
	g, m := buildNested(t)

	assert.Len(t, g.ModelComponents(m.ID), 2)
	roots := g.EncapsulatedComponents(m.ID)
	require.Len(t, roots, 1)
	assert.Equal(t, "outer", roots[0].Name)

	children := g.ChildComponents("c1")
	require.Len(t, children, 1)
	assert.Equal(t, "inner", children[0].Name)
}

func TestConnectIsSymmetricAndIdempotent(t *testing.T) {
	g, _ := buildNested(t)
	require.NoError(t, g.Connect("v1", "v2"))
	require.NoError(t, g.Connect("v2", "v1"))

	v1, _ := g.Variable("v1")
	v2, _ := g.Variable("v2")
	assert.Equal(t, []string{"v2"}, v1.EquivalentIDs)
	assert.Equal(t, []string{"v1"}, v2.EquivalentIDs)

	g.Disconnect("v1", "v2")
	assert.Empty(t, v1.EquivalentIDs)
	assert.Empty(t, v2.EquivalentIDs)
}

func TestConnectUnknownVariable(t *testing.T) {
	g, _ := buildNested(t)
	err := g.Connect("v1", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRefsFollowDescriptorTable(t *testing.T) {
	g, _ := buildNested(t)

	variables, err := FieldOf(KindComponent, "variables")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, g.Refs(Ref{Kind: KindComponent, ID: "c1"}, variables))

	models, err := FieldOf(KindComponent, "models")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, g.Refs(Ref{Kind: KindComponent, ID: "c2"}, models))

	down := g.Downstream(Ref{Kind: KindComponent, ID: "c1"})
	assert.ElementsMatch(t, []Ref{
		{Kind: KindComponent, ID: "c2"},
		{Kind: KindVariable, ID: "v1"},
		{Kind: KindMath, ID: "mm1"},
	}, down)

	up := g.Upstream(Ref{Kind: KindComponent, ID: "c2"})
	assert.ElementsMatch(t, []Ref{
		{Kind: KindComponent, ID: "c1"},
		{Kind: KindModel, ID: "m1"},
	}, up)
}

func TestAttachAndDetachReverseRelations(t *testing.T) {
	g, _ := buildNested(t)
	require.NoError(t, g.Add(&Model{Named: Named{ID: "m2"}}))

	models, err := FieldOf(KindComponent, "models")
	require.NoError(t, err)
	require.NoError(t, g.Attach(Ref{Kind: KindComponent, ID: "c1"}, models, "m2"))
	m2, _ := g.Model("m2")
	assert.Equal(t, []string{"c1"}, m2.ComponentIDs)

	g.Detach(Ref{Kind: KindComponent, ID: "c1"}, models, "m2")
	assert.Empty(t, m2.ComponentIDs)

	variables, err := FieldOf(KindComponent, "variables")
	require.NoError(t, err)
	require.NoError(t, g.Attach(Ref{Kind: KindComponent, ID: "c2"}, variables, "v1"))
	v1, _ := g.Variable("v1")
	assert.Equal(t, "c2", v1.ComponentID)
}

func TestUnknownKindIsUnsupported(t *testing.T) {
	_, err := ParseKind("widget")
	require.ErrorIs(t, err, ErrUnsupportedKind)
	_, err = Schema(Kind("widget"))
	require.ErrorIs(t, err, ErrUnsupportedKind)
	_, err = NewGraph().MustGet(Ref{Kind: "widget", ID: "x"})
	require.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestCloneAndDiff(t *testing.T) {
	g, _ := buildNested(t)
	order := 2
	require.NoError(t, g.Add(&Reset{Named: Named{ID: "r1"}, ComponentID: "c1", Order: &order}))

	work := g.Clone()
	assert.True(t, Diff(g, work).Empty(), "unchanged clone should produce no writes")

	c1, _ := work.Component("c1")
	c1.Name = "renamed"
	require.NoError(t, work.Add(&Variable{Named: Named{ID: "v3", Name: "z"}, ComponentID: "c1"}))
	work.Remove(Ref{Kind: KindMath, ID: "mm1"})
	r1, _ := work.Reset("r1")
	*r1.Order = 5

	original, _ := g.Component("c1")
	assert.Equal(t, "outer", original.Name)
	originalReset, _ := g.Reset("r1")
	assert.Equal(t, 2, *originalReset.Order)

	cs := Diff(g, work)
	var upserted []Ref
	for _, e := range cs.Upserts {
		upserted = append(upserted, RefOf(e))
	}
	assert.ElementsMatch(t, []Ref{
		{Kind: KindComponent, ID: "c1"},
		{Kind: KindVariable, ID: "v3"},
		{Kind: KindReset, ID: "r1"},
	}, upserted)
	assert.Equal(t, []Ref{{Kind: KindMath, ID: "mm1"}}, cs.Deletes)
}
