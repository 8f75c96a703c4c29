package cellmlhub

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const membraneDocument = `
name: membrane_model
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
        initial_value: "-80"
        interface: public
  - name: leak
    parent: membrane
    variables:
      - name: V
        units: millivolt
        interface: public
        equivalent:
          - component: membrane
            variable: V
`

func newMemoryClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		Registerer: prometheus.NewRegistry(),
		Clock:      func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func importMembrane(t *testing.T, client *Client, actor string) string {
	t.Helper()
	result, err := client.Import(context.Background(), ImportRequest{
		Document: strings.NewReader(membraneDocument),
		Actor:    actor,
	})
	require.NoError(t, err)
	require.Empty(t, result.Warnings)
	return result.ModelID
}

func TestClientImportValidateAndList(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient(t)
	modelID := importMembrane(t, client, "alice")

	models, err := client.Models(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "membrane_model", models[0].Name)
	assert.False(t, models[0].Checked)

	result, err := client.Validate(ctx, ValidateRequest{Ref: Ref{ID: modelID}})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Zero(t, result.ErrorCount)

	models, err = client.Models(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, models[0].Checked)
	assert.True(t, models[0].Valid)
	assert.Equal(t, result.CheckedAt, models[0].CheckedAt)

	tree, err := client.Errors(ctx, Ref{ID: modelID})
	require.NoError(t, err)
	assert.Zero(t, tree.Count)
	assert.Empty(t, tree.Children)
}

func TestClientImportFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "membrane.yaml")
	require.NoError(t, os.WriteFile(path, []byte(membraneDocument), 0o644))

	client := newMemoryClient(t)
	result, err := client.Import(context.Background(), ImportRequest{Path: path, Format: "yml", Actor: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ModelID)

	_, err = client.Import(context.Background(), ImportRequest{Actor: "alice"})
	require.Error(t, err)
	_, err = client.Import(context.Background(), ImportRequest{Path: path, Format: "sbml"})
	require.ErrorContains(t, err, "unsupported document format")
}

func TestClientCloneCopyAndDelete(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient(t)
	modelID := importMembrane(t, client, "alice")

	cloneID, err := client.Clone(ctx, CloneRequest{ModelID: modelID, Actor: "bob", RemoveSuffix: true})
	require.NoError(t, err)
	assert.NotEqual(t, modelID, cloneID)

	copied, err := client.Copy(ctx, CopyRequest{Source: Ref{Kind: "model", ID: modelID}, Strategy: "link", Actor: "bob"})
	require.NoError(t, err)
	assert.Equal(t, Ref{Kind: "model", ID: copied.ID}, copied)

	models, err := client.Models(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, models, 3)

	_, err = client.Copy(ctx, CopyRequest{
		Source:   Ref{Kind: "model", ID: modelID},
		Target:   Ref{ID: cloneID},
		Strategy: "shallow",
		Actor:    "bob",
	})
	require.ErrorContains(t, err, "does not take a target")

	_, err = client.Copy(ctx, CopyRequest{Source: Ref{Kind: "model", ID: modelID}, Strategy: "sideways"})
	require.ErrorContains(t, err, "unsupported copy strategy")

	_, err = client.Delete(ctx, DeleteRequest{Ref: Ref{Kind: "model", ID: modelID}, Actor: "bob"})
	require.ErrorIs(t, err, ErrNotOwner)

	removed, err := client.Delete(ctx, DeleteRequest{Ref: Ref{Kind: "model", ID: cloneID}, Actor: "bob", Mode: "deep"})
	require.NoError(t, err)
	assert.Contains(t, removed, Ref{Kind: "model", ID: cloneID})

	models, err = client.Models(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, models, 2)

	_, err = client.Delete(ctx, DeleteRequest{Ref: Ref{Kind: "model", ID: copied.ID}, Actor: "bob", Mode: "wipe"})
	require.ErrorContains(t, err, "unsupported delete mode")
}

func TestClientExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient(t)
	modelID := importMembrane(t, client, "alice")

	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, client.Export(ctx, ExportRequest{ModelID: modelID, Path: path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: membrane_model")

	again, err := client.Import(ctx, ImportRequest{Path: path, Actor: "carol"})
	require.NoError(t, err)
	assert.Empty(t, again.Warnings)

	var buf strings.Builder
	require.NoError(t, client.Export(ctx, ExportRequest{ModelID: again.ModelID, Out: &buf}))
	assert.Equal(t, string(data), buf.String())

	err = client.Export(ctx, ExportRequest{ModelID: "missing", Out: &buf})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClientWriteMetrics(t *testing.T) {
	client := newMemoryClient(t)
	importMembrane(t, client, "alice")

	path := filepath.Join(t.TempDir(), "cellmlhub.prom")
	require.NoError(t, client.WriteMetrics(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cellmlhub_imports_total")
}

func TestNewRejectsUnknownStore(t *testing.T) {
	_, err := New(Options{StoreKind: "etcd", Registerer: prometheus.NewRegistry()})
	require.ErrorContains(t, err, "unsupported store backend")
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		want    Ref
		wantErr bool
	}{
		{in: "abc", want: Ref{Kind: "model", ID: "abc"}},
		{in: "variable:v1", want: Ref{Kind: "variable", ID: "v1"}},
		{in: "compoundunit:cu", want: Ref{Kind: "compoundunit", ID: "cu"}},
		{in: "", wantErr: true},
		{in: "planet:p", wantErr: true},
		{in: "component:", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRef(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
