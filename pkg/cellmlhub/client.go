package cellmlhub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"cellmlhub/internal/cellml"
	"cellmlhub/internal/clone"
	"cellmlhub/internal/model"
	"cellmlhub/internal/observability"
	"cellmlhub/internal/platform"
	"cellmlhub/internal/storage"
	"cellmlhub/internal/validate"
)

const (
	defaultDBPath = "cellmlhub.db"
	FormatYAML    = "yaml"
)

type (
	Ref              = model.Ref
	ImportResult     = platform.ImportResult
	ValidationResult = platform.ValidationResult
	ModelSummary     = platform.ModelSummary
	SymbolResult     = platform.SymbolResult
	ErrorNode        = validate.ErrorNode
)

var (
	ErrNotFound            = model.ErrNotFound
	ErrNotOwner            = platform.ErrNotOwner
	ErrUnresolvedReference = clone.ErrUnresolvedReference
)

type Options struct {
	// StoreKind is memory, sqlite or postgres. Empty picks the build default.
	StoreKind string
	// DBPath is the SQLite database file.
	DBPath string
	// DSN is the PostgreSQL connection string.
	DSN            string
	Logger         *zerolog.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
	Clock          func() time.Time
}

type Client struct {
	store   storage.Store
	metrics *observability.Collector
	bench   *platform.Workbench
}

type ImportRequest struct {
	// Path is read when Document is nil.
	Path     string
	Document io.Reader
	Format   string
	Actor    string
}

type ValidateRequest struct {
	Ref Ref
}

type CopyRequest struct {
	Source   Ref
	Strategy string
	Actor    string
	// Target, when set, receives the relations of Source instead of a new
	// copy being made. Only link and deep strategies accept a target.
	Target Ref
}

type CloneRequest struct {
	ModelID      string
	Actor        string
	Suffix       string
	RemoveSuffix bool
}

type DeleteRequest struct {
	Ref   Ref
	Mode  string
	Actor string
}

type RenameUnitsRequest struct {
	UnitID string
	Name   string
	Actor  string
}

type ConnectRequest struct {
	VariableA string
	VariableB string
	Actor     string
}

type ExportRequest struct {
	ModelID string
	Format  string
	// Out is written to when set, otherwise Path is created.
	Out  io.Writer
	Path string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	location := opts.DBPath
	if storeKind == "postgres" {
		location = opts.DSN
	} else if location == "" {
		location = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, location)
	if err != nil {
		return nil, err
	}
	metrics, err := observability.NewCollector(opts.Registerer)
	if err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}

	return &Client{
		store:   store,
		metrics: metrics,
		bench: platform.NewWorkbench(platform.Config{
			Store:          store,
			Logger:         opts.Logger,
			Metrics:        metrics,
			TracerProvider: opts.TracerProvider,
			Clock:          opts.Clock,
		}),
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureWorkbench(ctx)
	return err
}

// WriteMetrics dumps the client's metrics in the Prometheus text format.
func (c *Client) WriteMetrics(path string) error {
	return c.metrics.WriteTextfile(path)
}

func (c *Client) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	parser, err := formatFromName(req.Format)
	if err != nil {
		return ImportResult{}, err
	}
	doc := req.Document
	if doc == nil {
		if req.Path == "" {
			return ImportResult{}, errors.New("import requires a document or a path")
		}
		f, err := os.Open(req.Path)
		if err != nil {
			return ImportResult{}, err
		}
		defer f.Close()
		doc = f
	}
	return w.ImportDocument(ctx, doc, parser, model.Actor(req.Actor))
}

// Models lists the models visible to actor.
func (c *Client) Models(ctx context.Context, actor string) ([]ModelSummary, error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return nil, err
	}
	return w.Models(ctx, model.Actor(actor))
}

// Validate runs the full model validation for a model ref and the local
// validator for any other kind.
func (c *Client) Validate(ctx context.Context, req ValidateRequest) (ValidationResult, error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return ValidationResult{}, err
	}
	if req.Ref.Kind == "" || req.Ref.Kind == model.KindModel {
		return w.ValidateModel(ctx, req.Ref.ID)
	}
	return w.ValidateEntity(ctx, req.Ref)
}

func (c *Client) Errors(ctx context.Context, ref Ref) (*ErrorNode, error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return nil, err
	}
	if ref.Kind == "" {
		ref.Kind = model.KindModel
	}
	return w.Errors(ctx, ref)
}

// Copy returns the ref of the new entity, or the target when one was given.
func (c *Client) Copy(ctx context.Context, req CopyRequest) (Ref, error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return Ref{}, err
	}
	strategy, err := clone.ParseStrategy(req.Strategy)
	if err != nil {
		return Ref{}, err
	}
	actor := model.Actor(req.Actor)
	if req.Target.ID == "" {
		return w.Copy(ctx, req.Source, actor, strategy)
	}
	if req.Target.Kind == "" {
		req.Target.Kind = req.Source.Kind
	}
	switch strategy {
	case clone.StrategyLink:
		err = w.Link(ctx, req.Source, req.Target, actor)
	case clone.StrategyDeep:
		err = w.DeepCopy(ctx, req.Source, req.Target, actor)
	default:
		return Ref{}, fmt.Errorf("%s copy does not take a target", strategy)
	}
	if err != nil {
		return Ref{}, err
	}
	return req.Target, nil
}

// Clone copies a whole model and returns the new model id.
func (c *Client) Clone(ctx context.Context, req CloneRequest) (string, error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return "", err
	}
	return w.CloneModel(ctx, req.ModelID, model.Actor(req.Actor), clone.Options{
		Suffix:       req.Suffix,
		RemoveSuffix: req.RemoveSuffix,
	})
}

func (c *Client) Delete(ctx context.Context, req DeleteRequest) ([]Ref, error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return nil, err
	}
	mode, err := clone.ParseDeleteMode(req.Mode)
	if err != nil {
		return nil, err
	}
	return w.Delete(ctx, req.Ref, model.Actor(req.Actor), mode)
}

func (c *Client) RenameUnits(ctx context.Context, req RenameUnitsRequest) (SymbolResult, error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return SymbolResult{}, err
	}
	if err := w.RenameCompoundUnit(ctx, req.UnitID, req.Name, model.Actor(req.Actor)); err != nil {
		return SymbolResult{}, err
	}
	return w.Symbol(ctx, req.UnitID)
}

func (c *Client) Connect(ctx context.Context, req ConnectRequest) error {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return err
	}
	return w.Connect(ctx, req.VariableA, req.VariableB, model.Actor(req.Actor))
}

func (c *Client) Disconnect(ctx context.Context, req ConnectRequest) error {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return err
	}
	return w.Disconnect(ctx, req.VariableA, req.VariableB, model.Actor(req.Actor))
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (err error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return err
	}
	printer, err := formatFromName(req.Format)
	if err != nil {
		return err
	}
	out := req.Out
	if out == nil {
		if req.Path == "" {
			return errors.New("export requires a writer or a path")
		}
		f, createErr := os.Create(req.Path)
		if createErr != nil {
			return createErr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}
	return w.Export(ctx, req.ModelID, out, printer)
}

func (c *Client) Symbol(ctx context.Context, unitID string) (SymbolResult, error) {
	w, err := c.ensureWorkbench(ctx)
	if err != nil {
		return SymbolResult{}, err
	}
	return w.Symbol(ctx, unitID)
}

func (c *Client) ensureWorkbench(ctx context.Context) (*platform.Workbench, error) {
	if err := c.bench.Init(ctx); err != nil {
		return nil, err
	}
	return c.bench, nil
}

// ParseRef reads "kind:id". A bare id addresses a model.
func ParseRef(value string) (Ref, error) {
	kindName, id, found := strings.Cut(value, ":")
	if !found {
		if value == "" {
			return Ref{}, errors.New("empty entity reference")
		}
		return Ref{Kind: model.KindModel, ID: value}, nil
	}
	kind, err := model.ParseKind(kindName)
	if err != nil {
		return Ref{}, err
	}
	if id == "" {
		return Ref{}, fmt.Errorf("entity reference %q has no id", value)
	}
	return Ref{Kind: kind, ID: id}, nil
}

type documentFormat interface {
	cellml.Parser
	cellml.Printer
}

func formatFromName(name string) (documentFormat, error) {
	switch strings.ToLower(name) {
	case "", FormatYAML, "yml":
		return cellml.YAMLFormat{}, nil
	default:
		return nil, fmt.Errorf("unsupported document format: %s", name)
	}
}
