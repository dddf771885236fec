// Package analysis triggers analysis runs against the active project.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/logx"
	"github.com/dataquill/quill/internal/store"
)

// Kind is one entry in the fixed analysis catalog.
type Kind struct {
	ID          string
	Name        string
	Description string
}

var catalog = []Kind{
	{ID: "eda", Name: "Exploratory Analysis", Description: "Comprehensive data exploration and summary statistics"},
	{ID: "statistical", Name: "Statistical Tests", Description: "Hypothesis testing and statistical significance"},
	{ID: "clustering", Name: "Clustering", Description: "Identify patterns and groups in your data"},
	{ID: "timeseries", Name: "Time Series", Description: "Analyze trends and seasonality over time"},
}

// Catalog returns the four analysis kinds in fixed order.
func Catalog() []Kind {
	out := make([]Kind, len(catalog))
	copy(out, catalog)
	return out
}

// ErrNoDataSources is the local rejection for a project without data; no
// request is issued.
var ErrNoDataSources = errors.New("analysis: connect a data source first")

// ErrRunInProgress is the in-flight guard rejection. One run per runner
// instance at a time; this is a client-side guarantee, the server does not
// serialize runs itself.
var ErrRunInProgress = errors.New("analysis: a run is already in progress")

// Runner triggers named analysis kinds and refetches the graph on success.
type Runner struct {
	client *api.Client
	store  *store.Store

	mu      sync.Mutex
	running bool
}

// New builds a runner.
func New(client *api.Client, st *store.Store) *Runner {
	return &Runner{client: client, store: st}
}

// Running reports whether a run is outstanding.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Run triggers one analysis of the given kind, named after it.
func (r *Runner) Run(ctx context.Context, kindID string) (api.Analysis, error) {
	return r.RunNamed(ctx, kindID+" Analysis", kindID)
}

// RunNamed triggers one analysis with an explicit name. The call blocks
// until the server returns the computed Analysis with its insights, then
// refetches the project so every view sees the fresh graph.
func (r *Runner) RunNamed(ctx context.Context, name, kindID string) (api.Analysis, error) {
	if _, ok := kindByID(kindID); !ok {
		return api.Analysis{}, fmt.Errorf("analysis: unknown kind %q", kindID)
	}

	project := r.store.Active()
	if project == nil || len(project.DataSources) == 0 {
		return api.Analysis{}, ErrNoDataSources
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return api.Analysis{}, ErrRunInProgress
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	a, err := r.client.Analyze(ctx, project.ID, api.AnalyzeRequest{
		Name:         name,
		AnalysisType: kindID,
		Parameters:   map[string]any{},
	})
	if err != nil {
		return api.Analysis{}, err
	}
	logx.Info().Str("kind", kindID).Int64("analysis", a.ID).Int("insights", len(a.Insights)).Msg("analysis complete")

	if err := r.store.Refresh(ctx); err != nil {
		return a, fmt.Errorf("refresh project: %w", err)
	}
	return a, nil
}

func kindByID(id string) (Kind, bool) {
	for _, k := range catalog {
		if k.ID == id {
			return k, true
		}
	}
	return Kind{}, false
}
