// Package story assembles and submits narrative component sets.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/logx"
	"github.com/dataquill/quill/internal/store"
)

// ErrBlankTitle is the local rejection for an empty title.
var ErrBlankTitle = errors.New("story: title is blank")

// ErrNoAnalyses is the local rejection when the project has nothing to
// build a story from.
var ErrNoAnalyses = errors.New("story: no analyses available")

// ErrCreateInProgress is the in-flight guard rejection.
var ErrCreateInProgress = errors.New("story: a story creation is already in progress")

// ErrFormatUnavailable rejects an export format the story was not created with.
var ErrFormatUnavailable = errors.New("story: export format not available")

// exportFormats are fixed at creation time.
var exportFormats = []string{"pdf", "html"}

const (
	insightsPerAnalysis = 3
	maxComponents       = 5
)

// BuildComponents applies the diversity heuristic: the first three insights
// of each analysis, concatenated in analysis order, truncated to five, each
// wrapped as a component titled after its owning analysis. The result is a
// point-in-time snapshot; it never re-syncs if the analyses later change.
func BuildComponents(analyses []api.Analysis) []api.Component {
	var components []api.Component
	for _, a := range analyses {
		insights := a.Insights
		if len(insights) > insightsPerAnalysis {
			insights = insights[:insightsPerAnalysis]
		}
		for _, in := range insights {
			components = append(components, api.Component{
				Type:       "insight",
				AnalysisID: a.ID,
				Insight:    in,
				Title:      fmt.Sprintf("Insight from %s", a.Name),
			})
		}
	}
	if len(components) > maxComponents {
		components = components[:maxComponents]
	}
	return components
}

// Composer creates stories from the active project's analyses.
type Composer struct {
	client *api.Client
	store  *store.Store

	mu       sync.Mutex
	creating bool
}

// New builds a composer.
func New(client *api.Client, st *store.Store) *Composer {
	return &Composer{client: client, store: st}
}

// Creating reports whether a creation is outstanding.
func (c *Composer) Creating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creating
}

// Create assembles the component snapshot and submits the story. Blank
// titles and projects without analyses are rejected before any network
// call. Narrative text is generated entirely server-side.
func (c *Composer) Create(ctx context.Context, title string) (api.Story, error) {
	if strings.TrimSpace(title) == "" {
		return api.Story{}, ErrBlankTitle
	}
	project := c.store.Active()
	if project == nil || len(project.Analyses) == 0 {
		return api.Story{}, ErrNoAnalyses
	}

	c.mu.Lock()
	if c.creating {
		c.mu.Unlock()
		return api.Story{}, ErrCreateInProgress
	}
	c.creating = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.creating = false
		c.mu.Unlock()
	}()

	s, err := c.client.CreateStory(ctx, project.ID, api.StoryRequest{
		Title:         title,
		Components:    BuildComponents(project.Analyses),
		ExportFormats: exportFormats,
	})
	if err != nil {
		return api.Story{}, err
	}
	logx.Info().Int64("story", s.ID).Str("title", title).Msg("story created")

	if err := c.store.Refresh(ctx); err != nil {
		return s, fmt.Errorf("refresh project: %w", err)
	}
	return s, nil
}

// Export fetches the rendered artifact for a story in one of its formats.
// The client does no rendering of its own.
func (c *Composer) Export(ctx context.Context, s api.Story, format string) ([]byte, error) {
	ok := false
	for _, f := range s.ExportFormats {
		if f == format {
			ok = true
			break
		}
	}
	if !ok {
		return nil, ErrFormatUnavailable
	}
	return c.client.ExportStory(ctx, c.store.ActiveID(), s.ID, format)
}
