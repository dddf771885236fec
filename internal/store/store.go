// Package store holds the project graph. It is the single source of truth:
// every mutation elsewhere ends with a full refetch through it rather than a
// local patch, so views never see a blend of optimistic and server state.
package store

import (
	"context"
	"sync"

	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/logx"
)

// Store fetches and caches projects for the current session.
type Store struct {
	client *api.Client

	mu       sync.Mutex
	projects []api.Project
	active   *api.Project
	activeID int64
	gen      uint64
}

// New builds a store over the given client.
func New(client *api.Client) *Store {
	return &Store{client: client}
}

// FetchProjects replaces the cached project list with the server's.
func (s *Store) FetchProjects(ctx context.Context) ([]api.Project, error) {
	list, err := s.client.Projects(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.projects = list
	s.mu.Unlock()
	return list, nil
}

// CreateProject posts the pair and appends the created project only on
// success; failure leaves the list untouched.
func (s *Store) CreateProject(ctx context.Context, name, description string) (api.Project, error) {
	p, err := s.client.CreateProject(ctx, name, description)
	if err != nil {
		return api.Project{}, err
	}
	s.mu.Lock()
	s.projects = append(s.projects, p)
	s.mu.Unlock()
	return p, nil
}

// Activate selects a project and bumps the generation counter. The returned
// generation tags in-flight fetches so a response that arrives after the
// selection changed is dropped instead of written into stale state.
func (s *Store) Activate(id int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = id
	s.active = nil
	s.gen++
	return s.gen
}

// Deactivate clears the active project, invalidating outstanding fetches.
func (s *Store) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = 0
	s.active = nil
	s.gen++
}

// Generation returns the current selection generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// FetchProject fetches the full graph for the active project and applies it
// wholesale when the selection is still current. It reports whether the
// graph was applied.
func (s *Store) FetchProject(ctx context.Context, gen uint64) (api.Project, bool, error) {
	s.mu.Lock()
	id := s.activeID
	s.mu.Unlock()
	if id == 0 {
		return api.Project{}, false, nil
	}

	p, err := s.client.Project(ctx, id)
	if err != nil {
		return api.Project{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		logx.Debug().Int64("project", p.ID).Msg("dropping stale project graph")
		return p, false, nil
	}
	s.active = &p
	return p, true, nil
}

// Refresh refetches the active project's graph against the current
// generation. It is the consistency step every mutation finishes with.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	_, _, err := s.FetchProject(ctx, gen)
	return err
}

// Active returns a copy of the active project's graph, or nil before the
// first successful fetch.
func (s *Store) Active() *api.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	p := *s.active
	return &p
}

// ActiveID returns the selected project id, zero when none is selected.
func (s *Store) ActiveID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Projects returns the cached project list.
func (s *Store) Projects() []api.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Project, len(s.projects))
	copy(out, s.projects)
	return out
}
