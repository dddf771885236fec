// Package assistant manages one conversational Q&A session per project.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dataquill/quill/internal/analysis"
	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/history"
	"github.com/dataquill/quill/internal/logx"
	"github.com/dataquill/quill/internal/store"
)

// Role marks who produced a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "ai"
)

// Entry is one transcript line.
type Entry struct {
	ID         string
	Role       Role
	Content    string
	Confidence float64
	IsError    bool
	At         time.Time
}

// ErrBlankQuestion is the local rejection for empty input; nothing is sent.
var ErrBlankQuestion = errors.New("assistant: question is blank")

// ErrBusy rejects a send while a response is outstanding. Quick questions go
// through the same gate, so they cannot race a manual send.
var ErrBusy = errors.New("assistant: a response is already outstanding")

const errorReply = "Sorry, I encountered an error processing your question. Please try again."

// Session is the per-project assistant conversation: idle ⇄ awaiting-response.
type Session struct {
	client *api.Client
	store  *store.Store
	runner *analysis.Runner
	arch   *history.Archive // optional

	mu       sync.Mutex
	busy     bool
	seeded   bool
	entries  []Entry
	insights []api.Insight
}

// New builds a session. arch may be nil to disable local archiving.
func New(client *api.Client, st *store.Store, runner *analysis.Runner, arch *history.Archive) *Session {
	return &Session{client: client, store: st, runner: runner, arch: arch}
}

// Activate seeds the session once. With at least one data source connected
// it runs an implicit eda analysis and opens the transcript with a welcome
// message over the returned insights; with none it does nothing and the
// transcript starts empty.
func (s *Session) Activate(ctx context.Context) error {
	project := s.store.Active()
	if project == nil || len(project.DataSources) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.seeded {
		s.mu.Unlock()
		return nil
	}
	s.seeded = true
	s.mu.Unlock()

	a, err := s.runner.RunNamed(ctx, "Initial Analysis", "eda")
	if err != nil {
		// seeding is best-effort; the transcript just starts empty
		logx.Warn().Err(err).Msg("initial analysis failed")
		s.mu.Lock()
		s.seeded = false
		s.mu.Unlock()
		return err
	}

	welcome := fmt.Sprintf(
		"Welcome to your %s project! I've analyzed your data and found some interesting insights. How can I help you explore further?",
		project.Name)

	s.mu.Lock()
	s.insights = a.Insights
	entry := s.appendLocked(Entry{Role: RoleAssistant, Content: welcome})
	s.mu.Unlock()

	s.archive(ctx, project.ID, entry)
	return nil
}

// Begin validates and records the user's question, transitioning to
// awaiting-response. It runs synchronously so the user entry appears
// immediately; Await completes the exchange.
func (s *Session) Begin(text string) (Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, ErrBlankQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return Entry{}, ErrBusy
	}
	s.busy = true
	return s.appendLocked(Entry{Role: RoleUser, Content: text}), nil
}

// Await posts the question and appends the assistant's reply, or a flagged
// error entry on failure. The conversation continues either way; there are
// no automatic retries. An unauthorized response is the one exception: the
// session is dead, so it is surfaced to the caller instead of becoming a
// transcript entry.
func (s *Session) Await(ctx context.Context, text string) (Entry, error) {
	projectID := s.store.ActiveID()

	if userEntry := s.lastUser(); userEntry != nil {
		s.archive(ctx, projectID, *userEntry)
	}

	ans, err := s.client.Ask(ctx, projectID, strings.TrimSpace(text))
	if errors.Is(err, api.ErrUnauthorized) {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		return Entry{}, err
	}

	s.mu.Lock()
	var entry Entry
	if err != nil {
		logx.Warn().Err(err).Msg("ask failed")
		entry = s.appendLocked(Entry{Role: RoleAssistant, Content: errorReply, IsError: true})
	} else {
		entry = s.appendLocked(Entry{Role: RoleAssistant, Content: ans.Answer, Confidence: ans.Confidence})
	}
	s.busy = false
	s.mu.Unlock()

	s.archive(ctx, projectID, entry)
	return entry, nil
}

// Busy reports whether a response is outstanding.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Entries returns a copy of the transcript.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Insights returns the seed insight set, nil before activation.
func (s *Session) Insights() []api.Insight {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Insight, len(s.insights))
	copy(out, s.insights)
	return out
}

// transcriptWindow is how much conversation survives a restart; the archive
// is compacted to it on restore.
const transcriptWindow = 200

// RestoreTranscript preloads archived entries, typically on project open.
func (s *Session) RestoreTranscript(ctx context.Context, projectID int64) error {
	if s.arch == nil {
		return nil
	}
	msgs, err := s.arch.Recent(ctx, projectID, transcriptWindow)
	if err != nil {
		return err
	}
	if len(msgs) == transcriptWindow {
		// the window is full; drop anything older so the archive stays bounded
		if err := s.arch.Replace(ctx, projectID, msgs); err != nil {
			logx.Warn().Err(err).Msg("compact transcript archive")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
	for _, m := range msgs {
		s.entries = append(s.entries, Entry{
			ID:         m.ID,
			Role:       Role(m.Role),
			Content:    m.Content,
			Confidence: m.Confidence,
			IsError:    m.IsError,
			At:         m.CreatedAt,
		})
	}
	if len(s.entries) > 0 {
		s.seeded = true
	}
	return nil
}

// ClearTranscript wipes the active project's conversation, in memory and in
// the local archive. Seed insights stay and the session is not re-seeded.
func (s *Session) ClearTranscript(ctx context.Context) error {
	projectID := s.store.ActiveID()
	if s.arch != nil && projectID != 0 {
		if err := s.arch.Clear(ctx, projectID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.entries = nil
	s.busy = false
	s.mu.Unlock()
	return nil
}

// Reset drops the in-memory transcript, e.g. when switching projects.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.insights = nil
	s.seeded = false
	s.busy = false
}

func (s *Session) appendLocked(e Entry) Entry {
	e.ID = uuid.NewString()
	e.At = history.Now()
	s.entries = append(s.entries, e)
	return e
}

func (s *Session) lastUser() *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Role == RoleUser {
			e := s.entries[i]
			return &e
		}
	}
	return nil
}

func (s *Session) archive(ctx context.Context, projectID int64, e Entry) {
	if s.arch == nil || projectID == 0 {
		return
	}
	err := s.arch.Append(ctx, history.Message{
		ID:         e.ID,
		ProjectID:  projectID,
		Role:       string(e.Role),
		Content:    e.Content,
		Confidence: e.Confidence,
		IsError:    e.IsError,
		CreatedAt:  e.At,
	})
	if err != nil {
		logx.Error().Err(err).Msg("archive transcript entry")
	}
}
