package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dataquill/quill/internal/analysis"
	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/history"
	"github.com/dataquill/quill/internal/store"
)

type fixture struct {
	session *Session
	store   *store.Store

	analyzes atomic.Int64
	asks     atomic.Int64
	askFail  atomic.Bool
}

// newFixture serves one project whose source count is fixed at construction
// and wires a full client/store/runner stack around it.
func newFixture(t *testing.T, sources int) *fixture {
	t.Helper()
	f := &fixture{}

	project := api.Project{ID: 7, Name: "Churn"}
	for i := 0; i < sources; i++ {
		project.DataSources = append(project.DataSources, api.DataSource{ID: int64(i + 1), Type: "csv"})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]api.Project{{ID: 7, Name: "Churn"}})
	})
	mux.HandleFunc("GET /projects/7", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(project)
	})
	mux.HandleFunc("POST /projects/7/analyze", func(w http.ResponseWriter, r *http.Request) {
		f.analyzes.Add(1)
		var req api.AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Initial Analysis", req.Name)
		require.Equal(t, "eda", req.AnalysisType)
		_ = json.NewEncoder(w).Encode(api.Analysis{
			ID:   1,
			Name: req.Name,
			Type: req.AnalysisType,
			Insights: []api.Insight{
				{Type: "distribution", Confidence: 0.9, Insight: api.InsightBody{Message: "skewed"}},
			},
		})
	})
	mux.HandleFunc("POST /projects/7/ask", func(w http.ResponseWriter, r *http.Request) {
		f.asks.Add(1)
		if f.askFail.Load() {
			http.Error(w, `{"detail":"model overloaded"}`, http.StatusBadGateway)
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(api.Answer{Answer: "42 rows match", Confidence: 0.8})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := api.New(srv.URL, 2*time.Second)
	f.store = store.New(client)
	f.store.Activate(7)
	_, _, err := f.store.FetchProject(context.Background(), f.store.Generation())
	require.NoError(t, err)

	runner := analysis.New(client, f.store)
	f.session = New(client, f.store, runner, nil)
	return f
}

func TestActivateWithoutSourcesIsSilent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	require.NoError(t, f.session.Activate(context.Background()))

	require.Zero(t, f.analyzes.Load(), "no implicit analysis without data")
	require.Empty(t, f.session.Entries())
	require.Empty(t, f.session.Insights())
}

func TestActivateSeedsWelcomeAndInsights(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	require.NoError(t, f.session.Activate(context.Background()))

	require.Equal(t, int64(1), f.analyzes.Load())

	entries := f.session.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, RoleAssistant, entries[0].Role)
	require.Equal(t,
		"Welcome to your Churn project! I've analyzed your data and found some interesting insights. How can I help you explore further?",
		entries[0].Content)

	insights := f.session.Insights()
	require.Len(t, insights, 1)
	require.Equal(t, "skewed", insights[0].Insight.Text())

	// second activation is a no-op
	require.NoError(t, f.session.Activate(context.Background()))
	require.Equal(t, int64(1), f.analyzes.Load())
	require.Len(t, f.session.Entries(), 1)
}

func TestBeginRejectsBlankAndWhitespace(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := f.session.Begin(q)
		require.ErrorIs(t, err, ErrBlankQuestion)
	}
	require.Zero(t, f.asks.Load())
	require.Empty(t, f.session.Entries())
	require.False(t, f.session.Busy())
}

func TestBeginAppendsUserEntryImmediately(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	entry, err := f.session.Begin("  how many rows?  ")
	require.NoError(t, err)
	require.Equal(t, RoleUser, entry.Role)
	require.Equal(t, "how many rows?", entry.Content)
	require.True(t, f.session.Busy())

	entries := f.session.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, entry.ID, entries[0].ID)
}

func TestBusyGateRejectsSecondQuestion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	_, err := f.session.Begin("first")
	require.NoError(t, err)

	_, err = f.session.Begin("second")
	require.ErrorIs(t, err, ErrBusy)
	require.Len(t, f.session.Entries(), 1, "rejected question must not appear")
}

func TestAwaitAppendsAnswerAndClearsBusy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	_, err := f.session.Begin("how many rows?")
	require.NoError(t, err)

	reply, err := f.session.Await(context.Background(), "how many rows?")
	require.NoError(t, err)
	require.Equal(t, RoleAssistant, reply.Role)
	require.Equal(t, "42 rows match", reply.Content)
	require.InDelta(t, 0.8, reply.Confidence, 1e-9)
	require.False(t, reply.IsError)
	require.False(t, f.session.Busy())
	require.Len(t, f.session.Entries(), 2)
}

func TestAwaitFailureKeepsConversationAlive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	f.askFail.Store(true)

	_, err := f.session.Begin("broken?")
	require.NoError(t, err)
	reply, err := f.session.Await(context.Background(), "broken?")
	require.NoError(t, err)
	require.True(t, reply.IsError)
	require.Equal(t, "Sorry, I encountered an error processing your question. Please try again.", reply.Content)
	require.False(t, f.session.Busy())

	// the next question goes through normally
	f.askFail.Store(false)
	_, err = f.session.Begin("still there?")
	require.NoError(t, err)
	reply, err = f.session.Await(context.Background(), "still there?")
	require.NoError(t, err)
	require.False(t, reply.IsError)
	require.Equal(t, "42 rows match", reply.Content)
	require.Len(t, f.session.Entries(), 4)
}

func TestAwaitUnauthorizedSurfacesExpiry(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /projects/7/ask", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := api.New(srv.URL, 2*time.Second)
	st := store.New(client)
	st.Activate(7)
	s := New(client, st, analysis.New(client, st), nil)

	_, err := s.Begin("still there?")
	require.NoError(t, err)

	_, err = s.Await(context.Background(), "still there?")
	require.ErrorIs(t, err, api.ErrUnauthorized, "the dead session must reach the caller")
	require.False(t, s.Busy())

	entries := s.Entries()
	require.Len(t, entries, 1, "no reply entry for an expired session")
	require.Equal(t, RoleUser, entries[0].Role)
}

func newArchiveSession(t *testing.T) (*Session, *history.Archive) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")

	migrations, err := filepath.Abs("../history/migrations")
	require.NoError(t, err)
	require.NoError(t, history.RunMigrations(dbPath, migrations))

	db, err := history.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	arch := history.NewArchive(db)
	client := api.New("http://127.0.0.1:0", time.Second)
	st := store.New(client)
	st.Activate(7)
	return New(client, st, analysis.New(client, st), arch), arch
}

func TestRestoreTranscriptCompactsArchive(t *testing.T) {
	s, arch := newArchiveSession(t)
	ctx := context.Background()
	base := history.Now()

	for i := 0; i < transcriptWindow+25; i++ {
		require.NoError(t, arch.Append(ctx, history.Message{
			ID: fmt.Sprintf("m%04d", i), ProjectID: 7, Role: "user",
			Content:   fmt.Sprintf("q%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	require.NoError(t, s.RestoreTranscript(ctx, 7))
	require.Len(t, s.Entries(), transcriptWindow)

	kept, err := arch.Recent(ctx, 7, transcriptWindow*2)
	require.NoError(t, err)
	require.Len(t, kept, transcriptWindow, "rows beyond the restore window must be dropped")
	require.Equal(t, "q25", kept[0].Content)
	require.Equal(t, fmt.Sprintf("q%d", transcriptWindow+24), kept[len(kept)-1].Content)
}

func TestClearTranscriptWipesArchiveAndEntries(t *testing.T) {
	s, arch := newArchiveSession(t)
	ctx := context.Background()
	base := history.Now()

	require.NoError(t, arch.Append(ctx, history.Message{ID: "a1", ProjectID: 7, Role: "user", Content: "one", CreatedAt: base}))
	require.NoError(t, arch.Append(ctx, history.Message{ID: "a2", ProjectID: 7, Role: "ai", Content: "two", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, arch.Append(ctx, history.Message{ID: "b1", ProjectID: 8, Role: "user", Content: "other", CreatedAt: base}))

	require.NoError(t, s.RestoreTranscript(ctx, 7))
	require.Len(t, s.Entries(), 2)

	require.NoError(t, s.ClearTranscript(ctx))
	require.Empty(t, s.Entries())

	got, err := arch.Recent(ctx, 7, 10)
	require.NoError(t, err)
	require.Empty(t, got)

	other, err := arch.Recent(ctx, 8, 10)
	require.NoError(t, err)
	require.Len(t, other, 1, "clearing is scoped to the active project")
}

func TestResetClearsTranscriptAndSeed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	require.NoError(t, f.session.Activate(context.Background()))
	require.NotEmpty(t, f.session.Entries())

	f.session.Reset()
	require.Empty(t, f.session.Entries())
	require.Empty(t, f.session.Insights())

	// reset allows re-seeding
	require.NoError(t, f.session.Activate(context.Background()))
	require.Equal(t, int64(2), f.analyzes.Load())
}
