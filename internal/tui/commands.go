package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/assistant"
	"github.com/dataquill/quill/internal/auth"
	"github.com/dataquill/quill/internal/config"
	"github.com/dataquill/quill/internal/connector"
	"github.com/dataquill/quill/internal/logx"
)

// messages
type projectsMsg []api.Project

type projectCreatedMsg api.Project

type graphMsg struct {
	gen     uint64
	project api.Project
	applied bool
}

type loginResultMsg auth.Result

type registerResultMsg auth.Result

type connectDoneMsg struct{ ds api.DataSource }

type analysisDoneMsg struct{ a api.Analysis }

type seedDoneMsg struct{}

type answerMsg assistant.Entry

type transcriptMsg []assistant.Entry

type storyCreatedMsg api.Story

type exportDoneMsg struct{ path string }

type sessionExpiredMsg struct{}

type statusMsg string

type errMsg struct{ error }

// fail converts a command error into the right message. A 401 anywhere
// routes back to login; everything else surfaces on the status line.
func fail(err error) tea.Msg {
	if errors.Is(err, api.ErrUnauthorized) {
		return sessionExpiredMsg{}
	}
	return errMsg{err}
}

func (a *App) loginCmd(email, password string) tea.Cmd {
	return func() tea.Msg {
		return loginResultMsg(a.deps.Session.Login(a.ctx, email, password))
	}
}

func (a *App) registerCmd(req api.RegisterRequest) tea.Cmd {
	return func() tea.Msg {
		return registerResultMsg(a.deps.Session.Register(a.ctx, req))
	}
}

func (a *App) loadProjects() tea.Cmd {
	return func() tea.Msg {
		list, err := a.deps.Store.FetchProjects(a.ctx)
		if err != nil {
			return fail(err)
		}
		return projectsMsg(list)
	}
}

func (a *App) createProjectCmd(name, description string) tea.Cmd {
	return func() tea.Msg {
		p, err := a.deps.Store.CreateProject(a.ctx, name, description)
		if err != nil {
			return fail(fmt.Errorf("create project: %w", err))
		}
		return projectCreatedMsg(p)
	}
}

func (a *App) fetchGraph(gen uint64) tea.Cmd {
	return func() tea.Msg {
		p, applied, err := a.deps.Store.FetchProject(a.ctx, gen)
		if err != nil {
			return fail(err)
		}
		return graphMsg{gen: gen, project: p, applied: applied}
	}
}

// refreshGraph refetches against the current generation.
func (a *App) refreshGraph() tea.Cmd {
	return a.fetchGraph(a.deps.Store.Generation())
}

func (a *App) uploadFileCmd(kindID, path string) tea.Cmd {
	return func() tea.Msg {
		ds, err := a.deps.Connector.UploadFile(a.ctx, kindID, path)
		if err != nil {
			return fail(err)
		}
		return connectDoneMsg{ds: ds}
	}
}

func (a *App) connectDatabaseCmd(kindID string, creds connector.Credentials) tea.Cmd {
	return func() tea.Msg {
		ds, err := a.deps.Connector.ConnectDatabase(a.ctx, kindID, creds)
		if err != nil {
			return fail(err)
		}
		return connectDoneMsg{ds: ds}
	}
}

func (a *App) runAnalysisCmd(kindID string) tea.Cmd {
	return func() tea.Msg {
		res, err := a.deps.Runner.Run(a.ctx, kindID)
		if err != nil {
			return fail(err)
		}
		return analysisDoneMsg{a: res}
	}
}

func (a *App) activateAssistant() tea.Cmd {
	project := a.deps.Store.Active()
	if project == nil || len(project.DataSources) == 0 {
		return nil
	}
	a.busySeed = true
	return func() tea.Msg {
		if err := a.deps.Assistant.Activate(a.ctx); err != nil {
			return fail(err)
		}
		return seedDoneMsg{}
	}
}

func (a *App) awaitAnswerCmd(text string) tea.Cmd {
	return func() tea.Msg {
		entry, err := a.deps.Assistant.Await(a.ctx, text)
		if err != nil {
			return fail(err)
		}
		return answerMsg(entry)
	}
}

func (a *App) clearTranscriptCmd() tea.Cmd {
	return func() tea.Msg {
		if err := a.deps.Assistant.ClearTranscript(a.ctx); err != nil {
			return fail(err)
		}
		return statusMsg("conversation cleared")
	}
}

func (a *App) restoreTranscript(projectID int64) tea.Cmd {
	return func() tea.Msg {
		if err := a.deps.Assistant.RestoreTranscript(a.ctx, projectID); err != nil {
			logx.Warn().Err(err).Msg("restore transcript")
		}
		return transcriptMsg(a.deps.Assistant.Entries())
	}
}

func (a *App) createStoryCmd(title string) tea.Cmd {
	return func() tea.Msg {
		s, err := a.deps.Composer.Create(a.ctx, title)
		if err != nil {
			return fail(err)
		}
		return storyCreatedMsg(s)
	}
}

func (a *App) exportStoryCmd(s api.Story, format string) tea.Cmd {
	return func() tea.Msg {
		data, err := a.deps.Composer.Export(a.ctx, s, format)
		if err != nil {
			return fail(err)
		}
		name := fmt.Sprintf("story-%d.%s", s.ID, format)
		path := filepath.Join(".", name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fail(fmt.Errorf("write export: %w", err))
		}
		return exportDoneMsg{path: path}
	}
}

func (a *App) toggleTheme() tea.Cmd {
	next := "light"
	if a.styles.Name == "light" {
		next = "dark"
	}
	a.styles = ThemeByName(next)
	a.cfg.UI.Theme = next
	cfg := a.cfg
	return func() tea.Msg {
		if err := config.Save(cfg); err != nil {
			return errMsg{err}
		}
		return statusMsg(next + " theme")
	}
}

// SessionExpired is the message main feeds back into the program when the
// auth session expires outside a running command.
func SessionExpired() tea.Msg { return sessionExpiredMsg{} }
