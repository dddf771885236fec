// Package tui is the terminal front end. It owns view routing and input;
// all workspace semantics live in the domain packages it drives.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dataquill/quill/internal/analysis"
	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/assistant"
	"github.com/dataquill/quill/internal/auth"
	"github.com/dataquill/quill/internal/config"
	"github.com/dataquill/quill/internal/connector"
	"github.com/dataquill/quill/internal/logx"
	"github.com/dataquill/quill/internal/store"
	"github.com/dataquill/quill/internal/story"
)

type appState string

const (
	viewLogin    appState = "login"
	viewRegister appState = "register"
	viewProjects appState = "projects"
	viewProject  appState = "project"
)

type projectTab int

const (
	tabSources projectTab = iota
	tabAnalysis
	tabAssistant
	tabStories
)

var tabNames = []string{"Data Sources", "Analysis", "AI Assistant", "Stories"}

type modalState string

const (
	modalNone        modalState = ""
	modalNewProject  modalState = "newProject"
	modalConnect     modalState = "connect"
	modalFilePath    modalState = "filePath"
	modalCredentials modalState = "credentials"
	modalUnsupported modalState = "unsupported"
	modalStoryTitle  modalState = "storyTitle"
	modalStoryDetail modalState = "storyDetail"
)

// Deps bundles the collaborators the app drives.
type Deps struct {
	Session   *auth.Session
	Store     *store.Store
	Connector *connector.Connector
	Runner    *analysis.Runner
	Assistant *assistant.Session
	Composer  *story.Composer
}

// App ties together views.
type App struct {
	ctx  context.Context
	cfg  config.Config
	deps Deps

	state  appState
	tab    projectTab
	modal  modalState
	styles Styles

	// login / register forms
	emailInput textinput.Model
	passInput  textinput.Model
	nameInput  textinput.Model
	formFocus  int
	formError  string

	// project list
	projCursor int
	titleInput textinput.Model
	descInput  textinput.Model

	// project view
	gen         uint64
	graphLoaded bool
	srcCursor   int
	kindCursor  int
	pathInput   textinput.Model
	credInputs  []textinput.Model
	credFocus   int
	credKind    string
	anCursor    int
	resCursor   int
	stCursor    int
	detailStory *api.Story

	// assistant
	chatInput   textinput.Model
	chatFocused bool
	quickCursor int

	busyConnect bool
	busyAsk     bool
	busySeed    bool
	busyExport  bool

	spin   spinner.Model
	status string
	width  int
	height int
}

// New builds the app. The session must already be restored.
func New(ctx context.Context, cfg config.Config, deps Deps) *App {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 120
	email.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.EchoMode = textinput.EchoPassword
	pass.CharLimit = 120

	name := textinput.New()
	name.Placeholder = "full name (optional)"
	name.CharLimit = 120

	title := textinput.New()
	title.CharLimit = 160
	desc := textinput.New()
	desc.CharLimit = 400
	path := textinput.New()
	path.Placeholder = "path to file"
	path.CharLimit = 400

	creds := make([]textinput.Model, 5)
	for i, ph := range []string{"host", "port", "database", "username", "password"} {
		in := textinput.New()
		in.Placeholder = ph
		in.CharLimit = 200
		if ph == "password" {
			in.EchoMode = textinput.EchoPassword
		}
		creds[i] = in
	}

	chat := textinput.New()
	chat.Placeholder = "ask a question about your data"
	chat.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	state := viewLogin
	if deps.Session.State() == auth.StateAuthenticated {
		state = viewProjects
	}

	return &App{
		ctx:         ctx,
		cfg:         cfg,
		deps:        deps,
		state:       state,
		styles:      ThemeByName(cfg.UI.Theme),
		emailInput:  email,
		passInput:   pass,
		nameInput:   name,
		titleInput:  title,
		descInput:   desc,
		pathInput:   path,
		credInputs:  creds,
		chatInput:   chat,
		quickCursor: -1,
		spin:        sp,
	}
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spin.Tick}
	if a.state == viewProjects {
		cmds = append(cmds, a.loadProjects())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(m)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(m)

	case sessionExpiredMsg:
		a.resetToLogin("Session expired. Please log in again.")
		return a, nil

	case loginResultMsg:
		if !m.Success {
			a.formError = m.Error
			return a, nil
		}
		a.formError = ""
		a.passInput.SetValue("")
		a.state = viewProjects
		return a, a.loadProjects()

	case registerResultMsg:
		if !m.Success {
			a.formError = m.Error
			return a, nil
		}
		a.formError = ""
		a.state = viewLogin
		a.status = "Account created, sign in to continue"
		return a, nil

	case projectsMsg:
		if a.projCursor >= len(m) {
			a.projCursor = 0
		}
		return a, nil

	case projectCreatedMsg:
		a.modal = modalNone
		a.titleInput.SetValue("")
		a.descInput.SetValue("")
		a.status = "project created"
		return a, nil

	case graphMsg:
		if !m.applied {
			// response for a selection that is no longer current
			return a, nil
		}
		a.graphLoaded = true
		a.clampCursors()
		return a, nil

	case connectDoneMsg:
		a.busyConnect = false
		a.modal = modalNone
		a.pathInput.SetValue("")
		for i := range a.credInputs {
			a.credInputs[i].SetValue("")
		}
		a.status = "data source connected"
		return a, nil

	case analysisDoneMsg:
		a.status = "analysis complete: " + m.a.Name
		a.resCursor = 0
		return a, nil

	case seedDoneMsg:
		a.busySeed = false
		return a, nil

	case answerMsg:
		a.busyAsk = false
		return a, nil

	case transcriptMsg:
		return a, nil

	case storyCreatedMsg:
		a.modal = modalNone
		a.titleInput.SetValue("")
		a.status = "story created"
		return a, nil

	case exportDoneMsg:
		a.busyExport = false
		a.status = "exported to " + m.path
		return a, nil

	case statusMsg:
		a.status = string(m)
		return a, nil

	case errMsg:
		a.busyConnect = false
		a.busyAsk = false
		a.busySeed = false
		a.busyExport = false
		a.status = "error: " + m.Error()
		logx.Debug().Err(m.error).Msg("surfaced error")
		return a, nil
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.String() == "ctrl+c" {
		return a, tea.Quit
	}
	if a.modal != modalNone {
		return a.handleModalKey(m)
	}
	switch a.state {
	case viewLogin:
		return a.handleLoginKey(m)
	case viewRegister:
		return a.handleRegisterKey(m)
	case viewProjects:
		return a.handleProjectsKey(m)
	case viewProject:
		return a.handleProjectKey(m)
	}
	return a, nil
}

func (a *App) handleLoginKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "tab", "shift+tab", "up", "down":
		a.formFocus = (a.formFocus + 1) % 2
		if a.formFocus == 0 {
			a.emailInput.Focus()
			a.passInput.Blur()
		} else {
			a.emailInput.Blur()
			a.passInput.Focus()
		}
		return a, nil
	case "enter":
		email := strings.TrimSpace(a.emailInput.Value())
		pass := a.passInput.Value()
		if email == "" || pass == "" {
			a.formError = "Email and password are required"
			return a, nil
		}
		a.formError = ""
		a.status = ""
		return a, a.loginCmd(email, pass)
	case "ctrl+r":
		a.state = viewRegister
		a.formError = ""
		a.formFocus = 0
		a.emailInput.Focus()
		a.passInput.Blur()
		a.nameInput.Blur()
		return a, nil
	}
	return a, a.updateFormInputs(m)
}

func (a *App) handleRegisterKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.state = viewLogin
		a.formError = ""
		return a, nil
	case "tab", "down":
		a.cycleRegisterFocus(1)
		return a, nil
	case "shift+tab", "up":
		a.cycleRegisterFocus(-1)
		return a, nil
	case "enter":
		email := strings.TrimSpace(a.emailInput.Value())
		pass := a.passInput.Value()
		if email == "" || pass == "" {
			a.formError = "Email and password are required"
			return a, nil
		}
		a.formError = ""
		return a, a.registerCmd(api.RegisterRequest{
			Email:    email,
			Password: pass,
			FullName: strings.TrimSpace(a.nameInput.Value()),
		})
	}
	return a, a.updateFormInputs(m)
}

func (a *App) cycleRegisterFocus(dir int) {
	a.formFocus = (a.formFocus + dir + 3) % 3
	a.emailInput.Blur()
	a.nameInput.Blur()
	a.passInput.Blur()
	switch a.formFocus {
	case 0:
		a.emailInput.Focus()
	case 1:
		a.nameInput.Focus()
	case 2:
		a.passInput.Focus()
	}
}

func (a *App) updateFormInputs(m tea.KeyMsg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.emailInput, cmd = a.emailInput.Update(m)
	cmds = append(cmds, cmd)
	a.passInput, cmd = a.passInput.Update(m)
	cmds = append(cmds, cmd)
	a.nameInput, cmd = a.nameInput.Update(m)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (a *App) handleProjectsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	projects := a.deps.Store.Projects()
	switch m.String() {
	case "q":
		return a, tea.Quit
	case "up", "k":
		if a.projCursor > 0 {
			a.projCursor--
		}
	case "down", "j":
		if a.projCursor < len(projects)-1 {
			a.projCursor++
		}
	case "enter":
		if len(projects) == 0 {
			return a, nil
		}
		p := projects[a.projCursor]
		return a, a.openProject(p.ID)
	case "n":
		a.modal = modalNewProject
		a.formFocus = 0
		a.titleInput.Placeholder = "project name"
		a.titleInput.Focus()
		a.descInput.Placeholder = "description"
		a.descInput.Blur()
	case "g":
		return a, a.loadProjects()
	case "T":
		return a, a.toggleTheme()
	case "L":
		a.deps.Session.Logout()
		a.resetToLogin("")
	}
	return a, nil
}

func (a *App) handleProjectKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.tab == tabAssistant && a.chatFocused {
		return a.handleChatKey(m)
	}

	switch m.String() {
	case "q":
		return a, tea.Quit
	case "esc":
		a.leaveProject()
		return a, nil
	case "1", "2", "3", "4":
		return a.switchTab(projectTab(int(m.String()[0] - '1')))
	case "tab":
		return a.switchTab((a.tab + 1) % 4)
	case "shift+tab":
		return a.switchTab((a.tab + 3) % 4)
	case "g":
		return a, a.refreshGraph()
	case "T":
		return a, a.toggleTheme()
	}

	switch a.tab {
	case tabSources:
		return a.handleSourcesKey(m)
	case tabAnalysis:
		return a.handleAnalysisKey(m)
	case tabAssistant:
		switch m.String() {
		case "i", "enter":
			a.chatFocused = true
			a.chatInput.Focus()
		case "C":
			return a, a.clearTranscriptCmd()
		}
		return a, nil
	case tabStories:
		return a.handleStoriesKey(m)
	}
	return a, nil
}

func (a *App) switchTab(t projectTab) (tea.Model, tea.Cmd) {
	a.tab = t
	a.status = ""
	if t == tabAssistant {
		a.chatFocused = true
		a.chatInput.Focus()
		a.quickCursor = -1
		return a, a.activateAssistant()
	}
	a.chatFocused = false
	a.chatInput.Blur()
	return a, nil
}

func (a *App) handleSourcesKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	project := a.deps.Store.Active()
	switch m.String() {
	case "up", "k":
		if a.srcCursor > 0 {
			a.srcCursor--
		}
	case "down", "j":
		if project != nil && a.srcCursor < len(project.DataSources)-1 {
			a.srcCursor++
		}
	case "n":
		a.modal = modalConnect
		a.kindCursor = 0
	}
	return a, nil
}

func (a *App) handleAnalysisKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	project := a.deps.Store.Active()
	switch m.String() {
	case "up", "k":
		if a.anCursor > 0 {
			a.anCursor--
		}
	case "down", "j":
		if a.anCursor < len(analysis.Catalog())-1 {
			a.anCursor++
		}
	case "enter":
		if a.deps.Runner.Running() {
			a.status = "an analysis is already running"
			return a, nil
		}
		kind := analysis.Catalog()[a.anCursor]
		a.status = "running " + kind.Name + "..."
		return a, a.runAnalysisCmd(kind.ID)
	case "v":
		if project != nil && len(project.Analyses) > 0 {
			a.resCursor = (a.resCursor + 1) % len(project.Analyses)
		}
	}
	return a, nil
}

// handleChatKey drives the ask flow. Up/down highlight a quick question
// without committing it to the input; enter on a highlight sends it through
// the same path as typed text, one keystroke from selection to send.
func (a *App) handleChatKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.chatFocused = false
		a.chatInput.Blur()
		a.quickCursor = -1
		return a, nil
	case "up":
		qs := assistant.QuickQuestions()
		if a.quickCursor < 0 {
			a.quickCursor = len(qs) - 1
		} else {
			a.quickCursor = (a.quickCursor + len(qs) - 1) % len(qs)
		}
		return a, nil
	case "down":
		a.quickCursor = (a.quickCursor + 1) % len(assistant.QuickQuestions())
		return a, nil
	case "tab":
		if s := assistant.SuggestQuick(a.chatInput.Value()); s != "" {
			a.chatInput.SetValue(s)
			a.chatInput.CursorEnd()
		}
		return a, nil
	case "enter":
		if a.busyAsk {
			return a, nil // input disabled while awaiting-response
		}
		text := a.chatInput.Value()
		if strings.TrimSpace(text) == "" && a.quickCursor >= 0 {
			text = assistant.QuickQuestions()[a.quickCursor]
		}
		if _, err := a.deps.Assistant.Begin(text); err != nil {
			a.status = err.Error()
			return a, nil
		}
		a.chatInput.SetValue("")
		a.quickCursor = -1
		a.busyAsk = true
		return a, a.awaitAnswerCmd(text)
	}
	var cmd tea.Cmd
	a.chatInput, cmd = a.chatInput.Update(m)
	return a, cmd
}

func (a *App) handleStoriesKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	project := a.deps.Store.Active()
	switch m.String() {
	case "up", "k":
		if a.stCursor > 0 {
			a.stCursor--
		}
	case "down", "j":
		if project != nil && a.stCursor < len(project.Stories)-1 {
			a.stCursor++
		}
	case "n":
		a.modal = modalStoryTitle
		a.titleInput.Placeholder = "story title"
		a.titleInput.SetValue("")
		a.titleInput.Focus()
	case "enter":
		if project == nil || len(project.Stories) == 0 {
			return a, nil
		}
		s := project.Stories[a.stCursor]
		a.detailStory = &s
		a.modal = modalStoryDetail
	}
	return a, nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalNewProject:
		return a.handleNewProjectModal(m)
	case modalConnect:
		return a.handleConnectModal(m)
	case modalFilePath:
		return a.handleFilePathModal(m)
	case modalCredentials:
		return a.handleCredentialsModal(m)
	case modalUnsupported:
		switch m.String() {
		case "esc", "enter":
			a.modal = modalConnect
		}
		return a, nil
	case modalStoryTitle:
		return a.handleStoryTitleModal(m)
	case modalStoryDetail:
		return a.handleStoryDetailModal(m)
	}
	return a, nil
}

func (a *App) handleNewProjectModal(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.modal = modalNone
		a.titleInput.SetValue("")
		a.descInput.SetValue("")
		return a, nil
	case "tab", "shift+tab":
		if a.formFocus == 0 {
			a.formFocus = 1
			a.titleInput.Blur()
			a.descInput.Focus()
		} else {
			a.formFocus = 0
			a.descInput.Blur()
			a.titleInput.Focus()
		}
		return a, nil
	case "enter":
		name := strings.TrimSpace(a.titleInput.Value())
		if name == "" {
			a.status = "enter a project name"
			return a, nil
		}
		return a, a.createProjectCmd(name, strings.TrimSpace(a.descInput.Value()))
	}
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.titleInput, cmd = a.titleInput.Update(m)
	cmds = append(cmds, cmd)
	a.descInput, cmd = a.descInput.Update(m)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

func (a *App) handleConnectModal(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	kinds := connector.Catalog()
	switch m.String() {
	case "esc":
		a.modal = modalNone
	case "up", "k":
		if a.kindCursor > 0 {
			a.kindCursor--
		}
	case "down", "j":
		if a.kindCursor < len(kinds)-1 {
			a.kindCursor++
		}
	case "enter":
		kind := kinds[a.kindCursor]
		switch kind.Mode {
		case connector.ModeFile:
			a.modal = modalFilePath
			a.credKind = kind.ID
			a.pathInput.Focus()
		case connector.ModeCredentials:
			a.modal = modalCredentials
			a.credKind = kind.ID
			a.credFocus = 0
			for i := range a.credInputs {
				a.credInputs[i].Blur()
			}
			a.credInputs[0].Focus()
			if a.credInputs[1].Value() == "" {
				if kind.ID == "postgres" {
					a.credInputs[1].SetValue("5432")
				} else {
					a.credInputs[1].SetValue("3306")
				}
			}
		case connector.ModeUnsupported:
			a.modal = modalUnsupported
			a.credKind = kind.ID
		}
	}
	return a, nil
}

func (a *App) handleFilePathModal(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.modal = modalConnect
		a.pathInput.Blur()
		return a, nil
	case "enter":
		path := strings.TrimSpace(a.pathInput.Value())
		if path == "" {
			a.status = "enter a file path"
			return a, nil
		}
		a.busyConnect = true
		a.status = "connecting data source..."
		return a, a.uploadFileCmd(a.credKind, path)
	}
	var cmd tea.Cmd
	a.pathInput, cmd = a.pathInput.Update(m)
	return a, cmd
}

func (a *App) handleCredentialsModal(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.modal = modalConnect
		for i := range a.credInputs {
			a.credInputs[i].Blur()
		}
		return a, nil
	case "tab", "down":
		a.moveCredFocus(1)
		return a, nil
	case "shift+tab", "up":
		a.moveCredFocus(-1)
		return a, nil
	case "enter":
		creds := connector.Credentials{
			Host:     strings.TrimSpace(a.credInputs[0].Value()),
			Port:     strings.TrimSpace(a.credInputs[1].Value()),
			Database: strings.TrimSpace(a.credInputs[2].Value()),
			Username: strings.TrimSpace(a.credInputs[3].Value()),
			Password: a.credInputs[4].Value(),
		}
		a.busyConnect = true
		a.status = "connecting to database..."
		return a, a.connectDatabaseCmd(a.credKind, creds)
	}
	var cmds []tea.Cmd
	for i := range a.credInputs {
		var cmd tea.Cmd
		a.credInputs[i], cmd = a.credInputs[i].Update(m)
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

func (a *App) moveCredFocus(dir int) {
	a.credInputs[a.credFocus].Blur()
	a.credFocus = (a.credFocus + dir + len(a.credInputs)) % len(a.credInputs)
	a.credInputs[a.credFocus].Focus()
}

func (a *App) handleStoryTitleModal(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.modal = modalNone
		a.titleInput.SetValue("")
		return a, nil
	case "enter":
		title := strings.TrimSpace(a.titleInput.Value())
		if title == "" {
			a.status = "enter a story title"
			return a, nil
		}
		project := a.deps.Store.Active()
		if project == nil || len(project.Analyses) == 0 {
			a.status = "no analyses available to create a story"
			return a, nil
		}
		a.status = "creating story..."
		return a, a.createStoryCmd(title)
	}
	var cmd tea.Cmd
	a.titleInput, cmd = a.titleInput.Update(m)
	return a, cmd
}

func (a *App) handleStoryDetailModal(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.modal = modalNone
		a.detailStory = nil
	case "p", "h":
		if a.detailStory == nil || a.busyExport {
			return a, nil
		}
		format := "pdf"
		if m.String() == "h" {
			format = "html"
		}
		a.busyExport = true
		a.status = "exporting " + format + "..."
		return a, a.exportStoryCmd(*a.detailStory, format)
	}
	return a, nil
}

func (a *App) openProject(id int64) tea.Cmd {
	a.gen = a.deps.Store.Activate(id)
	a.graphLoaded = false
	a.state = viewProject
	a.tab = tabSources
	a.srcCursor, a.anCursor, a.resCursor, a.stCursor = 0, 0, 0, 0
	a.status = ""
	a.deps.Assistant.Reset()
	return tea.Batch(a.fetchGraph(a.gen), a.restoreTranscript(id))
}

func (a *App) leaveProject() {
	a.deps.Store.Deactivate()
	a.deps.Assistant.Reset()
	a.state = viewProjects
	a.modal = modalNone
	a.chatFocused = false
	a.chatInput.Blur()
	a.status = ""
}

func (a *App) resetToLogin(message string) {
	a.state = viewLogin
	a.modal = modalNone
	a.formError = message
	a.formFocus = 0
	a.passInput.SetValue("")
	a.emailInput.Focus()
	a.passInput.Blur()
	a.deps.Store.Deactivate()
	a.deps.Assistant.Reset()
}

func (a *App) clampCursors() {
	project := a.deps.Store.Active()
	if project == nil {
		return
	}
	if a.srcCursor >= len(project.DataSources) {
		a.srcCursor = 0
	}
	if a.resCursor >= len(project.Analyses) {
		a.resCursor = 0
	}
	if a.stCursor >= len(project.Stories) {
		a.stCursor = 0
	}
}
