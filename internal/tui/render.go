package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dataquill/quill/internal/analysis"
	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/assistant"
	"github.com/dataquill/quill/internal/connector"
	"github.com/dataquill/quill/internal/insight"
)

func (a *App) View() string {
	var body string
	switch a.state {
	case viewLogin:
		body = a.renderLogin()
	case viewRegister:
		body = a.renderRegister()
	case viewProjects:
		body = a.renderProjects()
	case viewProject:
		body = a.renderProject()
	}
	if a.modal != modalNone {
		body += "\n\n" + a.styles.Modal.Render(a.renderModal())
	}
	if a.status != "" {
		style := a.styles.Status
		if strings.HasPrefix(a.status, "error:") {
			style = a.styles.Error
		}
		body += "\n" + style.Render(a.status)
	}
	return body
}

func (a *App) renderLogin() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Quill") + "\n")
	b.WriteString(a.styles.Subtitle.Render("Sign in to your workspace") + "\n\n")
	b.WriteString("Email:    " + a.emailInput.View() + "\n")
	b.WriteString("Password: " + a.passInput.View() + "\n")
	if a.formError != "" {
		b.WriteString("\n" + a.styles.Error.Render(a.formError) + "\n")
	}
	b.WriteString("\n" + a.styles.Help.Render("[enter] Sign in  [ctrl+r] Register  [ctrl+c] Quit"))
	return b.String()
}

func (a *App) renderRegister() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Create account") + "\n\n")
	b.WriteString("Email:     " + a.emailInput.View() + "\n")
	b.WriteString("Full name: " + a.nameInput.View() + "\n")
	b.WriteString("Password:  " + a.passInput.View() + "\n")
	if a.formError != "" {
		b.WriteString("\n" + a.styles.Error.Render(a.formError) + "\n")
	}
	b.WriteString("\n" + a.styles.Help.Render("[enter] Register  [esc] Back to sign in"))
	return b.String()
}

func (a *App) renderProjects() string {
	projects := a.deps.Store.Projects()
	var b strings.Builder
	header := "Projects"
	if email := a.deps.Session.Email(); email != "" {
		header += " — " + email
	}
	b.WriteString(a.styles.Title.Render(header) + "\n\n")

	if len(projects) == 0 {
		b.WriteString(a.styles.Muted.Render("No projects yet. Press [n] to create one.") + "\n")
	}
	for i, p := range projects {
		marker := "  "
		line := fmt.Sprintf("%-28s %s", p.Name, a.styles.Subtitle.Render(p.Description))
		if i == a.projCursor {
			marker = "▶ "
			line = a.styles.Selected.Render(line)
		}
		b.WriteString(marker + line + "\n")
	}
	b.WriteString("\n" + a.styles.Help.Render("[enter] Open  [n] New project  [g] Refresh  [T] Theme  [L] Logout  [q] Quit"))
	return b.String()
}

func (a *App) renderProject() string {
	project := a.deps.Store.Active()
	var b strings.Builder

	if project == nil {
		if !a.graphLoaded {
			b.WriteString(a.spin.View() + " loading project...\n")
			return b.String()
		}
		b.WriteString(a.styles.Error.Render("Project not found") + "\n")
		return b.String()
	}

	b.WriteString(a.styles.Title.Render(project.Name) + "\n")
	if project.Description != "" {
		b.WriteString(a.styles.Subtitle.Render(project.Description) + "\n")
	}

	var tabs []string
	for i, name := range tabNames {
		label := fmt.Sprintf(" %d:%s ", i+1, name)
		if projectTab(i) == a.tab {
			label = a.styles.Badge.Render(label)
		} else {
			label = a.styles.Muted.Render(label)
		}
		tabs = append(tabs, label)
	}
	b.WriteString(strings.Join(tabs, "") + "\n\n")

	switch a.tab {
	case tabSources:
		b.WriteString(a.renderSources(project))
	case tabAnalysis:
		b.WriteString(a.renderAnalysis(project))
	case tabAssistant:
		b.WriteString(a.renderAssistant(project))
	case tabStories:
		b.WriteString(a.renderStories(project))
	}
	return b.String()
}

func (a *App) renderSources(project *api.Project) string {
	var b strings.Builder
	if len(project.DataSources) == 0 {
		b.WriteString(a.styles.Muted.Render("No data sources connected yet") + "\n")
		b.WriteString(a.styles.Muted.Render("Connect your first data source to start analyzing") + "\n")
	}
	for i, ds := range project.DataSources {
		marker := "  "
		line := fmt.Sprintf("%-24s [%s]", ds.Name, ds.Type)
		if ds.DataPreview != nil {
			line += fmt.Sprintf("  %d rows × %d cols", ds.DataPreview.RowCount, ds.DataPreview.ColumnCount)
		}
		if ds.DataProfile != nil && len(ds.DataProfile.QualityIssues) > 0 {
			line += "  " + a.styles.Error.Render(fmt.Sprintf("%d quality issues", len(ds.DataProfile.QualityIssues)))
		}
		if i == a.srcCursor {
			marker = "▶ "
			line = a.styles.Selected.Render(line)
		}
		b.WriteString(marker + line + "\n")
	}
	if a.busyConnect {
		b.WriteString("\n" + a.spin.View() + " connecting to data source...\n")
	}
	b.WriteString("\n" + a.styles.Help.Render("[n] Connect source  [g] Refresh  [tab] Next tab  [esc] Projects"))
	return b.String()
}

func (a *App) renderAnalysis(project *api.Project) string {
	var b strings.Builder
	b.WriteString("Run analysis:\n")
	for i, k := range analysis.Catalog() {
		marker := "  "
		line := fmt.Sprintf("%-22s %s", k.Name, a.styles.Subtitle.Render(k.Description))
		if i == a.anCursor {
			marker = "▶ "
			line = a.styles.Selected.Render(line)
		}
		b.WriteString(marker + line + "\n")
	}
	if a.deps.Runner.Running() {
		b.WriteString("\n" + a.spin.View() + " running analysis...\n")
	}

	b.WriteString("\nResults (" + fmt.Sprint(len(project.Analyses)) + "):\n")
	if len(project.Analyses) == 0 {
		b.WriteString(a.styles.Muted.Render("No analyses yet — select a kind above and press enter") + "\n")
	}
	for i, an := range project.Analyses {
		line := fmt.Sprintf("%-26s [%s]  %d insights", an.Name, an.Type, len(an.Insights))
		if i == a.resCursor {
			b.WriteString(a.styles.Selected.Render("▶ "+line) + "\n")
			if an.Summary != "" {
				b.WriteString("    " + a.styles.Subtitle.Render(an.Summary) + "\n")
			}
			for _, in := range an.Insights {
				b.WriteString(a.renderInsight(in))
			}
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	b.WriteString("\n" + a.styles.Help.Render("[enter] Run selected  [v] Next result  [g] Refresh  [esc] Projects"))
	return b.String()
}

// renderInsight goes through the shared contract; no other formatting of
// insight text or confidence is allowed anywhere in the UI.
func (a *App) renderInsight(in api.Insight) string {
	return fmt.Sprintf("    • %s  %s %s\n",
		insight.Text(in),
		a.styles.Badge.Render(in.Type),
		a.styles.Muted.Render(insight.ConfidenceLabel(in)))
}

func (a *App) renderAssistant(project *api.Project) string {
	var b strings.Builder

	insights := a.deps.Assistant.Insights()
	if len(insights) > 0 {
		b.WriteString("Insights:\n")
		shown := insights
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, in := range shown {
			b.WriteString(a.renderInsight(in))
		}
		b.WriteString("\n")
	} else if len(project.DataSources) == 0 {
		b.WriteString(a.styles.Muted.Render("No insights yet") + "\n")
		b.WriteString(a.styles.Muted.Render("Connect data to generate insights") + "\n\n")
	}

	entries := a.deps.Assistant.Entries()
	if len(entries) == 0 && !a.busySeed {
		b.WriteString(a.styles.Muted.Render("Ask a question to get started") + "\n")
	}
	for _, e := range entries {
		switch {
		case e.IsError:
			b.WriteString(a.styles.ErrMsg.Render("ai: "+e.Content) + "\n")
		case e.Role == assistant.RoleUser:
			b.WriteString(a.styles.UserMsg.Render("you: "+e.Content) + "\n")
		default:
			line := "ai: " + e.Content
			if e.Confidence > 0 {
				line += a.styles.Muted.Render(fmt.Sprintf("  (%d%%)", insight.Percent(e.Confidence)))
			}
			b.WriteString(a.styles.AiMsg.Render(line) + "\n")
		}
	}
	if a.busySeed {
		b.WriteString(a.spin.View() + " analyzing your data...\n")
	}
	if a.busyAsk {
		b.WriteString(a.spin.View() + " thinking...\n")
	}

	if a.chatFocused {
		b.WriteString("\nQuick questions:\n")
		for i, q := range assistant.QuickQuestions() {
			if i == a.quickCursor {
				b.WriteString("▶ " + a.styles.Selected.Render(q) + "\n")
			} else {
				b.WriteString("  " + a.styles.Muted.Render(q) + "\n")
			}
		}
	}

	b.WriteString("\n> " + a.chatInput.View() + "\n")
	if a.chatFocused {
		b.WriteString(a.styles.Help.Render("[enter] Send  [up/down] Quick questions  [tab] Complete  [esc] Browse"))
	} else {
		b.WriteString(a.styles.Help.Render("[i] Ask  [C] Clear chat  [1-4] Tabs  [esc] Projects"))
	}
	return b.String()
}

func (a *App) renderStories(project *api.Project) string {
	var b strings.Builder
	if len(project.Stories) == 0 {
		b.WriteString(a.styles.Muted.Render("No stories yet") + "\n")
		b.WriteString(a.styles.Muted.Render("Run analyses, then press [n] to assemble a story") + "\n")
	}
	for i, s := range project.Stories {
		marker := "  "
		line := fmt.Sprintf("%-28s %d components  [%s]",
			s.Title, len(s.Components), strings.Join(s.ExportFormats, ", "))
		if i == a.stCursor {
			marker = "▶ "
			line = a.styles.Selected.Render(line)
		}
		b.WriteString(marker + line + "\n")
	}
	b.WriteString("\n" + a.styles.Help.Render("[n] New story  [enter] Open  [g] Refresh  [esc] Projects"))
	return b.String()
}

// componentOrder fixes the iteration order for a story's component map so a
// redraw never reshuffles the list.
func componentOrder(components map[string]api.Component) []string {
	keys := make([]string, 0, len(components))
	for k := range components {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalNewProject:
		return "New project\n\nName:        " + a.titleInput.View() +
			"\nDescription: " + a.descInput.View() +
			"\n\n" + a.styles.Help.Render("[enter] Create  [tab] Next field  [esc] Cancel")

	case modalConnect:
		var b strings.Builder
		b.WriteString("Connect data source\n\n")
		for i, k := range connector.Catalog() {
			marker := "  "
			line := fmt.Sprintf("%-14s %s", k.Name, a.styles.Subtitle.Render(k.Description))
			if k.Mode == connector.ModeUnsupported {
				line += " " + a.styles.Unsupport.Render("(not supported yet)")
			}
			if i == a.kindCursor {
				marker = "▶ "
				line = a.styles.Selected.Render(line)
			}
			b.WriteString(marker + line + "\n")
		}
		b.WriteString("\n" + a.styles.Help.Render("[enter] Select  [esc] Cancel"))
		return b.String()

	case modalFilePath:
		return fmt.Sprintf("Upload %s file\n\nPath: %s\n\n%s",
			a.credKind, a.pathInput.View(),
			a.styles.Help.Render("[enter] Upload  [esc] Back"))

	case modalCredentials:
		var b strings.Builder
		fmt.Fprintf(&b, "Connect to %s\n\n", a.credKind)
		labels := []string{"Host", "Port", "Database", "Username", "Password"}
		for i, in := range a.credInputs {
			fmt.Fprintf(&b, "%-9s %s\n", labels[i]+":", in.View())
		}
		b.WriteString("\n" + a.styles.Help.Render("[enter] Connect  [tab] Next field  [esc] Back"))
		return b.String()

	case modalUnsupported:
		kind, _ := connector.KindByID(a.credKind)
		return a.styles.Unsupport.Render(fmt.Sprintf("%s connections are not supported yet.", kind.Name)) +
			"\n\n" + a.styles.Help.Render("[esc] Back")

	case modalStoryTitle:
		return "Create story\n\nTitle: " + a.titleInput.View() +
			"\n\n" + a.styles.Help.Render("[enter] Create  [esc] Cancel")

	case modalStoryDetail:
		if a.detailStory == nil {
			return ""
		}
		s := *a.detailStory
		var b strings.Builder
		b.WriteString(a.styles.Title.Render(s.Title) + "\n\n")
		if s.Narrative != "" {
			b.WriteString(s.Narrative + "\n\n")
		}
		b.WriteString(fmt.Sprintf("Components (%d):\n", len(s.Components)))
		for _, key := range componentOrder(s.Components) {
			c := s.Components[key]
			b.WriteString(fmt.Sprintf("  %s\n", c.Title))
			b.WriteString("  " + strings.TrimPrefix(a.renderInsight(c.Insight), "    "))
		}
		if a.busyExport {
			b.WriteString("\n" + a.spin.View() + " exporting...\n")
		}
		b.WriteString("\n" + a.styles.Help.Render("[p] Export PDF  [h] Export HTML  [esc] Close"))
		return b.String()
	}
	return ""
}
