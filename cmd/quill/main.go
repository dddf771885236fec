package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/dataquill/quill/internal/analysis"
	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/assistant"
	"github.com/dataquill/quill/internal/auth"
	"github.com/dataquill/quill/internal/config"
	"github.com/dataquill/quill/internal/connector"
	"github.com/dataquill/quill/internal/history"
	"github.com/dataquill/quill/internal/logx"
	"github.com/dataquill/quill/internal/store"
	"github.com/dataquill/quill/internal/story"
	"github.com/dataquill/quill/internal/tui"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := logx.Init(cfg.Log.Path, cfg.Log.Debug); err != nil {
		log.Printf("warn: logging to %s unavailable: %v", cfg.Log.Path, err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
		log.Fatalf("mkdir history dir: %v", err)
	}
	if err := history.RunMigrations(cfg.History.Path, cfg.History.MigrationsPath); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	db, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Fatalf("open history db: %v", err)
	}
	defer db.Close()

	client := api.New(cfg.Server.URL, cfg.Server.Timeout)
	session := auth.NewSession(client, auth.NewKeystore())
	session.Restore()

	projects := store.New(client)
	runner := analysis.New(client, projects)

	deps := tui.Deps{
		Session:   session,
		Store:     projects,
		Connector: connector.New(client, projects),
		Runner:    runner,
		Assistant: assistant.New(client, projects, runner, history.NewArchive(db)),
		Composer:  story.New(client, projects),
	}

	p := tea.NewProgram(tui.New(ctx, cfg, deps), tea.WithAltScreen())
	// a 401 anywhere routes back to the login view, whichever component hit it
	session.OnExpired(func() { p.Send(tui.SessionExpired()) })
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}
