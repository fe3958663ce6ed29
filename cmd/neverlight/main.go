package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/app"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "neverlight:", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := model.DefaultConfigPath()

	// Stdout belongs to the TUI; background log lines go to a file
	// next to the config.
	logFile, err := tea.LogToFile(filepath.Join(filepath.Dir(cfgPath), "neverlight.log"), "")
	if err == nil {
		defer logFile.Close()
	}

	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	// The cache is an optimization, not a source of truth; without it
	// the app runs network-only.
	var st store.Store
	st, err = store.NewSQLiteStore(model.DefaultCachePath())
	if err != nil {
		log.Printf("cache unavailable, running network-only: %v", err)
		st = store.NewNoopStore()
	}
	defer st.Close()

	p := tea.NewProgram(app.New(cfg, cfgPath, st), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
