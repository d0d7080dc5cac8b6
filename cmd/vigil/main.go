// cmd/vigil/main.go
//
// Entry point for the vigil binary.
//
// Flow:
// 1. Load .env and the .vigil project directory
// 2. Build the provider client, save store, and turn executor
// 3. Run the operator TUI or, with -auto, run headless until the
//    machine pauses, the game ends, or the process is interrupted

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/marrowfield/vigil/internal/chronicle"
	"github.com/marrowfield/vigil/internal/config"
	"github.com/marrowfield/vigil/internal/engine"
	"github.com/marrowfield/vigil/internal/engine/turn"
	"github.com/marrowfield/vigil/internal/game"
	"github.com/marrowfield/vigil/internal/logbook"
	"github.com/marrowfield/vigil/internal/prompt"
	"github.com/marrowfield/vigil/internal/provider"
	"github.com/marrowfield/vigil/internal/store"
	"github.com/marrowfield/vigil/internal/tui"
)

func main() {
	auto := flag.Bool("auto", false, "run headless until the game pauses or ends")
	dir := flag.String("dir", "", "project directory (defaults to the working directory)")
	flag.Parse()

	if err := run(*auto, *dir); err != nil {
		fmt.Fprintf(os.Stderr, "vigil: %v\n", err)
		os.Exit(1)
	}
}

func run(auto bool, dir string) error {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		dir = cwd
	}

	if err := config.InitVigilDir(dir); err != nil {
		return fmt.Errorf("initializing project directory: %w", err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "vigil.log"))
	if err != nil {
		return fmt.Errorf("opening logbook: %w", err)
	}

	client, err := provider.NewClient(provider.Config{
		APIKey:  cfg.APIKey(),
		BaseURL: cfg.Project.Provider.BaseURL,
		Model:   cfg.Project.Provider.Model,
	})
	if err != nil {
		return fmt.Errorf("building provider client: %w", err)
	}

	saves, err := store.Open(cfg.SavesPath())
	if err != nil {
		return fmt.Errorf("opening save store: %w", err)
	}
	defer saves.Close()

	roster, err := cfg.Roster()
	if err != nil {
		return fmt.Errorf("validating cast: %w", err)
	}

	controller := engine.New()
	executor, err := turn.New(game.NewState(roster), controller, prompt.Renderer{}, client,
		turn.WithLogger(lb),
		turn.WithRetryPolicy(cfg.Project.Retry.MaxAttempts, cfg.InitialDelay(), cfg.MaxDelay()),
	)
	if err != nil {
		return fmt.Errorf("building executor: %w", err)
	}

	if auto {
		return runHeadless(executor, cfg, lb)
	}

	p := tea.NewProgram(
		tui.NewApp(cfg, executor, saves, lb),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

// runHeadless drives the executor without a UI. SIGINT stops the loop
// before the next turn; a turn already in flight still lands.
func runHeadless(executor *turn.Executor, cfg *config.Config, lb *logbook.Logbook) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lb.Info("headless: auto-run started")
	result, err := executor.Run(ctx, cfg.AutoRunYield())
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("auto-run: %w", err)
	}
	state := executor.State()
	switch result {
	case turn.ResultGameOver:
		fmt.Printf("The game is over after %d rounds. The %s faction prevails.\n", state.Round, state.Winner)
		path, exportErr := chronicle.Export(cfg.ChroniclesDir(), state)
		if exportErr != nil {
			lb.Error("headless: chronicle export: %v", exportErr)
		} else {
			fmt.Printf("Chronicle written to %s.\n", path)
		}
	case turn.ResultWaiting:
		fmt.Println("Paused on an operator decision; resume with the TUI.")
	default:
		fmt.Println("Auto-run stopped.")
	}
	return nil
}
