package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/rollcall"
)

func main() {
	// print each change as the server commits it
	logChange := func(c rollcall.Change) {
		switch c.Type {
		case rollcall.ChangeStudent:
			slog.Info("attendance", "classroom_id", c.ClassroomID, "student", c.StudentIndex,
				"present", c.Present, "left", c.Left)
		default:
			slog.Info("change", "type", c.Type, "classroom_id", c.ClassroomID)
		}
	}

	rc, err := rollcall.New(
		rollcall.WithPort(8000),
		rollcall.WithTitle("Rollcall Demo"),
		rollcall.WithMetrics(true, ""),
		rollcall.WithClassrooms(
			rollcall.NewClassroom("一年甲班", "class-1a", "Bob", "Alice", "Carol", "Dave"),
			rollcall.NewClassroom("一年乙班", "class-1b", "Eve", "Frank", "Grace"),
		),
		rollcall.WithChangeCallback(logChange),
	)
	if err != nil {
		slog.Error("failed to create rollcall", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Rollcall Demo                                       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8000 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Classrooms:                                         ║")
	fmt.Println("  ║   • /class-1a, /class-1b (seeded)                     ║")
	fmt.Println("  ║   • a simulated teacher marks attendance every few s  ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go SimulateTeacher(ctx, "http://localhost:8000")

	if err := rc.Start(ctx); err != nil {
		slog.Error("rollcall error", "error", err)
		os.Exit(1)
	}
}
