package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rangelab/labctl/internal/dashboard"
)

var resetConfirmed bool

func init() {
	instructorResetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "skip the confirmation prompt")

	instructorCmd.AddCommand(
		instructorDashboardCmd,
		instructorMonitorCmd,
		instructorGradeCmd,
		instructorResetCmd,
		instructorStatsCmd,
	)
}

var instructorCmd = &cobra.Command{
	Use:   "instructor",
	Short: "Instructor commands: dashboard, monitor, grade, reset, stats",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

var instructorDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the instructor web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := dashboard.New(a.repo, a.interactions, a.cfg.DashboardAddr)
		fmt.Printf("Dashboard: http://localhost%s\n", a.cfg.DashboardAddr)
		return srv.Run(ctx)
	},
}

var instructorMonitorCmd = &cobra.Command{
	Use:   "monitor <student-id>",
	Short: "Watch a student's progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return cmd.Usage()
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.ctl.Monitor(cmd.Context(), args[0], 10)
		if err != nil {
			return err
		}

		fmt.Printf("\nMonitoring: %s\n\n", args[0])
		currentLab := info.Progress.CurrentLab
		if currentLab == "" {
			currentLab = "None"
		}
		fmt.Printf("Current Lab: %s\n", currentLab)
		fmt.Printf("Completed: %d\n", info.Progress.CompletedCount)
		fmt.Printf("Score: %d\n", info.Progress.TotalScore)
		fmt.Printf("Attempts: %v\n", info.Progress.Attempts)

		if len(info.Recent) > 0 {
			fmt.Println("\nRecent Activity:")
			for _, line := range info.Recent {
				fmt.Printf("  %s\n", line)
			}
		}
		return nil
	},
}

var instructorGradeCmd = &cobra.Command{
	Use:   "grade <student-id>",
	Short: "Generate a grade report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return cmd.Usage()
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := a.ctl.Grade(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("\nGrade Report: %s\n\n", args[0])
		fmt.Printf("Total Score: %d\n", session.Score)
		fmt.Printf("Labs Completed: %d\n", len(session.CompletedLabs))
		fmt.Println("\nDetailed Breakdown:")
		for labID, attempts := range session.Attempts {
			marker := "○"
			if session.Completed(labID) {
				marker = "✓"
			}
			fmt.Printf("  %s %s: %d attempts\n", marker, labID, attempts)
		}
		return nil
	},
}

var instructorResetCmd = &cobra.Command{
	Use:   "reset <student-id>",
	Short: "Reset a student's environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return cmd.Usage()
		}
		target := args[0]

		fmt.Printf("Resetting environment for %s...\n", target)
		fmt.Println("This will:")
		fmt.Println("  - Clear student session data")
		fmt.Println("  - Reset lab targets to a clean state")
		fmt.Println("  - Preserve interaction logs for record-keeping")

		if !resetConfirmed && !confirm("\nProceed? (yes/no): ") {
			fmt.Println("Cancelled")
			return nil
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ctl.Reset(cmd.Context(), target); err != nil {
			return err
		}
		fmt.Printf("✓ %s reset complete\n", target)
		return nil
	},
}

var instructorStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show overall lab statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.ctl.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("\nLab Statistics")
		fmt.Println()
		if stats.Students == 0 {
			fmt.Println("No student data yet")
			return nil
		}
		fmt.Printf("Total Students: %d\n", stats.Students)
		fmt.Printf("Total Lab Completions: %d\n", stats.Completions)
		fmt.Printf("Average Score: %.1f\n", stats.AverageScore)
		return nil
	},
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}
