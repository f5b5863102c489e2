package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rangelab/labctl/internal/agent"
)

var studentID string

func init() {
	defaultStudent := os.Getenv("LAB_STUDENT_ID")
	if defaultStudent == "" {
		defaultStudent = "student-01"
	}
	studentCmd.PersistentFlags().StringVar(&studentID, "student", defaultStudent, "student identifier")

	studentCmd.AddCommand(
		studentListCmd,
		studentStartCmd,
		studentVerifyCmd,
		studentHintCmd,
		studentChatCmd,
		studentStatusCmd,
	)
}

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Student commands: list, start, verify, hint, chat, status",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available labs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		labs, session, err := a.ctl.ListLabs(cmd.Context(), studentID)
		if err != nil {
			return err
		}

		fmt.Println("\nAvailable Labs:")
		fmt.Println()
		if len(labs) == 0 {
			fmt.Println("  No labs found in the catalog.")
			return nil
		}
		for _, def := range labs {
			marker := "○"
			if session.Completed(def.ID) {
				marker = "✓"
			}
			fmt.Printf("  %s %s: %s\n", marker, def.ID, def.Title)
			fmt.Printf("     Difficulty: %s\n", def.Difficulty)
			fmt.Printf("     Objectives: %d\n", len(def.Objectives))
			fmt.Println()
		}
		return nil
	},
}

var studentStartCmd = &cobra.Command{
	Use:   "start <lab-id>",
	Short: "Start a lab exercise",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return cmd.Usage()
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.rng != nil {
			if _, err := a.rng.EnsureNetwork(cmd.Context()); err != nil {
				fmt.Println("Warning: lab network unavailable:", err)
			}
		}

		info, err := a.ctl.StartLab(cmd.Context(), studentID, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("\nStarting Lab: %s\n\n", info.Lab.Title)
		fmt.Printf("Difficulty: %s\n", info.Lab.Difficulty)
		fmt.Printf("Description: %s\n\n", info.Lab.Description)
		fmt.Println("Objectives:")
		for i, obj := range info.Lab.Objectives {
			fmt.Printf("  %d. %s\n", i+1, obj)
		}
		fmt.Println()
		if info.HasStarter {
			fmt.Println("Starter code available in the lab directory.")
		}
		fmt.Printf("Lab started (attempt %d). Good luck!\n\n", info.Attempt)
		fmt.Println("Hints available: labctl student hint")
		fmt.Println("Verify progress: labctl student verify")
		return nil
	},
}

var studentVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify lab completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		outcome, err := a.ctl.Verify(cmd.Context(), studentID)
		if err != nil {
			return err
		}

		fmt.Printf("\nVerifying %s...\n\n", outcome.Lab.Title)
		fmt.Println("Results:")
		for _, obj := range outcome.Result.ObjectivesMet {
			fmt.Printf("  ✓ %s\n", obj)
		}
		for _, obj := range outcome.Result.ObjectivesFailed {
			fmt.Printf("  ✗ %s\n", obj)
		}
		fmt.Printf("\nScore: %d/100\n", outcome.Result.Score)

		if len(outcome.Result.Feedback) > 0 {
			fmt.Println("\nFeedback:")
			for _, fb := range outcome.Result.Feedback {
				fmt.Printf("  • %s\n", fb)
			}
		}

		if outcome.Passed {
			fmt.Println("\nLab completed!")
		} else {
			fmt.Printf("\nNot quite there yet (pass score is %d). Keep trying!\n", outcome.PassScore)
		}
		return nil
	},
}

var studentHintCmd = &cobra.Command{
	Use:   "hint",
	Short: "Show a hint for the current lab",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		hint, err := a.ctl.Hint(cmd.Context(), studentID)
		if err != nil {
			return err
		}
		if hint.Number == 0 {
			fmt.Println("\nNo hints available for this lab")
			return nil
		}

		fmt.Printf("\nHint #%d:\n", hint.Number)
		fmt.Printf("   %s\n\n", hint.Text)
		return nil
	},
}

var studentChatCmd = &cobra.Command{
	Use:   "chat <red|blue> <message>",
	Short: "Send an instruction to an agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return cmd.Usage()
		}

		role, err := agent.ParseRole(args[0])
		if err != nil {
			fmt.Printf("Unknown agent: %s. Use 'red' or 'blue'\n", args[0])
			return nil
		}
		message := strings.Join(args[1:], " ")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("\nSending to %s agent: %s\n\n", role, message)
		response := a.ctl.Chat(cmd.Context(), role, message)
		fmt.Printf("Response:\n%s\n\n", response)
		return nil
	},
}

var studentStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show student status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.ctl.Status(cmd.Context(), studentID)
		if err != nil {
			return err
		}

		fmt.Printf("\nStudent Status: %s\n\n", studentID)
		currentLab := status.Progress.CurrentLab
		if currentLab == "" {
			currentLab = "None"
		}
		fmt.Printf("Current Lab: %s\n", currentLab)
		fmt.Printf("Completed Labs: %d\n", status.Progress.CompletedCount)
		fmt.Printf("Total Score: %d\n", status.Progress.TotalScore)
		fmt.Println("\nAgent Status:")
		fmt.Printf("  Red Team: %s\n", checkmark(status.Agents.RedLoaded))
		fmt.Printf("  Blue Team: %s\n", checkmark(status.Agents.BlueLoaded))

		if a.rng != nil {
			targets, err := a.rng.TargetStatus(cmd.Context())
			if err == nil && len(targets) > 0 {
				fmt.Println("\nRange Targets:")
				for _, t := range targets {
					fmt.Printf("  %s: %s\n", t.Name, t.State)
				}
			}
		}
		fmt.Println()
		return nil
	},
}

func checkmark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
