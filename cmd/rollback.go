package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adalundhe/agentvc/core/rollback"
)

var rollbackExecute bool

var rollbackCmd = &cobra.Command{
	Use:   "rollback <commit-id>",
	Short: "Restore the workspace to the state before a commit",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

func init() {
	rollbackCmd.Flags().BoolVar(&rollbackExecute, "execute", false, "actually perform the rollback (default is a preview)")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	commitID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid commit id: %w", err)
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	commit, err := st.GetCommit(cmd.Context(), commitID)
	if err != nil {
		return err
	}

	fmt.Println("Rollback Preview")
	fmt.Printf("  Target Commit: %s\n", commit.ID)
	fmt.Printf("  Message:       %s\n", commit.Message)
	fmt.Printf("  Agent:         %s\n", commit.AgentID)
	fmt.Printf("  Date:          %s\n\n", commit.Timestamp.Format("2006-01-02 15:04:05"))

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	engine := rollback.NewEngine(st, logger)

	if !rollbackExecute {
		report, err := engine.Plan(cmd.Context(), commitID)
		if err != nil {
			return err
		}
		if len(report.Steps) == 0 {
			fmt.Println("No changes in this commit to rollback")
			return nil
		}

		fmt.Println("Files to be restored:")
		for _, step := range report.Steps {
			fmt.Printf("  %s  %s\n", step.Path, planDescription(step.Action))
		}
		fmt.Println()
		fmt.Println("This is a preview only. Run with --execute to perform the rollback")
		return nil
	}

	fmt.Println("Performing rollback...")
	report, err := engine.Execute(cmd.Context(), commitID)
	if err != nil {
		return err
	}

	for _, step := range report.Steps {
		if step.Err != nil {
			fmt.Printf("  x %s - failed\n", step.Path)
		} else {
			fmt.Printf("  ok %s\n", step.Path)
		}
	}

	fmt.Println()
	if report.Failed == 0 {
		fmt.Printf("Rolled back %d file(s)\n", report.Succeeded)
		return nil
	}

	fmt.Printf("Rolled back %d/%d files\n\n", report.Succeeded, len(report.Steps))
	fmt.Println("Errors:")
	for _, step := range report.Failures() {
		fmt.Printf("  %s: %v\n", step.Path, step.Err)
	}

	return nil
}

func planDescription(action rollback.Action) string {
	switch action {
	case rollback.ActionRemove:
		return "will be removed"
	case rollback.ActionRestore:
		return "will be restored"
	case rollback.ActionRecreate:
		return "will be recreated"
	case rollback.ActionRename:
		return "will be renamed back"
	case rollback.ActionSkip:
		return "no prior content, will be skipped"
	default:
		return "unknown"
	}
}
