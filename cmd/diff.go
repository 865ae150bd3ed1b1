package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adalundhe/agentvc/core/diff"
	"github.com/adalundhe/agentvc/core/model"
	"github.com/adalundhe/agentvc/core/store"
)

var diffUnified int

var diffCmd = &cobra.Command{
	Use:   "diff [commit-id]",
	Short: "Show diffs for a commit, or for the uncommitted changes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().IntVarP(&diffUnified, "unified", "U", 0, "render unified diffs with N context lines")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	session, err := st.GetActiveSession(cmd.Context())
	if err != nil {
		return err
	}

	var changes []*model.Change
	if len(args) == 1 {
		commitID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid commit id: %w", err)
		}
		commit, err := st.GetCommit(cmd.Context(), commitID)
		if err != nil {
			return err
		}

		fmt.Printf("Diff for commit %s\n", commit.ID)
		fmt.Printf("Message: %s\n\n", commit.Message)

		changes = resolveChanges(cmd, st, commit.Changes)
	} else {
		changes, err = st.UncommittedChanges(cmd.Context(), session.ID)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Println("No uncommitted changes")
			return nil
		}
		fmt.Println("Uncommitted changes")
		fmt.Println()
	}

	for _, change := range changes {
		fmt.Println(strings.Repeat("-", 80))
		fmt.Printf("%s %s\n\n", kindTag(change.Kind), change.Path)
		printDiff(change)
		fmt.Println()
	}

	return nil
}

func resolveChanges(cmd *cobra.Command, st *store.Store, ids []uuid.UUID) []*model.Change {
	changes := make([]*model.Change, 0, len(ids))
	for _, id := range ids {
		change, err := st.GetChange(cmd.Context(), id)
		if err != nil {
			continue
		}
		changes = append(changes, change)
	}
	return changes
}

func printDiff(change *model.Change) {
	d := diff.FromChange(change)

	if len(d.Lines) == 0 {
		fmt.Println("  [binary file or diff unavailable]")
		return
	}

	if diffUnified > 0 {
		fmt.Print(d.FormatUnified(diffUnified))
		return
	}

	for _, line := range d.Lines {
		switch line.Kind {
		case diff.LineAddition:
			fmt.Printf("+%s\n", line.Content)
		case diff.LineDeletion:
			fmt.Printf("-%s\n", line.Content)
		default:
			fmt.Printf(" %s\n", line.Content)
		}
	}
}

func kindTag(kind model.ChangeKind) string {
	switch kind {
	case model.ChangeCreate:
		return "NEW"
	case model.ChangeModify:
		return "MOD"
	case model.ChangeDelete:
		return "DEL"
	case model.ChangeRename:
		return "REN"
	default:
		return "???"
	}
}
