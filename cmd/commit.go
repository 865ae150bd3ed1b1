package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adalundhe/agentvc/core/model"
)

var commitAgent string

var commitCmd = &cobra.Command{
	Use:   "commit <message>",
	Short: "Commit all uncommitted changes with a message",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommit,
}

func init() {
	commitCmd.Flags().StringVarP(&commitAgent, "agent", "a", "cli-user", "agent identifier recorded on the commit")
	rootCmd.AddCommand(commitCmd)
}

func runCommit(cmd *cobra.Command, args []string) error {
	message := args[0]

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	session, err := st.GetActiveSession(cmd.Context())
	if err != nil {
		return err
	}

	changes, err := st.UncommittedChanges(cmd.Context(), session.ID)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Println("No changes to commit")
		return nil
	}

	ids := make([]uuid.UUID, 0, len(changes))
	for _, change := range changes {
		ids = append(ids, change.ID)
	}

	commit := model.NewCommit(message, commitAgent, ids, session.ID)
	if infos, err := st.CommitsForSession(cmd.Context(), session.ID); err == nil && len(infos) > 0 {
		commit.WithParent(infos[0].Commit.ID)
	}

	if err := st.CreateCommit(cmd.Context(), commit); err != nil {
		return err
	}

	fmt.Println("Commit created")
	fmt.Printf("  Commit:  %s\n", commit.ID)
	fmt.Printf("  Message: %s\n", message)
	fmt.Printf("  Agent:   %s\n", commitAgent)
	fmt.Printf("  Changes: %d\n", len(changes))

	return nil
}
