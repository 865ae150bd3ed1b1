package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adalundhe/agentvc/core/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active session and its uncommitted changes",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	fmt.Println("Session Status")
	fmt.Printf("  Root:    %s\n", session.RootPath)
	fmt.Printf("  Session: %s\n", session.ID)
	fmt.Printf("  Started: %s\n", session.Started.Format("2006-01-02 15:04:05"))
	fmt.Println()

	if len(changes) == 0 {
		fmt.Println("No uncommitted changes")
		return nil
	}

	fmt.Printf("Uncommitted changes: (%d)\n\n", len(changes))
	shown := changes
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, change := range shown {
		fmt.Printf("  %s %s\n", changeMarker(change.Kind), change.Path)
	}
	if len(changes) > 10 {
		fmt.Printf("\n  ... and %d more\n", len(changes)-10)
	}
	fmt.Println()
	fmt.Println(`Run 'agentvc commit "message"' to commit these changes`)

	return nil
}

func changeMarker(kind model.ChangeKind) string {
	switch kind {
	case model.ChangeCreate:
		return "+"
	case model.ChangeModify:
		return "~"
	case model.ChangeDelete:
		return "-"
	case model.ChangeRename:
		return ">"
	default:
		return "?"
	}
}
