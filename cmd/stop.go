package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "End the active session",
	Long: `End the active session. Useful when a tracking process exited without
closing out its session, leaving it marked active.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	session, err := st.GetActiveSession(cmd.Context())
	if err != nil {
		return err
	}

	session.End()
	if err := st.EndSession(cmd.Context(), session); err != nil {
		return err
	}

	fmt.Printf("Ended session %s (%s)\n", session.ID, session.RootPath)
	return nil
}
