package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show commit history",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "number of commits to show (0 = all)")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	session, err := st.GetActiveSession(cmd.Context())
	if err != nil {
		return err
	}

	infos, err := st.CommitsForSession(cmd.Context(), session.ID)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No commits yet")
		return nil
	}

	toShow := len(infos)
	if logLimit > 0 && logLimit < toShow {
		toShow = logLimit
	}

	fmt.Println("Commit History")
	fmt.Println()

	for _, info := range infos[:toShow] {
		commit := info.Commit
		fmt.Printf("commit %s\n", commit.ID)
		fmt.Printf("Agent: %s\n", commit.AgentID)
		fmt.Printf("Date:  %s\n", commit.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Println()
		fmt.Printf("    %s\n\n", commit.Message)
		fmt.Printf("    %d file(s) changed\n", info.ChangeCount)

		files := info.FilesAffected
		shown := files
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, path := range shown {
			fmt.Printf("      * %s\n", path)
		}
		if len(files) > 5 {
			fmt.Printf("      ... and %d more\n", len(files)-5)
		}
		fmt.Println()
	}

	if len(infos) > toShow {
		fmt.Printf("... and %d more commits (use --limit N to see more)\n", len(infos)-toShow)
	}

	return nil
}
