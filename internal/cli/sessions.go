package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List archived sessions",
		Run:   runSessions,
	}

	cmd.Flags().Bool("ids-only", false, "Only output session ids")

	RootCmd.AddCommand(cmd)
}

func runSessions(cmd *cobra.Command, args []string) {
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	cfg := loadConfig()
	a, err := openArchive(cfg)
	if err != nil {
		exitErr("open archive", err)
	}
	defer a.Close()

	sessions, err := a.List(cmd.Context())
	if err != nil {
		exitErr("sessions", err)
	}

	if idsOnly {
		for _, s := range sessions {
			fmt.Println(s.SessionID)
		}
		return
	}

	if formatFlag == "text" {
		for _, s := range sessions {
			status := "active"
			if s.Completed {
				status = "completed"
			}
			fmt.Printf("%s  %d thoughts  %d branches  %s  %s\n",
				s.SessionID, s.Thoughts, s.Branches, status,
				s.LastModified.Format("2006-01-02 15:04"))
		}
		return
	}

	b, _ := json.MarshalIndent(sessions, "", "  ")
	fmt.Println(string(b))
}
