package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "merge <session-id> <session-id> [session-id...]",
		Short: "Merge sessions into a new session",
		Long:  "Merge two or more sessions, in argument order, into a new session. Source sessions are left untouched.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runMerge,
	}

	cmd.Flags().String("strategy", "renumber", "Collision strategy: renumber or reject_on_collision")

	RootCmd.AddCommand(cmd)
}

func runMerge(cmd *cobra.Command, args []string) {
	strategy, _ := cmd.Flags().GetString("strategy")

	cfg := loadConfig()
	a, err := openArchive(cfg)
	if err != nil {
		exitErr("open archive", err)
	}
	defer a.Close()

	svc := newService(cfg)
	defer svc.Registry().Close()

	for _, id := range args {
		if err := restoreSession(cmd.Context(), a, svc, id, false); err != nil {
			exitErr("load session", err)
		}
	}

	mergedID, err := svc.MergeSessions(args, strategy)
	if err != nil {
		exitErr("merge", err)
	}

	if err := saveSession(cmd.Context(), a, svc, mergedID); err != nil {
		exitErr("save session", err)
	}

	b, _ := json.Marshal(map[string]any{"session_id": mergedID, "merged": len(args)})
	fmt.Println(string(b))
}
