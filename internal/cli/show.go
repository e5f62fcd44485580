package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		Run:   runShow,
	}

	RootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	a, err := openArchive(cfg)
	if err != nil {
		exitErr("open archive", err)
	}
	defer a.Close()

	snap, err := a.Load(cmd.Context(), args[0])
	if err != nil {
		exitErr("show", err)
	}

	if formatFlag == "text" {
		fmt.Printf("session %s", snap.SessionID)
		if snap.Title != "" {
			fmt.Printf(" (%s)", snap.Title)
		}
		fmt.Println()
		for _, t := range snap.Main {
			marker := ""
			if t.IsRevision() {
				marker = fmt.Sprintf(" (revises %d)", t.RevisionOf)
			}
			fmt.Printf("  %d/%d%s: %s\n", t.Number, t.DeclaredTotal, marker, t.Text)
		}
		for _, b := range snap.Branches {
			fmt.Printf("  branch %s from %s@%d\n", b.ID, b.Parent, b.ForkPoint)
			for _, t := range b.Thoughts {
				fmt.Printf("    %d: %s\n", t.Number, t.Text)
			}
		}
		return
	}

	b, _ := json.MarshalIndent(snap, "", "  ")
	fmt.Println(string(b))
}
