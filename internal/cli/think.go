package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"thinktrace/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "think [text]",
		Short: "Record a thought",
		Long:  "Record one thought in a session. Text can be a positional arg or piped via stdin. The session is created on first use.",
		Run:   runThink,
	}

	cmd.Flags().StringP("session", "s", "", "Session id (required)")
	cmd.Flags().IntP("number", "n", 0, "Thought number (required)")
	cmd.Flags().IntP("total", "t", 0, "Current estimate of total thoughts (required)")
	cmd.Flags().Bool("final", false, "Mark this as the final thought")
	cmd.Flags().IntP("revises", "r", 0, "Number of the thought this one revises")
	cmd.Flags().StringP("branch", "b", "", "Branch id to append to")
	cmd.Flags().Int("branch-point", 0, "Thought number the branch forks from (first branch record only)")
	cmd.Flags().String("parent-branch", "", "Parent branch for a new branch (default: main)")
	cmd.Flags().Bool("needs-expansion", false, "Flag that more thoughts are needed than estimated")

	cmd.MarkFlagRequired("session")
	cmd.MarkFlagRequired("number")
	cmd.MarkFlagRequired("total")

	RootCmd.AddCommand(cmd)
}

func runThink(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	number, _ := cmd.Flags().GetInt("number")
	total, _ := cmd.Flags().GetInt("total")
	final, _ := cmd.Flags().GetBool("final")
	revises, _ := cmd.Flags().GetInt("revises")
	branch, _ := cmd.Flags().GetString("branch")
	branchPoint, _ := cmd.Flags().GetInt("branch-point")
	parentBranch, _ := cmd.Flags().GetString("parent-branch")
	needsExpansion, _ := cmd.Flags().GetBool("needs-expansion")

	// Get text: positional arg first, then check stdin
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}

	if strings.TrimSpace(text) == "" {
		exitErr("think", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	cfg := loadConfig()
	a, err := openArchive(cfg)
	if err != nil {
		exitErr("open archive", err)
	}
	defer a.Close()

	svc := newService(cfg)
	defer svc.Registry().Close()

	if err := restoreSession(cmd.Context(), a, svc, sessionID, true); err != nil {
		exitErr("load session", err)
	}

	accepted, err := svc.AddThought(sessionID, model.ThoughtInput{
		Text:           strings.TrimSpace(text),
		Number:         number,
		DeclaredTotal:  total,
		Continues:      !final,
		RevisionOf:     revises,
		BranchID:       branch,
		BranchPoint:    branchPoint,
		ParentBranch:   parentBranch,
		NeedsExpansion: needsExpansion,
	})
	if err != nil {
		exitErr("think", err)
	}

	if err := saveSession(cmd.Context(), a, svc, sessionID); err != nil {
		exitErr("save session", err)
	}

	b, _ := json.Marshal(accepted)
	fmt.Println(string(b))
}
