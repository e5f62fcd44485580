package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyze <session-id>",
		Short: "Analyze a session's thinking patterns",
		Args:  cobra.ExactArgs(1),
		Run:   runAnalyze,
	}

	RootCmd.AddCommand(cmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	a, err := openArchive(cfg)
	if err != nil {
		exitErr("open archive", err)
	}
	defer a.Close()

	svc := newService(cfg)
	defer svc.Registry().Close()

	if err := restoreSession(cmd.Context(), a, svc, args[0], false); err != nil {
		exitErr("load session", err)
	}

	report, err := svc.AnalyzeSession(args[0])
	if err != nil {
		exitErr("analyze", err)
	}

	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
}
