package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"thinktrace/internal/export"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session",
		Long:  "Export a session as a structured JSON document or a narrative text linearization.",
		Args:  cobra.ExactArgs(1),
		Run:   runExport,
	}

	cmd.Flags().String("as", "structured", "Export format: structured or narrative")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("as")
	output, _ := cmd.Flags().GetString("output")

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

	doc, err := svc.ExportSession(args[0], format)
	if err != nil {
		exitErr("export", err)
	}

	var out []byte
	if doc.Format == export.FormatNarrative {
		out = []byte(doc.Narrative())
	} else {
		out, _ = json.MarshalIndent(doc, "", "  ")
		out = append(out, '\n')
	}

	if output != "" {
		if err := os.WriteFile(output, out, 0o644); err != nil {
			exitErr("write output", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"path":%q}`+"\n", output)
		return
	}
	os.Stdout.Write(out)
}
