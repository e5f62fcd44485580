// Package cli implements the thinktrace CLI commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"thinktrace/internal/config"
	"thinktrace/internal/service"
	"thinktrace/internal/session"
	"thinktrace/internal/store"
)

var (
	dbPath     string
	configPath string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "thinktrace",
	Short: "Structured thinking traces",
	Long:  "Record, revise, branch, and analyze step-by-step thinking sessions. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $THINKTRACE_DB or ~/.thinktrace/sessions.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: $THINKTRACE_CONFIG)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func loadConfig() config.Config {
	path := configPath
	if path == "" {
		path = os.Getenv("THINKTRACE_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		exitErr("load config", err)
	}
	return cfg
}

func getDBPath(cfg config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("THINKTRACE_DB"); env != "" {
		return env
	}
	return cfg.DBPath
}

func openArchive(cfg config.Config) (*store.Archive, error) {
	return store.Open(getDBPath(cfg))
}

// newService builds a registry-backed service for one command invocation.
// The caller must Close the returned registry.
func newService(cfg config.Config) *service.Service {
	return service.New(session.NewRegistry(cfg.RegistryConfig()))
}

// restoreSession loads an archived session into the live registry. A missing
// archive row is not an error when lenient is set; the session will be
// created on first append.
func restoreSession(ctx context.Context, a *store.Archive, svc *service.Service, id string, lenient bool) error {
	snap, err := a.Load(ctx, id)
	if err != nil {
		if lenient && errors.Is(err, session.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return svc.Registry().Put(session.Restore(snap, svc.Registry().SessionLimits()))
}

// saveSession writes the live session back to the archive.
func saveSession(ctx context.Context, a *store.Archive, svc *service.Service, id string) error {
	snap, err := svc.GetSession(id)
	if err != nil {
		return err
	}
	return a.Save(ctx, snap)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
