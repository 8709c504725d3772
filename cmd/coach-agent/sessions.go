package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/archive"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/config"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived coaching sessions",
	Run: func(cmd *cobra.Command, args []string) {
		listSessions()
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete an archived session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deleteSession(args[0])
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func openArchive(ctx context.Context) *archive.Manager {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Archive.Enabled {
		fmt.Println("Archiving is disabled. Enable it in the config to keep session recordings.")
		os.Exit(0)
	}

	logging.Init("text", "error", os.Stderr)

	provider, err := archive.OpenProvider(ctx, cfg.Archive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open archive provider: %v\n", err)
		os.Exit(1)
	}
	return archive.NewManager(archive.Options{Provider: provider})
}

func listSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sessions, err := openArchive(ctx).List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list sessions: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Println("No archived sessions.")
		return
	}

	for _, s := range sessions {
		game := s.Game
		if game == "" {
			game = "-"
		}
		dur := s.EndedAt.Sub(s.StartedAt).Round(time.Second)
		fmt.Printf("%s  %-18s %s  %4s  %3d msgs  %2d stills  %s\n",
			s.ID, game, s.StartedAt.Local().Format("2006-01-02 15:04"),
			dur, s.Entries, s.Stills, formatBytes(s.Size))
	}
}

func deleteSession(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := openArchive(ctx).Delete(ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to delete session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %s\n", id)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
