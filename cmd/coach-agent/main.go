package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/config"
)

var (
	version   = "0.1.0"
	cfgFile   string
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "coach-agent",
	Short: "AI Esports Coach agent",
	Long:  `Coach Agent - streams your gameplay screen to a realtime AI coach and relays its advice back during the match`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Coach Agent v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check agent status",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is coach-agent.yaml in the user config dir)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "coach backend URL")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func checkStatus() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println("Status: Not configured")
		return
	}

	if cfg.DeviceID == "" {
		fmt.Println("Status: Not paired")
		return
	}

	fmt.Println("Status: Paired")
	fmt.Printf("Device ID: %s\n", cfg.DeviceID)
	fmt.Printf("Server: %s\n", cfg.ServerURL)
	if cfg.Game != "" {
		fmt.Printf("Game: %s (pinned)\n", cfg.Game)
	} else {
		fmt.Println("Game: auto-detect")
	}
	if cfg.Archive.Enabled {
		fmt.Printf("Archive: %s\n", cfg.Archive.Provider)
	}
}
