package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/config"
	"github.com/osinkolu/AIEsports-Coach-Live/pkg/api"
)

var pairCmd = &cobra.Command{
	Use:   "pair [pairing-code]",
	Short: "Pair this device with your coach account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pairDevice(args[0])
	},
}

func pairDevice(code string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = config.Default()
	}

	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if cfg.ServerURL == "" {
		fmt.Fprintln(os.Stderr, "Server URL required. Use --server flag or set in config.")
		os.Exit(1)
	}

	fmt.Printf("Pairing with server: %s\n", cfg.ServerURL)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req := &api.PairRequest{
		PairingCode:  code,
		Architecture: runtime.GOARCH,
		AgentVersion: version,
		HostInfo:     collectHostInfo(ctx),
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		req.Hostname = info.Hostname
		req.OSType = info.OS
		req.OSVersion = info.PlatformVersion
	} else {
		req.Hostname, _ = os.Hostname()
		req.OSType = runtime.GOOS
	}

	client := api.NewClient(cfg.ServerURL, "", "")
	resp, err := client.Pair(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pairing failed: %v\n", err)
		os.Exit(1)
	}

	cfg.DeviceID = resp.DeviceID
	cfg.AuthToken = resp.Token
	if resp.LiveURL != "" {
		cfg.LiveURL = resp.LiveURL
	}
	if resp.Model != "" {
		cfg.Model = resp.Model
	}

	syncTemplates(ctx, cfg)

	if err := config.SaveTo(cfg, cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Pairing successful!")
	fmt.Printf("Device ID: %s\n", cfg.DeviceID)
	fmt.Println("Run 'coach-agent run' to start the agent.")
}

// syncTemplates pulls the account's coaching templates so the first run
// has them. Failures are not fatal; the agent ships with defaults.
func syncTemplates(ctx context.Context, cfg *config.Config) {
	client := api.NewClient(cfg.ServerURL, cfg.AuthToken, cfg.DeviceID)
	data, err := client.FetchTemplates(ctx)
	if err != nil || len(data) == 0 {
		return
	}

	path := config.TemplatesPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save templates: %v\n", err)
		return
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save templates: %v\n", err)
		return
	}
	cfg.TemplatesFile = path
	fmt.Println("Coaching templates synced.")
}

func collectHostInfo(ctx context.Context) *api.HostInfo {
	hi := &api.HostInfo{}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		hi.CPUModel = infos[0].ModelName
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		hi.CPUCores = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		hi.RAMTotalMB = vm.Total / 1024 / 1024
	}
	if hi.CPUModel == "" && hi.CPUCores == 0 && hi.RAMTotalMB == 0 {
		return nil
	}
	return hi
}
