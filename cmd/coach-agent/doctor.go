package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/archive"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/audio"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/config"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/games"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/health"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/media"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run connectivity and capture preflight checks",
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor()
	},
}

func runDoctor() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Check output goes to stdout; suppress routine log noise.
	logging.Init("text", "error", os.Stderr)

	monitor := health.NewMonitor()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	checkPairing(cfg, monitor)
	checkBackend(ctx, cfg, monitor)
	checkLive(ctx, cfg, monitor)
	checkCapture(monitor)
	checkMicrophone(monitor)
	checkArchive(ctx, cfg, monitor)
	checkGame(cfg, monitor)

	overall := monitor.Overall()
	fmt.Printf("\nOverall: %s\n", overall)
	if overall == health.Unhealthy || overall == health.Unknown {
		os.Exit(1)
	}
}

func report(m *health.Monitor, name string, status health.Status, msg string) {
	m.Update(name, status, msg)
	if msg != "" {
		fmt.Printf("  %-10s %-10s %s\n", name, status, msg)
	} else {
		fmt.Printf("  %-10s %s\n", name, status)
	}
}

func checkPairing(cfg *config.Config, m *health.Monitor) {
	if cfg.DeviceID == "" || cfg.AuthToken == "" {
		report(m, "pairing", health.Unhealthy, "not paired, run 'coach-agent pair <code>'")
		return
	}
	report(m, "pairing", health.Healthy, "device "+cfg.DeviceID)
}

func checkBackend(ctx context.Context, cfg *config.Config, m *health.Monitor) {
	if cfg.ServerURL == "" {
		report(m, "backend", health.Unknown, "no server URL configured")
		return
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Hostname() == "" {
		report(m, "backend", health.Unhealthy, fmt.Sprintf("bad server URL %q", cfg.ServerURL))
		return
	}

	if rtt, ok := pingHost(u.Hostname(), 2*time.Second); ok {
		report(m, "backend", health.Healthy, fmt.Sprintf("ping %s in %s", u.Hostname(), rtt.Round(time.Millisecond)))
		return
	}

	// ICMP needs raw sockets and may be filtered; fall back to TCP.
	if rtt, err := dialCheck(ctx, hostPort(u)); err == nil {
		report(m, "backend", health.Healthy, fmt.Sprintf("tcp %s in %s", hostPort(u), rtt.Round(time.Millisecond)))
	} else {
		report(m, "backend", health.Unhealthy, fmt.Sprintf("dial %s: %v", hostPort(u), err))
	}
}

func checkLive(ctx context.Context, cfg *config.Config, m *health.Monitor) {
	if cfg.LiveURL == "" {
		report(m, "live", health.Unknown, "no live URL configured (set by pairing)")
		return
	}
	u, err := url.Parse(cfg.LiveURL)
	if err != nil || u.Hostname() == "" {
		report(m, "live", health.Unhealthy, fmt.Sprintf("bad live URL %q", cfg.LiveURL))
		return
	}
	if rtt, err := dialCheck(ctx, hostPort(u)); err == nil {
		report(m, "live", health.Healthy, fmt.Sprintf("tcp %s in %s", hostPort(u), rtt.Round(time.Millisecond)))
	} else {
		report(m, "live", health.Unhealthy, fmt.Sprintf("dial %s: %v", hostPort(u), err))
	}
}

func checkCapture(m *health.Monitor) {
	src := media.NewScreenSource(media.GrabConfig{})
	st, err := src.Start()
	if err != nil {
		report(m, "capture", health.Unhealthy, err.Error())
		return
	}
	defer src.Stop()
	if w, h, err := st.Bounds(); err == nil {
		report(m, "capture", health.Healthy, fmt.Sprintf("screen %dx%d", w, h))
	} else {
		report(m, "capture", health.Degraded, "opened, bounds unknown")
	}
}

func checkMicrophone(m *health.Monitor) {
	meter := audio.NewInputMeter()
	if meter == nil {
		report(m, "audio", health.Degraded, "metering not supported on this platform")
		return
	}
	if err := meter.Start(func(float64) {}); err != nil {
		report(m, "audio", health.Degraded, err.Error())
		return
	}
	meter.Stop()
	report(m, "audio", health.Healthy, "")
}

func checkArchive(ctx context.Context, cfg *config.Config, m *health.Monitor) {
	if !cfg.Archive.Enabled {
		fmt.Printf("  %-10s skipped (disabled)\n", "archive")
		return
	}
	provider, err := archive.OpenProvider(ctx, cfg.Archive)
	if err != nil {
		report(m, "archive", health.Unhealthy, err.Error())
		return
	}
	mgr := archive.NewManager(archive.Options{Provider: provider})
	sessions, err := mgr.List(ctx)
	if err != nil {
		report(m, "archive", health.Unhealthy, fmt.Sprintf("list: %v", err))
		return
	}
	report(m, "archive", health.Healthy, fmt.Sprintf("%s, %d sessions", cfg.Archive.Provider, len(sessions)))
}

func checkGame(cfg *config.Config, m *health.Monitor) {
	catalog := games.BuiltinCatalog()
	if cfg.GamesFile != "" {
		c, err := games.LoadCatalog(cfg.GamesFile)
		if err != nil {
			report(m, "game", health.Unhealthy, fmt.Sprintf("games file: %v", err))
			return
		}
		catalog = c
	}
	if cfg.Game != "" {
		g, ok := catalog.Find(cfg.Game)
		if !ok {
			report(m, "game", health.Unhealthy, fmt.Sprintf("unknown game %q", cfg.Game))
			return
		}
		report(m, "game", health.Healthy, g.Name+" (pinned)")
		return
	}
	if g, ok := games.NewDetector(catalog).Detect(); ok {
		report(m, "game", health.Healthy, g.Name+" running")
	} else {
		report(m, "game", health.Healthy, fmt.Sprintf("none of %d known games running", catalog.Len()))
	}
}

func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https", "wss":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func dialCheck(ctx context.Context, addr string) (time.Duration, error) {
	start := time.Now()
	conn, err := (&net.Dialer{Timeout: 5 * time.Second}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, err
	}
	conn.Close()
	return time.Since(start), nil
}

// pingHost sends a single ICMP echo and waits for the matching reply.
// Requires raw socket privileges; callers fall back to TCP when this
// reports false.
func pingHost(hostname string, timeout time.Duration) (time.Duration, bool) {
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return 0, false
	}
	var ip net.IP
	for _, cand := range ips {
		if v4 := cand.To4(); v4 != nil {
			ip = v4
			break
		}
	}
	if ip == nil {
		return 0, false
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return 0, false
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	seq := rand.IntN(1 << 16)
	message := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte("coach-agent doctor"),
		},
	}
	payload, err := message.Marshal(nil)
	if err != nil {
		return 0, false
	}

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return 0, false
	}

	sendTime := time.Now()
	if _, err := conn.WriteTo(payload, &net.IPAddr{IP: ip}); err != nil {
		return 0, false
	}

	buffer := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buffer)
		if err != nil {
			return 0, false
		}
		peerIP, ok := peer.(*net.IPAddr)
		if !ok || !peerIP.IP.Equal(ip) {
			continue
		}

		parsed, err := icmp.ParseMessage(1, buffer[:n])
		if err != nil {
			continue
		}
		if parsed.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := parsed.Body.(*icmp.Echo)
		if !ok {
			continue
		}
		if echo.ID == id && echo.Seq == seq {
			return time.Since(sendTime), true
		}
	}
}
