package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/archive"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/audio"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/config"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/engine"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/games"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/health"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/live"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/media"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/notify"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/workerpool"
)

var log = logging.L("agent")

const (
	// archiveTimeout bounds a single session upload.
	archiveTimeout = 60 * time.Second

	// flushTimeout bounds the shutdown wait for in-flight uploads.
	flushTimeout = 30 * time.Second
)

var (
	displayIndex int
	cameraIndex  int
	withCamera   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the coaching agent",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

func init() {
	runCmd.Flags().IntVar(&displayIndex, "display", 0, "display to capture (0 = primary)")
	runCmd.Flags().IntVar(&cameraIndex, "camera", 0, "camera device index")
	runCmd.Flags().BoolVar(&withCamera, "with-camera", false, "also capture the camera")
}

func runAgent() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.DeviceID == "" || cfg.AuthToken == "" {
		fmt.Fprintln(os.Stderr, "Not paired. Run 'coach-agent pair <code>' first.")
		os.Exit(1)
	}

	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w, err := logging.NewRotatingWriter(cfg.LogFile, 20, 3)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer w.Close()
		logOut = w
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logOut)
	cfg.Validate()

	catalog := loadCatalog(cfg)
	templates := loadTemplates(cfg)

	var pinned games.Game
	if cfg.Game != "" {
		g, ok := catalog.Find(cfg.Game)
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown game %q. Known games:\n", cfg.Game)
			for _, k := range catalog.All() {
				fmt.Fprintf(os.Stderr, "  %s\n", k.ID)
			}
			os.Exit(1)
		}
		pinned = g
	}

	fmt.Printf("Starting Coach Agent v%s\n", version)
	fmt.Printf("Device ID: %s\n", cfg.DeviceID)
	if pinned.ID != "" {
		fmt.Printf("Game: %s (pinned)\n", pinned.Name)
	} else {
		fmt.Printf("Game: auto-detect (%d known)\n", catalog.Len())
	}

	monitor := health.NewMonitor()

	var arch *archiver
	var pool *workerpool.Pool
	if cfg.Archive.Enabled {
		provider, err := archive.OpenProvider(context.Background(), cfg.Archive)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open archive provider: %v\n", err)
			os.Exit(1)
		}
		pool = workerpool.New(2, 16)
		arch = &archiver{
			mgr: archive.NewManager(archive.Options{
				Provider:  provider,
				Pool:      pool,
				Retention: cfg.Archive.Retention,
			}),
			monitor: monitor,
		}
		fmt.Printf("Archive: %s\n", cfg.Archive.Provider)
	}

	grab := media.GrabConfig{DisplayIndex: displayIndex, DeviceIndex: cameraIndex}
	sources := []engine.Source{media.NewScreenSource(grab)}
	if withCamera {
		sources = append(sources, media.NewCameraSource(grab))
	}

	// eng is assigned below, before the live client's goroutine starts;
	// the handler closures only fire after that.
	var eng *engine.Engine

	client := live.New(&live.Config{
		URL:       cfg.LiveURL,
		AuthToken: cfg.AuthToken,
		DeviceID:  cfg.DeviceID,
		Model:     cfg.Model,
	}, live.Handlers{
		OnText: func(text string) {
			arch.recordText(archive.RoleCoach, text)
		},
		OnAudioLevel: func(level float64) {
			eng.OnAssistantAudioLevel(level)
		},
		OnMuteChange: func(muted bool) {
			eng.SetMuted(muted)
		},
		OnConnect: func() {
			monitor.Update("live", health.Healthy, "")
		},
		OnDisconnect: func() {
			monitor.Update("live", health.Degraded, "reconnecting")
		},
	})

	detector := games.NewDetector(catalog)
	eng = engine.New(cfg, engine.Options{
		Live:      &recordingUplink{Client: client, arch: arch},
		Sources:   sources,
		Meter:     audio.NewInputMeter(),
		Detect:    detector.Detect,
		Templates: templates,
		Callbacks: engine.Callbacks{
			OnSessionStarted: arch.sessionStarted,
			OnSessionStopped: arch.sessionStopped,
		},
		Game: pinned,
	})

	eng.StartSource(media.KindScreen)
	if withCamera {
		eng.StartSource(media.KindCamera)
	}

	go client.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down agent...")
		cancel()
	}()

	if err := eng.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Engine error: %v\n", err)
	}

	client.Stop()
	for _, s := range sources {
		s.Stop()
	}
	arch.flush(flushTimeout)
	if pool != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool.Shutdown(drainCtx)
		drainCancel()
	}
}

func loadCatalog(cfg *config.Config) *games.Catalog {
	if cfg.GamesFile == "" {
		return games.BuiltinCatalog()
	}
	catalog, err := games.LoadCatalog(cfg.GamesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load games file: %v\n", err)
		os.Exit(1)
	}
	return catalog
}

// loadTemplates falls back to the built-ins when no synced template
// file is usable. Missing templates cost message quality, not sessions.
func loadTemplates(cfg *config.Config) *notify.Templates {
	path := cfg.TemplatesFile
	if path == "" {
		path = config.TemplatesPath()
	}
	t, err := notify.LoadTemplates(path)
	if err != nil {
		if cfg.TemplatesFile != "" {
			log.Warn("coaching templates unavailable, using built-ins", logging.KeyError, err.Error())
		}
		return notify.DefaultTemplates()
	}
	return t
}

// archiver routes finished sessions to the archive manager. It owns the
// recorder for the session currently in flight; a nil archiver records
// nothing. The engine loop, the live read pump, and upload goroutines
// all go through here.
type archiver struct {
	mgr     *archive.Manager
	monitor *health.Monitor

	current atomic.Pointer[archive.Recorder]
	wg      sync.WaitGroup
}

func (a *archiver) sessionStarted(g games.Game) {
	if a == nil {
		return
	}
	a.current.Store(archive.NewRecorder(nil, g.ID))
}

// sessionStopped runs on the engine loop; the upload happens on its own
// goroutine so a slow backend cannot stall session handling.
func (a *archiver) sessionStopped(games.Game) {
	if a == nil {
		return
	}
	rec := a.current.Swap(nil)
	if rec == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.archive(rec)
	}()
}

func (a *archiver) recordText(role, text string) {
	if a == nil {
		return
	}
	if rec := a.current.Load(); rec != nil {
		rec.AddText(role, text)
	}
}

func (a *archiver) recordStill(data []byte) {
	if a == nil {
		return
	}
	if rec := a.current.Load(); rec != nil {
		rec.AddStill(data)
	}
}

func (a *archiver) archive(rec *archive.Recorder) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if _, err := a.mgr.Store(ctx, rec); err != nil {
		log.Warn("session archive failed", logging.KeySessionID, rec.ID(), logging.KeyError, err.Error())
		a.monitor.Update("archive", health.Degraded, err.Error())
		return
	}
	a.monitor.Update("archive", health.Healthy, "")
}

// flush archives the session that was live at shutdown, then waits out
// any uploads still in flight.
func (a *archiver) flush(timeout time.Duration) {
	if a == nil {
		return
	}
	if rec := a.current.Swap(nil); rec != nil {
		a.archive(rec)
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("timed out waiting for session uploads")
	}
}

// recordingUplink tees outbound coaching traffic into the session
// recorder on its way to the live service.
type recordingUplink struct {
	*live.Client
	arch *archiver
}

func (u *recordingUplink) SendText(text string) error {
	u.arch.recordText(archive.RoleAgent, text)
	return u.Client.SendText(text)
}

func (u *recordingUplink) SendRealtimeInput(mimeType string, data []byte) error {
	if mimeType == "image/jpeg" {
		u.arch.recordStill(data)
	}
	return u.Client.SendRealtimeInput(mimeType, data)
}
