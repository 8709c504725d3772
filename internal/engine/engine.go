// Package engine runs the agent's decision loop: one goroutine that
// owns the session lifecycle, the four timers driving it, and every
// piece of loop state. Capture sources, the microphone meter, and the
// live client hand their readings in; the loop decides what, if
// anything, to tell the assistant.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/audio"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/clock"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/config"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/games"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/heartbeat"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/media"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/notify"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/sampler"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/session"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/speech"
)

var log = logging.L("engine")

// Live is the slice of the realtime client the engine talks to.
// Satisfied by *live.Client.
type Live interface {
	Connected() bool
	SendText(text string) error
	SendRealtimeInput(mimeType string, data []byte) error
}

// Source is a capture source under engine control. Satisfied by
// *media.Source.
type Source interface {
	Kind() media.Kind
	Start() (*media.Stream, error)
	Stop()
	Streaming() bool
	Stream() *media.Stream
}

// Callbacks subscribe to committed session edges. They run on the loop
// goroutine after the transition is applied; keep them short and do not
// call back into the engine from inside one.
type Callbacks struct {
	OnSessionStarted func(game games.Game)
	OnSessionStopped func(game games.Game)
}

// Options wires the engine's collaborators. Nil fields disable the
// piece they configure: nil Meter means no microphone, nil Detect
// disables game auto-detection, nil Templates uses the built-ins.
type Options struct {
	Clock     clock.Clock
	Live      Live
	Sources   []Source
	Meter     audio.Meter
	Detect    func() (games.Game, bool)
	Templates *notify.Templates
	Callbacks Callbacks

	// Game pins the active game; detection is skipped while pinned.
	Game games.Game
}

// Status is a point-in-time view of the engine.
type Status struct {
	Session   session.State
	Speech    speech.State
	Game      games.Game
	Muted     bool
	Connected bool
	Sources   map[string]bool
	Externals int

	PromptsSent int
	FramesSent  uint64
}

type eventKind int

const (
	evStartSource eventKind = iota
	evStopSource
	evAttachExternal
	evDetachExternal
	evSetGame
	evStatus
)

type event struct {
	kind   eventKind
	source media.Kind
	extID  string
	stream *media.Stream
	game   games.Game
	reply  chan Status
}

// Engine composes the speech tracker, session validator, transition
// notifier, heartbeat scheduler, and frame sampler behind one control
// loop. The exported methods are safe from any goroutine; everything
// else runs on the Run goroutine.
type Engine struct {
	cfg config.Config
	clk clock.Clock

	live      Live
	sources   []Source
	srcViews  []session.Source
	meter     audio.Meter
	detect    func() (games.Game, bool)
	templates *notify.Templates
	callbacks Callbacks

	tracker   *speech.Tracker
	validator *session.Validator
	notifier  *notify.Notifier
	scheduler *heartbeat.Scheduler
	sampler   *sampler.Sampler

	muted atomic.Bool

	// Loop state. Only the Run goroutine touches these.
	externals  map[string]*media.Stream
	game       games.Game
	pinned     bool
	lastDetect time.Time
	settleC    <-chan time.Time
	hbTicker   *clock.Ticker

	events chan event
	done   chan struct{}
}

// New builds an engine from cfg. Non-positive intervals fall back to
// the defaults.
func New(cfg *config.Config, opts Options) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:       *cfg,
		clk:       opts.Clock,
		live:      opts.Live,
		sources:   opts.Sources,
		meter:     opts.Meter,
		detect:    opts.Detect,
		callbacks: opts.Callbacks,
		game:      opts.Game,
		pinned:    opts.Game.ID != "",
		externals: make(map[string]*media.Stream),
		events:    make(chan event, 64),
		done:      make(chan struct{}),
	}
	if e.clk == nil {
		e.clk = clock.Real()
	}
	if e.cfg.PollInterval <= 0 {
		e.cfg.PollInterval = 5 * time.Second
	}
	if e.cfg.SettleDelay <= 0 {
		e.cfg.SettleDelay = time.Second
	}
	if e.cfg.HeartbeatInterval <= 0 {
		e.cfg.HeartbeatInterval = 10 * time.Second
	}
	if e.cfg.DetectInterval <= 0 {
		e.cfg.DetectInterval = 15 * time.Second
	}
	e.muted.Store(e.cfg.Muted)

	e.templates = opts.Templates
	if e.templates == nil {
		e.templates = notify.DefaultTemplates()
	}

	e.tracker = speech.NewTracker(speech.Config{
		InputThreshold:  e.cfg.InputThreshold,
		OutputThreshold: e.cfg.OutputThreshold,
		Hold:            e.cfg.SpeechHold,
	}, e.clk)
	e.validator = session.NewValidator(e.clk)
	e.notifier = notify.New(opts.Live, e.Muted, e.templates)
	e.scheduler = heartbeat.NewScheduler(heartbeat.Config{
		QuietWindow: e.cfg.QuietWindow,
		Prompt:      func() string { return e.templates.Prompt(e.game.ID, e.gameLabel()) },
	}, e.tracker.Snapshot, opts.Live, e.Muted, e.clk)
	e.sampler = sampler.New(sampler.Config{
		JPEGQuality:   e.cfg.JPEGQuality,
		ScaleFactor:   e.cfg.ScaleFactor,
		SkipUnchanged: e.cfg.SkipUnchangedFrames,
	}, e.activeStream, opts.Live)

	e.srcViews = make([]session.Source, len(e.sources))
	for i, s := range e.sources {
		e.srcViews[i] = s
	}
	return e
}

// Run drives the control loop until ctx is cancelled. The session poll
// and frame sampling tickers run for the whole lifetime; the settle
// one-shot and the heartbeat ticker come and go with the session. Run
// returns nil on a clean shutdown.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	if e.meter != nil {
		if err := e.meter.Start(e.tracker.OnInputLevel); err != nil {
			log.Warn("microphone meter unavailable", logging.KeyError, err.Error())
		} else {
			defer e.meter.Stop()
		}
	}

	poll := e.clk.NewTicker(e.cfg.PollInterval)
	defer poll.Stop()
	sample := e.clk.NewTicker(samplePeriod(e.cfg.SampleFPS))
	defer sample.Stop()
	defer e.stopHeartbeat()

	log.Info("engine running",
		"pollInterval", e.cfg.PollInterval.String(),
		"heartbeatInterval", e.cfg.HeartbeatInterval.String())

	e.pollTick()

	for {
		// A nil channel blocks forever, which is exactly what a disarmed
		// timer should do.
		settleC := e.settleC
		var hbC <-chan time.Time
		if e.hbTicker != nil {
			hbC = e.hbTicker.C
		}

		select {
		case <-ctx.Done():
			log.Info("engine stopped")
			return nil
		case ev := <-e.events:
			e.handleEvent(ev)
		case <-poll.C:
			e.pollTick()
		case <-settleC:
			e.settleFired()
		case <-hbC:
			e.scheduler.Tick()
		case <-sample.C:
			if e.validator.Active() {
				e.sampler.Tick()
			}
		}
	}
}

// StartSource asks the source of the given kind to begin capturing.
// The session activates on a following poll once media actually flows.
func (e *Engine) StartSource(kind media.Kind) {
	e.post(event{kind: evStartSource, source: kind})
}

// StopSource releases the source of the given kind.
func (e *Engine) StopSource(kind media.Kind) {
	e.post(event{kind: evStopSource, source: kind})
}

// AttachExternal registers a stream owned elsewhere (a remote ingest,
// another process) that should keep the session alive. A nil stream is
// ignored.
func (e *Engine) AttachExternal(id string, st *media.Stream) {
	if st == nil {
		return
	}
	e.post(event{kind: evAttachExternal, extID: id, stream: st})
}

// DetachExternal removes a previously attached stream.
func (e *Engine) DetachExternal(id string) {
	e.post(event{kind: evDetachExternal, extID: id})
}

// SetGame pins the active game. The zero Game unpins and resumes
// auto-detection.
func (e *Engine) SetGame(g games.Game) {
	e.post(event{kind: evSetGame, game: g})
}

// SetMuted flips the outbound mute flag. Muted edges and heartbeats
// are still evaluated; their messages are dropped at send time.
func (e *Engine) SetMuted(muted bool) {
	if e.muted.Swap(muted) != muted {
		log.Info("mute changed", "muted", muted)
	}
}

// Muted reports the outbound mute flag.
func (e *Engine) Muted() bool { return e.muted.Load() }

// OnAssistantAudioLevel feeds one assistant audio level reading. Safe
// from any goroutine; the live client calls it from its read pump.
func (e *Engine) OnAssistantAudioLevel(level float64) {
	e.tracker.OnOutputLevel(level)
}

// Status returns a snapshot assembled on the loop goroutine. Returns
// the zero Status after Run has exited.
func (e *Engine) Status() Status {
	reply := make(chan Status, 1)
	select {
	case e.events <- event{kind: evStatus, reply: reply}:
	case <-e.done:
		return Status{}
	}
	select {
	case st := <-reply:
		return st
	case <-e.done:
		return Status{}
	}
}

func (e *Engine) post(ev event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) handleEvent(ev event) {
	switch ev.kind {
	case evStartSource:
		e.startSource(ev.source)
	case evStopSource:
		e.stopSource(ev.source)
	case evAttachExternal:
		e.externals[ev.extID] = ev.stream
		log.Info("external stream attached", "id", ev.extID)
	case evDetachExternal:
		delete(e.externals, ev.extID)
		log.Info("external stream detached", "id", ev.extID)
	case evSetGame:
		e.game = ev.game
		e.pinned = ev.game.ID != ""
		log.Info("game set", logging.KeyGame, e.gameLabel(), "pinned", e.pinned)
	case evStatus:
		ev.reply <- e.status()
	}
}

// pollTick runs one validation pass. Game detection piggybacks on the
// poll so the loop stays at four timers.
func (e *Engine) pollTick() {
	e.maybeDetectGame()
	ev := e.validator.Tick(e.srcViews, e.externalList())
	e.applySessionEvent(ev)
}

func (e *Engine) applySessionEvent(ev session.Event) {
	switch ev {
	case session.EventActivating:
		e.settleC = e.clk.After(e.cfg.SettleDelay)
	case session.EventCancelled:
		e.settleC = nil
	case session.EventStopped:
		e.deactivate()
	}
}

func (e *Engine) settleFired() {
	e.settleC = nil
	if e.validator.ConfirmSettle(e.srcViews, e.externalList()) == session.EventActive {
		e.activate()
	}
}

func (e *Engine) activate() {
	e.sampler.Reset()
	e.hbTicker = e.clk.NewTicker(e.cfg.HeartbeatInterval)
	e.notifier.Announce(notify.DirectionStart, e.game.ID, e.gameLabel())
	if e.callbacks.OnSessionStarted != nil {
		e.callbacks.OnSessionStarted(e.game)
	}
}

func (e *Engine) deactivate() {
	e.stopHeartbeat()
	e.notifier.Announce(notify.DirectionStop, e.game.ID, e.gameLabel())
	// A stale assistant-speaking flag must not gate the next session's
	// heartbeats. The user's speech onset timestamp survives.
	e.tracker.Reset()
	if e.callbacks.OnSessionStopped != nil {
		e.callbacks.OnSessionStopped(e.game)
	}
}

func (e *Engine) stopHeartbeat() {
	if e.hbTicker != nil {
		e.hbTicker.Stop()
		e.hbTicker = nil
	}
}

func (e *Engine) maybeDetectGame() {
	if e.pinned || e.detect == nil {
		return
	}
	now := e.clk.Now()
	if now.Sub(e.lastDetect) < e.cfg.DetectInterval {
		return
	}
	e.lastDetect = now

	g, ok := e.detect()
	if g.ID == e.game.ID {
		return
	}
	if ok {
		log.Info("game detected", logging.KeyGame, g.ID)
	} else {
		log.Info("game no longer detected", logging.KeyGame, e.game.ID)
	}
	e.game = g
}

func (e *Engine) startSource(kind media.Kind) {
	src := e.findSource(kind)
	if src == nil {
		log.Warn("no capture source of kind", logging.KeySource, string(kind))
		return
	}
	if _, err := src.Start(); err != nil {
		log.Warn("capture start failed", logging.KeySource, string(kind), logging.KeyError, err.Error())
	}
}

func (e *Engine) stopSource(kind media.Kind) {
	if src := e.findSource(kind); src != nil {
		src.Stop()
	}
}

func (e *Engine) findSource(kind media.Kind) Source {
	for _, s := range e.sources {
		if s.Kind() == kind {
			return s
		}
	}
	return nil
}

// activeStream is the sampler's view: the first live local stream, and
// only while the session is active.
func (e *Engine) activeStream() *media.Stream {
	if !e.validator.Active() {
		return nil
	}
	for _, s := range e.sources {
		if s.Streaming() {
			if st := s.Stream(); st != nil {
				return st
			}
		}
	}
	return nil
}

func (e *Engine) externalList() []*media.Stream {
	if len(e.externals) == 0 {
		return nil
	}
	out := make([]*media.Stream, 0, len(e.externals))
	for _, st := range e.externals {
		out = append(out, st)
	}
	return out
}

func (e *Engine) gameLabel() string {
	if e.game.Name != "" {
		return e.game.Name
	}
	return e.game.ID
}

func (e *Engine) status() Status {
	srcs := make(map[string]bool, len(e.sources))
	for _, s := range e.sources {
		srcs[string(s.Kind())] = s.Streaming()
	}
	sent, _ := e.scheduler.Counts()
	frames, _ := e.sampler.Counts()
	connected := e.live != nil && e.live.Connected()
	return Status{
		Session:     e.validator.State(),
		Speech:      e.tracker.Snapshot(),
		Game:        e.game,
		Muted:       e.Muted(),
		Connected:   connected,
		Sources:     srcs,
		Externals:   len(e.externals),
		PromptsSent: sent,
		FramesSent:  frames,
	}
}

func samplePeriod(fps int) time.Duration {
	if fps <= 0 {
		fps = sampler.DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
