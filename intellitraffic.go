package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"lautenbacher.net/intellitraffic/clock"
	"lautenbacher.net/intellitraffic/config"
	c "lautenbacher.net/intellitraffic/controller"
	co "lautenbacher.net/intellitraffic/coordinator"
	"lautenbacher.net/intellitraffic/logging"
	pl "lautenbacher.net/intellitraffic/platform"
	p "lautenbacher.net/intellitraffic/producer"
	"lautenbacher.net/intellitraffic/status"
)

const viewerUpdateDelay = time.Second

// runner is either the cooperative loop or the task set.
type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	ossignal    chan os.Signal
	platform    pl.Platform
	coordinator *co.Coordinator
	recorder    *pl.WavRecorder
	recordFile  *os.File
	server      *http.Server
	cancel      context.CancelFunc
	stopsignal  chan struct{}
	shutdownWg  sync.WaitGroup
}

func NewApp(ossignal chan os.Signal) *App {
	return &App{ossignal: ossignal}
}

func main() {
	realp := flag.Bool("real", false, "run on real hardware instead of the TUI simulation")
	cfile := flag.String("config", config.CONFILE, "path to the config file")
	record := flag.String("record", "", "record the buzzer to this WAV file")
	viewer := flag.Bool("viewer", false, "show the phase viewer TUI (real hardware only)")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	watcher, err := watchConfig(*cfile, ossignal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Not watching config file: %v\n", err)
	} else {
		defer watcher.Close()
	}

	app := NewApp(ossignal)
	for {
		if err := app.initialise(*cfile, *realp, *record, *viewer); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
			app.shutdown()
			logging.Close()
			os.Exit(1)
		}

		sig := <-ossignal
		if sig == syscall.SIGHUP {
			slog.Info("Reloading config and restarting...", "file", *cfile)
			app.shutdown()
			continue
		}
		slog.Info("Received signal, shutting down", "signal", sig)
		app.shutdown()
		break
	}
	logging.Close()
}

// initialise reads the config, sets up logging and the platform and
// starts the controller.
func (s *App) initialise(cfile string, realhw bool, record string, viewer bool) error {
	conf, err := config.ReadConfig(cfile, realhw)
	if err != nil {
		return err
	}
	if record != "" {
		conf.Audio.RecordFile = record
	}

	logCfg := conf.Logging.TUI
	if realhw {
		logCfg = conf.Logging.HW
	}
	if err := logging.Init(!realhw || viewer, logCfg.Level, logCfg.Format, logCfg.File != "", logCfg.File); err != nil {
		return fmt.Errorf("failed to initialise logging: %w", err)
	}
	if realhw && !viewer {
		logging.SetOutput(os.Stderr)
	}
	slog.Info("Starting IntelliTraffic", "boot", logging.BootID(), "config", cfile, "realhw", realhw,
		"scheduler", conf.Scheduler.Mode)

	clk := clock.NewMonotonic()
	var platform pl.Platform
	if realhw {
		platform = pl.NewRaspberryPiPlatform(conf, clk)
	} else {
		platform = pl.NewTUIPlatform(conf, clk, s.ossignal)
	}
	if err := s.start(conf, clk, platform); err != nil {
		return err
	}

	if realhw && viewer {
		s.startPhaseViewer()
	}
	return nil
}

// start brings up the platform, wires the coordinator to its drivers
// and runs the scheduler and the web API.
func (s *App) start(conf *config.Config, clk clock.Clock, platform pl.Platform) error {
	s.platform = platform
	s.stopsignal = make(chan struct{})

	if err := s.platform.Start(); err != nil {
		return fmt.Errorf("failed to start platform: %w", err)
	}
	<-s.platform.Ready()

	drivers := s.platform.Drivers()
	if conf.Audio.RecordFile != "" {
		f, err := os.Create(conf.Audio.RecordFile)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		s.recordFile = f
		s.recorder = pl.NewWavRecorder(f, clk, drivers.Buzzer)
		drivers.Buzzer = s.recorder
		slog.Info("Recording buzzer", "file", conf.Audio.RecordFile)
	}

	s.coordinator = co.New(clk, drivers, coordinatorOptions(conf))

	var r runner
	if strings.ToLower(conf.Scheduler.Mode) == config.SchedulerLoop {
		r = co.NewLoop(s.coordinator)
	} else {
		r = co.NewTasks(s.coordinator)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.shutdownWg.Add(1)
	go func() {
		defer s.shutdownWg.Done()
		if err := r.Run(ctx); err != nil {
			slog.Error("Scheduler ended with error", "error", err)
		}
	}()

	if conf.Web.Enabled {
		s.startWebServer(conf)
	}
	return nil
}

func (s *App) startWebServer(conf *config.Config) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", status.StatusHandler(s.coordinator))
	mux.HandleFunc("/api/config", config.ConfigHandler(conf.Configfile))
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Web.Port),
		Handler: mux,
	}
	s.shutdownWg.Add(1)
	go func() {
		defer s.shutdownWg.Done()
		slog.Info("Starting web server", "port", conf.Web.Port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web server failed", "error", err)
		}
	}()
}

func (s *App) startPhaseViewer() {
	viewer := pl.NewPhaseViewer(s.ossignal)
	s.shutdownWg.Add(2)
	go viewer.Start(s.stopsignal, &s.shutdownWg)
	go func() {
		defer s.shutdownWg.Done()
		ticker := time.NewTicker(viewerUpdateDelay)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopsignal:
				return
			case <-ticker.C:
				viewer.Update(s.coordinator.History())
			}
		}
	}()
}

// shutdown stops everything started by initialise, in reverse order.
// It is safe to call on a partially started App.
func (s *App) shutdown() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.server.Shutdown(ctx); err != nil {
			slog.Error("Web server shutdown failed", "error", err)
		}
		cancel()
		s.server = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.stopsignal != nil {
		close(s.stopsignal)
		s.stopsignal = nil
	}
	s.shutdownWg.Wait()

	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			slog.Error("Failed to finish recording", "error", err)
		}
		s.recordFile.Close()
		s.recorder = nil
		s.recordFile = nil
	}
	if s.platform != nil {
		logging.BufferOutput()
		s.platform.Stop()
		s.platform = nil
	}
	s.coordinator = nil
}

// coordinatorOptions translates the config into the options of the
// coordinator.
func coordinatorOptions(conf *config.Config) co.Options {
	t := conf.Timing
	opts := co.DefaultOptions()
	opts.Timing = c.Timing{
		Green:      t.Green,
		Yellow:     t.Yellow,
		Red:        t.Red,
		Sign:       t.SignWindow,
		NightBlink: t.NightBlink,
	}
	opts.Display = p.DisplayTiming{
		SignWindow:     t.SignWindow,
		SignAlternate:  t.SignAlternate,
		NightAlternate: t.NightAlternate,
		BlindCycle:     t.BlindCycle,
	}
	opts.Startup = p.StartupTiming{Step: t.StartupStep, Splash: t.Splash}
	opts.Debounce = t.Debounce
	opts.SkipStartup = t.SkipStartup

	rule := func(cc config.CadenceConfig) p.CadenceRule {
		return p.CadenceRule{OnAfter: cc.OnAfter, OffAfter: cc.OffAfter, FreqHz: cc.FreqHz, FromOnset: cc.FromOnset}
	}
	a := conf.Audio
	opts.Cadence = p.CadenceTable{Night: rule(a.Night), Green: rule(a.Green), Yellow: rule(a.Yellow), Red: rule(a.Red)}

	m := conf.Matrix
	opts.Palette = p.Palette{
		Night:   p.NewLed(m.NightRGB),
		Walk:    p.NewLed(m.WalkRGB),
		Wait:    p.NewLed(m.WaitRGB),
		Caution: p.NewLed(m.CautionRGB),
	}

	sc := conf.Scheduler
	opts.Periods = co.Periods{Signal: sc.Signal, Display: sc.Display, Matrix: sc.Matrix, Buttons: sc.Buttons}

	if conf.NightAuto.Enabled {
		opts.NightSchedule = c.NewNightSchedule(conf.NightAuto.Latitude, conf.NightAuto.Longitude)
		opts.NightCheck = conf.NightAuto.Check
	}
	return opts
}

// watchConfig sends SIGHUP to ossignal whenever the config file is
// written. The directory is watched since editors often replace the
// file instead of writing it.
func watchConfig(cfile string, ossignal chan os.Signal) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(cfile)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				slog.Info("Config file changed", "file", event.Name, "op", event.Op)
				select {
				case ossignal <- syscall.SIGHUP:
				default:
					// a signal is already pending
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watcher error", "error", err)
			}
		}
	}()
	return watcher, nil
}
