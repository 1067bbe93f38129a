package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/cybre/sleepwake/internal/alarm"
	"github.com/cybre/sleepwake/internal/calendar"
	"github.com/cybre/sleepwake/internal/classify"
	"github.com/cybre/sleepwake/internal/journal"
	"github.com/cybre/sleepwake/internal/light"
	"github.com/cybre/sleepwake/internal/night"
	"github.com/cybre/sleepwake/internal/predict"
	"github.com/cybre/sleepwake/internal/sleep"
	"github.com/cybre/sleepwake/internal/stream"
)

func main() {
	opts := parseCLIFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil && !eris.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts runtimeOptions) error {
	logger := setupLogger(opts.debug)

	tuning, err := loadTuning(opts.tuningPath)
	if err != nil {
		return err
	}

	switch opts.mode {
	case "monitor":
		return runMonitor(ctx, logger, opts, tuning)
	case "fade", "wake":
		return runTriggered(ctx, logger, opts, tuning)
	default:
		return eris.Errorf("unknown mode %q", opts.mode)
	}
}

func setupLogger(debug bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	return logger
}

// runMonitor runs the full overnight pipeline until the night deadline or a
// termination signal.
func runMonitor(ctx context.Context, logger *slog.Logger, opts runtimeOptions, tuning Tuning) error {
	cutoff, err := parseCutoff(opts.cutoff)
	if err != nil {
		return err
	}
	nightCtx := night.NewContext(time.Now(), cutoff)

	logger.Info("starting overnight monitoring",
		slog.String("night_id", nightCtx.NightID),
		slog.Time("until", nightCtx.Until),
	)

	store := journal.NewStore(opts.dataDir)
	jrnl, err := store.Night(nightCtx.NightID)
	if err != nil {
		return err
	}
	if err := jrnl.Append(journal.Event{
		Type:      journal.EventServiceStarted,
		Timestamp: time.Now(),
		Message:   fmt.Sprintf("monitoring until %s", nightCtx.Until.Format("2006-01-02 15:04")),
	}); err != nil {
		return err
	}

	state := night.NewState()
	state.BindMarkerFile(markerPath(opts.dataDir))

	actuator, closeActuator, err := buildActuator(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeActuator()

	sounder, closeSounder, err := buildSounder(opts)
	if err != nil {
		return err
	}
	defer closeSounder()

	installer, err := buildInstaller(opts, logger)
	if err != nil {
		return err
	}

	nightDir := filepath.Join(opts.dataDir, nightCtx.NightID)

	queue := stream.NewQueue(tuning.queueCapacity())
	window := stream.NewRollingWindow(tuning.windowSeconds(), tuning.sampleRateHz())
	receiver := stream.NewReceiver(stream.ReceiverConfig{ListenAddr: opts.listenAddr}, queue, logger)

	var sampleSink stream.SampleSink
	if opts.rawLog {
		sampleSink = journal.NewRawLog(filepath.Join(nightDir, "raw_data-"+nightCtx.NightID+".csv"))
	}
	processor := stream.NewProcessor(tuning.processorConfig(), queue, window, sampleSink, logger)

	var recordSink classify.RecordSink
	if opts.classLog {
		recordSink = journal.NewClassificationLog(filepath.Join(nightDir, "classification-"+nightCtx.NightID+".csv"))
	}
	results := stream.NewHistory[classify.Record](tuning.resultCapacity())
	worker := classify.NewWorker(tuning.workerConfig(), window,
		classify.NewSpectralExtractor(float64(tuning.sampleRateHz())), classify.DefaultStaged(),
		results, recordSink, logger)

	trace := stream.NewHistory[classify.Record](tuning.traceDepth())

	wakeSeq := alarm.NewWakeSequence(tuning.fadeConfig(), actuator, sounder, state, logger)
	scheduler := alarm.NewScheduler(tuning.schedulerConfig(), installer, wakeSeq, jrnl, state, logger)

	runCtx, cancel := context.WithDeadline(ctx, nightCtx.Until)
	defer cancel()

	if opts.wakeAt != "" {
		hour, minute, err := parseClock(opts.wakeAt)
		if err != nil {
			return eris.Wrap(err, "parse wake time")
		}
		// Fixed fallback alarm; the predictor refines it once sleep onset and
		// cycle data come in.
		instant := alarm.ResolveInstant(time.Now(), hour, minute, nil)
		if err := scheduler.Schedule(runCtx, instant); err != nil {
			return eris.Wrap(err, "schedule fallback alarm")
		}
		state.SetFirstEventTime(instant)
	}

	predictor := predict.New(tuning.predictConfig(opts), buildCalendar(opts), store, jrnl, state, scheduler, trace, logger)

	onOnset := func(cbCtx context.Context, onset time.Time) {
		go func() {
			if err := predictor.OnSleepOnset(cbCtx, onset, nightCtx); err != nil {
				logger.Error("sleep-onset prediction failed", slog.Any("error", err))
			}
		}()
	}
	onPreAlarm := func(cbCtx context.Context) {
		go func() {
			if err := predictor.OnPreAlarm(cbCtx); err != nil {
				logger.Error("cycle adjustment failed", slog.Any("error", err))
			}
		}()
	}

	monitor := sleep.NewMonitor(tuning.monitorConfig(), results, trace, jrnl, state, onOnset, onPreAlarm, logger)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return receiver.Run(gctx) })
	g.Go(func() error { return processor.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })

	if err := g.Wait(); err != nil {
		if eris.Is(err, context.DeadlineExceeded) || eris.Is(err, context.Canceled) {
			logger.Info("night complete", slog.String("night_id", nightCtx.NightID))
			return nil
		}
		return err
	}
	return nil
}

// runTriggered is the entry point for externally installed timers: the
// pre-wake fade and the alarm itself run as short-lived processes.
func runTriggered(ctx context.Context, logger *slog.Logger, opts runtimeOptions, tuning Tuning) error {
	state := night.NewState()
	state.BindMarkerFile(markerPath(opts.dataDir))

	actuator, closeActuator, err := buildActuator(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeActuator()

	sounder, closeSounder, err := buildSounder(opts)
	if err != nil {
		return err
	}
	defer closeSounder()

	if state.ConsumeSkipNextFade() {
		logger.Info("skip marker present, in-process wake sequence already covered this trigger",
			slog.String("mode", opts.mode))
		return nil
	}

	if opts.mode == "wake" {
		// The pre-wake fade already ramped the lights; snap to full wake
		// brightness and sound the alarm until interrupted.
		if err := actuator.SetBrightness(ctx, tuning.maxBrightness()); err != nil {
			logger.Warn("failed to set wake brightness", slog.Any("error", err))
		}
		logger.Info("sounding alarm")
		return sounder.Sound(ctx, alarm.DefaultPattern())
	}

	wakeSeq := alarm.NewWakeSequence(tuning.fadeConfig(), actuator, sounder, state, logger)
	return wakeSeq.Run(ctx, 0, alarm.WakeOptions{})
}

func markerPath(dataDir string) string {
	return filepath.Join(dataDir, "skipnextfade")
}

func buildActuator(ctx context.Context, opts runtimeOptions, logger *slog.Logger) (light.Actuator, func(), error) {
	noop := func() {}

	if opts.dryRun {
		return light.Nop{}, noop, nil
	}

	if opts.haURL != "" {
		return light.NewHomeAssistant(light.HomeAssistantConfig{
			BaseURL:  opts.haURL,
			Token:    os.Getenv("HA_AUTH_TOKEN"),
			Entities: splitList(opts.haEntities),
		}, nil, logger), noop, nil
	}

	if opts.yeelightAddr != "" {
		bulb := light.NewYeelight(opts.yeelightAddr, logger)
		if err := bulb.Connect(ctx); err != nil {
			return nil, nil, err
		}
		if err := bulb.SetPower(ctx, true); err != nil {
			logger.Warn("failed to power on bulb", slog.Any("error", err))
		}
		return bulb, func() {
			if err := bulb.Close(); err != nil {
				logger.Warn("failed to disconnect bulb", slog.Any("error", err))
			}
		}, nil
	}

	logger.Warn("no light backend configured, wake fades will be silent")
	return light.Nop{}, noop, nil
}

func buildSounder(opts runtimeOptions) (alarm.Sounder, func(), error) {
	noop := func() {}

	if opts.dryRun || opts.buzzerPin < 0 {
		return alarm.NopSounder{}, noop, nil
	}

	buzzer := alarm.NewGPIOBuzzer(opts.buzzerPin, opts.buzzerFreq)
	if err := buzzer.Open(); err != nil {
		return nil, nil, err
	}
	return buzzer, func() { _ = buzzer.Close() }, nil
}

func buildInstaller(opts runtimeOptions, logger *slog.Logger) (alarm.Installer, error) {
	if opts.dryRun {
		return alarm.NewMemoryInstaller(), nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, eris.Wrap(err, "resolve executable path")
	}

	return alarm.NewSystemdInstaller("sleepwake", map[alarm.TriggerKind][]string{
		alarm.TriggerWake:    triggerCommand(exe, "wake", opts),
		alarm.TriggerPreWake: triggerCommand(exe, "fade", opts),
	}, logger), nil
}

// triggerCommand builds the command line a timer unit executes, forwarding the
// flags the triggered modes need.
func triggerCommand(exe, mode string, opts runtimeOptions) []string {
	args := []string{exe,
		"-mode=" + mode,
		"-data=" + opts.dataDir,
		"-buzzer-pin=" + strconv.Itoa(opts.buzzerPin),
		"-buzzer-freq=" + strconv.Itoa(opts.buzzerFreq),
	}
	if opts.tuningPath != "" {
		args = append(args, "-tuning="+opts.tuningPath)
	}
	if opts.haURL != "" {
		args = append(args, "-ha-url="+opts.haURL, "-ha-entities="+opts.haEntities)
	}
	if opts.yeelightAddr != "" {
		args = append(args, "-yeelight="+opts.yeelightAddr)
	}
	if opts.debug {
		args = append(args, "-debug")
	}
	return args
}

func buildCalendar(opts runtimeOptions) calendar.Source {
	urls := splitList(opts.calendarURLs)
	if len(urls) == 0 {
		return nil
	}
	return calendar.NewICSSource(urls, nil)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
