package main

import (
	"flag"
)

type runtimeOptions struct {
	mode          string
	listenAddr    string
	dataDir       string
	goalHours     float64
	cutoff        string
	wakeAt        string
	historyNights int
	tuningPath    string
	haURL         string
	haEntities    string
	yeelightAddr  string
	calendarURLs  string
	buzzerPin     int
	buzzerFreq    int
	rawLog        bool
	classLog      bool
	dryRun        bool
	debug         bool
}

func parseCLIFlags() runtimeOptions {
	var cfg runtimeOptions

	flag.StringVar(&cfg.mode, "mode", "monitor", "run mode: monitor (full pipeline), fade (pre-wake light fade), wake (alarm)")
	flag.StringVar(&cfg.listenAddr, "listen", ":5005", "UDP address to receive sensor samples on")
	flag.StringVar(&cfg.dataDir, "data", "Data", "root directory for per-night data")
	flag.Float64Var(&cfg.goalHours, "goal", 8, "sleep goal in hours per night")
	flag.StringVar(&cfg.cutoff, "cutoff", "14:00", "next-day time at which the night ends (HH:MM)")
	flag.StringVar(&cfg.wakeAt, "wake", "", "optional fixed fallback alarm time (HH:MM), refined once sleep is detected")
	flag.IntVar(&cfg.historyNights, "history-nights", 7, "prior nights considered for sleep debt")
	flag.StringVar(&cfg.tuningPath, "tuning", "", "optional TOML file overriding pipeline tuning constants")
	flag.StringVar(&cfg.haURL, "ha-url", "", "Home Assistant base URL (token from HA_AUTH_TOKEN)")
	flag.StringVar(&cfg.haEntities, "ha-entities", "", "comma-separated Home Assistant light entity ids")
	flag.StringVar(&cfg.yeelightAddr, "yeelight", "", "yeelight bulb address (ip[:port]) when not using Home Assistant")
	flag.StringVar(&cfg.calendarURLs, "calendar", "", "comma-separated ICS feed URLs for next-day commitments")
	flag.IntVar(&cfg.buzzerPin, "buzzer-pin", 14, "BCM GPIO pin of the alarm buzzer (-1 to disable)")
	flag.IntVar(&cfg.buzzerFreq, "buzzer-freq", 2000, "buzzer PWM frequency in Hz")
	flag.BoolVar(&cfg.rawLog, "raw-log", true, "append processed samples to the per-night raw CSV")
	flag.BoolVar(&cfg.classLog, "class-log", true, "append classifications to the per-night CSV")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "log actions instead of touching GPIO and system timers")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.Parse()

	return cfg
}
