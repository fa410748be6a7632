package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/milk9111/pathsteer/prefabs"
	"github.com/milk9111/pathsteer/sim"
)

func main() {
	scenario := flag.String("scenario", prefabs.DefaultScenario, "scenario file in the prefab directory")
	ticks := flag.Int("ticks", 600, "ticks to simulate, 0 runs until interrupted with -watch")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	watch := flag.Bool("watch", false, "run in real time and hot reload edited prefabs")
	dir := flag.String("prefabs", prefabs.Dir, "prefab directory checked before the embedded copies")
	snapshot := flag.Bool("snapshot", true, "print a YAML snapshot of the agents when done")
	flag.Parse()

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -log-level: %v\n", err)
		os.Exit(2)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	prefabs.Dir = *dir

	scene, err := sim.Load(*scenario, logger)
	if err != nil {
		logger.Fatal("load scenario", "scenario", *scenario, "err", err)
	}

	if *watch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runRealtime(ctx, scene, *ticks, logger); err != nil {
			logger.Error("watch", "err", err)
		}
	} else {
		if *ticks <= 0 {
			logger.Fatal("-ticks must be positive without -watch")
		}
		scene.Run(*ticks)
	}

	if *snapshot {
		out, err := scene.Snapshot().YAML()
		if err != nil {
			logger.Fatal("snapshot", "err", err)
		}
		os.Stdout.Write(out)
	}
}

// runRealtime ticks at the scene's rate and applies prefab edits between
// ticks.
func runRealtime(ctx context.Context, scene *sim.Scene, ticks int, logger *log.Logger) error {
	dirs := []string{prefabs.Dir}
	if info, err := os.Stat(filepath.Join(prefabs.Dir, "scripts")); err == nil && info.IsDir() {
		dirs = append(dirs, filepath.Join(prefabs.Dir, "scripts"))
	}
	watcher, err := prefabs.NewWatcher(dirs...)
	if err != nil {
		return fmt.Errorf("watch %s: %w", prefabs.Dir, err)
	}
	defer watcher.Close()
	logger.Info("watching", "dirs", dirs)

	ticker := time.NewTicker(time.Duration(scene.DT() * float64(time.Second)))
	defer ticker.Stop()

	pump(ctx, scene, ticks, ticker.C, watcher.Events, watcher.Errors, logger)
	return nil
}

type realtimeScene interface {
	Reload(path string) error
	Tick()
	TickCount() int
}

// pump ticks the scene on every tick until it has run ticks times, forever
// when ticks <= 0, or until ctx ends. Closed watcher channels only stop
// reloads.
func pump(ctx context.Context, scene realtimeScene, ticks int, tick <-chan time.Time, events <-chan string, errs <-chan error, logger *log.Logger) {
	for ticks <= 0 || scene.TickCount() < ticks {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-events:
			if !ok {
				events = nil
				logger.Warn("watcher stopped, hot reload disabled")
				continue
			}
			if err := scene.Reload(path); err != nil {
				logger.Error("reload", "path", path, "err", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher", "err", err)
		case <-tick:
			scene.Tick()
		}
	}
}
