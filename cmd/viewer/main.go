package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/milk9111/pathsteer/prefabs"
	"github.com/milk9111/pathsteer/sim"
)

func main() {
	scenario := flag.String("scenario", prefabs.DefaultScenario, "scenario file in the prefab directory")
	dir := flag.String("prefabs", prefabs.Dir, "prefab directory checked before the embedded copies")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		log.Fatal("bad -log-level", "err", err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: lvl, ReportTimestamp: true})
	prefabs.Dir = *dir

	scene, err := sim.Load(*scenario, logger)
	if err != nil {
		logger.Fatal("load scenario", "scenario", *scenario, "err", err)
	}

	var watcher *prefabs.Watcher
	dirs := []string{prefabs.Dir}
	if info, err := os.Stat(filepath.Join(prefabs.Dir, "scripts")); err == nil && info.IsDir() {
		dirs = append(dirs, filepath.Join(prefabs.Dir, "scripts"))
	}
	if w, err := prefabs.NewWatcher(dirs...); err != nil {
		logger.Warn("hot reload disabled", "err", err)
	} else {
		watcher = w
		defer watcher.Close()
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("pathsteer - " + scene.Name())
	ebiten.SetTPS(int(1/scene.DT() + 0.5))

	if err := ebiten.RunGame(NewViewer(scene, watcher, logger)); err != nil {
		logger.Fatal("viewer", "err", err)
	}
}
