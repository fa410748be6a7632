package main

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/pathsteer/prefabs"
	"github.com/milk9111/pathsteer/sim"
	"golang.design/x/clipboard"
	"golang.org/x/image/colornames"
)

const (
	screenWidth  = 960
	screenHeight = 720
	screenMargin = 24

	// Holding the mouse re-paths this often and only asks for the next
	// few corners.
	holdTicks        = 15
	holdRepathTicks  = 10
	holdMaxWaypoints = 3
)

type Viewer struct {
	scene   *sim.Scene
	view    view
	colors  map[uint64]color.NRGBA
	watcher *prefabs.Watcher
	logger  *log.Logger

	clipboard bool
	paused    bool
	shapes    bool
	grid      bool
	status    string
	statusTTL int
}

func NewViewer(scene *sim.Scene, watcher *prefabs.Watcher, logger *log.Logger) *Viewer {
	v := &Viewer{
		scene:   scene,
		watcher: watcher,
		logger:  logger.WithPrefix("viewer"),
		colors:  map[uint64]color.NRGBA{},
		grid:    true,
	}

	cfg := scene.Grid().Config()
	w := cfg.Max.X() - cfg.Min.X()
	h := cfg.Max.Z() - cfg.Min.Z()
	zoom := math.Min((screenWidth-2*screenMargin)/w, (screenHeight-2*screenMargin)/h)
	v.view = view{originX: cfg.Min.X(), originZ: cfg.Min.Z(), zoom: zoom, margin: screenMargin}

	for _, o := range scene.Obstacles() {
		v.colors[o.Body.ID()] = o.Color
	}
	for _, a := range scene.Agents() {
		v.colors[a.Body.ID()] = a.Color
	}

	if err := clipboard.Init(); err != nil {
		v.logger.Warn("clipboard unavailable", "err", err)
	} else {
		v.clipboard = true
	}
	return v
}

func (v *Viewer) Update() error {
	v.pollReload()
	v.handleKeys()
	v.handleMouse()

	if !v.paused {
		v.scene.Tick()
	}
	if v.statusTTL > 0 {
		v.statusTTL--
	}
	return nil
}

func (v *Viewer) pollReload() {
	if v.watcher == nil {
		return
	}
	for {
		select {
		case path, ok := <-v.watcher.Events:
			if !ok {
				v.watcher = nil
				return
			}
			if err := v.scene.Reload(path); err != nil {
				v.logger.Error("reload", "path", path, "err", err)
				v.flash("reload failed: " + err.Error())
				continue
			}
			v.flash("reloaded " + path)
		case err, ok := <-v.watcher.Errors:
			if !ok {
				v.watcher = nil
				return
			}
			v.logger.Warn("watcher", "err", err)
		default:
			return
		}
	}
}

func (v *Viewer) handleKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		v.paused = !v.paused
	}
	if v.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		v.scene.Tick()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		v.grid = !v.grid
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyD) {
		v.shapes = !v.shapes
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		v.copySnapshot()
	}
}

func (v *Viewer) handleMouse() {
	if _, ok := v.scene.Player(); !ok {
		return
	}
	dest := v.cursorWorld()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if err := v.scene.Order(dest, 0, 0); err != nil {
			v.logger.Warn("order", "err", err)
		}
		return
	}
	held := inpututil.MouseButtonPressDuration(ebiten.MouseButtonLeft)
	if held >= holdTicks && (held-holdTicks)%holdRepathTicks == 0 {
		if err := v.scene.Order(dest, 1, holdMaxWaypoints); err != nil {
			v.logger.Warn("order", "err", err)
		}
	}
}

func (v *Viewer) cursorWorld() mgl64.Vec3 {
	cx, cy := ebiten.CursorPosition()
	x, z := v.view.toWorld(float64(cx), float64(cy))
	var y float64
	if p, ok := v.scene.Player(); ok {
		y = p.Body.Position().Y()
	}
	return mgl64.Vec3{x, y, z}
}

func (v *Viewer) copySnapshot() {
	out, err := v.scene.Snapshot().YAML()
	if err != nil {
		v.logger.Error("snapshot", "err", err)
		return
	}
	if !v.clipboard {
		v.logger.Info("snapshot\n" + string(out))
		v.flash("clipboard unavailable, snapshot logged")
		return
	}
	clipboard.Write(clipboard.FmtText, out)
	v.flash(fmt.Sprintf("snapshot of tick %d copied", v.scene.TickCount()))
}

func (v *Viewer) flash(msg string) {
	v.status = msg
	v.statusTTL = 180
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{0x1b, 0x1e, 0x24, 0xff})

	if v.grid {
		v.drawGrid(screen)
	}
	v.drawObstacles(screen)
	if v.shapes {
		drawSpace(v.scene.Physics().Space(), screen, v.view, v.colors)
	}
	v.drawAgents(screen)
	v.drawHUD(screen)
}

func (v *Viewer) drawGrid(screen *ebiten.Image) {
	g := v.scene.Grid()
	size := g.Config().CellSize
	w, h := g.Dims()
	cell := float32(size * v.view.zoom)
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			if !g.CellBlocked(x, z) {
				continue
			}
			c := g.CellCenter(x, z)
			sx, sy := v.view.toScreen(cp.Vector{X: c.X(), Y: c.Z()})
			vector.FillRect(screen, float32(sx)-cell/2, float32(sy)-cell/2, cell, cell, color.RGBA{R: 255, G: 255, B: 255, A: 20}, false)
		}
	}
	x0, y0 := v.view.toScreen(cp.Vector{X: g.Config().Min.X(), Y: g.Config().Min.Z()})
	x1, y1 := v.view.toScreen(cp.Vector{X: g.Config().Max.X(), Y: g.Config().Max.Z()})
	vector.StrokeRect(screen, float32(x0), float32(y0), float32(x1-x0), float32(y1-y0), 1, colornames.Dimgray, false)
}

func (v *Viewer) drawObstacles(screen *ebiten.Image) {
	for _, o := range v.scene.Obstacles() {
		c := colorOr(o.Color, colornames.Slategray)
		p := o.Body.Position()
		sx, sy := v.view.toScreen(cp.Vector{X: p.X(), Y: p.Z()})
		if capsule, ok := o.Body.Capsule(); ok {
			vector.FillCircle(screen, float32(sx), float32(sy), float32(capsule.Radius*v.view.zoom), c, true)
			continue
		}
		he := o.Body.HalfExtents()
		w, h := he.X()*v.view.zoom, he.Z()*v.view.zoom
		vector.FillRect(screen, float32(sx-w), float32(sy-h), float32(2*w), float32(2*h), c, false)
	}
}

func (v *Viewer) drawAgents(screen *ebiten.Image) {
	for _, a := range v.scene.Agents() {
		loc, ok := v.scene.Locomotion(a)
		if !ok {
			continue
		}
		p := a.Body.Position()
		sx, sy := v.view.toScreen(cp.Vector{X: p.X(), Y: p.Z()})

		if st := loc.Steering; st != nil {
			path := st.Path()
			for i := max(st.Cursor(), 1); i < len(path); i++ {
				ax, ay := v.view.toScreen(cp.Vector{X: path[i-1].X(), Y: path[i-1].Z()})
				bx, by := v.view.toScreen(cp.Vector{X: path[i].X(), Y: path[i].Z()})
				vector.StrokeLine(screen, float32(ax), float32(ay), float32(bx), float32(by), 1, colornames.Khaki, true)
				vector.FillCircle(screen, float32(bx), float32(by), 2, colornames.Khaki, true)
			}
			if o := st.TrackedObstacle(); o != nil {
				op := o.Position()
				ox, oy := v.view.toScreen(cp.Vector{X: op.X(), Y: op.Z()})
				vector.StrokeLine(screen, float32(sx), float32(sy), float32(ox), float32(oy), 1, colornames.Orangered, true)
			}
		}

		radius := 0.4
		if c, ok := a.Body.Capsule(); ok {
			radius = c.Radius
		}
		fill := colorOr(a.Color, colornames.Lightgray)
		vector.FillCircle(screen, float32(sx), float32(sy), float32(radius*v.view.zoom), fill, true)
		if a.Player {
			vector.StrokeCircle(screen, float32(sx), float32(sy), float32(radius*v.view.zoom)+2, 1.5, colornames.White, true)
		}

		vel := a.Body.Velocity()
		hx, hy := v.view.toScreen(cp.Vector{X: p.X() + vel.X(), Y: p.Z() + vel.Z()})
		vector.StrokeLine(screen, float32(sx), float32(sy), float32(hx), float32(hy), 1.5, colornames.White, true)

		label := a.Name
		if b, ok := v.scene.Brain(a); ok && b.State != "" {
			label += " [" + b.State + "]"
		}
		ebitenutil.DebugPrintAt(screen, label, int(sx)+8, int(sy)-18)
	}
}

func (v *Viewer) drawHUD(screen *ebiten.Image) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  tick %d  FPS %.0f", v.scene.Name(), v.scene.TickCount(), ebiten.ActualFPS())
	if v.paused {
		b.WriteString("  PAUSED (n: step)")
	}
	b.WriteString("\nclick: move  hold: steer  space: pause  g: grid  d: shapes  c: copy snapshot")
	if v.statusTTL > 0 {
		b.WriteString("\n" + v.status)
	}
	ebitenutil.DebugPrintAt(screen, b.String(), 8, 4)
}

func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func colorOr(c color.NRGBA, fallback color.RGBA) color.Color {
	if c.A == 0 {
		return fallback
	}
	return c
}
