package main

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/pathsteer/physics"
)

const (
	debugCircleSegments = 24
	debugDotSize        = 4
)

// view maps the ground plane onto the screen. Chipmunk vectors already hold
// world X and Z, so both go through the same transform.
type view struct {
	originX float64
	originZ float64
	zoom    float64
	margin  float64
}

func (v view) toScreen(p cp.Vector) (float64, float64) {
	return (p.X-v.originX)*v.zoom + v.margin, (p.Y-v.originZ)*v.zoom + v.margin
}

func (v view) toWorld(x, y float64) (float64, float64) {
	return (x-v.margin)/v.zoom + v.originX, (y-v.margin)/v.zoom + v.originZ
}

// shapeDrawer outlines every shape in the space in its body's color, which
// chipmunk hands over as the fill color.
type shapeDrawer struct {
	screen *ebiten.Image
	view   view
	colors map[uint64]color.NRGBA
}

func drawSpace(space *cp.Space, screen *ebiten.Image, v view, colors map[uint64]color.NRGBA) {
	if space == nil || screen == nil {
		return
	}
	cp.DrawSpace(space, &shapeDrawer{screen: screen, view: v, colors: colors})
}

func (d *shapeDrawer) DrawCircle(pos cp.Vector, angle, radius float64, outline, fill cp.FColor, data interface{}) {
	d.drawCircle(pos, radius, fill)
}

func (d *shapeDrawer) DrawSegment(a, b cp.Vector, fill cp.FColor, data interface{}) {
	d.drawLine(a, b, fill)
}

func (d *shapeDrawer) DrawFatSegment(a, b cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	d.drawLine(a, b, outline)
	if radius > 0 {
		d.drawCircle(a, radius, outline)
		d.drawCircle(b, radius, outline)
	}
}

func (d *shapeDrawer) DrawPolygon(count int, verts []cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	if count <= 0 {
		return
	}
	d.drawPolygon(verts[:count], fill)
}

func (d *shapeDrawer) DrawDot(size float64, pos cp.Vector, fill cp.FColor, data interface{}) {
	if size <= 0 {
		size = debugDotSize
	}
	half := size / 2 / d.view.zoom
	d.drawLine(cp.Vector{X: pos.X - half, Y: pos.Y}, cp.Vector{X: pos.X + half, Y: pos.Y}, fill)
	d.drawLine(cp.Vector{X: pos.X, Y: pos.Y - half}, cp.Vector{X: pos.X, Y: pos.Y + half}, fill)
}

func (d *shapeDrawer) Flags() uint {
	return cp.DRAW_SHAPES
}

func (d *shapeDrawer) OutlineColor() cp.FColor {
	return cp.FColor{R: 0.2, G: 1, B: 0.2, A: 0.9}
}

func (d *shapeDrawer) ShapeColor(shape *cp.Shape, data interface{}) cp.FColor {
	if b, ok := shape.UserData.(*physics.Body); ok {
		if c, ok := d.colors[b.ID()]; ok && c.A > 0 {
			return cp.FColor{R: float32(c.R) / 255, G: float32(c.G) / 255, B: float32(c.B) / 255, A: 1}
		}
	}
	return cp.FColor{R: 0.1, G: 0.6, B: 0.1, A: 0.5}
}

func (d *shapeDrawer) ConstraintColor() cp.FColor {
	return cp.FColor{R: 1, G: 0.5, B: 0.1, A: 0.9}
}

func (d *shapeDrawer) CollisionPointColor() cp.FColor {
	return cp.FColor{R: 1, G: 0.2, B: 0.2, A: 0.9}
}

func (d *shapeDrawer) Data() interface{} {
	return nil
}

func (d *shapeDrawer) drawLine(a, b cp.Vector, c cp.FColor) {
	x1, y1 := d.view.toScreen(a)
	x2, y2 := d.view.toScreen(b)
	ebitenutil.DrawLine(d.screen, x1, y1, x2, y2, toNRGBA(c))
}

func (d *shapeDrawer) drawPolygon(verts []cp.Vector, c cp.FColor) {
	for i := range verts {
		d.drawLine(verts[i], verts[(i+1)%len(verts)], c)
	}
}

func (d *shapeDrawer) drawCircle(center cp.Vector, radius float64, c cp.FColor) {
	if radius <= 0 {
		return
	}
	points := make([]cp.Vector, 0, debugCircleSegments)
	for i := 0; i < debugCircleSegments; i++ {
		t := (2 * math.Pi) * (float64(i) / float64(debugCircleSegments))
		points = append(points, cp.Vector{X: center.X + math.Cos(t)*radius, Y: center.Y + math.Sin(t)*radius})
	}
	d.drawPolygon(points, c)
}

func toNRGBA(c cp.FColor) color.NRGBA {
	return color.NRGBA{
		R: uint8(clamp01(c.R) * 255),
		G: uint8(clamp01(c.G) * 255),
		B: uint8(clamp01(c.B) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
