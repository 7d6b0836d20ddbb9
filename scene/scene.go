// Package scene is a minimal scene model: a canvas holding viewports
// holding visuals whose attributes are array like values.
//
// An [Encoder] turns a canvas into a JSON snapshot document and a [Decoder]
// rebuilds a canvas from one. Both carry the array identity store of their
// side of a sync session, so snapshots of an evolving scene contain only
// the changed regions of diff tracking arrays.
//
// # Related Packages
//
//   - github.com/signadot/scenesync/arraylike for attribute encoding.
//   - github.com/signadot/scenesync/render for rasterization.
package scene

import (
	"github.com/google/uuid"
)

// Visual type names as they appear in snapshots.
const (
	TypePixels = "Pixels"
	TypeMesh   = "Mesh"
)

// Color is RGBA with components in [0, 1].
type Color [4]float64

var (
	White = Color{1, 1, 1, 1}
	Black = Color{0, 0, 0, 1}
)

type Canvas struct {
	UUID      string
	Width     int
	Height    int
	DPI       float64
	Viewports []*Viewport
}

func NewCanvas(width, height int, dpi float64) *Canvas {
	return &Canvas{UUID: uuid.NewString(), Width: width, Height: height, DPI: dpi}
}

func (c *Canvas) Add(v *Viewport) {
	c.Viewports = append(c.Viewports, v)
}

// Viewport is a rectangle of the canvas, in pixels from the bottom left
// corner.
type Viewport struct {
	UUID       string
	OriginX    int
	OriginY    int
	Width      int
	Height     int
	Background Color
	Visuals    []Visual
}

func NewViewport(x, y, width, height int) *Viewport {
	return &Viewport{
		UUID:       uuid.NewString(),
		OriginX:    x,
		OriginY:    y,
		Width:      width,
		Height:     height,
		Background: White,
	}
}

func (v *Viewport) Add(vis Visual) {
	v.Visuals = append(v.Visuals, vis)
}

// Visual is implemented by *Pixels and *Mesh.
type Visual interface {
	Type() string
	ID() string
}

// Pixels draws one square point per row of Positions.
//
// Attributes are *ndarray.Array, *diffarray.Array or transform.Link values.
// Positions has shape (N, 3) in normalized device coordinates, Sizes (N) in
// pixels, and Colors (N, 4).
type Pixels struct {
	UUID      string
	Positions any
	Sizes     any
	Colors    any
}

func NewPixels(positions, sizes, colors any) *Pixels {
	return &Pixels{UUID: uuid.NewString(), Positions: positions, Sizes: sizes, Colors: colors}
}

func (p *Pixels) Type() string { return TypePixels }
func (p *Pixels) ID() string   { return p.UUID }

// Mesh draws filled triangles. Vertices has shape (V, 3), Faces (F, 3)
// holding vertex indices, and FaceColors (F, 4).
type Mesh struct {
	UUID       string
	Vertices   any
	Faces      any
	FaceColors any
}

func NewMesh(vertices, faces, faceColors any) *Mesh {
	return &Mesh{UUID: uuid.NewString(), Vertices: vertices, Faces: faces, FaceColors: faceColors}
}

func (m *Mesh) Type() string { return TypeMesh }
func (m *Mesh) ID() string   { return m.UUID }
