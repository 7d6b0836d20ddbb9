// Package render rasterizes scenes.
//
// Rendering is deliberately simple: Pixels visuals are drawn as squares,
// Mesh visuals as flat shaded triangles sorted back to front. Positions are
// normalized device coordinates, [-1, 1] on each axis of their viewport with
// y pointing up; the z coordinate only orders mesh faces.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"slices"

	"github.com/signadot/scenesync/arraylike"
	"github.com/signadot/scenesync/ndarray"
	"github.com/signadot/scenesync/scene"
	"golang.org/x/image/vector"
)

// PNG renders c and encodes it as PNG. It is usable as a server renderer.
func PNG(ctx context.Context, c *scene.Canvas) ([]byte, error) {
	img, err := Image(ctx, c)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Image renders c.
func Image(ctx context.Context, c *scene.Canvas) (*image.RGBA, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", c.Width, c.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(toColor(scene.White[:])), image.Point{}, draw.Src)
	for _, vp := range c.Viewports {
		if err := viewport(ctx, img, vp); err != nil {
			return nil, fmt.Errorf("viewport %s: %w", vp.UUID, err)
		}
	}
	return img, nil
}

// frame maps normalized device coordinates of a viewport to image pixels.
type frame struct {
	full image.Rectangle // viewport in image space, possibly clipped below
	clip image.Rectangle
}

func (f frame) point(x, y float64) (float64, float64) {
	w, h := float64(f.full.Dx()), float64(f.full.Dy())
	px := float64(f.full.Min.X) + (x+1)/2*w
	py := float64(f.full.Min.Y) + (1-(y+1)/2)*h
	return px, py
}

func viewport(ctx context.Context, img *image.RGBA, vp *scene.Viewport) error {
	// image rows grow downwards, viewport origins upwards
	H := img.Bounds().Dy()
	full := image.Rect(vp.OriginX, H-vp.OriginY-vp.Height, vp.OriginX+vp.Width, H-vp.OriginY)
	f := frame{full: full, clip: full.Intersect(img.Bounds())}
	if f.clip.Empty() {
		return nil
	}
	draw.Draw(img, f.clip, image.NewUniform(toColor(vp.Background[:])), image.Point{}, draw.Src)
	for _, vis := range vp.Visuals {
		var err error
		switch x := vis.(type) {
		case *scene.Pixels:
			err = pixels(ctx, img, f, x)
		case *scene.Mesh:
			err = mesh(ctx, img, f, x)
		default:
			err = fmt.Errorf("unsupported visual %T", vis)
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", vis.Type(), vis.ID(), err)
		}
	}
	return nil
}

func materialize(ctx context.Context, name string, v any, cols int) (*ndarray.Array, error) {
	a, err := arraylike.Materialize(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if cols == 0 {
		if a.NDim() > 1 {
			return nil, fmt.Errorf("%s: %w: expected (N), got %v", name, ndarray.ErrShape, a.Shape())
		}
		return a, nil
	}
	if a.NDim() != 2 || a.Dim(1) != cols {
		return nil, fmt.Errorf("%s: %w: expected (N, %d), got %v", name, ndarray.ErrShape, cols, a.Shape())
	}
	return a, nil
}

// broadcast checks that attribute a has either n rows or a single row.
func broadcast(name string, a *ndarray.Array, n int) (func(i int) int, error) {
	rows := 1
	if a.NDim() > 0 {
		rows = a.Dim(0)
	}
	switch rows {
	case n:
		return func(i int) int { return i }, nil
	case 1:
		return func(int) int { return 0 }, nil
	}
	return nil, fmt.Errorf("%s: %w: %d rows for %d items", name, ndarray.ErrShape, rows, n)
}

func pixels(ctx context.Context, img *image.RGBA, f frame, p *scene.Pixels) error {
	pos, err := materialize(ctx, "positions", p.Positions, 3)
	if err != nil {
		return err
	}
	sizes, err := materialize(ctx, "sizes", p.Sizes, 0)
	if err != nil {
		return err
	}
	colors, err := materialize(ctx, "colors", p.Colors, 4)
	if err != nil {
		return err
	}
	n := pos.Dim(0)
	si, err := broadcast("sizes", sizes, n)
	if err != nil {
		return err
	}
	ci, err := broadcast("colors", colors, n)
	if err != nil {
		return err
	}
	sv, cv := sizes.Values(), colors.Values()
	for i := range n {
		px, py := f.point(pos.At(i, 0), pos.At(i, 1))
		s := math.Max(1, sv[si(i)])
		r := image.Rect(
			int(math.Floor(px-s/2)), int(math.Floor(py-s/2)),
			int(math.Floor(px+s/2)), int(math.Floor(py+s/2)),
		)
		if r.Dx() == 0 {
			r.Max.X++
		}
		if r.Dy() == 0 {
			r.Max.Y++
		}
		c := ci(i) * 4
		draw.Draw(img, r.Intersect(f.clip), image.NewUniform(toColor(cv[c:c+4])), image.Point{}, draw.Over)
	}
	return nil
}

func mesh(ctx context.Context, img *image.RGBA, f frame, m *scene.Mesh) error {
	verts, err := materialize(ctx, "vertices", m.Vertices, 3)
	if err != nil {
		return err
	}
	faces, err := materialize(ctx, "faces", m.Faces, 3)
	if err != nil {
		return err
	}
	colors, err := materialize(ctx, "face_colors", m.FaceColors, 4)
	if err != nil {
		return err
	}
	nv, nf := verts.Dim(0), faces.Dim(0)
	ci, err := broadcast("face_colors", colors, nf)
	if err != nil {
		return err
	}
	type tri struct {
		face int
		v    [3]int
		z    float64
	}
	tris := make([]tri, nf)
	for i := range nf {
		t := tri{face: i}
		for k := range 3 {
			fv := faces.At(i, k)
			vi := int(fv)
			if float64(vi) != fv || vi < 0 || vi >= nv {
				return fmt.Errorf("faces: %w: face %d references vertex %v of %d", ndarray.ErrIndex, i, fv, nv)
			}
			t.v[k] = vi
			t.z += verts.At(vi, 2) / 3
		}
		tris[i] = t
	}
	// painter's order: farthest (lowest z) first
	slices.SortStableFunc(tris, func(a, b tri) int {
		switch {
		case a.z < b.z:
			return -1
		case a.z > b.z:
			return 1
		}
		return 0
	})
	cv := colors.Values()
	ox, oy := float64(f.clip.Min.X), float64(f.clip.Min.Y)
	z := vector.NewRasterizer(f.clip.Dx(), f.clip.Dy())
	for _, t := range tris {
		z.Reset(f.clip.Dx(), f.clip.Dy())
		for k, vi := range t.v {
			px, py := f.point(verts.At(vi, 0), verts.At(vi, 1))
			x, y := float32(px-ox), float32(py-oy)
			if k == 0 {
				z.MoveTo(x, y)
				continue
			}
			z.LineTo(x, y)
		}
		z.ClosePath()
		c := ci(t.face) * 4
		z.Draw(img, f.clip, image.NewUniform(toColor(cv[c:c+4])), image.Point{})
	}
	return nil
}

func toColor(c []float64) color.NRGBA {
	ch := func(v float64) uint8 {
		if math.IsNaN(v) {
			return 0
		}
		return uint8(math.Round(255 * math.Min(1, math.Max(0, v))))
	}
	return color.NRGBA{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: ch(c[3])}
}
