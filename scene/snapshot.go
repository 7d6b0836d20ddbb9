package scene

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/signadot/scenesync/arraylike"
	"github.com/signadot/scenesync/transform"
)

// ErrInvalidScene is matched by decoding errors in the snapshot structure
// itself, as opposed to errors in the array encodings it embeds.
var ErrInvalidScene = errors.New("invalid scene")

type snapshotJSON struct {
	Canvas *canvasJSON `json:"canvas"`
}

type canvasJSON struct {
	UUID      string         `json:"uuid"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	DPI       float64        `json:"dpi"`
	Viewports []viewportJSON `json:"viewports"`
}

type viewportJSON struct {
	UUID       string            `json:"uuid"`
	OriginX    int               `json:"origin_x"`
	OriginY    int               `json:"origin_y"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Background Color             `json:"background_color"`
	Visuals    []json.RawMessage `json:"visuals"`
}

type visualHeader struct {
	Type string `json:"type"`
	UUID string `json:"uuid"`
}

type pixelsJSON struct {
	visualHeader
	Positions *arraylike.Envelope `json:"positions"`
	Sizes     *arraylike.Envelope `json:"sizes"`
	Colors    *arraylike.Envelope `json:"colors"`
}

type meshJSON struct {
	visualHeader
	Vertices   *arraylike.Envelope `json:"vertices"`
	Faces      *arraylike.Envelope `json:"faces"`
	FaceColors *arraylike.Envelope `json:"face_colors"`
}

// Encoder produces snapshots. Encoding resets the change tracking of every
// diff tracking array in the scene.
type Encoder struct {
	Arrays *arraylike.Encoder
}

func NewEncoder() *Encoder {
	return &Encoder{Arrays: arraylike.NewEncoder()}
}

// Reset forgets every array identity sent so far. The next snapshot
// carries every diff tracking array in full.
func (e *Encoder) Reset() {
	e.Arrays.Store.Reset()
}

// Encode returns the snapshot document of c.
func (e *Encoder) Encode(c *Canvas) ([]byte, error) {
	cj := &canvasJSON{
		UUID:      c.UUID,
		Width:     c.Width,
		Height:    c.Height,
		DPI:       c.DPI,
		Viewports: make([]viewportJSON, 0, len(c.Viewports)),
	}
	for _, vp := range c.Viewports {
		vj := viewportJSON{
			UUID:       vp.UUID,
			OriginX:    vp.OriginX,
			OriginY:    vp.OriginY,
			Width:      vp.Width,
			Height:     vp.Height,
			Background: vp.Background,
			Visuals:    make([]json.RawMessage, 0, len(vp.Visuals)),
		}
		for _, vis := range vp.Visuals {
			d, err := e.visual(vis)
			if err != nil {
				return nil, fmt.Errorf("visual %s: %w", vis.ID(), err)
			}
			vj.Visuals = append(vj.Visuals, d)
		}
		cj.Viewports = append(cj.Viewports, vj)
	}
	return json.Marshal(snapshotJSON{Canvas: cj})
}

func (e *Encoder) visual(vis Visual) ([]byte, error) {
	h := visualHeader{Type: vis.Type(), UUID: vis.ID()}
	switch x := vis.(type) {
	case *Pixels:
		envs, err := e.encodeAll(x.Positions, x.Sizes, x.Colors)
		if err != nil {
			return nil, err
		}
		return json.Marshal(pixelsJSON{visualHeader: h, Positions: envs[0], Sizes: envs[1], Colors: envs[2]})
	case *Mesh:
		envs, err := e.encodeAll(x.Vertices, x.Faces, x.FaceColors)
		if err != nil {
			return nil, err
		}
		return json.Marshal(meshJSON{visualHeader: h, Vertices: envs[0], Faces: envs[1], FaceColors: envs[2]})
	}
	return nil, fmt.Errorf("%w: unsupported visual %T", ErrInvalidScene, vis)
}

func (e *Encoder) encodeAll(vs ...any) ([]*arraylike.Envelope, error) {
	res := make([]*arraylike.Envelope, len(vs))
	for i, v := range vs {
		env, err := e.Arrays.Encode(v)
		if err != nil {
			return nil, err
		}
		res[i] = env
	}
	return res, nil
}

// Decoder rebuilds canvases from snapshots.
type Decoder struct {
	Arrays *arraylike.Decoder
}

// NewDecoder returns a Decoder resolving transform chains with reg, or the
// default registry when reg is nil.
func NewDecoder(reg *transform.Registry) *Decoder {
	return &Decoder{Arrays: arraylike.NewDecoder(reg)}
}

// Decode parses a snapshot. Errors from the embedded array encodings, such
// as arraylike.ErrIdentityNotFound, are returned wrapped.
func (d *Decoder) Decode(data []byte) (*Canvas, error) {
	var s snapshotJSON
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
	}
	if s.Canvas == nil {
		return nil, fmt.Errorf("%w: missing canvas", ErrInvalidScene)
	}
	cj := s.Canvas
	c := &Canvas{UUID: cj.UUID, Width: cj.Width, Height: cj.Height, DPI: cj.DPI}
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("%w: canvas size %dx%d", ErrInvalidScene, c.Width, c.Height)
	}
	for _, vj := range cj.Viewports {
		vp := &Viewport{
			UUID:       vj.UUID,
			OriginX:    vj.OriginX,
			OriginY:    vj.OriginY,
			Width:      vj.Width,
			Height:     vj.Height,
			Background: vj.Background,
		}
		for _, raw := range vj.Visuals {
			vis, err := d.visual(raw)
			if err != nil {
				return nil, err
			}
			vp.Visuals = append(vp.Visuals, vis)
		}
		c.Viewports = append(c.Viewports, vp)
	}
	return c, nil
}

func (d *Decoder) visual(raw json.RawMessage) (Visual, error) {
	var h visualHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
	}
	switch h.Type {
	case TypePixels:
		var pj pixelsJSON
		if err := json.Unmarshal(raw, &pj); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
		}
		vs, err := d.decodeAll(h, pj.Positions, pj.Sizes, pj.Colors)
		if err != nil {
			return nil, err
		}
		return &Pixels{UUID: h.UUID, Positions: vs[0], Sizes: vs[1], Colors: vs[2]}, nil
	case TypeMesh:
		var mj meshJSON
		if err := json.Unmarshal(raw, &mj); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
		}
		vs, err := d.decodeAll(h, mj.Vertices, mj.Faces, mj.FaceColors)
		if err != nil {
			return nil, err
		}
		return &Mesh{UUID: h.UUID, Vertices: vs[0], Faces: vs[1], FaceColors: vs[2]}, nil
	}
	return nil, fmt.Errorf("%w: unknown visual type %q", ErrInvalidScene, h.Type)
}

func (d *Decoder) decodeAll(h visualHeader, envs ...*arraylike.Envelope) ([]any, error) {
	res := make([]any, len(envs))
	for i, env := range envs {
		v, err := d.Arrays.Decode(env)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", h.Type, h.UUID, err)
		}
		res[i] = v
	}
	return res, nil
}
