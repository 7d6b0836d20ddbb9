package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/scott-cotton/cli"
	"github.com/signadot/scenesync/diffarray"
	"github.com/signadot/scenesync/ndarray"
	"github.com/signadot/scenesync/scene"
	"github.com/signadot/scenesync/system/syncd/client"
	"github.com/signadot/scenesync/transform"
)

type DemoConfig struct {
	MainConfig *MainConfig
	Demo       *cli.Command
	URL        string `cli:"name=url desc='sync server base URL' default=http://localhost:8080"`
	Frames     int    `cli:"name=frames desc='number of frames to send' default=60"`
	Points     int    `cli:"name=points desc='number of moving points' default=200"`
	DelayMS    int    `cli:"name=delay desc='milliseconds between frames' default=50"`
	NoDiff     bool   `cli:"name=no-diff desc='send every frame whole'"`
	Out        string `cli:"name=o desc='write the last frame to this PNG file'"`
}

func DemoCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DemoConfig{
		MainConfig: mainCfg,
		URL:        "http://localhost:8080",
		Frames:     60,
		Points:     200,
		DelayMS:    50,
	}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Demo, "demo").
		WithSynopsis("demo [-url <url>] [-frames n] [-points n] [-o file.png]").
		WithDescription("animate a random walk of points against a sync server").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return demo(cfg, cc, args)
		})
}

func demo(cfg *DemoConfig, cc *cli.Context, args []string) error {
	_, err := cfg.Demo.Parse(cc, args)
	if err != nil {
		return err
	}
	if cfg.Points <= 0 || cfg.Frames <= 0 {
		return fmt.Errorf("%w: -points and -frames must be positive", cli.ErrUsage)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	canvas, pos, err := demoScene(cfg.Points)
	if err != nil {
		return err
	}
	r, err := client.New(client.Options{
		Transport:   client.NewHTTPTransport(cfg.URL),
		DisableDiff: cfg.NoDiff,
		Log:         theLog,
	})
	if err != nil {
		return err
	}
	theLog.Info("demo", "client", r.ClientID(), "url", cfg.URL)

	var img []byte
	for frame := range cfg.Frames {
		if frame > 0 {
			if err := step(pos, cfg.Points/10+1); err != nil {
				return fmt.Errorf("frame %d: %w", frame, err)
			}
		}
		start := time.Now()
		img, err = r.Render(ctx, canvas)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		theLog.Info("frame", "n", frame, "state", r.State(), "bytes", len(img), "took", time.Since(start))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(cfg.DelayMS) * time.Millisecond):
		}
	}
	if cfg.Out != "" {
		return os.WriteFile(cfg.Out, img, 0o644)
	}
	return nil
}

func demoScene(n int) (*scene.Canvas, *diffarray.Array, error) {
	buf := ndarray.Zeros(n, 3)
	for i := range n {
		buf.SetAt(rand.Float64()*2-1, i, 0)
		buf.SetAt(rand.Float64()*2-1, i, 1)
	}
	pos, err := diffarray.New(buf)
	if err != nil {
		return nil, nil, err
	}
	// a gradient from blue to red along the point index, opaque
	colors, err := transform.NewBuilder(ndarray.Zeros(n, 4)).
		Expr("i % 4 == 3 ? 1 : (i % 4 == 0 ? 4 * int(i / 4) / n : (i % 4 == 2 ? 1 - 4 * int(i / 4) / n : 0.2))").
		AssertShape(n, 4).
		Head()
	if err != nil {
		return nil, nil, err
	}
	c := scene.NewCanvas(400, 400, 100)
	vp := scene.NewViewport(0, 0, 400, 400)
	vp.Add(scene.NewPixels(pos, ndarray.Scalar(3), colors))
	c.Add(vp)
	return c, pos, nil
}

// step moves k random points by a small random offset, clamped to the
// visible square.
func step(pos *diffarray.Array, k int) error {
	n := pos.Shape()[0]
	for range k {
		i := rand.IntN(n)
		for axis := range 2 {
			v := pos.At(i, axis) + (rand.Float64()-0.5)*0.1
			if err := pos.Set(min(max(v, -1), 1), i, axis); err != nil {
				return err
			}
		}
	}
	return nil
}
