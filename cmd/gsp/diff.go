package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
	"github.com/signadot/scenesync/jsondiff"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

type DiffConfig struct {
	MainConfig *MainConfig
	Diff       *cli.Command
	Ops        bool `cli:"name=ops desc='print the RFC 6902 patch instead of a line diff'"`
	Color      bool `cli:"name=color desc='color the line diff'"`
}

func DiffCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DiffConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Diff, "diff").
		WithAliases("d").
		WithSynopsis("diff [-ops] [-color] <from> <to>").
		WithDescription("compare two scene snapshots").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return diff(cfg, cc, args)
		})
}

func diff(cfg *DiffConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Diff.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: expected 2 files, got %d", cli.ErrUsage, len(args))
	}
	from, err := readArg(args[0])
	if err != nil {
		return err
	}
	to, err := readArg(args[1])
	if err != nil {
		return err
	}
	if cfg.Ops {
		ops, err := jsondiff.Diff(from, to)
		if err != nil {
			return err
		}
		buf := &bytes.Buffer{}
		if err := json.Indent(buf, ops, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err = cc.Out.Write(buf.Bytes())
		return err
	}
	return lineDiff(cc.Out, from, to, cfg.Color || isTerminal(cc.Out))
}

func readArg(arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(arg)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func lineDiff(w io.Writer, from, to []byte, colored bool) error {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	if err := json.Indent(a, from, "", "  "); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if err := json.Indent(b, to, "", "  "); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	dmp := diffpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a.String()+"\n", b.String()+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	add, del := fmt.Sprint, fmt.Sprint
	if colored {
		add = color.New(color.FgGreen).Sprint
		del = color.New(color.FgRed).Sprint
	}
	for _, d := range diffs {
		prefix, paint := "  ", fmt.Sprint
		switch d.Type {
		case diffpatch.DiffInsert:
			prefix, paint = "+ ", add
		case diffpatch.DiffDelete:
			prefix, paint = "- ", del
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			if _, err := io.WriteString(w, paint(prefix+line)); err != nil {
				return err
			}
		}
	}
	return nil
}
