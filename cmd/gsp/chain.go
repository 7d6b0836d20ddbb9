package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/scott-cotton/cli"
	"github.com/signadot/scenesync/transform"
)

type ChainConfig struct {
	MainConfig *MainConfig
	Chain      *cli.Command
	Types      bool `cli:"name=types desc='list the registered link types'"`
}

func ChainCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ChainConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Chain, "chain").
		WithSynopsis("chain [-types] [file]").
		WithDescription("evaluate a serialized computation chain and print the result").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return chain(cfg, cc, args)
		})
}

func chain(cfg *ChainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Chain.Parse(cc, args)
	if err != nil {
		return err
	}
	reg := transform.NewRegistry()
	if cfg.Types {
		fmt.Fprintf(cc.Out, "link types: %s\n", strings.Join(reg.Types(), ", "))
		return nil
	}
	src := "-"
	switch len(args) {
	case 0:
	case 1:
		src = args[0]
	default:
		return fmt.Errorf("%w: expected at most one file", cli.ErrUsage)
	}
	d, err := readArg(src)
	if err != nil {
		return err
	}
	l, err := reg.Decode(d)
	if err != nil {
		return err
	}
	theLog.Debug("decoded chain", "links", transform.Len(l))
	res, err := transform.Run(context.Background(), l)
	if err != nil {
		return err
	}
	out, err := res.MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Fprintf(cc.Out, "%s\n", out)
	return nil
}
