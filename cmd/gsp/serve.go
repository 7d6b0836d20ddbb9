package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/scott-cotton/cli"
	"github.com/signadot/scenesync/system/syncd/server"
)

type ServeConfig struct {
	MainConfig *MainConfig
	Serve      *cli.Command
	ConfigFile string `cli:"name=config desc='path to a YAML config file'"`
	Addr       string `cli:"name=addr desc='HTTP listen address, overrides the config'"`
	NoGops     bool   `cli:"name=no-gops desc='do not start the gops agent'"`
}

func ServeCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ServeConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Serve, "serve").
		WithSynopsis("serve [-config <file>] [-addr <addr>]").
		WithDescription("run the scene sync server").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return serve(cfg, cc, args)
		})
}

func serve(cfg *ServeConfig, cc *cli.Context, args []string) error {
	_, err := cfg.Serve.Parse(cc, args)
	if err != nil {
		return err
	}

	if !cfg.NoGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			fmt.Fprintf(cc.Out, "gops agent failed: %v\n", err)
		}
		defer agent.Close()
	}

	serverConfig := server.DefaultConfig()
	if cfg.ConfigFile != "" {
		serverConfig, err = server.LoadConfig(cfg.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	if err := serverConfig.ApplyEnv(); err != nil {
		return err
	}
	if cfg.Addr != "" {
		serverConfig.Addr = cfg.Addr
	}
	if err := serverConfig.Validate(); err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(&server.Spec{Config: serverConfig})
	return srv.Run(ctx)
}
