package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/delaneyj/observa/compiler"
	"github.com/delaneyj/observa/internal/appfile"
	"github.com/delaneyj/observa/internal/ctxlog"
	"github.com/delaneyj/observa/observer"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

const (
	syncKey       = "sync"
	maxUpdatesKey = "max-updates"
	maxTicksKey   = "max-ticks"
	devKey        = "dev"
	silentKey     = "silent"
	logLevelKey   = "log-level"
	logFormatKey  = "log-format"
)

func main() {
	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	cmd := &cli.Command{
		Name:   "observa",
		Usage:  "Run reactive apps described in HCL",
		Writer: outW,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  logLevelKey,
				Usage: "Log level: debug, info, warn or error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  logFormatKey,
				Usage: "Log format: text or json",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  devKey,
				Usage: "Emit dependency tracking debug events and log at debug level with sources",
			},
			&cli.BoolFlag{
				Name:  silentKey,
				Usage: "Suppress warnings from the engine and the logger",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Mount an app, apply its steps and print every render and watch",
				ArgsUsage: "<app.hcl>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  syncKey,
						Usage: "Run watchers as soon as they are queued instead of on the next tick",
					},
					&cli.IntFlag{
						Name:  maxUpdatesKey,
						Usage: "How often one watcher may re-run in a single flush",
						Value: observer.DefaultMaxUpdateCount,
					},
					&cli.IntFlag{
						Name:  maxTicksKey,
						Usage: "How many ticks one step may take to settle",
						Value: appfile.DefaultMaxTicks,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runApp(ctx, cmd, outW, errW)
				},
			},
			{
				Name:      "inspect",
				Usage:     "Print what an app file declares",
				ArgsUsage: "<app.hcl>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return inspectApp(ctx, cmd, outW, errW)
				},
			},
		},
	}
	return cmd.Run(ctx, args)
}

func loadApp(ctx context.Context, cmd *cli.Command, errW io.Writer) (context.Context, *slog.Logger, *appfile.App, error) {
	logger, err := newLogger(loggerConfig{
		Level:  cmd.String(logLevelKey),
		Format: cmd.String(logFormatKey),
		Dev:    cmd.Bool(devKey),
		Silent: cmd.Bool(silentKey),
	}, errW)
	if err != nil {
		return ctx, nil, nil, err
	}
	ctx = ctxlog.WithLogger(ctx, logger)

	if cmd.NArg() != 1 {
		return ctx, logger, nil, fmt.Errorf("%s: expected exactly one app file", cmd.Name)
	}
	app, err := appfile.Load(ctx, cmd.Args().First())
	if err != nil {
		return ctx, logger, nil, err
	}
	return ctx, logger, app, nil
}

func runApp(ctx context.Context, cmd *cli.Command, outW, errW io.Writer) error {
	ctx, logger, app, err := loadApp(ctx, cmd, errW)
	if err != nil {
		return err
	}
	app.MaxTicks = int(cmd.Int(maxTicksKey))

	cfg := observer.DefaultConfig()
	cfg.Async = !cmd.Bool(syncKey)
	cfg.MaxUpdateCount = int(cmd.Int(maxUpdatesKey))
	cfg.Dev = cmd.Bool(devKey)
	cfg.Silent = cmd.Bool(silentKey)
	sys := observer.NewSystem(observer.WithConfig(cfg), observer.WithLogger(logger))

	renders, watches := 0, 0
	c, err := app.Run(ctx, sys, func(e appfile.Event) {
		switch e.Kind {
		case appfile.EventRender:
			renders++
			fmt.Fprintf(outW, "== %s: render\n%s", e.Step, e.HTML)
		case appfile.EventWatch:
			watches++
			msg := e.Message
			if msg == "" {
				msg = fmt.Sprintf("%v -> %v", e.OldValue, e.NewValue)
			}
			fmt.Fprintf(outW, "== %s: watch %s\n%s\n", e.Step, e.Path, msg)
		}
	})
	if c != nil {
		defer c.Destroy()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(outW, "%s steps, %s renders, %s watch calls, %s of html\n",
		humanize.Comma(int64(len(app.Steps))),
		humanize.Comma(int64(renders)),
		humanize.Comma(int64(watches)),
		humanize.Bytes(uint64(len(c.HTML()))),
	)
	return nil
}

func inspectApp(ctx context.Context, cmd *cli.Command, outW, errW io.Writer) error {
	_, _, app, err := loadApp(ctx, cmd, errW)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(outW)
	table.SetHeader([]string{"kind", "name", "detail"})
	table.SetAutoWrapText(false)

	for _, f := range app.Data {
		table.Append([]string{"data", f.Name, fmt.Sprintf("%T", f.Value)})
	}
	for _, c := range app.Computed {
		detail := "cached"
		if c.Cache != nil && !*c.Cache {
			detail = "uncached"
		}
		table.Append([]string{"computed", c.Name, detail})
	}
	for _, w := range app.Watches {
		detail := ""
		switch {
		case w.Deep && w.Sync:
			detail = "deep, sync"
		case w.Deep:
			detail = "deep"
		case w.Sync:
			detail = "sync"
		}
		if w.Immediate {
			detail += " immediate"
		}
		table.Append([]string{"watch", w.Path, detail})
	}
	for _, s := range app.Steps {
		table.Append([]string{"step", s.Name, fmt.Sprintf("%d deletes", len(s.Delete))})
	}

	if app.Template != "" {
		result, err := compiler.Compile(app.Template, app.CompilerOptions)
		if err != nil {
			return err
		}
		table.Append([]string{"template", humanize.Bytes(uint64(len(app.Template))), fmt.Sprintf("%d static, bindings %v", len(result.StaticRenderFns), result.Bindings())})
	}
	table.Render()
	return nil
}
