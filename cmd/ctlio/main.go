// Package main is the ctlio CLI entrypoint: it wires a frame stream into
// the odometry engine and dumps the resulting trajectory on shutdown.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/ctlio/collab"
	"go.viam.com/ctlio/ctlerrors"
	"go.viam.com/ctlio/engconfig"
	"go.viam.com/ctlio/logging"
	"go.viam.com/ctlio/odom"
)

func main() {
	app := &cli.App{
		Name:            "ctlio",
		Usage:           "continuous-time LIDAR-inertial odometry engine",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "consume a frame stream and run the odometry engine",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "load engine configuration from `FILE` (defaults are used if omitted)",
					},
					&cli.StringFlag{
						Name:  "input",
						Usage: "NDJSON frame stream `FILE` (defaults to stdin)",
					},
					&cli.StringFlag{
						Name:     "trajectory-out",
						Required: true,
						Usage:    "path to write the trajectory dump on shutdown",
					},
				},
				Action: RunAction,
			},
			{
				Name:  "config",
				Usage: "work with engine configuration",
				Subcommands: []*cli.Command{
					{
						Name:      "validate",
						Usage:     "validate a configuration file",
						ArgsUsage: "<config-file>",
						Action:    ConfigValidateAction,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if ctlerrors.IsFatal(err) {
			logging.NewLogger("ctlio").Fatalw("fatal error", "err", err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// RunAction implements `ctlio run`.
func RunAction(c *cli.Context) error {
	logger := logging.NewLogger("ctlio")
	if c.Bool("debug") {
		logger = logging.NewDebugLogger("ctlio")
	}

	cfg := engconfig.Default()
	if path := c.String("config"); path != "" {
		loaded, err := engconfig.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	var input io.Reader = os.Stdin
	if path := c.String("input"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "opening input %s", path)
		}
		defer f.Close()
		input = f
	}

	engine := odom.New(cfg, logger)
	source := newNDJSONFrameSource(input)
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	for i := 0; ; i++ {
		frame, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading frame stream")
		}

		summary, err := engine.RegisterFrame(ctx, frame.EvalTime, frame.Points, frame.IMUs)
		if err != nil {
			if ctlerrors.IsFatal(err) {
				return err
			}
			logger.Warnw("frame registration error", "frame", i, "err", err)
			continue
		}
		if !summary.Success {
			logger.Warnw("frame registration failed", "frame", i)
			continue
		}
		logger.Debugw("frame registered", "frame", i, "keypoints", len(summary.Keypoints))
	}

	writer := collab.NewTrajectoryWriter(c.String("trajectory-out"))
	if err := writer.Write(engine.Trajectory(), engine.Frames()); err != nil {
		return errors.Wrap(err, "writing trajectory dump")
	}
	return nil
}

// ConfigValidateAction implements `ctlio config validate`.
func ConfigValidateAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("config file path required")
	}
	cfg, err := engconfig.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: valid\n", path)
	return nil
}
