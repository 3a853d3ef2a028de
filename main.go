package main

import (
	"os"

	"github.com/DYH200009/GRAPE/cmd"
	"github.com/DYH200009/GRAPE/log"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	formatFlag := cli.StringFlag{
		Name:  "format, f",
		Value: "binary",
		Usage: "ply encoding: binary, binary_big_endian or ascii",
	}
	pruneFlags := []cli.Flag{
		cli.Float64Flag{
			Name:  "min-opacity",
			Usage: "prune primitives below this opacity (default: from config)",
		},
		cli.Float64Flag{
			Name:  "max-screen-size",
			Usage: "prune primitives whose screen radius exceeded this value; 0 disables size pruning (default: from config)",
		},
		cli.Float64Flag{
			Name:  "extent",
			Usage: "scene extent; derived from the primitive bounds if not set",
		},
		formatFlag,
	}

	app := cli.NewApp()
	app.Name = "grape"
	app.Usage = "manage populations of 3D gaussian splat primitives"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "yaml file with training options",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "init",
			Usage: "seed a model from an oriented point cloud",
			Description: `
Read a point cloud with x, y, z, nx, ny, nz and optional red, green, blue and
type properties from a ply file and create one primitive per point. Initial
scales follow the local point density and every primitive is aligned with its
normal.

The output is a ply file or, if the name ends in .zip, a checkpoint archive.`,
			ArgsUsage: "cloud.ply out.{ply,zip}",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "planar",
					Usage: "mark every point planar if the cloud has no type property",
				},
				formatFlag,
			},
			Action: cmd.InitModel,
		},
		{
			Name:      "info",
			Usage:     "display model statistics",
			ArgsUsage: "model.{ply,zip}",
			Action:    cmd.ShowModelInfo,
		},
		{
			Name:  "densify",
			Usage: "run a densify and prune cycle",
			Description: `
Clone small primitives and split large ones whose averaged gradient
exceeds the threshold, then prune. Gradient statistics are only available in
checkpoint archives.`,
			ArgsUsage: "in.{ply,zip} out.{ply,zip}",
			Flags: append([]cli.Flag{
				cli.Float64Flag{
					Name:  "grad-threshold",
					Usage: "densification gradient threshold (default: from config)",
				},
				cli.BoolFlag{
					Name:  "reset-opacity",
					Usage: "clamp opacities to 0.01 after densifying",
				},
			}, pruneFlags...),
			Action: cmd.DensifyModel,
		},
		{
			Name:      "prune",
			Usage:     "remove transparent and oversized primitives",
			ArgsUsage: "in.{ply,zip} out.{ply,zip}",
			Flags:     pruneFlags,
			Action:    cmd.PruneModel,
		},
		{
			Name:      "normals",
			Usage:     "recompute primitive normals and types",
			ArgsUsage: "in.{ply,zip} out.{ply,zip}",
			Flags:     []cli.Flag{formatFlag},
			Action:    cmd.EstimateNormals,
		},
		{
			Name:      "sample",
			Usage:     "draw points from every primitive",
			ArgsUsage: "model.{ply,zip} cloud.ply",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "count, n",
					Value: 1,
					Usage: "points per primitive",
				},
				cli.Uint64Flag{
					Name:  "seed",
					Value: 1,
					Usage: "random seed",
				},
				formatFlag,
			},
			Action: cmd.SampleModel,
		},
		{
			Name:   "config",
			Usage:  "print the effective training options",
			Action: cmd.ShowConfig,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.New("grape").Error(err)
		os.Exit(1)
	}
}
