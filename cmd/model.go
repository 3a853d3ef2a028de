package cmd

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/DYH200009/GRAPE/splat"
	"github.com/urfave/cli"
)

// Seed a model from an oriented point cloud.
func InitModel(ctx *cli.Context) error {
	opts, err := setupLogging(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 2 {
		return errors.New("expected a point cloud and an output file")
	}

	pc, err := loadPointCloud(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	if ctx.Bool("planar") && pc.Kinds == nil {
		pc.Kinds = make([]splat.Kind, pc.Len())
		for i := range pc.Kinds {
			pc.Kinds[i] = splat.Planar
		}
	}

	m, err := splat.FromPointCloud(pc, opts)
	if err != nil {
		return err
	}
	logger.Noticef("model information:\n%s", m.Stats())

	format, err := parseFormat(ctx.String("format"))
	if err != nil {
		return err
	}
	return saveModel(ctx.Args().Get(1), &loadedModel{Model: m}, opts, format, 0)
}

// Display model statistics.
func ShowModelInfo(ctx *cli.Context) error {
	opts, err := setupLogging(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return errors.New("missing model file")
	}

	lm, err := loadModel(ctx.Args().First(), opts)
	if err != nil {
		return err
	}
	if cp := lm.checkpoint; cp != nil {
		logger.Noticef("checkpoint of run %s at iteration %d (created %s)", cp.Manifest.RunID, cp.Manifest.Iteration, cp.Manifest.Created.Format("2006-01-02 15:04:05"))
	}
	logger.Noticef("model information:\n%s", lm.Stats())
	return nil
}

// Draw points from every primitive and write them as a point cloud.
func SampleModel(ctx *cli.Context) error {
	opts, err := setupLogging(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 2 {
		return errors.New("expected a model file and an output point cloud")
	}

	lm, err := loadModel(ctx.Args().Get(0), opts)
	if err != nil {
		return err
	}
	seed := ctx.Uint64("seed")
	t, err := lm.Sample(rand.New(rand.NewPCG(seed, seed)), ctx.Int("count"))
	if err != nil {
		return err
	}

	format, err := parseFormat(ctx.String("format"))
	if err != nil {
		return err
	}
	return writeTable(ctx.Args().Get(1), t, format)
}

// Print the effective training options as YAML.
func ShowConfig(ctx *cli.Context) error {
	opts, err := setupLogging(ctx)
	if err != nil {
		return err
	}
	data, err := opts.Marshal()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, string(data))
	return err
}
