package cmd

import (
	"errors"

	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/splat"
	"github.com/urfave/cli"
)

// Run one densify and prune cycle over the gradient statistics stored in a
// checkpoint.
func DensifyModel(ctx *cli.Context) error {
	opts, err := setupLogging(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 2 {
		return errors.New("expected an input and an output model file")
	}

	lm, err := loadModel(ctx.Args().Get(0), opts)
	if err != nil {
		return err
	}
	if lm.checkpoint == nil {
		logger.Warning("input has no gradient statistics; only pruning will take effect")
	}

	th := thresholds(ctx, opts, lm.Model)
	gradThreshold := opts.Densify.GradThreshold
	if ctx.IsSet("grad-threshold") {
		gradThreshold = float32(ctx.Float64("grad-threshold"))
	}
	if err = lm.DensifyAndPrune(gradThreshold, th.minOpacity, th.extent, th.maxScreenSize); err != nil {
		return err
	}
	if ctx.Bool("reset-opacity") {
		if err = lm.ResetOpacity(); err != nil {
			return err
		}
	}
	return save(ctx, lm, opts, 1)
}

// Remove transparent and oversized primitives.
func PruneModel(ctx *cli.Context) error {
	opts, err := setupLogging(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 2 {
		return errors.New("expected an input and an output model file")
	}

	lm, err := loadModel(ctx.Args().Get(0), opts)
	if err != nil {
		return err
	}
	th := thresholds(ctx, opts, lm.Model)
	removed, err := lm.Prune(th.minOpacity, th.extent, th.maxScreenSize)
	if err != nil {
		return err
	}
	logger.Noticef("pruned %d primitives; %d left", removed, lm.Len())
	return save(ctx, lm, opts, 0)
}

// Recompute normals, and primitive types when the classifier is enabled.
func EstimateNormals(ctx *cli.Context) error {
	opts, err := setupLogging(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 2 {
		return errors.New("expected an input and an output model file")
	}

	lm, err := loadModel(ctx.Args().Get(0), opts)
	if err != nil {
		return err
	}
	if err = lm.EstimateNormals(); err != nil {
		return err
	}
	return save(ctx, lm, opts, 0)
}

type pruneThresholds struct {
	minOpacity    float32
	extent        float32
	maxScreenSize float32
}

// Collect pruning thresholds from the command flags, falling back to the
// configured values. A zero extent is derived from the bounds of the
// primitive centers.
func thresholds(ctx *cli.Context, opts config.Training, m *splat.Model) pruneThresholds {
	th := pruneThresholds{
		minOpacity:    opts.Densify.MinOpacity,
		extent:        float32(ctx.Float64("extent")),
		maxScreenSize: opts.Densify.MaxScreenSize,
	}
	if ctx.IsSet("min-opacity") {
		th.minOpacity = float32(ctx.Float64("min-opacity"))
	}
	if ctx.IsSet("max-screen-size") {
		th.maxScreenSize = float32(ctx.Float64("max-screen-size"))
	}
	if th.extent <= 0 {
		th.extent = sceneExtent(m.Summary())
		logger.Infof("using scene extent %.4f", th.extent)
	}
	return th
}

// Radius of the bounding sphere of the primitive centers, padded by 10%.
func sceneExtent(s splat.Summary) float32 {
	if s.Primitives == 0 {
		return 1
	}
	if r := 1.1 * s.Max.Sub(s.Min).Len() / 2; r > 0 {
		return r
	}
	return 1
}

func save(ctx *cli.Context, lm *loadedModel, opts config.Training, iterations int) error {
	format, err := parseFormat(ctx.String("format"))
	if err != nil {
		return err
	}
	logger.Infof("model information:\n%s", lm.Stats())
	return saveModel(ctx.Args().Get(1), lm, opts, format, iterations)
}
