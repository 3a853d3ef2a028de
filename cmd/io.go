package cmd

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/DYH200009/GRAPE/asset"
	"github.com/DYH200009/GRAPE/checkpoint"
	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/ply"
	"github.com/DYH200009/GRAPE/splat"
)

// A model together with the checkpoint it was loaded from, if any.
type loadedModel struct {
	*splat.Model
	checkpoint *checkpoint.Checkpoint
}

// Load a model from a PLY file or a checkpoint archive.
func loadModel(path string, opts config.Training) (*loadedModel, error) {
	res, err := asset.NewResource(path)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	switch res.Ext() {
	case ".zip":
		cp, err := checkpoint.Read(res)
		if err != nil {
			return nil, err
		}
		m, err := cp.Restore(opts)
		if err != nil {
			return nil, err
		}
		return &loadedModel{Model: m, checkpoint: cp}, nil
	case ".ply":
		t, err := readTable(res)
		if err != nil {
			return nil, err
		}
		m, err := splat.FromTable(t, opts)
		if err != nil {
			return nil, err
		}
		return &loadedModel{Model: m}, nil
	}
	return nil, fmt.Errorf("unsupported model file %q; expected a .ply or .zip file", path)
}

// Load an oriented point cloud from a PLY file.
func loadPointCloud(path string) (*splat.PointCloud, error) {
	res, err := asset.NewResource(path)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	if res.Ext() != ".ply" {
		return nil, fmt.Errorf("unsupported point cloud file %q; expected a .ply file", path)
	}
	t, err := readTable(res)
	if err != nil {
		return nil, err
	}
	return splat.ReadPointCloud(t)
}

func readTable(res *asset.Resource) (*ply.Table, error) {
	logger.Noticef(`reading "%s"`, res.Path())
	start := time.Now()
	t, err := ply.Decode(res)
	if err != nil {
		return nil, err
	}
	logger.Infof("decoded %d vertices with %d properties in %d ms", t.Count, len(t.Properties), time.Since(start).Nanoseconds()/1000000)
	return t, nil
}

// Save a model as a PLY file or a checkpoint archive. Checkpoints keep the
// run id of the checkpoint the model was loaded from and advance its
// iteration counter by iterations.
func saveModel(path string, lm *loadedModel, opts config.Training, format ply.Format, iterations int) error {
	switch asset.Ext(path) {
	case ".zip":
		runID, iteration := "", iterations
		if lm.checkpoint != nil {
			runID = lm.checkpoint.Manifest.RunID
			iteration += lm.checkpoint.Manifest.Iteration
		}
		return checkpoint.Save(path, checkpoint.New(lm.Model, runID, iteration, opts))
	case ".ply":
		if lm.checkpoint != nil {
			logger.Warningf("writing %q drops optimizer state and densification statistics", path)
		}
		t, err := lm.Table()
		if err != nil {
			return err
		}
		return writeTable(path, t, format)
	}
	return fmt.Errorf("unsupported output file %q; expected a .ply or .zip file", path)
}

func writeTable(path string, t *ply.Table, format ply.Format) error {
	logger.Noticef(`writing %d vertices to "%s" (%s)`, t.Count, path, format)
	start := time.Now()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err = ply.Encode(bw, t, format); err == nil {
		err = bw.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	logger.Infof("wrote %q in %d ms", path, time.Since(start).Nanoseconds()/1000000)
	return nil
}

func parseFormat(name string) (ply.Format, error) {
	switch name {
	case "", "binary", "binary_little_endian":
		return ply.BinaryLittleEndian, nil
	case "binary_big_endian":
		return ply.BinaryBigEndian, nil
	case "ascii":
		return ply.ASCII, nil
	}
	return 0, fmt.Errorf("unknown ply format %q", name)
}
