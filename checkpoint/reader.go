package checkpoint

import (
	"archive/zip"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/DYH200009/GRAPE/asset"
	"github.com/DYH200009/GRAPE/log"
	"github.com/DYH200009/GRAPE/splat"
	"gopkg.in/yaml.v3"
)

// Read a checkpoint from a resource.
func Read(res *asset.Resource) (*Checkpoint, error) {
	logger := log.New("checkpoint")
	logger.Noticef(`reading checkpoint from "%s"`, res.Path())
	start := time.Now()

	// zip package requires a reader implementing ReaderAt. To work around
	// this requirement we read the entire zip file into memory and create
	// a reader from the bytes package that implements ReaderAt
	data, err := io.ReadAll(res)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	cp := &Checkpoint{}
	var haveManifest bool
	for _, f := range zr.File {
		switch f.Name {
		case manifestFile:
			haveManifest = true
			err = decodeEntry(f, func(r io.Reader) error {
				return yaml.NewDecoder(r).Decode(&cp.Manifest)
			})
		case modelFile:
			cp.Model = &splat.Snapshot{}
			err = decodeEntry(f, func(r io.Reader) error {
				return gob.NewDecoder(r).Decode(cp.Model)
			})
		default:
			logger.Warningf("unknown file %s in checkpoint; skipping", f.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("checkpoint: failed to load %s: %w", f.Name, err)
		}
	}

	if !haveManifest {
		return nil, fmt.Errorf("%w: %s", ErrMissingEntry, manifestFile)
	}
	if cp.Model == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingEntry, modelFile)
	}
	if err = cp.Manifest.validate(); err != nil {
		return nil, err
	}

	logger.Noticef("loaded checkpoint of run %s (%d primitives) in %d ms", cp.Manifest.RunID, cp.Manifest.Primitives, time.Since(start).Nanoseconds()/1000000)
	return cp, nil
}

// Load a checkpoint from a local path or URL.
func Load(path string) (*Checkpoint, error) {
	res, err := asset.NewResource(path)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	return Read(res)
}

func decodeEntry(f *zip.File, decode func(io.Reader) error) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return decode(rc)
}
