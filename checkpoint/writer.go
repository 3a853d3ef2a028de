package checkpoint

import (
	"archive/zip"
	"encoding/gob"
	"io"
	"os"
	"time"

	"github.com/DYH200009/GRAPE/log"
	"gopkg.in/yaml.v3"
)

// Write a checkpoint as a zip archive.
func Write(w io.Writer, cp *Checkpoint) error {
	zw := zip.NewWriter(w)

	mw, err := zw.Create(manifestFile)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(mw)
	if err = enc.Encode(&cp.Manifest); err != nil {
		return err
	}
	if err = enc.Close(); err != nil {
		return err
	}

	cw, err := zw.Create(modelFile)
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(cw).Encode(cp.Model); err != nil {
		return err
	}
	return zw.Close()
}

// Save a checkpoint to a file.
func Save(filename string, cp *Checkpoint) error {
	logger := log.New("checkpoint")
	logger.Noticef(`writing checkpoint of run %s to "%s"`, cp.Manifest.RunID, filename)
	start := time.Now()

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err = Write(f, cp); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	logger.Noticef("wrote checkpoint in %d ms", time.Since(start).Nanoseconds()/1000000)
	return nil
}
