package asset

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// The Resource type wraps a local file or a remote stream. Paths ending in
// ".gz" are transparently decompressed.
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Returns the path to this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// Returns true if the Resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// Ext returns the lower-case extension of the resource, ignoring any ".gz"
// suffix. For example "scene.PLY.gz" yields ".ply".
func (r *Resource) Ext() string {
	return Ext(r.url.Path)
}

// Ext returns the lower-case extension of a path, ignoring any ".gz" suffix.
func Ext(p string) string {
	p = strings.ToLower(p)
	p = strings.TrimSuffix(p, ".gz")
	return path.Ext(p)
}

// Create a new Resource data stream from a local path or an http/https URL.
// The caller must close the returned Resource.
func NewResource(pathToResource string) (*Resource, error) {
	url, err := url.Parse(strings.Replace(pathToResource, `\`, `/`, -1))
	if err != nil {
		return nil, err
	}

	var reader io.ReadCloser
	switch url.Scheme {
	case "":
		reader, err = os.Open(filepath.Clean(url.Path))
		if err != nil {
			return nil, err
		}
	case "http", "https":
		resp, err := http.Get(url.String())
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %s", url.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", url.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", url.Scheme)
	}

	if strings.HasSuffix(strings.ToLower(url.Path), ".gz") {
		if reader, err = newGzipReader(reader); err != nil {
			return nil, fmt.Errorf("resource: could not decompress '%s': %s", url.String(), err)
		}
	}

	return &Resource{
		ReadCloser: reader,
		url:        url,
	}, nil
}

// Create a resource from a reader.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	u, err := url.Parse(name)
	if err != nil {
		u = &url.URL{Path: name}
	}
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        u,
	}
}

// Closes both the decompressor and the underlying stream.
type gzipReadCloser struct {
	*gzip.Reader
	src io.Closer
}

func newGzipReader(src io.ReadCloser) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		src.Close()
		return nil, err
	}
	return &gzipReadCloser{Reader: zr, src: src}, nil
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if srcErr := g.src.Close(); err == nil {
		err = srcErr
	}
	return err
}
