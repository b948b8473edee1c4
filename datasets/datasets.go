// Package datasets fetches the glacier outlines used in the demos. Outlines
// are GeoJSON files served from a pinned revision of the glacier-meshes
// repository; downloads land in a per-user cache directory and are reused on
// subsequent calls.
package datasets

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cryoflow/cryoflow/geometry"
)

// DefaultCommit pins the revision of the outline repository so that results
// stay reproducible as the upstream data evolves.
const DefaultCommit = "5906b7c21d844a982aa012e934fe29b31ef13d41"

const outlinesURL = "https://raw.githubusercontent.com/icepack/glacier-meshes"

var glacierNames = []string{
	"amery",
	"filchner-ronne",
	"getz",
	"helheim",
	"hiawatha",
	"jakobshavn",
	"larsen-2015",
	"larsen-2018",
	"larsen-2019",
	"pine-island",
	"ross",
}

// GlacierNames returns the names of the glaciers with published outlines, in
// sorted order.
func GlacierNames() []string {
	names := make([]string, len(glacierNames))
	copy(names, glacierNames)
	sort.Strings(names)
	return names
}

func validName(name string) bool {
	for _, n := range glacierNames {
		if n == name {
			return true
		}
	}
	return false
}

// A Fetcher downloads and caches glacier outlines. The zero value is not
// usable; call NewFetcher.
type Fetcher struct {
	// CacheDir is where downloaded files are kept.
	CacheDir string

	// Commit selects the outline repository revision. Empty means
	// DefaultCommit.
	Commit string

	// BaseURL overrides the download host, for testing.
	BaseURL string

	// Client is the HTTP client used for downloads.
	Client *http.Client
}

// NewFetcher returns a Fetcher caching into the per-user cache directory.
func NewFetcher() (*Fetcher, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("locating user cache directory: %w", err)
	}
	return &Fetcher{
		CacheDir: filepath.Join(base, "cryoflow"),
		Client:   http.DefaultClient,
	}, nil
}

// OutlineURL returns the download URL for a glacier outline.
func (f *Fetcher) OutlineURL(name string) string {
	base := f.BaseURL
	if base == "" {
		base = outlinesURL
	}
	commit := f.Commit
	if commit == "" {
		commit = DefaultCommit
	}
	return fmt.Sprintf("%s/%s/glaciers/%s.geojson", base, commit, name)
}

// FetchOutline downloads the outline of a named glacier into the cache and
// returns the local file path. A file already in the cache is returned
// without touching the network.
func (f *Fetcher) FetchOutline(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("unknown glacier %q; valid names are %s",
			name, strings.Join(GlacierNames(), ", "))
	}

	path := filepath.Join(f.CacheDir, name+".geojson")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	url := f.OutlineURL(name)
	resp, err := client.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: %s", url, resp.Status)
	}

	// Download to a temporary file so an interrupted transfer never leaves a
	// truncated outline in the cache.
	tmp, err := os.CreateTemp(f.CacheDir, name+".geojson.tmp*")
	if err != nil {
		return "", fmt.Errorf("creating cache file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("caching %s: %w", path, err)
	}
	return path, nil
}

// LoadOutline fetches a named glacier outline and parses it into a segment
// collection ready for normalization and meshing.
func (f *Fetcher) LoadOutline(name string) (geometry.Collection, error) {
	path, err := f.FetchOutline(name)
	if err != nil {
		return geometry.Collection{}, err
	}
	return geometry.LoadGeoJSON(path)
}
