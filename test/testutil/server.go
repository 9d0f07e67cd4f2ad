// Package testutil serves a fake archive and writes matching configs for
// end-to-end tests of the CLI.
package testutil

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/checksum"
)

// Token is the bearer token the fake archive accepts for downloads.
const Token = "test-token"

// Archive serves collection 61 in the archive's JSON listing format.
// Listings are public; granule downloads require Token.
type Archive struct {
	*httptest.Server

	mu        sync.Mutex
	granules  map[string][]byte // PRODUCT/YEAR/DOY/NAME
	corrupt   map[string]bool
	downloads map[string]int
}

// NewArchive starts an archive that is closed when t ends.
func NewArchive(t *testing.T) *Archive {
	t.Helper()
	a := &Archive{
		granules:  map[string][]byte{},
		corrupt:   map[string]bool{},
		downloads: map[string]int{},
	}
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(a.Close)
	return a
}

// BaseURL is the allData root to configure as archive.base_url.
func (a *Archive) BaseURL() string {
	return a.URL + "/allData"
}

// AddGranule publishes content under the conventional granule name of
// product, year and zero padded day-of-year, and returns that name.
func (a *Archive) AddGranule(product, year, doy string, content []byte) string {
	name := fmt.Sprintf("%s.A%s%s.061.2017010101010.hdf", product, year, doy)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.granules[strings.Join([]string{product, year, doy, name}, "/")] = content
	return name
}

// SetCorrupt makes downloads of name return bytes that fail their checksum.
func (a *Archive) SetCorrupt(name string, corrupt bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.corrupt[name] = corrupt
}

// Downloads counts the authorized downloads of name.
func (a *Archive) Downloads(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.downloads[name]
}

func (a *Archive) serve(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, "/allData/61/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if dir, ok := strings.CutSuffix(rest, ".json"); ok {
		a.serveListing(w, r, strings.Split(dir, "/"))
		return
	}

	content, ok := a.granules[rest]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	name := filepath.Base(rest)
	a.downloads[name]++
	if a.corrupt[name] {
		content = bytes.ToUpper(content)
	}
	_, _ = w.Write(content)
}

// serveListing answers PRODUCT, PRODUCT/YEAR and PRODUCT/YEAR/DOY.
func (a *Archive) serveListing(w http.ResponseWriter, r *http.Request, parts []string) {
	seen := map[string]bool{}
	var entries []string
	for key, content := range a.granules {
		kp := strings.Split(key, "/")
		if !hasPrefix(kp, parts) {
			continue
		}
		if len(parts) == 3 {
			entries = append(entries, fmt.Sprintf(`{"name":%q,"resourceType":"File","size":%d,"cksum":"%d"}`,
				kp[3], len(content), checksum.Sum(content)))
			continue
		}
		child := kp[len(parts)]
		if !seen[child] {
			seen[child] = true
			entries = append(entries, fmt.Sprintf(`{"name":%q,"resourceType":"Directory"}`, child))
		}
	}
	if len(entries) == 0 && len(parts) < 3 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"content":[%s]}`, strings.Join(entries, ","))
}

func hasPrefix(s, prefix []string) bool {
	if len(s) <= len(prefix) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

// SetupTestConfig writes a config below root that keeps every directory in
// root, reads the token from tokenEnv and has one dataset per product.
func SetupTestConfig(t *testing.T, root, baseURL, tokenEnv string, products ...string) string {
	t.Helper()

	var datasets strings.Builder
	for _, p := range products {
		fmt.Fprintf(&datasets, "  - name: %s\n    product: %s\n", strings.ToLower(p), p)
	}
	content := fmt.Sprintf(`archive:
  base_url: %s
  collection: "61"
  token_env: %s
datasets:
%swindow:
  bands: [1]
settings:
  mirror_root: %s
  link_root: %s
  snapshot_dir: %s
  report_dir: %s
  crawl_workers: 2
  crawl_chunk_size: 4
  transfer_workers: 2
  transfer_attempts: 2
  request_attempts: 2
  attempts_per_session: 2
  backoff_increment: 10ms
  http_timeout: 5s
  output_format: text
`, baseURL, tokenEnv, datasets.String(),
		filepath.Join(root, "mirror"), filepath.Join(root, "links"),
		filepath.Join(root, "snapshots"), filepath.Join(root, "reports"))

	configPath := filepath.Join(root, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}
