// Package testutil holds helpers shared by package tests: an asset server, archive
// builders, fake tool scripts and synthetic images.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// Asset is one file served by an AssetServer.
type Asset struct {
	Body []byte
	// Status overrides the response code when non-zero.
	Status int
	// HideLength omits Content-Length so the client sees an unknown total.
	HideLength bool
}

// AssetServer is an httptest server serving fixed assets by path and counting requests.
type AssetServer struct {
	*httptest.Server

	mu       sync.Mutex
	assets   map[string]Asset
	requests map[string]int
	order    []string
}

// NewAssetServer starts a server that is closed when the test ends.
func NewAssetServer(t *testing.T, assets map[string]Asset) *AssetServer {
	t.Helper()
	s := &AssetServer{assets: map[string]Asset{}, requests: map[string]int{}}
	for k, v := range assets {
		s.assets[k] = v
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *AssetServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests[r.URL.Path]++
	s.order = append(s.order, r.URL.Path)
	asset, ok := s.assets[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if asset.Status != 0 && asset.Status != http.StatusOK {
		w.WriteHeader(asset.Status)
		return
	}
	if asset.HideLength {
		// Flushing before the first write forces chunked transfer encoding.
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	} else {
		w.Header().Set("Content-Length", strconv.Itoa(len(asset.Body)))
	}
	_, _ = w.Write(asset.Body)
}

// Set adds or replaces an asset.
func (s *AssetServer) Set(path string, asset Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[path] = asset
}

// Requests returns how often path was requested.
func (s *AssetServer) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// TotalRequests returns the number of requests served so far.
func (s *AssetServer) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// RequestOrder returns the requested paths in arrival order.
func (s *AssetServer) RequestOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
