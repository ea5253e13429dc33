// Package httpcache caches GET responses on disk so the pipeline can be
// developed and re-run offline against saved copies of the schedule page.
package httpcache

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"slices"
)

// Transport caches HTTP responses indefinitely keyed by URL. If Next is nil,
// only cached responses are served.
type Transport struct {
	// Path is the directory to store cached responses in.
	Path string

	// Next is the transport used on cache misses. If nil, a miss is an
	// error (offline mode).
	Next http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return nil, fmt.Errorf("httpcache: unsupported method %s", req.Method)
	}

	sum := sha1.Sum([]byte(req.URL.String()))
	name := filepath.Join(t.Path, "page-"+hex.EncodeToString(sum[:]))

	if buf, err := os.ReadFile(name); err == nil {
		return readCached(buf)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("httpcache: read cached response: %w", err)
	}

	if t.Next == nil {
		return nil, fmt.Errorf("httpcache: fetch disabled, response not in cache (%s)", name)
	}

	resp, err := t.Next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reqbuf, err := httputil.DumpRequest(resp.Request, true)
	if err != nil {
		return nil, err
	}
	respbuf, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(name, slices.Concat(reqbuf, respbuf), 0o666); err != nil {
		return nil, fmt.Errorf("httpcache: write cached response: %w", err)
	}
	return readCached(slices.Concat(reqbuf, respbuf))
}

func readCached(buf []byte) (*http.Response, error) {
	r := bufio.NewReader(bytes.NewReader(buf))

	req, err := http.ReadRequest(r)
	if err != nil {
		return nil, fmt.Errorf("httpcache: read cached response: %w", err)
	}
	req.URL.Scheme = "https"
	req.URL.Host = req.Host

	resp, err := http.ReadResponse(r, req)
	if err != nil {
		return nil, fmt.Errorf("httpcache: read cached response: %w", err)
	}
	return resp, nil
}
