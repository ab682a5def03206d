package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	corehttp "github.com/meigma/unitypack/core/http"
)

// maxPaceBurst bounds a single paced body read, so a slow limit still
// delivers bytes in small steps.
const maxPaceBurst = 64 << 10

// remote is the generated bundle read through HTTP range requests.
type remote struct {
	source  *corehttp.Source
	cleanup func()
}

// newRemote opens cfg.dataURL as a range-request source. The URL "local"
// serves data from an in-process server.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func newRemote(cfg config, data []byte) (*remote, error) {
	if cfg.dataURL == "" {
		return nil, errors.New("data-url is required for HTTP source")
	}
	url := cfg.dataURL
	var cleanup func()
	if url == "local" {
		srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			nethttp.ServeContent(w, r, "generated.unity3d", time.Time{}, bytes.NewReader(data))
		}))
		url, cleanup = srv.URL, srv.Close
	}

	opts := []corehttp.Option{corehttp.WithClient(&nethttp.Client{Transport: newThrottle(cfg)})}
	if cfg.readAhead >= 0 {
		opts = append(opts, corehttp.WithReadAhead(cfg.readAhead))
	}
	src, err := corehttp.NewSource(url, opts...)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	return &remote{source: src, cleanup: cleanup}, nil
}

// Requests reports the range requests issued for reads.
func (r *remote) Requests() int64 {
	return r.source.Requests()
}

func (r *remote) close() {
	if r.cleanup != nil {
		r.cleanup()
	}
}

// throttle delays every request by a fixed latency and paces response
// bodies against one limiter shared by all requests.
type throttle struct {
	base    nethttp.RoundTripper
	latency time.Duration
	limiter *rate.Limiter // nil = unlimited bandwidth
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func newThrottle(cfg config) nethttp.RoundTripper {
	base := nethttp.DefaultTransport
	if t, ok := base.(*nethttp.Transport); ok {
		base = t.Clone()
	}
	if cfg.dataHTTPLatency <= 0 && cfg.dataHTTPBPS <= 0 {
		return base
	}
	t := &throttle{base: base, latency: cfg.dataHTTPLatency}
	if cfg.dataHTTPBPS > 0 {
		burst := int(min(cfg.dataHTTPBPS, maxPaceBurst))
		t.limiter = rate.NewLimiter(rate.Limit(cfg.dataHTTPBPS), burst)
	}
	return t
}

func (t *throttle) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	if t.latency > 0 {
		timer := time.NewTimer(t.latency)
		select {
		case <-timer.C:
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		}
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil || t.limiter == nil || resp.Body == nil {
		return resp, err
	}
	resp.Body = &pacedBody{ReadCloser: resp.Body, ctx: req.Context(), limiter: t.limiter}
	return resp, nil
}

type pacedBody struct {
	io.ReadCloser
	ctx     context.Context
	limiter *rate.Limiter
}

func (b *pacedBody) Read(p []byte) (int, error) {
	if burst := b.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		if werr := b.limiter.WaitN(b.ctx, n); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

// byteUnits is ordered so longer suffixes match first.
var byteUnits = []struct {
	suffix string
	scale  int64
}{
	{"gib", 1 << 30}, {"gb", 1 << 30}, {"g", 1 << 30},
	{"mib", 1 << 20}, {"mb", 1 << 20}, {"m", 1 << 20},
	{"kib", 1 << 10}, {"kb", 1 << 10}, {"k", 1 << 10},
	{"b", 1},
}

// parseByteSize parses sizes such as "512", "256KiB" or "10MBps". A rate
// suffix ("ps", "/s") is accepted and ignored.
func parseByteSize(value string) (int64, error) {
	text := strings.ToLower(strings.TrimSpace(value))
	text = strings.TrimSuffix(text, "/s")
	text = strings.TrimSuffix(text, "ps")

	scale := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(text, u.suffix) {
			scale = u.scale
			text = strings.TrimSuffix(text, u.suffix)
			break
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || n <= 0 || n > math.MaxInt64/scale {
		return 0, fmt.Errorf("invalid byte size %q", value)
	}
	return n * scale, nil
}
