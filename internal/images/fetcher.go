package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheExpiration = 30 * time.Minute
	cacheCleanupInterval   = time.Hour
)

// ErrForbiddenHost is returned when a reference URL points at a loopback,
// private or otherwise non-public address
var ErrForbiddenHost = errors.New("reference image host is not publicly routable")

// carrier-grade NAT, not covered by netip's IsPrivate
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Fetcher resolves reference images from data URIs, raw base64 or HTTP URLs.
// Downloaded images are cached by URL so a reference reused across panels
// and requests is fetched once.
type Fetcher struct {
	HTTPClient *http.Client

	allowPrivate bool
	cache        *cache.Cache
	inflight     singleflight.Group
}

// FetcherOption customises a Fetcher
type FetcherOption func(*Fetcher)

// WithPrivateHosts allows downloads from loopback and private networks.
// Only trusted callers such as the CLI should use it.
func WithPrivateHosts() FetcherOption {
	return func(f *Fetcher) {
		f.allowPrivate = true
	}
}

// NewFetcher creates a new image fetcher. By default it refuses to connect
// to non-public addresses, including after redirects.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		cache: cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !f.allowPrivate {
		dialer.Control = publicOnly
		// a proxy would dial on our behalf and bypass the check
		transport.Proxy = nil
	}
	transport.DialContext = dialer.DialContext

	f.HTTPClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
	return f
}

// publicOnly is a net.Dialer Control hook run on the resolved address
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}
	if !isPublic(addr) {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, addr)
	}
	return nil
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case addr.IsLoopback(), addr.IsPrivate(), addr.IsUnspecified(),
		addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(), addr.IsMulticast():
		return false
	case sharedAddressSpace.Contains(addr):
		return false
	}
	return true
}

// Resolve turns a client supplied reference into an Image. An empty reference yields nil.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, nil
	case strings.HasPrefix(ref, "data:"):
		return ParseDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.fetch(ctx, ref)
	default:
		return FromBase64("", ref)
	}
}

func (f *Fetcher) fetch(ctx context.Context, imageURL string) (*Image, error) {
	if cached, ok := f.cache.Get(imageURL); ok {
		slog.Debug("Reference image cache hit", "url", imageURL)
		return cached.(*Image), nil
	}

	// the download outlives any single caller so a cancelled request does
	// not fail the others waiting on the same URL; HTTPClient.Timeout bounds it
	downloadCtx := context.WithoutCancel(ctx)
	ch := f.inflight.DoChan(imageURL, func() (any, error) {
		if cached, ok := f.cache.Get(imageURL); ok {
			return cached, nil
		}
		img, err := f.download(downloadCtx, imageURL)
		if err != nil {
			return nil, err
		}
		f.cache.SetDefault(imageURL, img)
		return img, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Image), nil
	}
}

func (f *Fetcher) download(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	slog.Debug("Downloaded reference image", "url", imageURL, "bytes", len(data))
	return New(data)
}
