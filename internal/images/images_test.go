package images

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngBytes starts with the PNG signature, which is all MIME sniffing needs
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestNew(t *testing.T) {
	img, err := New(pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, ".png", img.Extension())

	_, err = New([]byte("just some text"))
	assert.True(t, errors.Is(err, ErrNotImage))

	_, err = New(nil)
	assert.Error(t, err)
}

func TestDataURIRoundTrip(t *testing.T) {
	img, err := New(pngBytes)
	require.NoError(t, err)

	uri := img.DataURI()
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes), uri)

	parsed, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, img, parsed)
}

func TestParseDataURI(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name     string
		input    string
		wantMIME string
		wantErr  bool
	}{
		{name: "declared mime kept", input: "data:image/jpeg;base64," + payload, wantMIME: "image/jpeg"},
		{name: "mime parameters dropped", input: "data:image/PNG;charset=x;base64," + payload, wantMIME: "image/png"},
		{name: "sniffed when missing", input: "data:;base64," + payload, wantMIME: "image/png"},
		{name: "not a data uri", input: "https://example.com/a.png", wantErr: true},
		{name: "missing separator", input: "data:image/png;base64", wantErr: true},
		{name: "not base64 encoded", input: "data:image/png,rawbytes", wantErr: true},
		{name: "invalid base64", input: "data:image/png;base64,***", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ParseDataURI(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, img.MIMEType)
			assert.Equal(t, pngBytes, img.Data)
		})
	}
}

func TestFetcherResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cat.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	f := NewFetcher(WithPrivateHosts())
	ctx := context.Background()

	img, err := f.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, img)

	img, err = f.Resolve(ctx, base64.StdEncoding.EncodeToString(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	img, err = f.Resolve(ctx, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, img.Data)

	img, err = f.Resolve(ctx, server.URL+"/cat.png")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, img.Data)

	_, err = f.Resolve(ctx, server.URL+"/missing.png")
	assert.Error(t, err)
}

func TestFetcherCachesDownloads(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	f := NewFetcher(WithPrivateHosts())
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := f.Resolve(context.Background(), server.URL+"/cat.png")
			assert.NoError(t, err)
			assert.Equal(t, pngBytes, img.Data)
		}()
	}
	wg.Wait()

	_, err := f.Resolve(context.Background(), server.URL+"/cat.png")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestOversizedImagesRejected(t *testing.T) {
	tooLarge := base64.StdEncoding.EncodeToString(make([]byte, MaxImageSize+1))

	_, err := FromBase64("image/png", tooLarge)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = ParseDataURI("data:image/png;base64," + tooLarge)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = NewFetcher().Resolve(context.Background(), tooLarge)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = New(append(append([]byte{}, pngBytes...), make([]byte, MaxImageSize)...))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	atLimit := append(append([]byte{}, pngBytes...), make([]byte, MaxImageSize-len(pngBytes))...)
	img, err := FromBase64("", base64.StdEncoding.EncodeToString(atLimit))
	require.NoError(t, err)
	assert.Len(t, img.Data, MaxImageSize)
}

func TestFetcherRejectsPrivateHosts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	_, err := NewFetcher().Resolve(context.Background(), server.URL+"/cat.png")
	assert.ErrorIs(t, err, ErrForbiddenHost)
	assert.Equal(t, int32(0), hits.Load())

	_, err = NewFetcher().Resolve(context.Background(), strings.Replace(server.URL, "127.0.0.1", "localhost", 1)+"/cat.png")
	assert.Error(t, err)
	assert.Equal(t, int32(0), hits.Load())
}

func TestIsPublic(t *testing.T) {
	tests := []struct {
		addr   string
		public bool
	}{
		{addr: "127.0.0.1"},
		{addr: "10.1.2.3"},
		{addr: "172.16.0.1"},
		{addr: "192.168.1.1"},
		{addr: "169.254.169.254"},
		{addr: "100.64.0.1"},
		{addr: "0.0.0.0"},
		{addr: "224.0.0.1"},
		{addr: "::1"},
		{addr: "::"},
		{addr: "fe80::1"},
		{addr: "fd00::1"},
		{addr: "::ffff:127.0.0.1"},
		{addr: "93.184.216.34", public: true},
		{addr: "2606:2800:220:1:248:1893:25c8:1946", public: true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.public, isPublic(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestFetcherCancelledCallerDoesNotAbortDownload(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		started <- struct{}{}
		<-release
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	f := NewFetcher(WithPrivateHosts())
	ctx, cancel := context.WithCancel(context.Background())

	firstErr := make(chan error, 1)
	go func() {
		_, err := f.Resolve(ctx, server.URL+"/cat.png")
		firstErr <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	img, err := f.Resolve(context.Background(), server.URL+"/cat.png")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, img.Data)
	assert.Equal(t, int32(1), hits.Load())
}
