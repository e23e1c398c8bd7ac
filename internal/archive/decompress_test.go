package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("gzip write failed: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}
	return buf.Bytes()
}

// stalledStream accepts input but never produces output until aborted.
type stalledStream struct {
	mu      sync.Mutex
	aborted chan struct{}
	abortOK bool
}

func newStalledStream() *stalledStream {
	return &stalledStream{aborted: make(chan struct{})}
}

func (s *stalledStream) Write(p []byte) (int, error) { return len(p), nil }
func (s *stalledStream) Close() error                { return nil }

func (s *stalledStream) Read(p []byte) (int, error) {
	<-s.aborted
	return 0, io.ErrClosedPipe
}

func (s *stalledStream) Abort(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.abortOK {
		s.abortOK = true
		close(s.aborted)
	}
}

func (s *stalledStream) wasAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortOK
}

// failingStream fails on read without consuming input.
type failingStream struct{}

func (failingStream) Write(p []byte) (int, error) { return len(p), nil }
func (failingStream) Close() error                { return nil }
func (failingStream) Read([]byte) (int, error)    { return 0, errors.New("corrupt block") }
func (failingStream) Abort(error)                 {}

func TestDecompress_RoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("<person handle=\"_abc\"/>\n", 5000))
	d := NewDecompressor(time.Second)

	got, err := d.Decompress(context.Background(), gzipBytes(t, payload))
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Decompressed %d bytes, want %d", len(got), len(payload))
	}
}

func TestDecompress_ConcatenatedMembers(t *testing.T) {
	blob := append(gzipBytes(t, []byte("first ")), gzipBytes(t, []byte("second"))...)
	d := NewDecompressor(time.Second)

	got, err := d.DecompressString(context.Background(), blob)
	if err != nil {
		t.Fatalf("DecompressString failed: %v", err)
	}
	if got != "first second" {
		t.Errorf("got %q, want %q", got, "first second")
	}
}

func TestDecompressString_StripsBOM(t *testing.T) {
	d := NewDecompressor(time.Second)
	blob := gzipBytes(t, append([]byte{0xEF, 0xBB, 0xBF}, "<database/>"...))

	got, err := d.DecompressString(context.Background(), blob)
	if err != nil {
		t.Fatalf("DecompressString failed: %v", err)
	}
	if got != "<database/>" {
		t.Errorf("got %q", got)
	}
}

func TestDecompress_CorruptInputIsStreamError(t *testing.T) {
	d := NewDecompressor(2 * time.Second)
	corrupt := gzipBytes(t, []byte("some text that will be damaged"))
	corrupt = corrupt[:len(corrupt)/2]

	_, err := d.Decompress(context.Background(), corrupt)
	if err == nil {
		t.Fatal("Expected error for truncated gzip input")
	}
	if !errors.Is(err, ErrDecompressStream) {
		t.Errorf("Expected ErrDecompressStream, got %v", err)
	}
	if errors.Is(err, ErrDecompressTimeout) {
		t.Error("Stream error must not be reported as a timeout")
	}
}

func TestDecompress_InvalidHeaderIsStreamError(t *testing.T) {
	d := NewDecompressor(2 * time.Second)

	_, err := d.Decompress(context.Background(), []byte{0x1F, 0x8B, 0x00, 0x00})
	if !errors.Is(err, ErrDecompressStream) {
		t.Errorf("Expected ErrDecompressStream, got %v", err)
	}
}

func TestDecompress_StreamFailure(t *testing.T) {
	d := NewDecompressorWithStream(time.Second, func() Stream { return failingStream{} })

	_, err := d.Decompress(context.Background(), []byte{0x1F, 0x8B})
	if !errors.Is(err, ErrDecompressStream) {
		t.Fatalf("Expected ErrDecompressStream, got %v", err)
	}
	if !strings.Contains(err.Error(), "corrupt block") {
		t.Errorf("Expected underlying error in message, got %q", err.Error())
	}
}

func TestDecompress_TimeoutAbortsStream(t *testing.T) {
	stream := newStalledStream()
	timeout := 50 * time.Millisecond
	d := NewDecompressorWithStream(timeout, func() Stream { return stream })

	start := time.Now()
	_, err := d.Decompress(context.Background(), []byte{0x1F, 0x8B})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrDecompressTimeout) {
		t.Fatalf("Expected ErrDecompressTimeout, got %v", err)
	}
	if errors.Is(err, ErrDecompressStream) {
		t.Error("Timeout must not be reported as a stream error")
	}
	if elapsed < timeout {
		t.Errorf("Returned after %s, before the %s timeout", elapsed, timeout)
	}
	if elapsed > timeout+2*time.Second {
		t.Errorf("Returned after %s, far beyond the %s timeout", elapsed, timeout)
	}
	if !stream.wasAborted() {
		t.Error("Expected the stream to be aborted on timeout")
	}
}

func TestDecompress_ParentCancellation(t *testing.T) {
	stream := newStalledStream()
	d := NewDecompressorWithStream(time.Minute, func() Stream { return stream })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.Decompress(ctx, []byte{0x1F, 0x8B})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrDecompressTimeout) {
		t.Error("Cancellation must not be reported as a timeout")
	}
	if !stream.wasAborted() {
		t.Error("Expected the stream to be aborted on cancellation")
	}
}

func TestNewDecompressor_DefaultTimeout(t *testing.T) {
	if got := NewDecompressor(0).Timeout(); got != DefaultDecompressTimeout {
		t.Errorf("Timeout() = %s, want %s", got, DefaultDecompressTimeout)
	}
	if got := NewDecompressor(-time.Second).Timeout(); got != DefaultDecompressTimeout {
		t.Errorf("Timeout() = %s, want %s", got, DefaultDecompressTimeout)
	}
}

func TestGzipStream_AbortUnblocksWriter(t *testing.T) {
	stream := NewGzipStream()
	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Write([]byte("nobody reads this"))
		errCh <- err
	}()

	stream.Abort(errors.New("stop"))

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Expected blocked write to fail after abort")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Write stayed blocked after Abort")
	}
}
