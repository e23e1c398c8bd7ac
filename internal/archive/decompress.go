package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

// DefaultDecompressTimeout bounds a single decompression call.
const DefaultDecompressTimeout = 30 * time.Second

const readChunkSize = 32 * 1024

// Stream is a push/pull decompression primitive. Compressed bytes are
// written to the input side and closed; decompressed bytes are read from
// the output side until io.EOF.
type Stream interface {
	io.WriteCloser
	io.Reader

	// Abort tears the stream down and unblocks pending reads and writes.
	Abort(err error)
}

// StreamFactory creates a fresh Stream for one decompression call.
type StreamFactory func() Stream

// Decompressor runs gzip payloads through a Stream under a time budget.
type Decompressor struct {
	newStream StreamFactory
	timeout   time.Duration
}

// NewDecompressor creates a gzip decompressor with the given timeout.
// A non-positive timeout selects DefaultDecompressTimeout.
func NewDecompressor(timeout time.Duration) *Decompressor {
	return NewDecompressorWithStream(timeout, NewGzipStream)
}

// NewDecompressorWithStream creates a decompressor over a custom stream (for testing).
func NewDecompressorWithStream(timeout time.Duration, factory StreamFactory) *Decompressor {
	if timeout <= 0 {
		timeout = DefaultDecompressTimeout
	}
	return &Decompressor{
		newStream: factory,
		timeout:   timeout,
	}
}

// Timeout returns the per-call time budget.
func (d *Decompressor) Timeout() time.Duration {
	return d.timeout
}

// Decompress writes data to a new stream and concurrently drains its output.
// The write path and the read path share one deadline; when it passes the
// stream is aborted and ErrDecompressTimeout is returned. Stream failures
// wrap ErrDecompressStream.
func (d *Decompressor) Decompress(ctx context.Context, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	stream := d.newStream()
	var out bytes.Buffer
	var g errgroup.Group

	g.Go(func() error {
		if _, err := stream.Write(data); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if err := stream.Close(); err != nil {
			return fmt.Errorf("close: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		chunk := make([]byte, readChunkSize)
		for {
			n, err := stream.Read(chunk)
			out.Write(chunk[:n])
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecompressStream, err)
		}
		return out.Bytes(), nil
	case <-ctx.Done():
		stream.Abort(ctx.Err())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Warn("Decompression timed out", "timeout", d.timeout, "input_bytes", len(data))
			return nil, fmt.Errorf("%w after %s", ErrDecompressTimeout, d.timeout)
		}
		return nil, fmt.Errorf("decompression canceled: %w", ctx.Err())
	}
}

// DecompressString decompresses data and decodes the result as UTF-8,
// dropping a leading byte order mark.
func (d *Decompressor) DecompressString(ctx context.Context, data []byte) (string, error) {
	raw, err := d.Decompress(ctx, data)
	if err != nil {
		return "", err
	}
	return DecodeText(raw), nil
}

// DecodeText decodes raw bytes as UTF-8 text. Invalid sequences are
// replaced and a leading byte order mark is removed.
func DecodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	return strings.ToValidUTF8(string(raw), "�")
}

// gzipStream pipes written bytes into a gzip reader.
type gzipStream struct {
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	reader     *gzip.Reader
}

// NewGzipStream returns a Stream backed by an io.Pipe and a gzip reader.
// Concatenated gzip members are decoded as one stream.
func NewGzipStream() Stream {
	pr, pw := io.Pipe()
	return &gzipStream{
		pipeReader: pr,
		pipeWriter: pw,
	}
}

func (s *gzipStream) Write(p []byte) (int, error) {
	return s.pipeWriter.Write(p)
}

func (s *gzipStream) Close() error {
	return s.pipeWriter.Close()
}

func (s *gzipStream) Read(p []byte) (int, error) {
	if s.reader == nil {
		zr, err := gzip.NewReader(s.pipeReader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			// Unblock the writer, which would otherwise wait on the pipe forever.
			_ = s.pipeReader.CloseWithError(err)
			return 0, err
		}
		s.reader = zr
	}

	n, err := s.reader.Read(p)
	if err != nil {
		_ = s.pipeReader.CloseWithError(err)
	}
	return n, err
}

func (s *gzipStream) Abort(err error) {
	if err == nil {
		err = io.ErrClosedPipe
	}
	_ = s.pipeWriter.CloseWithError(err)
	_ = s.pipeReader.CloseWithError(err)
}
