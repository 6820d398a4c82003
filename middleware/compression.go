package middleware

import (
	"bytes"
	"compress/gzip"
	"io"

	pk "github.com/pipelinekit/pipelinekit"
)

// Compressor is the concrete compression backend contract; gzip is this
// package's default, but concrete backends (zstd, lz4, ...) are an external
// collaborator's concern.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// GzipCompressor is the default Compressor, using compress/gzip.
type GzipCompressor struct{}

// Compress implements Compressor.
func (GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress implements Compressor.
func (GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// CompressionMiddleware compresses the handler's result in a single
// canonical placement: post-processing, after the result is produced, never
// pre-processing before it. Results shorter than threshold bytes pass
// through uncompressed rather than paying gzip's fixed overhead for no
// benefit.
type CompressionMiddleware[C pk.Command, R ~[]byte] struct {
	compressor Compressor
	threshold  int
}

// NewCompressionMiddleware creates a CompressionMiddleware using compressor,
// skipping compression for results under threshold bytes.
func NewCompressionMiddleware[C pk.Command, R ~[]byte](compressor Compressor, threshold int) *CompressionMiddleware[C, R] {
	return &CompressionMiddleware[C, R]{compressor: compressor, threshold: threshold}
}

// Priority implements pk.Middleware.
func (m *CompressionMiddleware[C, R]) Priority() int { return pk.PriorityPostProcessing }

// Name implements pk.Name.
func (m *CompressionMiddleware[C, R]) Name() string { return "compression" }

// Execute implements pk.Middleware.
func (m *CompressionMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	result, err := next(ctx, cmd)
	if err != nil {
		return result, err
	}
	if len(result) < m.threshold {
		ctx.SetAnnotation("compression", "skipped-below-threshold")
		return result, nil
	}
	compressed, cerr := m.compressor.Compress(result)
	if cerr != nil {
		return result, pk.NewError(pk.KindCompression, ErrCompression, "compression")
	}
	ctx.SetAnnotation("compression", "applied")
	return R(compressed), nil
}

// DecompressionMiddleware reverses CompressionMiddleware, applied as
// pre-processing before the handler sees a compressed command payload.
type DecompressionMiddleware[C ~[]byte, R any] struct {
	compressor Compressor
}

// NewDecompressionMiddleware creates a DecompressionMiddleware using compressor.
func NewDecompressionMiddleware[C ~[]byte, R any](compressor Compressor) *DecompressionMiddleware[C, R] {
	return &DecompressionMiddleware[C, R]{compressor: compressor}
}

// Priority implements pk.Middleware.
func (m *DecompressionMiddleware[C, R]) Priority() int { return pk.PriorityPreProcessing }

// Name implements pk.Name.
func (m *DecompressionMiddleware[C, R]) Name() string { return "decompression" }

// Execute implements pk.Middleware.
func (m *DecompressionMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	var zero R
	decompressed, err := m.compressor.Decompress(cmd)
	if err != nil {
		return zero, pk.NewError(pk.KindDecompression, ErrDecompression, "decompression")
	}
	return next(ctx, C(decompressed))
}
