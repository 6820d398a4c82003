package middleware

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	pk "github.com/pipelinekit/pipelinekit"
)

type blobCmd struct{}
type blob []byte

func TestGzipCompressorRoundTrips(t *testing.T) {
	c := GzipCompressor{}
	original := []byte("hello hello hello hello hello")
	compressed, err := c.Compress(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decompressed, original) {
		t.Errorf("expected round trip to restore the original, got %q", decompressed)
	}
}

func TestCompressionMiddlewareSkipsBelowThreshold(t *testing.T) {
	mw := NewCompressionMiddleware[blobCmd, blob](GzipCompressor{}, 1024)
	next := pk.Next[blobCmd, blob](func(_ *pk.Context, _ blobCmd) (blob, error) { return blob("tiny"), nil })
	ctx := pk.NewContext(context.Background(), pk.NewMetadata())

	result, err := mw.Execute(ctx, blobCmd{}, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != "tiny" {
		t.Errorf("expected the result to pass through unchanged, got %q", result)
	}
	if v, _ := ctx.Annotation("compression"); v != "skipped-below-threshold" {
		t.Errorf("expected skipped annotation, got %q", v)
	}
}

func TestCompressionMiddlewareCompressesAboveThreshold(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 2048)
	mw := NewCompressionMiddleware[blobCmd, blob](GzipCompressor{}, 1024)
	next := pk.Next[blobCmd, blob](func(_ *pk.Context, _ blobCmd) (blob, error) { return blob(payload), nil })
	ctx := pk.NewContext(context.Background(), pk.NewMetadata())

	result, err := mw.Execute(ctx, blobCmd{}, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal([]byte(result), payload) {
		t.Error("expected the result to be compressed, not identical to the input")
	}
	if v, _ := ctx.Annotation("compression"); v != "applied" {
		t.Errorf("expected applied annotation, got %q", v)
	}

	r, err := gzip.NewReader(bytes.NewReader(result))
	if err != nil {
		t.Fatalf("expected valid gzip output: %v", err)
	}
	defer r.Close()
	restored, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error decompressing: %v", err)
	}
	if !bytes.Equal(restored, payload) {
		t.Error("expected decompressing the result to restore the original payload")
	}
}

func TestDecompressionMiddlewareDecompressesBeforeHandler(t *testing.T) {
	compressor := GzipCompressor{}
	original := []byte("plain text command payload")
	compressed, err := compressor.Compress(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mw := NewDecompressionMiddleware[blob, int](compressor)
	var seen []byte
	next := pk.Next[blob, int](func(_ *pk.Context, cmd blob) (int, error) {
		seen = cmd
		return len(cmd), nil
	})
	ctx := pk.NewContext(context.Background(), pk.NewMetadata())

	n, err := mw.Execute(ctx, blob(compressed), next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(seen, original) {
		t.Errorf("expected the handler to see the decompressed payload, got %q", seen)
	}
	if n != len(original) {
		t.Errorf("expected %d, got %d", len(original), n)
	}
}

func TestDecompressionMiddlewareRejectsInvalidInput(t *testing.T) {
	mw := NewDecompressionMiddleware[blob, int](GzipCompressor{})
	next := pk.Next[blob, int](func(_ *pk.Context, cmd blob) (int, error) { return len(cmd), nil })
	ctx := pk.NewContext(context.Background(), pk.NewMetadata())

	_, err := mw.Execute(ctx, blob("not gzip data"), next)
	if err == nil {
		t.Fatal("expected an error for invalid gzip input")
	}
	if pk.KindOf(err) != pk.KindDecompression {
		t.Errorf("expected KindDecompression, got %v", pk.KindOf(err))
	}
}
