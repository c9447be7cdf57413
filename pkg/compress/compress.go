// Package compress stores backup copies and history blobs compressed.
//
// ZSTD is the default: backups of source files compress well and the
// encoder is fast enough to run inline before a fix pass. Gzip is kept for
// environments where the snapshot directory is inspected with standard tools.
//
// Example usage:
//
//	c := compress.NewCompressor(compress.AlgorithmZSTD, compress.LevelDefault)
//	w, err := c.NewWriter(file)
//	...
//	r, err := c.NewReader(backup)
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// AlgorithmZSTD is the Zstandard compression algorithm.
	AlgorithmZSTD Algorithm = "zstd"

	// AlgorithmGzip is the gzip compression algorithm.
	AlgorithmGzip Algorithm = "gzip"

	// AlgorithmNone stores data as is.
	AlgorithmNone Algorithm = "none"
)

// ParseAlgorithm parses "zstd", "gzip" or "none". Empty means none.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zstd", "zst":
		return AlgorithmZSTD, nil
	case "gzip", "gz":
		return AlgorithmGzip, nil
	case "", "none", "off":
		return AlgorithmNone, nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", s)
	}
}

// Extension returns the file suffix for data stored with the algorithm.
func (a Algorithm) Extension() string {
	switch a {
	case AlgorithmZSTD:
		return ".zst"
	case AlgorithmGzip:
		return ".gz"
	default:
		return ""
	}
}

// Level represents compression level.
type Level int

const (
	// LevelFastest prioritizes speed over compression ratio.
	LevelFastest Level = 1

	// LevelDefault is the default compression level.
	LevelDefault Level = 3

	// LevelBest provides maximum compression (slowest).
	LevelBest Level = 9
)

// Compressor compresses and decompresses with one algorithm. It is safe for
// concurrent use.
type Compressor struct {
	algorithm Algorithm
	level     Level

	// ZSTD encoder/decoder pools for reuse
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
}

// NewCompressor creates a new compressor with the specified algorithm and level.
func NewCompressor(algorithm Algorithm, level Level) *Compressor {
	c := &Compressor{
		algorithm: algorithm,
		level:     level,
	}

	if algorithm == AlgorithmZSTD {
		c.zstdEncoderPool = sync.Pool{
			New: func() any {
				enc, _ := zstd.NewWriter(nil,
					zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(int(level))),
					zstd.WithZeroFrames(true), // empty source files still produce a frame
				)
				return enc
			},
		}
		c.zstdDecoderPool = sync.Pool{
			New: func() any {
				dec, _ := zstd.NewReader(nil)
				return dec
			},
		}
	}

	return c
}

// Algorithm returns the compression algorithm.
func (c *Compressor) Algorithm() Algorithm {
	return c.algorithm
}

// Extension returns the file suffix of compressed data.
func (c *Compressor) Extension() string {
	return c.algorithm.Extension()
}

// Compress compresses the input data.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("%s write error: %w", c.algorithm, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s close error: %w", c.algorithm, err)
	}
	return buf.Bytes(), nil
}

// Decompress decompresses the input data.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	r, err := c.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	result, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s decompress error: %w", c.algorithm, err)
	}
	return result, nil
}

// NewWriter returns a writer that compresses into w. Close must be called to
// flush the stream; it does not close w.
func (c *Compressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c.algorithm {
	case AlgorithmZSTD:
		enc := c.zstdEncoderPool.Get().(*zstd.Encoder)
		enc.Reset(w)
		return &pooledEncoder{enc: enc, pool: &c.zstdEncoderPool}, nil
	case AlgorithmGzip:
		gw, err := gzip.NewWriterLevel(w, c.gzipLevel())
		if err != nil {
			return nil, fmt.Errorf("gzip writer error: %w", err)
		}
		return gw, nil
	case AlgorithmNone, "":
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// NewReader returns a reader that decompresses r.
func (c *Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c.algorithm {
	case AlgorithmZSTD:
		dec := c.zstdDecoderPool.Get().(*zstd.Decoder)
		if err := dec.Reset(r); err != nil {
			c.zstdDecoderPool.Put(dec)
			return nil, fmt.Errorf("zstd reset error: %w", err)
		}
		return &pooledDecoder{dec: dec, pool: &c.zstdDecoderPool}, nil
	case AlgorithmGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader error: %w", err)
		}
		return gr, nil
	case AlgorithmNone, "":
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

func (c *Compressor) gzipLevel() int {
	switch {
	case c.level <= LevelFastest:
		return gzip.BestSpeed
	case c.level >= LevelBest:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

type pooledEncoder struct {
	enc  *zstd.Encoder
	pool *sync.Pool
	once sync.Once
}

func (p *pooledEncoder) Write(b []byte) (int, error) {
	return p.enc.Write(b)
}

func (p *pooledEncoder) Close() error {
	err := p.enc.Close()
	p.once.Do(func() { p.pool.Put(p.enc) })
	return err
}

type pooledDecoder struct {
	dec  *zstd.Decoder
	pool *sync.Pool
	once sync.Once
}

func (p *pooledDecoder) Read(b []byte) (int, error) {
	return p.dec.Read(b)
}

// Close returns the decoder to the pool. zstd.Decoder.Close would make it
// unusable, so the stream is detached with Reset instead.
func (p *pooledDecoder) Close() error {
	p.once.Do(func() {
		_ = p.dec.Reset(nil)
		p.pool.Put(p.dec)
	})
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// DefaultZSTD is the shared ZSTD compressor.
var DefaultZSTD = NewCompressor(AlgorithmZSTD, LevelDefault)
