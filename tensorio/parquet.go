package tensorio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	pqcompress "github.com/parquet-go/parquet-go/compress"

	"github.com/robert-malhotra/turbslice/extract"
)

// Row is one tensor element in long format. X, Y and Z are dataset
// indices, not box-relative offsets.
type Row struct {
	TimeKey string  `parquet:"time_key,dict,zstd"`
	T       int32   `parquet:"t"`
	X       int64   `parquet:"x"`
	Y       int64   `parquet:"y"`
	Z       int64   `parquet:"z"`
	Value   float64 `parquet:"value"`
}

const rowBatch = 64 * 1024

func parquetCompression(c Codec) pqcompress.Codec {
	switch c {
	case CodecZstd:
		return &parquet.Zstd
	case CodecLZ4:
		return &parquet.Lz4Raw
	default:
		return &parquet.Uncompressed
	}
}

// WriteParquet stores t at path as a table with one row per element, in
// row-major tensor order. WithCodec selects the page compression.
func WriteParquet(path string, t *extract.Tensor, opts ...Option) error {
	o := buildOptions(opts)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	w := parquet.NewGenericWriter[Row](f, parquet.Compression(parquetCompression(o.codec)))
	if err := writeRows(w, t); err != nil {
		w.Close()
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return f.Close()
}

func writeRows(w *parquet.GenericWriter[Row], t *extract.Tensor) error {
	shape := t.Shape()
	rows := make([]Row, 0, min(rowBatch, t.Len()))
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if _, err := w.Write(rows); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		rows = rows[:0]
		return nil
	}

	n := 0
	for ti := 0; ti < shape[0]; ti++ {
		for i := 0; i < shape[1]; i++ {
			for j := 0; j < shape[2]; j++ {
				for k := 0; k < shape[3]; k++ {
					rows = append(rows, Row{
						TimeKey: t.TimeKeys[ti],
						T:       int32(ti),
						X:       t.Box.X1[0] + int64(i),
						Y:       t.Box.X1[1] + int64(j),
						Z:       t.Box.X1[2] + int64(k),
						Value:   t.Data[n],
					})
					n++
					if len(rows) == rowBatch {
						if err := flush(); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return flush()
}

// ReadParquet loads every row of a table written by WriteParquet.
func ReadParquet(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	r := parquet.NewGenericReader[Row](f)
	defer r.Close()

	rows := make([]Row, r.NumRows())
	read := 0
	for read < len(rows) {
		n, err := r.Read(rows[read:])
		read += n
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
	}
	return rows[:read], nil
}
