package speech

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

type compression uint8

const (
	compressNone compression = 0x0
	compressGzip compression = 0x1
)

// pack 按帧声明的压缩方式编码 payload。
func pack(data []byte, c compression) ([]byte, error) {
	switch c {
	case compressNone:
		return data, nil
	case compressGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("gzip write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression %d", c)
	}
}

// unpack 为 pack 的逆操作。
func unpack(data []byte, c compression) ([]byte, error) {
	switch c {
	case compressNone:
		return data, nil
	case compressGzip:
		if len(data) == 0 {
			return nil, nil
		}
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip read: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression %d", c)
	}
}
