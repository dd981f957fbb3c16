package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	RLE     = "RLE"
	RLEZstd = "RLE_ZSTD"
)

// ZstdThreshold is the raw RLE size above which EncodeCells compresses.
const ZstdThreshold = 512

// EncodeRLE encodes packed cells into base64(varint pairs).
// The pairs are (cell, run_len) repeated.
func EncodeRLE(cells []uint32) string {
	return base64.StdEncoding.EncodeToString(rleBytes(cells))
}

func DecodeRLE(b64 string) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return rleCells(raw, 0)
}

// EncodeCells picks RLE or RLE_ZSTD depending on the raw size.
func EncodeCells(cells []uint32) (string, string) {
	raw := rleBytes(cells)
	if len(raw) <= ZstdThreshold {
		return RLE, base64.StdEncoding.EncodeToString(raw)
	}
	enc := zstdEncoder()
	return RLEZstd, base64.StdEncoding.EncodeToString(enc.EncodeAll(raw, nil))
}

// DecodeCells reverses EncodeCells. want is the expected cell count; a stream
// that expands past it is rejected.
func DecodeCells(encoding, b64 string, want int) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	switch encoding {
	case RLE:
	case RLEZstd:
		raw, err = zstdDecoder().DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown cell encoding %q", encoding)
	}
	out, err := rleCells(raw, want)
	if err != nil {
		return nil, err
	}
	if want > 0 && len(out) != want {
		return nil, fmt.Errorf("cell count mismatch: got %d want %d", len(out), want)
	}
	return out, nil
}

func rleBytes(cells []uint32) []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(cells) {
		c := cells[i]
		run := 1
		for j := i + 1; j < len(cells) && cells[j] == c && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(c))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}
	return buf.Bytes()
}

func rleCells(raw []byte, limit int) ([]uint32, error) {
	var out []uint32
	for i := 0; i < len(raw); {
		c, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if c > 0xFFFFFFFF {
			return nil, fmt.Errorf("cell too large: %d", c)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("run overflows region: %d cells", uint64(len(out))+run)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint32(c))
		}
	}
	return out, nil
}

var (
	encOnce sync.Once
	enc     *zstd.Encoder
	decOnce sync.Once
	dec     *zstd.Decoder
)

func zstdEncoder() *zstd.Encoder {
	encOnce.Do(func() {
		enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	return enc
}

func zstdDecoder() *zstd.Decoder {
	decOnce.Do(func() {
		dec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return dec
}
