package registry

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Metadata is the subset of GGUF header metadata surfaced to the UI.
type Metadata struct {
	Architecture string
	Name         string
}

// GGUF value type tags, per the file format spec.
const (
	ggufUint8 = iota
	ggufInt8
	ggufUint16
	ggufInt16
	ggufUint32
	ggufInt32
	ggufFloat32
	ggufBool
	ggufString
	ggufArray
	ggufUint64
	ggufInt64
	ggufFloat64
)

const ggufMagic = 0x46554747 // "GGUF" little-endian

// maxStringLen bounds metadata strings so a corrupt header cannot force a
// huge allocation.
const maxStringLen = 1 << 20

// maxArrayLen bounds metadata array element counts. Real headers keep arrays
// (token tables) well under this; anything bigger is a corrupt length that
// would overflow the skip arithmetic.
const maxArrayLen = 1 << 32

// ReadMetadata parses the GGUF header of the file at path and returns the
// general.architecture and general.name entries. It reads only the metadata
// section, never tensor data.
func ReadMetadata(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()
	return readMetadata(bufio.NewReader(f))
}

func readMetadata(r *bufio.Reader) (Metadata, error) {
	var meta Metadata
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return meta, err
	}
	if magic != ggufMagic {
		return meta, fmt.Errorf("not a GGUF file (magic %#x)", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return meta, err
	}
	if version < 2 || version > 3 {
		return meta, fmt.Errorf("unsupported GGUF version %d", version)
	}
	var tensorCount, kvCount uint64
	if err := binary.Read(r, binary.LittleEndian, &tensorCount); err != nil {
		return meta, err
	}
	if err := binary.Read(r, binary.LittleEndian, &kvCount); err != nil {
		return meta, err
	}
	for i := uint64(0); i < kvCount; i++ {
		key, err := readString(r)
		if err != nil {
			return meta, fmt.Errorf("kv %d key: %w", i, err)
		}
		var vtype uint32
		if err := binary.Read(r, binary.LittleEndian, &vtype); err != nil {
			return meta, err
		}
		switch key {
		case "general.architecture", "general.name":
			if vtype != ggufString {
				if err := skipValue(r, vtype); err != nil {
					return meta, err
				}
				continue
			}
			s, err := readString(r)
			if err != nil {
				return meta, err
			}
			if key == "general.architecture" {
				meta.Architecture = s
			} else {
				meta.Name = s
			}
			if meta.Architecture != "" && meta.Name != "" {
				return meta, nil
			}
		default:
			if err := skipValue(r, vtype); err != nil {
				return meta, fmt.Errorf("kv %d (%s): %w", i, key, err)
			}
		}
	}
	return meta, nil
}

func readString(r *bufio.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func scalarSize(vtype uint32) (int64, bool) {
	switch vtype {
	case ggufUint8, ggufInt8, ggufBool:
		return 1, true
	case ggufUint16, ggufInt16:
		return 2, true
	case ggufUint32, ggufInt32, ggufFloat32:
		return 4, true
	case ggufUint64, ggufInt64, ggufFloat64:
		return 8, true
	default:
		return 0, false
	}
}

func skipValue(r *bufio.Reader, vtype uint32) error {
	if n, ok := scalarSize(vtype); ok {
		_, err := r.Discard(int(n))
		return err
	}
	switch vtype {
	case ggufString:
		_, err := readString(r)
		return err
	case ggufArray:
		var elemType uint32
		if err := binary.Read(r, binary.LittleEndian, &elemType); err != nil {
			return err
		}
		var count uint64
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return err
		}
		if count > maxArrayLen {
			return fmt.Errorf("array length %d exceeds limit", count)
		}
		if n, ok := scalarSize(elemType); ok {
			return discard(r, int64(count)*n)
		}
		if elemType == ggufString {
			for j := uint64(0); j < count; j++ {
				if _, err := readString(r); err != nil {
					return err
				}
			}
			return nil
		}
		return fmt.Errorf("array of unsupported type %d", elemType)
	default:
		return fmt.Errorf("unsupported value type %d", vtype)
	}
}

func discard(r *bufio.Reader, n int64) error {
	for n > 0 {
		chunk := n
		if chunk > 1<<20 {
			chunk = 1 << 20
		}
		d, err := r.Discard(int(chunk))
		n -= int64(d)
		if err != nil {
			return err
		}
	}
	return nil
}
