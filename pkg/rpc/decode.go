package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// ============================================================================
// Value Decoding - Wire Format → Go Types
// ============================================================================

// maxContainerSize caps declared container and string lengths to keep a
// corrupt length prefix from exhausting memory.
const maxContainerSize = 1 << 24

// decodeValue parses exactly one packed value; trailing bytes are an error.
func decodeValue(data []byte) (Value, error) {
	r := bytes.NewReader(data)
	v, err := readValue(r)
	if err != nil {
		return Value{}, err
	}
	if r.Len() != 0 {
		return Value{}, fmt.Errorf("%d trailing byte(s) after value", r.Len())
	}
	return v, nil
}

// decodeValuePrefix parses one packed value from the head of data and
// returns the remaining bytes.
func decodeValuePrefix(data []byte) (Value, []byte, error) {
	r := bytes.NewReader(data)
	v, err := readValue(r)
	if err != nil {
		return Value{}, nil, err
	}
	return v, data[len(data)-r.Len():], nil
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	u, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("read uvarint: %w", err)
	}
	return u, nil
}

func readVarint(r *bytes.Reader) (int64, error) {
	i, err := binary.ReadVarint(r)
	if err != nil {
		return 0, fmt.Errorf("read varint: %w", err)
	}
	return i, nil
}

func readLength(r *bytes.Reader, what string) (int, error) {
	u, err := readUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("read %s length: %w", what, err)
	}
	if u > maxContainerSize {
		return 0, fmt.Errorf("%s length %d exceeds maximum %d", what, u, maxContainerSize)
	}
	return int(u), nil
}

func readValue(r *bytes.Reader) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Value{}, fmt.Errorf("read value tag: %w", err)
	}

	switch tag {
	case tagNull:
		return Null(), nil

	case tagBoolTrue:
		return Bool(true), nil

	case tagBoolFalse:
		return Bool(false), nil

	case tagInt:
		i, err := readVarint(r)
		if err != nil {
			return Value{}, err
		}
		return Int(i), nil

	case tagUInt:
		u, err := readUvarint(r)
		if err != nil {
			return Value{}, err
		}
		return UInt(u), nil

	case tagDouble:
		var tmp [8]byte
		if _, err := io.ReadFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("read double: %w", err)
		}
		return Double(math.Float64frombits(binary.BigEndian.Uint64(tmp[:]))), nil

	case tagDecimal:
		mantissa, err := readVarint(r)
		if err != nil {
			return Value{}, err
		}
		exponent, err := readVarint(r)
		if err != nil {
			return Value{}, err
		}
		return Decimal(mantissa, int(exponent)), nil

	case tagDateTime:
		msec, err := readVarint(r)
		if err != nil {
			return Value{}, err
		}
		return DateTime(time.UnixMilli(msec)), nil

	case tagString:
		n, err := readLength(r, "string")
		if err != nil {
			return Value{}, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return Value{}, fmt.Errorf("read string data: %w", err)
		}
		return String(string(b)), nil

	case tagBlob:
		n, err := readLength(r, "blob")
		if err != nil {
			return Value{}, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return Value{}, fmt.Errorf("read blob data: %w", err)
		}
		return Blob(b), nil

	case tagList:
		n, err := readLength(r, "list")
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			item, err := readValue(r)
			if err != nil {
				return Value{}, fmt.Errorf("read list item %d: %w", i, err)
			}
			items = append(items, item)
		}
		return List(items...), nil

	case tagMap:
		n, err := readLength(r, "map")
		if err != nil {
			return Value{}, err
		}
		m := make(map[string]Value, n)
		for i := 0; i < n; i++ {
			klen, err := readLength(r, "map key")
			if err != nil {
				return Value{}, err
			}
			kb := make([]byte, klen)
			if _, err := io.ReadFull(r, kb); err != nil {
				return Value{}, fmt.Errorf("read map key: %w", err)
			}
			v, err := readValue(r)
			if err != nil {
				return Value{}, fmt.Errorf("read map value for key %q: %w", kb, err)
			}
			m[string(kb)] = v
		}
		return Map(m), nil

	case tagIMap:
		n, err := readLength(r, "imap")
		if err != nil {
			return Value{}, err
		}
		m := make(map[int]Value, n)
		for i := 0; i < n; i++ {
			k, err := readVarint(r)
			if err != nil {
				return Value{}, fmt.Errorf("read imap key: %w", err)
			}
			v, err := readValue(r)
			if err != nil {
				return Value{}, fmt.Errorf("read imap value for key %d: %w", k, err)
			}
			m[int(k)] = v
		}
		return IMap(m), nil

	default:
		return Value{}, fmt.Errorf("unknown value tag 0x%02x", tag)
	}
}
