package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// ============================================================================
// Value Encoding - Go Types → Wire Format
// ============================================================================

// Frame body protocol selector. Only the packed binary encoding is spoken.
const protoChainPack = 0x01

// Wire type tags of the packed value encoding. Every value is a tag byte
// followed by a tag-specific payload; integers use varint, signed integers
// zigzag varint.
const (
	tagNull      = 0x00
	tagBoolTrue  = 0x01
	tagBoolFalse = 0x02
	tagInt       = 0x03
	tagUInt      = 0x04
	tagDouble    = 0x05
	tagDecimal   = 0x06
	tagDateTime  = 0x07
	tagString    = 0x08
	tagBlob      = 0x09
	tagList      = 0x0a
	tagMap       = 0x0b
	tagIMap      = 0x0c
)

// encodeValue serializes a value into its packed binary form.
func encodeValue(v Value) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeValue(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeUvarint(buf *bytes.Buffer, u uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], u)
	buf.Write(tmp[:n])
}

func writeVarint(buf *bytes.Buffer, i int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], i)
	buf.Write(tmp[:n])
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v.Kind() {
	case KindNull:
		buf.WriteByte(tagNull)

	case KindBool:
		if v.AsBool() {
			buf.WriteByte(tagBoolTrue)
		} else {
			buf.WriteByte(tagBoolFalse)
		}

	case KindInt:
		buf.WriteByte(tagInt)
		writeVarint(buf, v.AsInt())

	case KindUInt:
		buf.WriteByte(tagUInt)
		writeUvarint(buf, v.AsUInt())

	case KindDouble:
		buf.WriteByte(tagDouble)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.AsDouble()))
		buf.Write(tmp[:])

	case KindDecimal:
		mantissa, exponent := v.DecimalParts()
		buf.WriteByte(tagDecimal)
		writeVarint(buf, mantissa)
		writeVarint(buf, int64(exponent))

	case KindDateTime:
		buf.WriteByte(tagDateTime)
		writeVarint(buf, v.num)

	case KindString:
		s := v.AsString()
		buf.WriteByte(tagString)
		writeUvarint(buf, uint64(len(s)))
		buf.WriteString(s)

	case KindBlob:
		b := v.AsBlob()
		buf.WriteByte(tagBlob)
		writeUvarint(buf, uint64(len(b)))
		buf.Write(b)

	case KindList:
		items := v.AsList()
		buf.WriteByte(tagList)
		writeUvarint(buf, uint64(len(items)))
		for i, item := range items {
			if err := writeValue(buf, item); err != nil {
				return fmt.Errorf("write list item %d: %w", i, err)
			}
		}

	case KindMap:
		m := v.AsMap()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		// Deterministic output keeps frames comparable in tests and logs.
		sort.Strings(keys)
		buf.WriteByte(tagMap)
		writeUvarint(buf, uint64(len(keys)))
		for _, k := range keys {
			writeUvarint(buf, uint64(len(k)))
			buf.WriteString(k)
			if err := writeValue(buf, m[k]); err != nil {
				return fmt.Errorf("write map key %q: %w", k, err)
			}
		}

	case KindIMap:
		m := v.AsIMap()
		keys := make([]int, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		buf.WriteByte(tagIMap)
		writeUvarint(buf, uint64(len(keys)))
		for _, k := range keys {
			writeVarint(buf, int64(k))
			if err := writeValue(buf, m[k]); err != nil {
				return fmt.Errorf("write imap key %d: %w", k, err)
			}
		}

	default:
		return fmt.Errorf("cannot encode value of kind %s", v.Kind())
	}
	return nil
}
