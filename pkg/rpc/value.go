// Package rpc defines the SHV RPC data model: values, messages, frames,
// meta-method descriptors, access levels, and the RPC error taxonomy.
package rpc

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUInt
	KindDouble
	KindDecimal
	KindDateTime
	KindString
	KindBlob
	KindList
	KindMap
	KindIMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindUInt:
		return "UInt"
	case KindDouble:
		return "Double"
	case KindDecimal:
		return "Decimal"
	case KindDateTime:
		return "DateTime"
	case KindString:
		return "String"
	case KindBlob:
		return "Blob"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindIMap:
		return "IMap"
	default:
		return "Unknown"
	}
}

// Value is an SHV RPC value: a tagged variant over the SHV type algebra.
//
// The zero Value is Null. Values are cheap to copy; composite kinds share
// their backing storage and are treated as immutable once constructed.
type Value struct {
	kind Kind
	num  int64 // Bool (0/1), Int, UInt (bits), Decimal mantissa, DateTime msec since epoch
	exp  int   // Decimal exponent
	dbl  float64
	str  string
	blob []byte
	list []Value
	m    map[string]Value
	im   map[int]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	var n int64
	if b {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// Int returns a signed integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// UInt returns an unsigned integer value.
func UInt(u uint64) Value { return Value{kind: KindUInt, num: int64(u)} }

// Double returns a floating point value.
func Double(f float64) Value { return Value{kind: KindDouble, dbl: f} }

// Decimal returns a decimal value mantissa*10^exponent.
func Decimal(mantissa int64, exponent int) Value {
	return Value{kind: KindDecimal, num: mantissa, exp: exponent}
}

// DateTime returns a datetime value with millisecond precision.
func DateTime(t time.Time) Value {
	return Value{kind: KindDateTime, num: t.UnixMilli()}
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Blob returns a binary value.
func Blob(b []byte) Value { return Value{kind: KindBlob, blob: b} }

// List returns a list value.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Map returns a string-keyed map value.
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// IMap returns an int-keyed map value.
func IMap(m map[int]Value) Value { return Value{kind: KindIMap, im: m} }

// Kind returns the kind tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload, false for other kinds.
func (v Value) AsBool() bool { return v.kind == KindBool && v.num != 0 }

// AsInt returns the integer payload. UInt and Decimal values are converted.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt, KindUInt:
		return v.num
	case KindDecimal:
		n := v.num
		for e := v.exp; e > 0; e-- {
			n *= 10
		}
		for e := v.exp; e < 0; e++ {
			n /= 10
		}
		return n
	case KindDouble:
		return int64(v.dbl)
	default:
		return 0
	}
}

// AsUInt returns the unsigned integer payload.
func (v Value) AsUInt() uint64 {
	if v.kind == KindInt || v.kind == KindUInt {
		return uint64(v.num)
	}
	return 0
}

// AsDouble returns the floating point payload.
func (v Value) AsDouble() float64 {
	switch v.kind {
	case KindDouble:
		return v.dbl
	case KindInt, KindUInt:
		return float64(v.num)
	default:
		return 0
	}
}

// AsString returns the string payload, "" for other kinds.
func (v Value) AsString() string {
	if v.kind == KindString {
		return v.str
	}
	return ""
}

// AsBlob returns the binary payload, nil for other kinds.
func (v Value) AsBlob() []byte {
	if v.kind == KindBlob {
		return v.blob
	}
	return nil
}

// AsList returns the list payload, nil for other kinds.
func (v Value) AsList() []Value {
	if v.kind == KindList {
		return v.list
	}
	return nil
}

// AsMap returns the string-keyed map payload, nil for other kinds.
func (v Value) AsMap() map[string]Value {
	if v.kind == KindMap {
		return v.m
	}
	return nil
}

// AsIMap returns the int-keyed map payload, nil for other kinds.
func (v Value) AsIMap() map[int]Value {
	if v.kind == KindIMap {
		return v.im
	}
	return nil
}

// AsTime returns the datetime payload as a time.Time in UTC.
func (v Value) AsTime() time.Time {
	if v.kind == KindDateTime {
		return time.UnixMilli(v.num).UTC()
	}
	return time.Time{}
}

// DecimalParts returns the mantissa and exponent of a decimal value.
func (v Value) DecimalParts() (mantissa int64, exponent int) {
	if v.kind == KindDecimal {
		return v.num, v.exp
	}
	return 0, 0
}

// Equal reports deep equality of two values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool, KindInt, KindUInt, KindDateTime:
		return v.num == o.num
	case KindDouble:
		return v.dbl == o.dbl
	case KindDecimal:
		return v.num == o.num && v.exp == o.exp
	case KindString:
		return v.str == o.str
	case KindBlob:
		if len(v.blob) != len(o.blob) {
			return false
		}
		for i := range v.blob {
			if v.blob[i] != o.blob[i] {
				return false
			}
		}
		return true
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, vv := range v.m {
			ov, ok := o.m[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	case KindIMap:
		if len(v.im) != len(o.im) {
			return false
		}
		for k, vv := range v.im {
			ov, ok := o.im[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value as a CPON-like literal, used in logs and the CLI.
func (v Value) String() string {
	var sb strings.Builder
	v.writeTo(&sb)
	return sb.String()
}

func (v Value) writeTo(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		if v.num != 0 {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindInt:
		fmt.Fprintf(sb, "%d", v.num)
	case KindUInt:
		fmt.Fprintf(sb, "%du", uint64(v.num))
	case KindDouble:
		fmt.Fprintf(sb, "%g", v.dbl)
	case KindDecimal:
		fmt.Fprintf(sb, "%de%d", v.num, v.exp)
	case KindDateTime:
		sb.WriteString(`d"`)
		sb.WriteString(time.UnixMilli(v.num).UTC().Format(time.RFC3339Nano))
		sb.WriteString(`"`)
	case KindString:
		fmt.Fprintf(sb, "%q", v.str)
	case KindBlob:
		fmt.Fprintf(sb, "b\"%x\"", v.blob)
	case KindList:
		sb.WriteString("[")
		for i, item := range v.list {
			if i > 0 {
				sb.WriteString(",")
			}
			item.writeTo(sb)
		}
		sb.WriteString("]")
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(sb, "%q:", k)
			v.m[k].writeTo(sb)
		}
		sb.WriteString("}")
	case KindIMap:
		keys := make([]int, 0, len(v.im))
		for k := range v.im {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		sb.WriteString("i{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(sb, "%d:", k)
			v.im[k].writeTo(sb)
		}
		sb.WriteString("}")
	}
}
