// Package kv defines the typed key values the linear-hash index stores and
// compares: a small tagged union over 32-bit signed integer, 32-bit IEEE
// float, and length-prefixed varchar, with a stable binary encoding,
// display form and hash code.
package kv

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/arkdb/pagestore/errs"
)

// Kind identifies which of the three key types a KeyValue holds.
type Kind uint8

const (
	Int Kind = iota
	Float
	Varchar
)

// String renders the kind's name for logging and debug printing.
func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Varchar:
		return "varchar"
	default:
		return "unknown"
	}
}

// KeyValue is a typed key: exactly one of i, f, s is meaningful, selected
// by kind.
type KeyValue struct {
	kind Kind
	i    int32
	f    float32
	s    []byte
}

// NewInt builds an integer key.
func NewInt(v int32) KeyValue { return KeyValue{kind: Int, i: v} }

// NewFloat builds a float key.
func NewFloat(v float32) KeyValue { return KeyValue{kind: Float, f: v} }

// NewVarchar builds a varchar key. The byte slice is copied so the
// KeyValue does not alias caller-owned storage.
func NewVarchar(v []byte) KeyValue {
	cp := make([]byte, len(v))
	copy(cp, v)
	return KeyValue{kind: Varchar, s: cp}
}

// Kind reports which type this key holds.
func (k KeyValue) Kind() Kind { return k.kind }

// Int returns the integer value; only meaningful when Kind() == Int.
func (k KeyValue) Int() int32 { return k.i }

// Float returns the float value; only meaningful when Kind() == Float.
func (k KeyValue) Float() float32 { return k.f }

// Varchar returns the raw bytes; only meaningful when Kind() == Varchar.
func (k KeyValue) Varchar() []byte { return k.s }

// Bytes returns the key's stable wire encoding: 4 bytes little-endian for
// Int and Float, or a 4-byte little-endian length prefix followed by the
// raw bytes for Varchar. This encoding — not String() — is what HashCode
// and on-disk entry storage are built on, so hashing never depends on
// locale or display formatting.
func (k KeyValue) Bytes() []byte {
	switch k.kind {
	case Int:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(k.i))
		return buf
	case Float:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(k.f))
		return buf
	case Varchar:
		buf := make([]byte, 4+len(k.s))
		binary.LittleEndian.PutUint32(buf[:4], uint32(len(k.s)))
		copy(buf[4:], k.s)
		return buf
	default:
		return nil
	}
}

// WireSize reports how many bytes Bytes() would return, without
// allocating.
func (k KeyValue) WireSize() int {
	switch k.kind {
	case Int, Float:
		return 4
	case Varchar:
		return 4 + len(k.s)
	default:
		return 0
	}
}

// Decode reads a KeyValue of the given kind starting at buf[0], returning
// the key and the number of bytes consumed.
func Decode(kind Kind, buf []byte) (KeyValue, int, error) {
	if len(buf) < 4 {
		return KeyValue{}, 0, errs.NewPageError(nil, errs.CodeBadData, "buffer too short to decode key")
	}
	switch kind {
	case Int:
		return NewInt(int32(binary.LittleEndian.Uint32(buf[:4]))), 4, nil
	case Float:
		return NewFloat(math.Float32frombits(binary.LittleEndian.Uint32(buf[:4]))), 4, nil
	case Varchar:
		n := int(binary.LittleEndian.Uint32(buf[:4]))
		if len(buf) < 4+n {
			return KeyValue{}, 0, errs.NewPageError(nil, errs.CodeBadData, "buffer too short for varchar key")
		}
		return NewVarchar(buf[4 : 4+n]), 4 + n, nil
	default:
		return KeyValue{}, 0, errs.NewPageError(nil, errs.CodeBadData, "unknown key kind")
	}
}

// String renders a human-readable display form, used for logging and
// debug printing only — never for hashing or on-disk storage.
func (k KeyValue) String() string {
	switch k.kind {
	case Int:
		return fmt.Sprintf("%d", k.i)
	case Float:
		return fmt.Sprintf("%g", k.f)
	case Varchar:
		return string(k.s)
	default:
		return "<invalid key>"
	}
}

// HashCode returns an FNV-1a hash over the key's binary wire encoding. It
// is deliberately a byte-level hash, not a hash of String(), so floats and
// varchars hash identically regardless of display formatting or locale.
func (k KeyValue) HashCode() uint32 {
	h := fnv.New32a()
	h.Write(k.Bytes())
	return h.Sum32()
}

// Compare orders two keys of the same kind: numerically for Int/Float,
// lexicographically over raw bytes for Varchar. Comparing keys of
// different kinds panics — callers never compare keys across a mismatched
// schema.
func (k KeyValue) Compare(other KeyValue) int {
	if k.kind != other.kind {
		panic("kv: Compare called on keys of different kinds")
	}
	switch k.kind {
	case Int:
		switch {
		case k.i < other.i:
			return -1
		case k.i > other.i:
			return 1
		default:
			return 0
		}
	case Float:
		switch {
		case k.f < other.f:
			return -1
		case k.f > other.f:
			return 1
		default:
			return 0
		}
	case Varchar:
		n := len(k.s)
		if len(other.s) < n {
			n = len(other.s)
		}
		for i := 0; i < n; i++ {
			if k.s[i] != other.s[i] {
				if k.s[i] < other.s[i] {
					return -1
				}
				return 1
			}
		}
		switch {
		case len(k.s) < len(other.s):
			return -1
		case len(k.s) > len(other.s):
			return 1
		default:
			return 0
		}
	default:
		panic("kv: Compare called on invalid key")
	}
}

// Equal reports whether two keys of the same kind compare equal.
func (k KeyValue) Equal(other KeyValue) bool {
	return k.Compare(other) == 0
}
