package rf

import "github.com/arkdb/pagestore/kv"

// AttrInfo names one attribute of a schema and its type.
type AttrInfo struct {
	Name string
	Kind kv.Kind
}

// Schema is an ordered list of typed attributes a record file's records
// conform to. RF itself never inspects the values — only the wire size of
// each attribute, needed to lay out and walk a record's bytes.
type Schema struct {
	Attrs []AttrInfo
}

// IndexOf returns the position of the named attribute, or -1 if absent.
func (s Schema) IndexOf(name string) int {
	for i, a := range s.Attrs {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Record is one row: exactly one typed value per attribute in the owning
// schema, in schema order.
type Record struct {
	Values []kv.KeyValue
}

// encodeRecord concatenates each value's wire encoding, schema order.
func encodeRecord(rec Record) []byte {
	size := 0
	for _, v := range rec.Values {
		size += v.WireSize()
	}
	buf := make([]byte, 0, size)
	for _, v := range rec.Values {
		buf = append(buf, v.Bytes()...)
	}
	return buf
}

// decodeRecord walks buf according to schema, producing a Record.
func decodeRecord(schema Schema, buf []byte) (Record, error) {
	values := make([]kv.KeyValue, 0, len(schema.Attrs))
	off := 0
	for _, attr := range schema.Attrs {
		v, n, err := kv.Decode(attr.Kind, buf[off:])
		if err != nil {
			return Record{}, err
		}
		values = append(values, v)
		off += n
	}
	return Record{Values: values}, nil
}

// attrOffset returns the byte offset and wire size of the named attribute
// within an encoded record, without fully decoding it.
func attrOffset(schema Schema, buf []byte, name string) (offset, size int, found bool) {
	off := 0
	for _, attr := range schema.Attrs {
		_, n, err := kv.Decode(attr.Kind, buf[off:])
		if err != nil {
			return 0, 0, false
		}
		if attr.Name == name {
			return off, n, true
		}
		off += n
	}
	return 0, 0, false
}
