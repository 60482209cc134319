package tdf

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Writer builds a tagged value stream into an internal buffer.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns a ready-to-use Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) writeTag(tag string, typ Type) {
	full, err := encodeFullTag(tag, typ)
	if err != nil {
		// Tags are always compile-time constants in call sites; a bad tag
		// is a programmer error, not a runtime condition callers recover from.
		panic(err)
	}
	w.buf.Write(full[:])
}

// varInt encodes an unsigned integer using 7-bit continuation groups,
// little-endian septets. Zero encodes as a single 0x00 byte.
func putVarInt(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf.WriteByte(b | 0x80)
			continue
		}
		buf.WriteByte(b)
		return
	}
}

// VarInt writes an unsigned integer field.
func (w *Writer) VarInt(tag string, v uint64) {
	w.writeTag(tag, TypeVarInt)
	putVarInt(&w.buf, v)
}

// VarIntSigned writes a signed integer field zig-zag encoded into the same
// 7-bit continuation scheme as VarInt. The sign is carried in the lowest bit
// of the encoded value, not in a separate leading sign bit.
func (w *Writer) VarIntSigned(tag string, v int64) {
	w.writeTag(tag, TypeVarInt)
	putVarInt(&w.buf, zigzagEncode(v))
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// Bool writes a boolean as a VarInt 0/1 field.
func (w *Writer) Bool(tag string, v bool) {
	if v {
		w.VarInt(tag, 1)
		return
	}
	w.VarInt(tag, 0)
}

// String writes a length-prefixed, NUL-terminated string field. The
// terminator is included in the encoded length.
func (w *Writer) String(tag string, s string) {
	w.writeTag(tag, TypeString)
	putVarInt(&w.buf, uint64(len(s)+1))
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
}

// Blob writes a length-prefixed opaque byte field.
func (w *Writer) Blob(tag string, b []byte) {
	w.writeTag(tag, TypeBlob)
	putVarInt(&w.buf, uint64(len(b)))
	w.buf.Write(b)
}

// Float writes an IEEE-754 single-precision float field.
func (w *Writer) Float(tag string, f float32) {
	w.writeTag(tag, TypeFloat)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(f))
	w.buf.Write(b[:])
}

// ObjectType writes an (entity type, entity subtype) pair field.
func (w *Writer) ObjectType(tag string, typ, sub uint16) {
	w.writeTag(tag, TypeObjectType)
	putVarInt(&w.buf, uint64(typ))
	putVarInt(&w.buf, uint64(sub))
}

// ObjectId writes an (entity type, entity subtype, entity id) triple field.
func (w *Writer) ObjectId(tag string, typ, sub uint16, id uint64) {
	w.writeTag(tag, TypeObjectId)
	putVarInt(&w.buf, uint64(typ))
	putVarInt(&w.buf, uint64(sub))
	putVarInt(&w.buf, id)
}

// Triple writes a (u64, u64, u64) field.
func (w *Writer) Triple(tag string, a, b, c uint64) {
	w.writeTag(tag, TypeTriple)
	putVarInt(&w.buf, a)
	putVarInt(&w.buf, b)
	putVarInt(&w.buf, c)
}

// GroupStart opens a group field. Every GroupStart must be paired with a
// GroupEnd once its fields are written.
func (w *Writer) GroupStart(tag string) {
	w.writeTag(tag, TypeGroup)
}

// NestedGroupStart opens a group serialized as the payload of a union
// member, per spec: prefixed with the 0x02 marker.
func (w *Writer) NestedGroupStart(tag string) {
	w.writeTag(tag, TypeGroup)
	w.buf.WriteByte(nestedGroupMarker)
}

// GroupEnd closes the most recently opened group.
func (w *Writer) GroupEnd() {
	w.buf.WriteByte(groupEnd)
}

// VarIntList writes a homogeneous list of unsigned integers.
func (w *Writer) VarIntList(tag string, values []uint64) {
	w.writeTag(tag, TypeVarIntList)
	putVarInt(&w.buf, uint64(len(values)))
	for _, v := range values {
		putVarInt(&w.buf, v)
	}
}

// StringList writes a homogeneous list of strings.
func (w *Writer) StringList(tag string, values []string) {
	w.writeTag(tag, TypeList)
	w.buf.WriteByte(byte(TypeString))
	putVarInt(&w.buf, uint64(len(values)))
	for _, v := range values {
		putVarInt(&w.buf, uint64(len(v)+1))
		w.buf.WriteString(v)
		w.buf.WriteByte(0)
	}
}

// GroupList starts a list of n groups; the caller writes each group's
// fields (without a tag, since list elements are untagged) followed by
// GroupEnd, n times.
func (w *Writer) GroupList(tag string, n int) {
	w.writeTag(tag, TypeList)
	w.buf.WriteByte(byte(TypeGroup))
	putVarInt(&w.buf, uint64(n))
}

// StringMap writes a map with string keys and string values.
func (w *Writer) StringMap(tag string, m map[string]string) {
	w.writeTag(tag, TypeMap)
	w.buf.WriteByte(byte(TypeString))
	w.buf.WriteByte(byte(TypeString))
	putVarInt(&w.buf, uint64(len(m)))
	for k, v := range m {
		putVarInt(&w.buf, uint64(len(k)+1))
		w.buf.WriteString(k)
		w.buf.WriteByte(0)
		putVarInt(&w.buf, uint64(len(v)+1))
		w.buf.WriteString(v)
		w.buf.WriteByte(0)
	}
}

// Union writes a tagged union. encode is called only when discriminant is
// not UnsetUnionDiscriminant, and must write exactly the member's payload.
func (w *Writer) Union(tag string, discriminant byte, encode func(w *Writer)) {
	w.writeTag(tag, TypeUnion)
	w.buf.WriteByte(discriminant)
	if discriminant != UnsetUnionDiscriminant && encode != nil {
		encode(w)
	}
}
