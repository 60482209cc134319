// Package tdf implements the Blaze tagged data format: a self-describing
// binary value encoding built from 4-character tags, a type nibble, and a
// small fixed set of primitive and composite value shapes.
package tdf

import (
	"fmt"
	"strings"
)

// Type is the wire type discriminator carried in the low nibble of a tag's
// fourth byte.
type Type uint8

const (
	TypeVarInt Type = iota
	TypeString
	TypeBlob
	TypeGroup
	TypeList
	TypeMap
	TypeUnion
	TypeVarIntList
	TypeObjectType
	TypeObjectId
	TypeFloat
	TypeTriple
)

func (t Type) String() string {
	switch t {
	case TypeVarInt:
		return "VarInt"
	case TypeString:
		return "String"
	case TypeBlob:
		return "Blob"
	case TypeGroup:
		return "Group"
	case TypeList:
		return "List"
	case TypeMap:
		return "Map"
	case TypeUnion:
		return "Union"
	case TypeVarIntList:
		return "VarIntList"
	case TypeObjectType:
		return "ObjectType"
	case TypeObjectId:
		return "ObjectId"
	case TypeFloat:
		return "Float"
	case TypeTriple:
		return "Triple"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// UnsetUnionDiscriminant is the reserved union discriminant meaning "no
// active member".
const UnsetUnionDiscriminant = 0x7f

// groupEnd terminates an encoded group's field list.
const groupEnd = 0x00

// nestedGroupMarker prefixes a group when it is serialized as the payload
// of a union member.
const nestedGroupMarker = 0x02

func sixBit(c byte) byte {
	return (c - 0x20) & 0x3f
}

// packTag packs a tag of 1 to 4 characters into the 3-byte tag3 field used
// on the wire, 6 bits per character, MSB-first. Shorter tags are padded with
// spaces, which pack to zero bits.
func packTag(tag string) ([3]byte, error) {
	if len(tag) == 0 || len(tag) > 4 {
		return [3]byte{}, fmt.Errorf("tdf: tag %q must be 1 to 4 characters", tag)
	}
	tag += "    "[:4-len(tag)]
	c0, c1, c2, c3 := sixBit(tag[0]), sixBit(tag[1]), sixBit(tag[2]), sixBit(tag[3])
	return [3]byte{
		c0<<2 | c1>>4,
		c1<<4 | c2>>2,
		c2<<6 | c3,
	}, nil
}

// unpackTag reverses packTag, dropping the trailing space padding.
func unpackTag(b [3]byte) string {
	c0 := b[0] >> 2
	c1 := (b[0]&0x3)<<4 | b[1]>>4
	c2 := (b[1]&0xf)<<2 | b[2]>>6
	c3 := b[2] & 0x3f
	out := [4]byte{c0 + 0x20, c1 + 0x20, c2 + 0x20, c3 + 0x20}
	return strings.TrimRight(string(out[:]), " ")
}

// fullTag is the 4-byte on-wire representation of a tag: packed tag3 plus
// the type nibble in the low 4 bits of the final byte.
type fullTag struct {
	Tag  string
	Type Type
}

func encodeFullTag(tag string, typ Type) ([4]byte, error) {
	packed, err := packTag(tag)
	if err != nil {
		return [4]byte{}, err
	}
	return [4]byte{packed[0], packed[1], packed[2], byte(typ) & 0x0f}, nil
}

func decodeFullTag(b [4]byte) fullTag {
	return fullTag{
		Tag:  unpackTag([3]byte{b[0], b[1], b[2]}),
		Type: Type(b[3] & 0x0f),
	}
}
