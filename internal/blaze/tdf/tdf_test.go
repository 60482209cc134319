package tdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRoundTrip(t *testing.T) {
	tags := []string{"DBPS", "NATT", "UBPS", "ADDR", "VALU", "PORT", "HOST", "SECU"}
	for _, tag := range tags {
		packed, err := packTag(tag)
		require.NoError(t, err)
		require.Equal(t, tag, unpackTag(packed))
	}
}

func TestPrimitiveRoundTrip(t *testing.T) {
	w := NewWriter()
	w.VarInt("AAAA", 0)
	w.VarInt("BBBB", 300)
	w.VarIntSigned("CCCC", -42)
	w.String("DDDD", "hello world")
	w.Blob("EEEE", []byte{1, 2, 3, 4})
	w.Float("FFFF", 3.5)
	w.Bool("GGGG", true)
	w.ObjectType("HHHH", 1, 2)
	w.ObjectId("IIII", 1, 2, 9999999999)
	w.Triple("JJJJ", 1, 2, 3)

	r := NewReader(w.Bytes())
	v, err := r.ExpectVarInt("AAAA")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	v, err = r.ExpectVarInt("BBBB")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)

	sv, err := r.ExpectVarIntSigned("CCCC")
	require.NoError(t, err)
	assert.Equal(t, int64(-42), sv)

	s, err := r.ExpectString("DDDD")
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)

	b, err := r.ExpectBlob("EEEE")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)

	f, err := r.ExpectFloat("FFFF")
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f)

	bo, err := r.ExpectBool("GGGG")
	require.NoError(t, err)
	assert.True(t, bo)

	ot, os, err := r.ExpectObjectType("HHHH")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), ot)
	assert.Equal(t, uint16(2), os)

	it, is, id, err := r.ExpectObjectId("IIII")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), it)
	assert.Equal(t, uint16(2), is)
	assert.Equal(t, uint64(9999999999), id)

	a, bb, c, err := r.ExpectTriple("JJJJ")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a)
	assert.Equal(t, uint64(2), bb)
	assert.Equal(t, uint64(3), c)
}

func TestGroupRoundTrip(t *testing.T) {
	w := NewWriter()
	w.GroupStart("NETG")
	w.VarInt("IP", 0x7f000001)
	w.VarInt("PORT", 7777)
	w.GroupEnd()

	r := NewReader(w.Bytes())
	var ip, port uint64
	err := r.ExpectGroup("NETG", func(r *Reader) error {
		var err error
		ip, err = r.ExpectVarInt("IP")
		if err != nil {
			return err
		}
		port, err = r.ExpectVarInt("PORT")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7f000001), ip)
	assert.Equal(t, uint64(7777), port)
}

func TestGroupToleratesUnknownTrailingFields(t *testing.T) {
	w := NewWriter()
	w.GroupStart("GRUP")
	w.VarInt("KNWN", 5)
	// unknown trailing fields a real decoder must skip
	w.String("JUNK", "ignored")
	w.Blob("MORE", []byte{9, 9, 9})
	w.GroupEnd()

	r := NewReader(w.Bytes())
	var knwn uint64
	err := r.ExpectGroup("GRUP", func(r *Reader) error {
		var err error
		knwn, err = r.ExpectVarInt("KNWN")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), knwn)
}

func TestExpectSkipsFieldsOutOfOrder(t *testing.T) {
	w := NewWriter()
	w.GroupStart("ORDR")
	w.VarInt("FRST", 1)
	w.VarInt("SCND", 2)
	w.GroupEnd()

	r := NewReader(w.Bytes())
	var first, second uint64
	err := r.ExpectGroup("ORDR", func(r *Reader) error {
		// ask for SCND without asking for FRST first: Expect must skip
		// past the unrequested FRST field to reach SCND.
		var err error
		second, err = r.ExpectVarInt("SCND")
		if err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second)
	_ = first
}

func TestMissingFieldError(t *testing.T) {
	w := NewWriter()
	w.GroupStart("GRUP")
	w.VarInt("ONLY", 1)
	w.GroupEnd()

	r := NewReader(w.Bytes())
	err := r.ExpectGroup("GRUP", func(r *Reader) error {
		_, err := r.ExpectVarInt("NOPE")
		return err
	})
	var mfe *MissingFieldError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, "NOPE", mfe.Tag)
}

func TestUnexpectedTypeError(t *testing.T) {
	w := NewWriter()
	w.String("STAG", "x")

	r := NewReader(w.Bytes())
	_, err := r.ExpectVarInt("STAG")
	var ute *UnexpectedTypeError
	require.ErrorAs(t, err, &ute)
}

func TestListRoundTrip(t *testing.T) {
	w := NewWriter()
	w.StringList("SLST", []string{"a", "bb", "ccc"})
	w.VarIntList("VLST", []uint64{1, 2, 3})
	w.StringMap("SMAP", map[string]string{"k1": "v1"})

	r := NewReader(w.Bytes())
	ss, err := r.ExpectStringList("SLST")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bb", "ccc"}, ss)

	vs, err := r.ExpectVarIntList("VLST")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, vs)

	m, err := r.ExpectStringMap("SMAP")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k1": "v1"}, m)
}

func TestGroupListRoundTrip(t *testing.T) {
	type pair struct {
		name  string
		value uint64
	}
	pairs := []pair{{"NAME", 1}, {"OTHR", 2}}

	w := NewWriter()
	w.GroupList("RLST", len(pairs))
	for _, p := range pairs {
		w.String("NAME", p.name)
		w.VarInt("VALU", p.value)
		w.GroupEnd()
	}

	var got []pair
	r := NewReader(w.Bytes())
	err := r.ExpectGroupList("RLST", func(r *Reader) error {
		name, err := r.ExpectString("NAME")
		if err != nil {
			return err
		}
		value, err := r.ExpectVarInt("VALU")
		if err != nil {
			return err
		}
		got = append(got, pair{name, value})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, pairs, got)
}

func TestUnionRoundTrip(t *testing.T) {
	w := NewWriter()
	w.Union("ADDR", UnsetUnionDiscriminant, nil)
	w.Union("ADR2", 0x02, func(w *Writer) {
		w.NestedGroupStart("VALU")
		w.VarInt("IP", 1)
		w.VarInt("PORT", 2)
		w.GroupEnd()
	})

	r := NewReader(w.Bytes())
	d, err := r.ExpectUnion("ADDR")
	require.NoError(t, err)
	assert.Equal(t, byte(UnsetUnionDiscriminant), d)

	d2, err := r.ExpectUnion("ADR2")
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), d2)

	var ip, port uint64
	err = r.ExpectUnionGroup(func(r *Reader) error {
		var err error
		ip, err = r.ExpectVarInt("IP")
		if err != nil {
			return err
		}
		port, err = r.ExpectVarInt("PORT")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ip)
	assert.Equal(t, uint64(2), port)
}

func TestZeroVarIntIsOneByte(t *testing.T) {
	w := NewWriter()
	w.VarInt("ZERO", 0)
	assert.Equal(t, []byte{0x00}, w.Bytes()[4:])
}
