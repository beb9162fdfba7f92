package video

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/docsurgery/core"
)

func mp4Box(typ string, parts ...[]byte) []byte {
	body := bytes.Join(parts, nil)
	b := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(b, uint32(8+len(body)))
	copy(b[4:], typ)
	return append(b, body...)
}

func dataAtom(text string) []byte {
	return mp4Box("data", []byte{0, 0, 0, 1, 0, 0, 0, 0}, []byte(text))
}

func mvhd() []byte {
	p := make([]byte, 100)
	binary.BigEndian.PutUint32(p[12:], 1000)
	binary.BigEndian.PutUint32(p[16:], 75000)
	return mp4Box("mvhd", p)
}

var mdat = mp4Box("mdat", bytes.Repeat([]byte{0xAB}, 64))

func sampleMP4() []byte {
	ilst := mp4Box("ilst",
		mp4Box("\xa9nam", dataAtom("Extract Document Metadata")),
		mp4Box("\xa9ART", dataAtom("TRA")),
	)
	meta := mp4Box("meta", []byte{0, 0, 0, 0}, mp4Box("hdlr", make([]byte, 24)), ilst)
	udta := mp4Box("udta", meta, mp4Box("\xa9xyz", []byte{0, 8, 0x15, 0xC7}, []byte("+51-0.12")))
	trak := mp4Box("trak", mp4Box("tkhd", make([]byte, 84)), mp4Box("udta", mp4Box("name", []byte("TRA track"))))
	moov := mp4Box("moov", mvhd(), trak, udta)
	return bytes.Join([][]byte{mp4Box("ftyp", []byte("isom\x00\x00\x02\x00isomiso2")), moov, mdat}, nil)
}

func TestMP4Sanitize(t *testing.T) {
	in := sampleMP4()
	orig := append([]byte(nil), in...)

	out, err := New(nil).Sanitize(in)
	require.NoError(t, err)
	assert.Equal(t, orig, in, "input modified")
	assert.Len(t, out, len(in))
	assert.False(t, bytes.Contains(out, []byte("TRA")))
	assert.False(t, bytes.Contains(out, []byte("Extract Document Metadata")))
	assert.True(t, bytes.HasSuffix(out, mdat), "media data moved")

	again, err := New(nil).Sanitize(out)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	m, err := New(nil).Inspect(out)
	require.NoError(t, err)
	for _, f := range m.Fields {
		assert.False(t, f.Redacted, f.Key)
	}
}

func TestMP4Inspect(t *testing.T) {
	m, err := New(nil).Inspect(sampleMP4())
	require.NoError(t, err)
	values := map[string]string{}
	for _, f := range m.Fields {
		values[f.Key] = f.Value
	}
	assert.Equal(t, "isom", values["Brand"])
	assert.Equal(t, "1m 15s", values["Duration"])
	assert.Equal(t, "Extract Document Metadata", values["Title"])
	assert.Equal(t, "TRA", values["Artist"])
	assert.Equal(t, "+51-0.12", values["Location"])
}

func TestMP4Malformed(t *testing.T) {
	in := sampleMP4()
	for name, data := range map[string][]byte{
		"no ftyp":   mp4Box("moov", mvhd()),
		"truncated": in[:len(in)-10],
		"tiny":      {0, 0, 0},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(nil).Sanitize(data)
			assert.True(t, errors.Is(err, core.ErrMalformedContainer), "got %v", err)
		})
	}
}
