package archive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/docsurgery/core"
	"github.com/ankit-chaubey/docsurgery/internal/fixture"
)

// upperNested sanitizes PDF members by upper-casing them and records the
// depth it was called at.
type upperNested struct {
	depths []int
	err    error
}

func (n *upperNested) Recognizes(ct string) bool { return ct == core.TypePDF }

func (n *upperNested) ExtractAt(data []byte, ct string, depth int) (bool, []byte, error) {
	n.depths = append(n.depths, depth)
	if n.err != nil {
		return false, nil, n.err
	}
	return true, bytes.ToUpper(data), nil
}

func sampleArchive() []byte {
	return fixture.Zip("archive comment",
		fixture.Member{Name: "docs/", Body: nil},
		fixture.Member{Name: "docs/report.pdf", Body: []byte("secret report"), Comment: "member comment"},
		fixture.Member{Name: "notes.txt", Body: []byte("plain notes")},
		fixture.Member{Name: "raw.bin", Body: []byte{0, 1, 2, 3}, Store: true},
	)
}

func TestRebuildCopiesMembers(t *testing.T) {
	in := sampleArchive()
	r, err := Open(in, "test")
	require.NoError(t, err)

	out, err := Rebuild(r, "test", func(*zip.File) ([]byte, bool, error) { return nil, false, nil })
	require.NoError(t, err)
	require.NoError(t, VerifyMembers(r, out, "test"))

	before, _, err := fixture.Read(in)
	require.NoError(t, err)
	after, _, err := fixture.Read(out)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	comment, err := fixture.Comment(out)
	require.NoError(t, err)
	assert.Equal(t, "archive comment", comment)
}

func TestRebuildReplacementKeepsHeader(t *testing.T) {
	r, err := Open(sampleArchive(), "test")
	require.NoError(t, err)

	out, err := Rebuild(r, "test", func(f *zip.File) ([]byte, bool, error) {
		if f.Name == "docs/report.pdf" {
			return []byte("clean"), true, nil
		}
		return nil, false, nil
	})
	require.NoError(t, err)

	rebuilt, err := Open(out, "test")
	require.NoError(t, err)
	f := Find(rebuilt, "docs/report.pdf")
	require.NotNil(t, f)
	assert.Equal(t, zip.Deflate, f.Method)
	assert.Equal(t, "member comment", f.Comment)
	assert.True(t, fixture.Modified.Equal(f.Modified), "modified %v", f.Modified)

	body, err := ReadMember(f, 0, "test")
	require.NoError(t, err)
	assert.Equal(t, "clean", string(body))

	raw := Find(rebuilt, "raw.bin")
	require.NotNil(t, raw)
	assert.Equal(t, zip.Store, raw.Method)
}

func TestReadMemberLimit(t *testing.T) {
	r, err := Open(sampleArchive(), "test")
	require.NoError(t, err)
	f := Find(r, "notes.txt")
	require.NotNil(t, f)

	_, err = ReadMember(f, 4, "test")
	assert.True(t, errors.Is(err, core.ErrMemberTooLarge))

	body, err := ReadMember(f, int64(len("plain notes")), "test")
	require.NoError(t, err)
	assert.Equal(t, "plain notes", string(body))
}

func TestVerifyMembersDetectsMismatch(t *testing.T) {
	r, err := Open(sampleArchive(), "test")
	require.NoError(t, err)

	dropped := fixture.Zip("", fixture.Member{Name: "docs/"}, fixture.Member{Name: "notes.txt"})
	err = VerifyMembers(r, dropped, "test")
	assert.True(t, errors.Is(err, core.ErrArchiveIntegrity))

	renamed := fixture.Zip("",
		fixture.Member{Name: "docs/"},
		fixture.Member{Name: "docs/other.pdf"},
		fixture.Member{Name: "notes.txt"},
		fixture.Member{Name: "raw.bin"},
	)
	err = VerifyMembers(r, renamed, "test")
	assert.True(t, errors.Is(err, core.ErrArchiveIntegrity))

	err = VerifyMembers(r, []byte("nope"), "test")
	assert.True(t, errors.Is(err, core.ErrArchiveIntegrity))
}

func TestZIPSanitize(t *testing.T) {
	nested := &upperNested{}
	z := NewZIP(nested, core.DefaultLimits(), nil)

	in := sampleArchive()
	out, err := z.Sanitize(in)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, nested.depths)

	after, names, err := fixture.Read(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/", "docs/report.pdf", "notes.txt", "raw.bin"}, names)
	assert.Equal(t, "SECRET REPORT", string(after["docs/report.pdf"]))
	assert.Equal(t, "plain notes", string(after["notes.txt"]))
	assert.Equal(t, []byte{0, 1, 2, 3}, after["raw.bin"])

	comment, err := fixture.Comment(out)
	require.NoError(t, err)
	assert.Equal(t, "archive comment", comment)
}

func TestZIPSanitizeAtPassesDepth(t *testing.T) {
	nested := &upperNested{}
	_, err := NewZIP(nested, core.DefaultLimits(), nil).SanitizeAt(sampleArchive(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, nested.depths)
}

func TestZIPNestedFailureAbortsArchive(t *testing.T) {
	cause := errors.New("boom")
	z := NewZIP(&upperNested{err: cause}, core.DefaultLimits(), nil)
	out, err := z.Sanitize(sampleArchive())
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, cause)

	var ce *core.ContainerError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "docs/report.pdf", ce.Member)
}

func TestZIPLimits(t *testing.T) {
	t.Run("member count", func(t *testing.T) {
		limits := core.DefaultLimits()
		limits.MaxArchiveMembers = 2
		_, err := NewZIP(&upperNested{}, limits, nil).Sanitize(sampleArchive())
		assert.True(t, errors.Is(err, core.ErrTooManyMembers))
	})
	t.Run("member size", func(t *testing.T) {
		limits := core.DefaultLimits()
		limits.MaxMemberBytes = 3
		_, err := NewZIP(&upperNested{}, limits, nil).Sanitize(sampleArchive())
		assert.True(t, errors.Is(err, core.ErrMemberTooLarge))
	})
}

func TestZIPMalformed(t *testing.T) {
	in := sampleArchive()
	_, err := NewZIP(&upperNested{}, core.DefaultLimits(), nil).Sanitize(in[:len(in)-10])
	assert.True(t, errors.Is(err, core.ErrMalformedContainer))
}

func TestZIPInspect(t *testing.T) {
	m, err := NewZIP(&upperNested{}, core.DefaultLimits(), nil).Inspect(sampleArchive())
	require.NoError(t, err)

	byKey := map[string]core.MetaField{}
	for _, f := range m.Fields {
		byKey[f.Key] = f
	}
	assert.Equal(t, "archive comment", byKey["comment"].Value)
	assert.Equal(t, core.TypePDF, byKey["docs/report.pdf"].Value)
	assert.True(t, byKey["docs/report.pdf"].Redacted)
	assert.Equal(t, core.TypeOctetStream, byKey["notes.txt"].Value)
	assert.False(t, byKey["notes.txt"].Redacted)
	assert.NotContains(t, byKey, "docs/")
}
