package document

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/docsurgery/core"
	"github.com/ankit-chaubey/docsurgery/internal/fixture"
)

func newHandler(t *testing.T, family core.Family, opts ...Option) *Handler {
	t.Helper()
	h, err := New(family, opts...)
	require.NoError(t, err)
	return h
}

func TestNewRejectsOtherFamilies(t *testing.T) {
	_, err := New(core.FamilyZIP)
	assert.Error(t, err)
}

func TestClearElementText(t *testing.T) {
	match := exactMatch([]string{"creator", "title"})

	t.Run("clears only matched elements", func(t *testing.T) {
		in := []byte(`<?xml version="1.0"?><r xmlns:dc="x"><dc:creator>TRA</dc:creator><dc:keep>TRA</dc:keep></r>`)
		out, n, err := clearElementText(in, match)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, `<?xml version="1.0"?><r xmlns:dc="x"><dc:creator></dc:creator><dc:keep>TRA</dc:keep></r>`, string(out))
	})

	t.Run("entities and CDATA are removed whole", func(t *testing.T) {
		in := []byte(`<r><title>A &amp; B</title><creator><![CDATA[x<y]]></creator></r>`)
		out, n, err := clearElementText(in, match)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, `<r><title></title><creator></creator></r>`, string(out))
	})

	t.Run("self-closing and attributes untouched", func(t *testing.T) {
		in := []byte(`<r><title lang="en"/><creator id="1">TRA</creator></r>`)
		out, _, err := clearElementText(in, match)
		require.NoError(t, err)
		assert.Equal(t, `<r><title lang="en"/><creator id="1"></creator></r>`, string(out))
	})

	t.Run("no matches returns a copy", func(t *testing.T) {
		in := []byte(`<r><other>TRA</other></r>`)
		out, n, err := clearElementText(in, match)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, in, out)
		out[0] = 'X'
		assert.Equal(t, byte('<'), in[0])
	})

	t.Run("broken xml", func(t *testing.T) {
		_, _, err := clearElementText([]byte(`<r><title>TRA</r>`), match)
		assert.Error(t, err)
	})
}

func TestSubstringMatch(t *testing.T) {
	match := substringMatch(ODFRedactedFields)
	assert.True(t, match("initial-creator"))
	assert.True(t, match("creator"))
	assert.True(t, match("description"))
	assert.False(t, match("creation-date"))
	assert.False(t, match("generator"))
}

func TestFieldTables(t *testing.T) {
	assert.Equal(t, core.InfoFor(core.FamilyWordprocessing).RedactedFields, CoreRedactedFields)
	assert.NotContains(t, CorePropertyFields, "created")
	assert.NotContains(t, CorePropertyFields, "modified")
	assert.NotContains(t, CorePropertyFields, "revision")
	assert.NotContains(t, CorePropertyFields, "lastPrinted")
}

func TestInputIsNotModified(t *testing.T) {
	in := fixture.DOCX(fixture.CoreXML)
	orig := append([]byte(nil), in...)
	_, err := newHandler(t, core.FamilyWordprocessing).Sanitize(in)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(orig, in))
}
