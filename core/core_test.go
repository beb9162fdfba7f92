package core

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyFor(t *testing.T) {
	cases := map[string]Family{
		TypePDF:     FamilyPDF,
		TypeDOCX:    FamilyWordprocessing,
		TypeMSWord:  FamilyWordprocessing,
		TypeDOCM:    FamilyWordprocessing,
		TypeXLSX:    FamilySpreadsheet,
		TypeMSExcel: FamilySpreadsheet,
		TypeXLSM:    FamilySpreadsheet,
		TypeXLSB:    FamilySpreadsheet,
		TypeODT:     FamilyOpenDocument,
		TypeODS:     FamilyOpenDocument,
		TypeZIP:     FamilyZIP,
		"APPLICATION/PDF; charset=binary": FamilyPDF,
	}
	for ct, want := range cases {
		got, ok := FamilyFor(ct)
		assert.True(t, ok, ct)
		assert.Equal(t, want, got, ct)
	}

	for _, ct := range []string{"", "text/plain", TypeJPEG, TypeMP3, TypeMP4, "application/vnd.ms-powerpoint"} {
		_, ok := FamilyFor(ct)
		assert.False(t, ok, ct)
	}

	for ct, want := range map[string]Family{TypeJPEG: FamilyJPEG, TypeMP3: FamilyMP3, TypeMP4: FamilyMP4, TypePDF: FamilyPDF} {
		got, ok := ExtendedFamilyFor(ct)
		assert.True(t, ok, ct)
		assert.Equal(t, want, got, ct)
	}
}

func TestGuessContentType(t *testing.T) {
	assert.Equal(t, TypeDOCX, GuessContentType("dir/Report.DOCX"))
	assert.Equal(t, TypePDF, GuessContentType(`C:\scans\a.pdf`))
	assert.Equal(t, TypeZIP, GuessContentType("bundle.zip"))
	assert.Equal(t, TypeOctetStream, GuessContentType("notes.txt"))
	assert.Equal(t, TypeOctetStream, GuessContentType("noext"))
}

func TestSniffContentType(t *testing.T) {
	assert.Equal(t, TypePDF, SniffContentType([]byte("%PDF-1.7\n")))
	assert.Equal(t, TypeZIP, SniffContentType([]byte("PK\x03\x04rest")))
	assert.Equal(t, TypeZIP, SniffContentType([]byte("PK\x05\x06rest")))
	assert.Equal(t, TypeJPEG, SniffContentType([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.Equal(t, TypeMP3, SniffContentType([]byte("ID3\x04")))
	assert.Equal(t, TypeMP4, SniffContentType([]byte("\x00\x00\x00\x18ftypisom")))
	assert.Equal(t, TypeOctetStream, SniffContentType([]byte("ab")))
	assert.Equal(t, TypeOctetStream, SniffContentType([]byte("hello world")))

	ole := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 8)...)
	assert.True(t, IsCompoundBinary(ole))
	assert.False(t, IsCompoundBinary([]byte("%PDF")))
}

func TestFormats(t *testing.T) {
	formats := Formats()
	require.NotEmpty(t, formats)
	for i := 1; i < len(formats); i++ {
		assert.Less(t, formats[i-1].Name, formats[i].Name)
	}
	for _, f := range formats {
		for _, ct := range f.ContentTypes {
			got, ok := ExtendedFamilyFor(ct)
			assert.True(t, ok, ct)
			assert.Equal(t, f.Family, got, ct)
		}
	}
	assert.Equal(t, "PDF", InfoFor(FamilyPDF).Name)
}

func TestContainerError(t *testing.T) {
	err := Malformed("OOXML", errors.New("bad header"))
	assert.True(t, errors.Is(err, ErrMalformedContainer))
	assert.Contains(t, err.Error(), "OOXML")
	assert.Contains(t, err.Error(), "bad header")

	wrapped := &ContainerError{Format: "ZIP", Member: "a/b.docx", Err: err}
	assert.True(t, errors.Is(wrapped, ErrMalformedContainer))
	assert.Contains(t, wrapped.Error(), `"a/b.docx"`)
}

func TestMetadataAddSkipsEmpty(t *testing.T) {
	m := &Metadata{Format: "PDF"}
	assert.Equal(t, "no metadata found", m.Summary())
	m.Add("Title", "", "Info", true)
	m.Add("Author", "TRA", "Info", true)
	m.Add("Producer", "pdfcpu", "Info", false)
	require.Len(t, m.Fields, 2)
	require.Len(t, m.Redacted(), 1)
	assert.Equal(t, "Author", m.Redacted()[0].Key)
	assert.Equal(t, "1 of 2 fields cleared on upload", m.Summary())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultMaxSizeBytes, cfg.Upload.MaxSizeBytes)
	assert.Equal(t, int64(30<<20), cfg.Upload.MaxSizeBytes)
	assert.Equal(t, 3, cfg.Extract.MaxDepth)
	assert.Equal(t, string(StrategySurgery), cfg.Extract.OOXMLStrategy)
	assert.Equal(t, "Token", cfg.API.Scheme)
	assert.Equal(t, DefaultAPITimeout, cfg.API.TimeoutDuration())
	require.NotNil(t, cfg.API.MaxRetries)
	assert.Equal(t, DefaultAPIMaxRetries, cfg.API.Retries())
	assert.Equal(t, DefaultLimits(), cfg.Extract.Limits())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "surgery.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

upload {
  max_size_bytes     = 1024
  size_error_message = "Limit is %s."
}

extract {
  max_depth      = 5
  ooxml_strategy = "properties"
}

api {
  base_url    = "https://api.example.com"
  timeout     = "5s"
  max_retries = 0
}
`), 0o644))

	t.Setenv(EnvAPIToken, "from-env")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(1024), cfg.Upload.MaxSizeBytes)
	assert.Equal(t, "Limit is %s.", cfg.Upload.SizeErrorMessage)
	assert.Equal(t, DefaultChunkSize, cfg.Upload.ChunkSize)
	assert.Equal(t, 5, cfg.Extract.MaxDepth)
	assert.Equal(t, string(StrategyProperties), cfg.Extract.OOXMLStrategy)
	assert.Equal(t, "from-env", cfg.API.Token)
	assert.Equal(t, "5s", cfg.API.Timeout)
	require.NotNil(t, cfg.API.MaxRetries)
	assert.Equal(t, 0, cfg.API.Retries())
	assert.Equal(t, "uploads", cfg.Storage.Dir)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "loud"

extract {
  ooxml_strategy = "magic"
}

api {
  timeout     = "soon"
  max_retries = -1
}
`), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "extract")
	assert.Contains(t, err.Error(), "api")
	assert.Contains(t, err.Error(), "MaxRetries")

	t.Setenv(EnvMaxSizeBytes, "lots")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigEnvSize(t *testing.T) {
	t.Setenv(EnvMaxSizeBytes, "2048")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), cfg.Upload.MaxSizeBytes)
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Writer: &buf}
	m := &Metadata{Name: "a.docx", Format: "OOXML"}
	m.Add("creator", "TRA", "Core Properties", true)
	m.Add("revision", "4", "Core Properties", false)
	p.PrintMetadata(m)
	assert.Contains(t, buf.String(), "a.docx (OOXML): 1 of 2 fields cleared on upload")
	assert.Contains(t, buf.String(), "[redacted on upload]")
	assert.Contains(t, buf.String(), "Core Properties")

	buf.Reset()
	p.Line("%s written", "a.clean.docx")
	assert.Equal(t, "a.clean.docx written\n", buf.String())

	buf.Reset()
	p.JSON = true
	p.PrintMetadata(m)
	assert.Contains(t, buf.String(), `"redacted": true`)
	assert.Contains(t, buf.String(), `"summary": "1 of 2 fields cleared on upload"`)

	buf.Reset()
	p.PrintMetadata(&Metadata{Name: "b.pdf", Format: "PDF"})
	assert.Contains(t, buf.String(), `"fields": []`)

	buf.Reset()
	p.Line("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	Fail(&buf, errors.New("boom"))
	assert.Equal(t, "surgery: boom\n", buf.String())
}

func TestResolveOutPath(t *testing.T) {
	assert.Equal(t, "dir/a.clean.pdf", ResolveOutPath("dir/a.pdf", ""))
	assert.Equal(t, "out.pdf", ResolveOutPath("dir/a.pdf", "out.pdf"))
}
