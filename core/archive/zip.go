package archive

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/klauspost/compress/zip"

	"github.com/ankit-chaubey/docsurgery/core"
)

const zipFormat = "ZIP"

// Nested sanitizes archive members. It is implemented by the extractor
// facade so that members are dispatched through the same table as
// top-level payloads.
type Nested interface {
	// Recognizes reports whether contentType has a sanitizer.
	Recognizes(contentType string) bool
	// ExtractAt sanitizes a member found at the given nesting depth.
	ExtractAt(data []byte, contentType string, depth int) (bool, []byte, error)
}

// ZIP sanitizes a generic archive by sanitizing every member it recognises.
type ZIP struct {
	nested Nested
	limits core.Limits
	logger hclog.Logger
}

// NewZIP returns a ZIP sanitizer that hands members to nested.
func NewZIP(nested Nested, limits core.Limits, logger hclog.Logger) *ZIP {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ZIP{nested: nested, limits: limits, logger: logger}
}

func (z *ZIP) Info() core.FormatInfo {
	return core.InfoFor(core.FamilyZIP)
}

// Sanitize treats data as a top-level archive.
func (z *ZIP) Sanitize(data []byte) ([]byte, error) {
	return z.SanitizeAt(data, 0)
}

// SanitizeAt sanitizes an archive found at depth. Members are sanitized at
// depth+1. Any member failure aborts the whole archive.
func (z *ZIP) SanitizeAt(data []byte, depth int) ([]byte, error) {
	r, err := Open(data, zipFormat)
	if err != nil {
		return nil, err
	}
	if limit := z.limits.MaxArchiveMembers; limit > 0 && len(r.File) > limit {
		return nil, &core.ContainerError{Format: zipFormat,
			Err: fmt.Errorf("%w: %d members, limit is %d", core.ErrTooManyMembers, len(r.File), limit)}
	}

	var sanitized, copied int
	out, err := Rebuild(r, zipFormat, func(f *zip.File) ([]byte, bool, error) {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			copied++
			return nil, false, nil
		}
		ct := core.GuessContentType(f.Name)
		if !z.nested.Recognizes(ct) {
			copied++
			return nil, false, nil
		}
		body, err := ReadMember(f, z.limits.MaxMemberBytes, zipFormat)
		if err != nil {
			return nil, false, err
		}
		ok, clean, err := z.nested.ExtractAt(body, ct, depth+1)
		if err != nil {
			return nil, false, &core.ContainerError{Format: zipFormat, Member: f.Name, Err: err}
		}
		if !ok {
			copied++
			return nil, false, nil
		}
		sanitized++
		return clean, true, nil
	})
	if err != nil {
		return nil, err
	}

	if err := VerifyMembers(r, out, zipFormat); err != nil {
		z.logger.Error("rebuilt archive does not match its source", "depth", depth, "error", err)
		return nil, err
	}
	z.logger.Debug("archive sanitized", "depth", depth, "members", len(r.File),
		"sanitized", sanitized, "copied", copied)
	return out, nil
}

// Inspect lists the archive's members with the content type each is
// guessed as. Members that would be sanitized are marked redacted.
func (z *ZIP) Inspect(data []byte) (*core.Metadata, error) {
	r, err := Open(data, zipFormat)
	if err != nil {
		return nil, err
	}
	m := &core.Metadata{Format: z.Info().Name}
	m.Add("comment", r.Comment, "Archive", false)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ct := core.GuessContentType(f.Name)
		m.Add(f.Name, ct, "Members", z.nested.Recognizes(ct))
	}
	return m, nil
}
