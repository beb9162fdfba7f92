// Package archive rebuilds ZIP containers member by member. It backs the
// OOXML and OpenDocument adapters and implements the generic, recursive
// ZIP sanitizer.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/ankit-chaubey/docsurgery/core"
)

// MemberFunc decides what happens to one member during a rebuild. When
// replace is false the member is copied raw, compressed bytes included.
// When replace is true content is written under the member's original
// header.
type MemberFunc func(f *zip.File) (content []byte, replace bool, err error)

// Open parses data as a ZIP archive. Parse failures are reported as
// core.ErrMalformedContainer for the given format name.
func Open(data []byte, format string) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, core.Malformed(format, err)
	}
	return r, nil
}

// Rebuild writes a new archive holding every member of r, in order. The
// archive comment is carried over. Members are passed to fn, which may
// substitute their content.
func Rebuild(r *zip.Reader, format string, fn MemberFunc) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, f := range r.File {
		content, replace, err := fn(f)
		if err != nil {
			return nil, err
		}
		if !replace {
			if err := w.Copy(f); err != nil {
				return nil, &core.ContainerError{Format: format, Member: f.Name,
					Err: fmt.Errorf("%w: copying member: %v", core.ErrMalformedContainer, err)}
			}
			continue
		}
		if err := writeReplacement(w, f, content); err != nil {
			return nil, &core.ContainerError{Format: format, Member: f.Name, Err: err}
		}
	}

	if r.Comment != "" {
		if err := w.SetComment(r.Comment); err != nil {
			return nil, fmt.Errorf("%s: setting archive comment: %w", format, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s: finalizing archive: %w", format, err)
	}
	return buf.Bytes(), nil
}

// writeReplacement writes content under a copy of f's header. Sizes and the
// checksum are recomputed by the writer. Modified is cleared so the original
// MS-DOS time and extra fields are written as they were, without a second
// extended-timestamp field.
func writeReplacement(w *zip.Writer, f *zip.File, content []byte) error {
	hdr := f.FileHeader
	hdr.Modified = time.Time{}
	hdr.CRC32 = 0
	hdr.CompressedSize = 0
	hdr.CompressedSize64 = 0
	hdr.UncompressedSize = 0
	hdr.UncompressedSize64 = 0

	fw, err := w.CreateHeader(&hdr)
	if err != nil {
		return fmt.Errorf("creating member: %w", err)
	}
	if _, err := fw.Write(content); err != nil {
		return fmt.Errorf("writing member: %w", err)
	}
	return nil
}

// ReadMember decompresses a member, refusing to read past limit bytes.
// A limit of zero or less disables the bound.
func ReadMember(f *zip.File, limit int64, format string) ([]byte, error) {
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, &core.ContainerError{Format: format, Member: f.Name,
			Err: fmt.Errorf("%w: declares %d bytes, limit is %d", core.ErrMemberTooLarge, f.UncompressedSize64, limit)}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &core.ContainerError{Format: format, Member: f.Name,
			Err: fmt.Errorf("%w: %w", core.ErrMalformedContainer, err)}
	}
	defer rc.Close()

	var src io.Reader = rc
	if limit > 0 {
		src = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, &core.ContainerError{Format: format, Member: f.Name,
			Err: fmt.Errorf("%w: %w", core.ErrMalformedContainer, err)}
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, &core.ContainerError{Format: format, Member: f.Name,
			Err: fmt.Errorf("%w: limit is %d bytes", core.ErrMemberTooLarge, limit)}
	}
	return data, nil
}

// Find returns the member with the given name, or nil.
func Find(r *zip.Reader, name string) *zip.File {
	for _, f := range r.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// VerifyMembers re-opens a rebuilt archive and checks that it lists exactly
// the members of src, in the same order.
func VerifyMembers(src *zip.Reader, out []byte, format string) error {
	rebuilt, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		return &core.ContainerError{Format: format, Err: fmt.Errorf("%w: rebuilt archive unreadable: %v", core.ErrArchiveIntegrity, err)}
	}
	if len(rebuilt.File) != len(src.File) {
		return &core.ContainerError{Format: format,
			Err: fmt.Errorf("%w: %d members in, %d members out", core.ErrArchiveIntegrity, len(src.File), len(rebuilt.File))}
	}
	for i, f := range rebuilt.File {
		if f.Name != src.File[i].Name {
			return &core.ContainerError{Format: format, Member: src.File[i].Name,
				Err: fmt.Errorf("%w: member %d is %q in the rebuilt archive", core.ErrArchiveIntegrity, i, f.Name)}
		}
	}
	return nil
}
