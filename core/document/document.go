// Package document sanitizes document containers: PDF, OOXML packages
// (DOCX/XLSX and their macro-enabled and binary variants) and OpenDocument
// (ODT/ODS).
package document

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/ankit-chaubey/docsurgery/core"
)

// CoreRedactedFields are the docProps/core.xml elements whose text is cleared
// by the surgery strategy. Matching is on the exact local name.
var CoreRedactedFields = []string{
	"creator", "comments", "lastModifiedBy", "manager",
	"identifier", "title", "subject", "description",
}

// CorePropertyFields are the string properties cleared by the properties
// strategy. created, modified, revision and lastPrinted are kept.
var CorePropertyFields = []string{
	"category", "contentStatus", "creator", "description", "identifier",
	"keywords", "language", "lastModifiedBy", "subject", "title", "version",
}

// ODFRedactedFields are substrings matched against meta.xml local names, so
// "creator" also clears meta:initial-creator.
var ODFRedactedFields = []string{"creator", "title", "description", "subject"}

// Handler sanitizes one document family.
type Handler struct {
	family   core.Family
	strategy core.OOXMLStrategy
	limit    int64
	logger   hclog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithStrategy selects how OOXML core properties are cleared.
func WithStrategy(s core.OOXMLStrategy) Option {
	return func(h *Handler) { h.strategy = s }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithMemberLimit bounds the decompressed size of the metadata part read
// from a package.
func WithMemberLimit(n int64) Option {
	return func(h *Handler) { h.limit = n }
}

// New returns a Handler for a document family. It returns an error for
// families this package does not handle.
func New(family core.Family, opts ...Option) (*Handler, error) {
	switch family {
	case core.FamilyPDF, core.FamilyWordprocessing, core.FamilySpreadsheet, core.FamilyOpenDocument:
	default:
		return nil, fmt.Errorf("document: unsupported family %q", family)
	}
	h := &Handler{
		family:   family,
		strategy: core.StrategySurgery,
		limit:    core.DefaultMaxMemberBytes,
		logger:   hclog.NewNullLogger(),
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

func (h *Handler) Info() core.FormatInfo {
	return core.InfoFor(h.family)
}

// Sanitize returns a copy of data with the family's identifying metadata
// removed. data is not modified.
func (h *Handler) Sanitize(data []byte) ([]byte, error) {
	switch h.family {
	case core.FamilyPDF:
		return h.sanitizePDF(data)
	case core.FamilyWordprocessing, core.FamilySpreadsheet:
		return h.sanitizeOOXML(data)
	case core.FamilyOpenDocument:
		return h.sanitizeODF(data)
	}
	return nil, fmt.Errorf("document: unsupported family %q", h.family)
}

// Inspect reports the metadata found in data, marking the fields that
// Sanitize would remove.
func (h *Handler) Inspect(data []byte) (*core.Metadata, error) {
	m := &core.Metadata{Format: h.Info().Name}
	switch h.family {
	case core.FamilyPDF:
		return h.inspectPDF(data, m)
	case core.FamilyWordprocessing, core.FamilySpreadsheet:
		return h.inspectOOXML(data, m)
	case core.FamilyOpenDocument:
		return h.inspectODF(data, m)
	}
	return nil, fmt.Errorf("document: unsupported family %q", h.family)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
