// Package extract is the entry point for sanitization: it looks up the
// family for a declared content type and runs the matching sanitizer,
// recursing into archives.
package extract

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/ankit-chaubey/docsurgery/core"
	"github.com/ankit-chaubey/docsurgery/core/archive"
	"github.com/ankit-chaubey/docsurgery/core/audio"
	"github.com/ankit-chaubey/docsurgery/core/document"
	"github.com/ankit-chaubey/docsurgery/core/image"
	"github.com/ankit-chaubey/docsurgery/core/video"
)

// ErrUnsupported is returned by Inspect for content types without a
// sanitizer. Extract never returns it; unknown types pass through.
var ErrUnsupported = errors.New("no sanitizer for content type")

// Extractor dispatches payloads to family sanitizers. It holds no mutable
// state and is safe for concurrent use.
type Extractor struct {
	limits   core.Limits
	strategy core.OOXMLStrategy
	extended bool
	logger   hclog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithLimits bounds nesting depth and archive sizes.
func WithLimits(l core.Limits) Option {
	return func(e *Extractor) { e.limits = l }
}

// WithOOXMLStrategy selects how OOXML core properties are cleared.
func WithOOXMLStrategy(s core.OOXMLStrategy) Option {
	return func(e *Extractor) { e.strategy = s }
}

// WithExtendedFormats enables the opt-in JPEG, MP3 and MP4 families.
func WithExtendedFormats(on bool) Option {
	return func(e *Extractor) { e.extended = on }
}

// New returns an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		limits:   core.DefaultLimits(),
		strategy: core.StrategySurgery,
		logger:   hclog.NewNullLogger(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = hclog.NewNullLogger()
	}
	return e
}

// FromConfig returns an Extractor configured from an extract block.
func FromConfig(cfg *core.ExtractConfig, logger hclog.Logger) *Extractor {
	return New(
		WithLogger(logger),
		WithLimits(cfg.Limits()),
		WithOOXMLStrategy(core.OOXMLStrategy(cfg.OOXMLStrategy)),
		WithExtendedFormats(cfg.ExtendedFormats),
	)
}

func (e *Extractor) familyFor(contentType string) (core.Family, bool) {
	if e.extended {
		return core.ExtendedFamilyFor(contentType)
	}
	return core.FamilyFor(contentType)
}

// Recognizes reports whether contentType has a sanitizer.
func (e *Extractor) Recognizes(contentType string) bool {
	_, ok := e.familyFor(contentType)
	return ok
}

// Extract sanitizes data declared as contentType. For unrecognised types it
// returns (false, data, nil). On success out is a new buffer and data is
// left untouched.
func (e *Extractor) Extract(data []byte, contentType string) (sanitized bool, out []byte, err error) {
	return e.ExtractAt(data, contentType, 0)
}

// ExtractAt is Extract for a payload found inside archives nested depth
// levels deep.
func (e *Extractor) ExtractAt(data []byte, contentType string, depth int) (bool, []byte, error) {
	family, ok := e.familyFor(contentType)
	if !ok {
		e.logger.Debug("no sanitizer, passing through", "content_type", contentType, "depth", depth)
		return false, data, nil
	}
	if family == core.FamilyZIP && e.limits.MaxDepth > 0 && depth >= e.limits.MaxDepth {
		return false, nil, &core.ContainerError{Format: "ZIP",
			Err: fmt.Errorf("%w: archive at depth %d, limit is %d", core.ErrNestingTooDeep, depth+1, e.limits.MaxDepth)}
	}

	var out []byte
	var err error
	if family == core.FamilyZIP {
		out, err = e.zip().SanitizeAt(data, depth)
	} else {
		var s core.Sanitizer
		if s, err = e.sanitizer(family); err == nil {
			out, err = s.Sanitize(data)
		}
	}
	if err != nil {
		e.logger.Debug("sanitize failed", "family", family, "depth", depth, "error", err)
		return false, nil, err
	}
	e.logger.Debug("sanitized", "family", family, "depth", depth, "in", len(data), "out", len(out))
	return true, out, nil
}

// Inspect reports the metadata in data that sanitization would touch.
func (e *Extractor) Inspect(data []byte, contentType string) (*core.Metadata, error) {
	family, ok := e.familyFor(contentType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, contentType)
	}
	var s core.Sanitizer
	if family == core.FamilyZIP {
		s = e.zip()
	} else {
		var err error
		if s, err = e.sanitizer(family); err != nil {
			return nil, err
		}
	}
	in, ok := s.(core.Inspector)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be inspected", ErrUnsupported, family)
	}
	return in.Inspect(data)
}

func (e *Extractor) zip() *archive.ZIP {
	return archive.NewZIP(e, e.limits, e.logger.Named("zip"))
}

func (e *Extractor) sanitizer(family core.Family) (core.Sanitizer, error) {
	switch family {
	case core.FamilyPDF, core.FamilyWordprocessing, core.FamilySpreadsheet, core.FamilyOpenDocument:
		return document.New(family,
			document.WithStrategy(e.strategy),
			document.WithMemberLimit(e.limits.MaxMemberBytes),
			document.WithLogger(e.logger.Named(string(family))),
		)
	case core.FamilyJPEG:
		return image.New(e.logger.Named("jpeg")), nil
	case core.FamilyMP3:
		return audio.New(e.logger.Named("mp3")), nil
	case core.FamilyMP4:
		return video.New(e.logger.Named("mp4")), nil
	}
	return nil, fmt.Errorf("%w: family %q", ErrUnsupported, family)
}
