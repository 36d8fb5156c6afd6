package parser

import "errors"

// ErrNoParser means no registered parser claims the file; the import must
// fail whole, partial detection is not attempted.
var ErrNoParser = errors.New("unsupported file format: no parser claims this file")

// Detector tries parsers in registration order and returns the first that
// claims the content. The OFX parser must be registered before the tabular
// one: its signature is stronger, and ambiguous content has to resolve to it
// rather than be mis-parsed as a spreadsheet.
type Detector struct {
	parsers []Parser
}

// NewDetector creates a detector over an ordered parser list
func NewDetector(parsers ...Parser) *Detector {
	return &Detector{parsers: parsers}
}

// DefaultDetector returns the production parser chain
func DefaultDetector() *Detector {
	return NewDetector(NewOFXParser(OFXConfig{}), NewXLSXParser(XLSXConfig{}))
}

// Detect returns the parser owning the content, or ErrNoParser
func (d *Detector) Detect(content []byte) (Parser, error) {
	for _, p := range d.parsers {
		if p.Detect(content) {
			return p, nil
		}
	}
	return nil, ErrNoParser
}
