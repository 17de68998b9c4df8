package interfaces

import (
	"context"
)

// TextExtractor turns an uploaded file into plain text.
//
// Engine failures never escape: Extract returns an empty string or one of the
// documented "not recognized" placeholders instead. The only error returned
// is common.ErrUnsupportedFormat for a file type with no extractor.
type TextExtractor interface {
	// Extract reads path and returns its text. language selects the speech
	// locale for audio and is ignored for other kinds.
	Extract(ctx context.Context, path, language string) (string, error)
}

// PDFExtractor reads the text layer of a PDF document
type PDFExtractor interface {
	// ExtractText returns the text of every page, pages separated by blank lines
	ExtractText(ctx context.Context, path string) (string, error)
}
