package common

import "fmt"

// InvalidImageError is returned when input bytes do not decode to an image or
// the image has zero area.
type InvalidImageError struct {
	// Reason is a short human readable description of what was wrong.
	Reason string
	// Err is the underlying decoder error, if any.
	Err error
}

func (e *InvalidImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image: %s: %v", e.Reason, e.Err)
	}
	return "invalid image: " + e.Reason
}

// Unwrap returns the underlying decoder error.
func (e *InvalidImageError) Unwrap() error {
	return e.Err
}

// NoGridFoundError is returned when no cell survives the noise filters, i.e.
// the photographed table could not be segmented.
type NoGridFoundError struct {
	// Candidates is the number of regions found before filtering.
	Candidates int
	// Width and Height are the dimensions of the analyzed image.
	Width, Height int
}

func (e *NoGridFoundError) Error() string {
	return fmt.Sprintf("no grid found in %dx%d image (%d candidate regions, none passed filtering)",
		e.Width, e.Height, e.Candidates)
}

// DegenerateGridError is returned when every discovered box collapses into a
// single row or a single column. The geometry is valid but the line detection
// parameters are most likely mistuned for the image.
type DegenerateGridError struct {
	Rows, Columns int
	Boxes         int
}

func (e *DegenerateGridError) Error() string {
	return fmt.Sprintf("degenerate grid: %d boxes in %d row(s) x %d column(s)", e.Boxes, e.Rows, e.Columns)
}
