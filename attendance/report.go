package attendance

import (
	"github.com/nvr-ai/go-register/common"
	"github.com/nvr-ai/go-register/router"
)

const (
	// StatusSuccess marks a processed register.
	StatusSuccess = "success"
	// StatusError marks a failed request.
	StatusError = "error"

	// SuccessMessage is reported with every successful result.
	SuccessMessage = "Image processed successfully through CV pipeline."
	// GridFailurePrefix starts the message of every failed report.
	GridFailurePrefix = "Grid Detection Failed: "
)

// Report is the JSON payload returned for one register image.
type Report struct {
	Status            string   `json:"status"`
	Message           string   `json:"message"`
	Filename          string   `json:"filename,omitempty"`
	Metadata          Metadata `json:"metadata"`
	ExtractedData     []Entry  `json:"extracted_data"`
	ProcessedImageB64 string   `json:"processed_image_b64,omitempty"`
}

// Metadata summarizes the detected grid.
type Metadata struct {
	TotalCellsDetected int   `json:"total_cells_detected"`
	Rows               int   `json:"rows"`
	Columns            int   `json:"columns"`
	DurationMS         int64 `json:"duration_ms"`
	// ImageFormat is the detected upload encoding, e.g. "png".
	ImageFormat string `json:"image_format,omitempty"`
	ImageWidth  int    `json:"image_width,omitempty"`
	ImageHeight int    `json:"image_height,omitempty"`
}

// Entry is one cell of the register in reading order.
type Entry struct {
	BBox       common.BoundingBox `json:"bbox"`
	Type       router.Kind        `json:"type"`
	Value      string             `json:"value"`
	Confidence float64            `json:"confidence"`
}

// ErrorReport is the JSON payload returned when processing fails.
type ErrorReport struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewErrorReport renders err for clients.
//
// @example
// attendance.NewErrorReport(&common.NoGridFoundError{Width: 400, Height: 300})
// // {"status":"error","message":"Grid Detection Failed: no grid found in 400x300 image ..."}
func NewErrorReport(err error) ErrorReport {
	return ErrorReport{Status: StatusError, Message: GridFailurePrefix + err.Error()}
}
