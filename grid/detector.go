package grid

import (
	"github.com/nvr-ai/go-register/common"
	"github.com/nvr-ai/go-register/images"
	"github.com/nvr-ai/go-register/profiler"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Detector runs the full grid pipeline with a fixed configuration.
//
// A Detector carries no per-request state and is safe for concurrent use.
type Detector struct {
	Config Config
	// Profiler, when set, receives one timing per stage.
	Profiler *profiler.RuntimeProfiler
}

// NewDetector creates a new grid detector.
//
// Arguments:
//   - cfg: Pipeline configuration, typically DefaultConfig with overrides.
//
// Returns:
//   - *Detector: The configured detector.
//
// @example
// detector := grid.NewDetector(grid.DefaultConfig())
// result, err := detector.DetectBytes(upload)
//
//	if err != nil {
//	    return err
//	}
//
// defer result.Close()
func NewDetector(cfg Config) *Detector {
	return &Detector{Config: cfg}
}

// Result holds everything the pipeline recovered from one image.
type Result struct {
	// Annotated is a copy of the input, with cell outlines when annotation is enabled.
	Annotated gocv.Mat
	// Cells are in reading order.
	Cells []Cell
	// Rows is the number of row clusters.
	Rows int
	// Columns is the length of the longest row.
	Columns int
	// Width and Height are the input image dimensions.
	Width, Height int
	// Format is the detected upload encoding. Empty when Detect was given pixels directly.
	Format images.ImageFormat
}

// Boxes returns the cell boxes in reading order.
func (r *Result) Boxes() []common.BoundingBox {
	boxes := make([]common.BoundingBox, len(r.Cells))
	for i, c := range r.Cells {
		boxes[i] = c.Box
	}
	return boxes
}

// Close releases every Mat held by the result.
func (r *Result) Close() {
	if r == nil {
		return
	}
	r.Annotated.Close()
	for i := range r.Cells {
		r.Cells[i].Close()
	}
}

// DetectBytes decodes an uploaded image and runs Detect on it.
//
// Returns:
//   - *Result: The caller must Close it.
//   - error: *common.InvalidImageError, *common.NoGridFoundError or *common.DegenerateGridError.
func (d *Detector) DetectBytes(data []byte) (*Result, error) {
	stop := d.Profiler.StartOperation(profiler.StageDecode)
	img, err := images.Decode(data)
	stop()
	if err != nil {
		return nil, err
	}
	defer img.Close()

	result, err := d.Detect(img)
	if err != nil {
		return nil, err
	}
	result.Format = images.DetectFormat(data)
	return result, nil
}

// Detect recovers the cell grid of img.
//
// When Config.MaxDimension is set and img is larger, line and cell detection
// run on a downscaled copy and the boxes are mapped back, so Cells and their
// boxes always refer to img's own pixels.
//
// Arguments:
//   - img: A decoded color image. It is not modified.
//
// Returns:
//   - *Result: Cells in reading order. The caller must Close it.
//   - error: *common.InvalidImageError, *common.NoGridFoundError or *common.DegenerateGridError.
func (d *Detector) Detect(img gocv.Mat) (*Result, error) {
	if img.Empty() || img.Rows() == 0 || img.Cols() == 0 {
		return nil, &common.InvalidImageError{Reason: "zero-area image"}
	}
	cfg := d.Config

	work, err := images.Fit(img, cfg.MaxDimension)
	if err != nil {
		return nil, errors.Wrap(err, "downscale")
	}
	defer work.Close()

	stop := d.Profiler.StartOperation(profiler.StageBinarize)
	mask, err := Binarize(work, cfg.Binarize)
	stop()
	if err != nil {
		return nil, errors.Wrap(err, "binarize")
	}
	defer mask.Close()

	stop = d.Profiler.StartOperation(profiler.StageLines)
	horizontal, err := ExtractHorizontalLines(mask, cfg.Lines)
	if err != nil {
		stop()
		return nil, errors.Wrap(err, "horizontal lines")
	}
	defer horizontal.Close()
	vertical, err := ExtractVerticalLines(mask, cfg.Lines)
	stop()
	if err != nil {
		return nil, errors.Wrap(err, "vertical lines")
	}
	defer vertical.Close()

	stop = d.Profiler.StartOperation(profiler.StageFuse)
	skeleton, err := Fuse(horizontal, vertical)
	stop()
	if err != nil {
		return nil, errors.Wrap(err, "fuse")
	}
	defer skeleton.Close()

	stop = d.Profiler.StartOperation(profiler.StageCells)
	boxes, err := FindCells(skeleton, cfg.Cells)
	stop()
	if err != nil {
		return nil, err
	}
	boxes = rescale(boxes, work.Cols(), work.Rows(), img.Cols(), img.Rows())

	stop = d.Profiler.StartOperation(profiler.StageOrder)
	rows := Rows(boxes, cfg.Order)
	stop()

	ordered := make([]common.BoundingBox, 0, len(boxes))
	columns := 0
	for _, row := range rows {
		ordered = append(ordered, row...)
		columns = max(columns, len(row))
	}
	if cfg.RejectDegenerate && (len(rows) < 2 || columns < 2) {
		return nil, &common.DegenerateGridError{Rows: len(rows), Columns: columns, Boxes: len(ordered)}
	}

	stop = d.Profiler.StartOperation(profiler.StageCrop)
	annotated, cells, err := Crop(img, ordered, cfg.Annotate)
	stop()
	if err != nil {
		return nil, errors.Wrap(err, "crop")
	}

	return &Result{
		Annotated: annotated,
		Cells:     cells,
		Rows:      len(rows),
		Columns:   columns,
		Width:     img.Cols(),
		Height:    img.Rows(),
	}, nil
}

// rescale maps boxes detected on a fromW x fromH image onto a toW x toH image,
// clamping them to its bounds.
func rescale(boxes []common.BoundingBox, fromW, fromH, toW, toH int) []common.BoundingBox {
	if fromW == toW && fromH == toH {
		return boxes
	}

	sx := float64(toW) / float64(fromW)
	sy := float64(toH) / float64(fromH)
	out := make([]common.BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		x0 := min(max(int(float64(b.X)*sx), 0), toW-1)
		y0 := min(max(int(float64(b.Y)*sy), 0), toH-1)
		x1 := min(max(int(float64(b.X+b.Width)*sx), x0+1), toW)
		y1 := min(max(int(float64(b.Y+b.Height)*sy), y0+1), toH)
		out = append(out, common.BoundingBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0})
	}
	return out
}
