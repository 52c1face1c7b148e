// Package grid - Recovers the cell structure of a photographed ruled register.
//
// Pipeline Overview:
//
// ┌──────────────────────┐
// │ Input Image (BGR)    │
// └──────┬───────────────┘
// ┌──────────────────────────────────────────┐
// │ Binarize (adaptive threshold, inverted)  │
// └──────┬───────────────────────────────────┘
// ┌──────────────────────────────────────────┐
// │ Open with horizontal / vertical bars     │
// └──────┬───────────────────────────────────┘
// ┌──────────────────────────────────────────┐
// │ Fuse (OR, then invert: cells foreground) │
// └──────┬───────────────────────────────────┘
// ┌──────────────────────────────────────────┐
// │ Connected regions → filtered boxes       │
// └──────┬───────────────────────────────────┘
// ┌──────────────────────────────────────────┐
// │ Row clustering → reading order           │
// └──────┬───────────────────────────────────┘
// ┌──────────────────────────────────────────┐
// │ Crop cells from the original image       │
// └──────────────────────────────────────────┘
//
// Every stage returns a new gocv.Mat owned by the caller; none of them mutate
// their inputs. A Detector holds only configuration, so one instance can serve
// concurrent requests.
package grid

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// DefaultBlockSize is the neighborhood size of the adaptive threshold.
	DefaultBlockSize = 15
	// DefaultOffset is subtracted from the local mean; pixels at or below
	// mean-offset become foreground.
	DefaultOffset = 2
	// DefaultScaleDivisor sets kernel length = image dimension / divisor.
	DefaultScaleDivisor = 40
	// DefaultMinKernelLength is the floor applied to the structuring element length.
	DefaultMinKernelLength = 3
	// DefaultIterations is how many times the opening is applied.
	DefaultIterations = 2
	// DefaultMinCellWidth discards boxes this narrow or narrower.
	DefaultMinCellWidth = 20
	// DefaultMinCellHeight discards boxes this short or shorter.
	DefaultMinCellHeight = 10
	// DefaultMaxWidthRatio discards boxes at least this fraction of the image width.
	DefaultMaxWidthRatio = 0.9
	// DefaultRowGapRatio starts a new row when the y gap exceeds this fraction of the median box height.
	DefaultRowGapRatio = 0.5
)

// AdaptiveMethod selects how the local threshold is computed.
type AdaptiveMethod string

const (
	// AdaptiveMean uses the mean of the block neighborhood.
	AdaptiveMean AdaptiveMethod = "mean"
	// AdaptiveGaussian uses a Gaussian-weighted sum of the block neighborhood.
	AdaptiveGaussian AdaptiveMethod = "gaussian"
)

// BinarizeConfig tunes the adaptive threshold.
type BinarizeConfig struct {
	// BlockSize is the side of the square neighborhood. Even values are rounded up.
	BlockSize int `json:"block_size" yaml:"block_size"`
	// Offset biases the threshold below the local mean.
	Offset float32 `json:"offset" yaml:"offset"`
	// Method is "mean" or "gaussian".
	Method AdaptiveMethod `json:"method" yaml:"method"`
}

// LineConfig tunes the directional line extraction.
type LineConfig struct {
	// ScaleDivisor K in length = dimension / K.
	ScaleDivisor int `json:"scale_divisor" yaml:"scale_divisor"`
	// MinKernelLength is the smallest allowed bar length.
	MinKernelLength int `json:"min_kernel_length" yaml:"min_kernel_length"`
	// Iterations of the opening. More iterations suppress more noise but shrink lines.
	// Zero means DefaultIterations.
	Iterations int `json:"iterations" yaml:"iterations"`
}

// iterations returns Iterations, or DefaultIterations when unset.
func (c LineConfig) iterations() int {
	if c.Iterations <= 0 {
		return DefaultIterations
	}
	return c.Iterations
}

// CellConfig tunes the noise filtering of discovered regions.
type CellConfig struct {
	// MinWidth and MinHeight are absolute floors in pixels (exclusive).
	MinWidth  int `json:"min_width" yaml:"min_width"`
	MinHeight int `json:"min_height" yaml:"min_height"`
	// MinWidthRatio and MinHeightRatio express the floors as a fraction of the
	// image size. The larger of the absolute and relative floor applies.
	MinWidthRatio  float64 `json:"min_width_ratio" yaml:"min_width_ratio"`
	MinHeightRatio float64 `json:"min_height_ratio" yaml:"min_height_ratio"`
	// MaxWidthRatio discards the outer page/table boundary region.
	MaxWidthRatio float64 `json:"max_width_ratio" yaml:"max_width_ratio"`
}

// OrderConfig tunes the reading-order sorter.
type OrderConfig struct {
	// RowGapRatio is the fraction of the median box height that separates rows.
	RowGapRatio float64 `json:"row_gap_ratio" yaml:"row_gap_ratio"`
}

// Config holds every tunable of the grid detection pipeline.
type Config struct {
	// MaxDimension downscales larger inputs before detection (0 disables).
	// Boxes are mapped back to the original resolution before cropping.
	MaxDimension int `json:"max_dimension" yaml:"max_dimension"`
	// Annotate draws the detected boxes onto a copy of the input.
	Annotate bool `json:"annotate" yaml:"annotate"`
	// RejectDegenerate fails detection when all boxes form a single row or column.
	RejectDegenerate bool `json:"reject_degenerate" yaml:"reject_degenerate"`

	Binarize BinarizeConfig `json:"binarize" yaml:"binarize"`
	Lines    LineConfig     `json:"lines" yaml:"lines"`
	Cells    CellConfig     `json:"cells" yaml:"cells"`
	Order    OrderConfig    `json:"order" yaml:"order"`
}

// DefaultConfig returns the configuration used by the attendance service.
//
// Returns:
//   - Config: Defaults tuned for 1-3px ruling lines at phone-camera resolution.
//
// @example
// cfg := grid.DefaultConfig()
// cfg.Lines.ScaleDivisor = 30
// detector := grid.NewDetector(cfg)
func DefaultConfig() Config {
	return Config{
		Annotate: true,
		Binarize: BinarizeConfig{
			BlockSize: DefaultBlockSize,
			Offset:    DefaultOffset,
			Method:    AdaptiveMean,
		},
		Lines: LineConfig{
			ScaleDivisor:    DefaultScaleDivisor,
			MinKernelLength: DefaultMinKernelLength,
			Iterations:      DefaultIterations,
		},
		Cells: CellConfig{
			MinWidth:      DefaultMinCellWidth,
			MinHeight:     DefaultMinCellHeight,
			MaxWidthRatio: DefaultMaxWidthRatio,
		},
		Order: OrderConfig{
			RowGapRatio: DefaultRowGapRatio,
		},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.MaxDimension < 0:
		return errors.Errorf("max_dimension must be >= 0, got %d", c.MaxDimension)
	case c.Binarize.BlockSize < 0:
		return errors.Errorf("binarize.block_size must be >= 0, got %d", c.Binarize.BlockSize)
	case c.Binarize.Method != "" && c.Binarize.Method != AdaptiveMean && c.Binarize.Method != AdaptiveGaussian:
		return errors.Errorf("binarize.method must be %q or %q, got %q", AdaptiveMean, AdaptiveGaussian, c.Binarize.Method)
	case c.Lines.ScaleDivisor < 0:
		return errors.Errorf("lines.scale_divisor must be >= 0, got %d", c.Lines.ScaleDivisor)
	case c.Lines.Iterations < 0:
		return errors.Errorf("lines.iterations must be >= 0, got %d", c.Lines.Iterations)
	case c.Cells.MaxWidthRatio < 0 || c.Cells.MaxWidthRatio > 1:
		return errors.Errorf("cells.max_width_ratio must be within [0, 1], got %v", c.Cells.MaxWidthRatio)
	case c.Cells.MinWidthRatio < 0 || c.Cells.MinHeightRatio < 0:
		return errors.New("cells min ratios must be >= 0")
	case c.Order.RowGapRatio < 0:
		return errors.Errorf("order.row_gap_ratio must be >= 0, got %v", c.Order.RowGapRatio)
	}
	return nil
}

// blockSize returns an odd neighborhood size of at least 3.
func (c BinarizeConfig) blockSize() int {
	size := c.BlockSize
	if size == 0 {
		size = DefaultBlockSize
	}
	if size < 3 {
		size = 3
	}
	if size%2 == 0 {
		size++
	}
	return size
}

func (c BinarizeConfig) adaptiveType() gocv.AdaptiveThresholdType {
	if c.Method == AdaptiveGaussian {
		return gocv.AdaptiveThresholdGaussian
	}
	return gocv.AdaptiveThresholdMean
}
