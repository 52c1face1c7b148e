package grid

import (
	"github.com/nvr-ai/go-register/common"
	"gocv.io/x/gocv"
)

// Column layout of the stats matrix produced by ConnectedComponentsWithStats.
const (
	statLeft = iota
	statTop
	statWidth
	statHeight
)

// cellConnectivity is the neighbourhood used when tracing cell interiors.
const cellConnectivity = 4

// FindCells traces the 4-connected foreground regions of a fused grid mask and
// returns the bounding boxes of the ones that look like cells, in discovery
// order (raster order of each region's first pixel).
//
// Label 0 is the line skeleton itself and is never reported. The region that
// surrounds the whole table is usually as wide as the image and is removed by
// the MaxWidthRatio rule.
//
// Arguments:
//   - gridMask: Output of Fuse.
//   - cfg: Filtering thresholds.
//
// Returns:
//   - []common.BoundingBox: Surviving boxes in image pixel coordinates.
//   - error: *common.NoGridFoundError when nothing survives.
func FindCells(gridMask gocv.Mat, cfg CellConfig) ([]common.BoundingBox, error) {
	if gridMask.Empty() || gridMask.Type() != gocv.MatTypeCV8UC1 {
		return nil, &common.InvalidImageError{Reason: "grid mask must be a non-empty single-channel 8-bit image"}
	}

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	// 4-connectivity: background pixels touching only diagonally across a
	// stepped 1px rule belong to different cells.
	n := gocv.ConnectedComponentsWithStatsWithParams(gridMask, &labels, &stats, &centroids,
		cellConnectivity, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)

	candidates := make([]common.BoundingBox, 0, max(n-1, 0))
	for label := 1; label < n; label++ {
		candidates = append(candidates, common.BoundingBox{
			X:      int(stats.GetIntAt(label, statLeft)),
			Y:      int(stats.GetIntAt(label, statTop)),
			Width:  int(stats.GetIntAt(label, statWidth)),
			Height: int(stats.GetIntAt(label, statHeight)),
		})
	}

	width, height := gridMask.Cols(), gridMask.Rows()
	boxes := Filter(candidates, width, height, cfg)
	if len(boxes) == 0 {
		return nil, &common.NoGridFoundError{Candidates: len(candidates), Width: width, Height: height}
	}
	return boxes, nil
}

// Filter drops noise and page-boundary regions, preserving input order.
//
// A box is discarded when its width is at most the width floor, its height is
// at most the height floor, or its width reaches MaxWidthRatio of the image.
// Each floor is the larger of the absolute and image-relative setting.
// Raising any floor can only remove boxes.
func Filter(boxes []common.BoundingBox, width, height int, cfg CellConfig) []common.BoundingBox {
	minWidth := max(float64(cfg.MinWidth), cfg.MinWidthRatio*float64(width))
	minHeight := max(float64(cfg.MinHeight), cfg.MinHeightRatio*float64(height))
	maxWidth := cfg.MaxWidthRatio * float64(width)

	kept := make([]common.BoundingBox, 0, len(boxes))
	for _, box := range boxes {
		switch {
		case float64(box.Width) <= minWidth:
		case float64(box.Height) <= minHeight:
		case cfg.MaxWidthRatio > 0 && float64(box.Width) >= maxWidth:
		default:
			kept = append(kept, box)
		}
	}
	return kept
}
