package grid

import (
	"sort"

	"github.com/nvr-ai/go-register/common"
)

// Order arranges boxes in reading order: rows top to bottom, and left to right
// within each row. It is Rows flattened.
//
// Arguments:
//   - boxes: Boxes in discovery order. The slice is not modified.
//   - cfg: Row clustering parameters.
//
// Returns:
//   - []common.BoundingBox: A new slice holding the same boxes in reading order.
//
// @example
// ordered := grid.Order(boxes, grid.OrderConfig{RowGapRatio: 0.5})
func Order(boxes []common.BoundingBox, cfg OrderConfig) []common.BoundingBox {
	ordered := make([]common.BoundingBox, 0, len(boxes))
	for _, row := range Rows(boxes, cfg) {
		ordered = append(ordered, row...)
	}
	return ordered
}

// Rows clusters boxes into rows.
//
// Boxes are sorted by top y (stable, so ties keep discovery order). Walking
// that sequence, a new row starts whenever the y gap to the previous box
// exceeds RowGapRatio times the median box height (at least 1px). Rows come
// out ordered by their minimum y; within a row boxes are ordered by x, and
// boxes with equal x keep their discovery order.
//
// The result depends only on the input sequence, so repeated calls with the
// same boxes always yield the same rows.
func Rows(boxes []common.BoundingBox, cfg OrderConfig) [][]common.BoundingBox {
	if len(boxes) == 0 {
		return nil
	}

	byY := make([]int, len(boxes))
	for i := range byY {
		byY[i] = i
	}
	sort.SliceStable(byY, func(a, b int) bool {
		return boxes[byY[a]].Y < boxes[byY[b]].Y
	})

	threshold := cfg.RowGapRatio * medianHeight(boxes)
	if threshold < 1 {
		threshold = 1
	}

	var clusters [][]int
	prevY := 0
	for n, i := range byY {
		y := boxes[i].Y
		if n == 0 || float64(y-prevY) > threshold {
			clusters = append(clusters, nil)
		}
		clusters[len(clusters)-1] = append(clusters[len(clusters)-1], i)
		prevY = y
	}

	rows := make([][]common.BoundingBox, 0, len(clusters))
	for _, cluster := range clusters {
		sort.Slice(cluster, func(a, b int) bool {
			ba, bb := boxes[cluster[a]], boxes[cluster[b]]
			if ba.X != bb.X {
				return ba.X < bb.X
			}
			return cluster[a] < cluster[b]
		})

		row := make([]common.BoundingBox, len(cluster))
		for k, i := range cluster {
			row[k] = boxes[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// medianHeight returns the median box height (mean of the two middle values
// for an even count).
func medianHeight(boxes []common.BoundingBox) float64 {
	heights := make([]int, len(boxes))
	for i, b := range boxes {
		heights[i] = b.Height
	}
	sort.Ints(heights)

	mid := len(heights) / 2
	if len(heights)%2 == 1 {
		return float64(heights[mid])
	}
	return float64(heights[mid-1]+heights[mid]) / 2
}
