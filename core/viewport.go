package core

import (
	"context"
	"sync"

	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

const (
	// DefaultCols is used when the container reports no size.
	DefaultCols = 80
	// DefaultRows is used when the container reports no size.
	DefaultRows = 24

	minCols = 2
	minRows = 1
)

// Fit computes the emulator grid for a container. Pixel dimensions win when
// both they and the cell size are known.
func Fit(dims schema.Dimensions, cell schema.CellSize) schema.Geometry {
	var cols, rows int
	if dims.PixelWidth > 0 && dims.PixelHeight > 0 && cell.Width > 0 && cell.Height > 0 {
		cols = dims.PixelWidth / cell.Width
		rows = dims.PixelHeight / cell.Height
	} else {
		cols, rows = dims.Cols, dims.Rows
		if cols <= 0 {
			cols = DefaultCols
		}
		if rows <= 0 {
			rows = DefaultRows
		}
	}
	if cols < minCols {
		cols = minCols
	}
	if rows < minRows {
		rows = minRows
	}
	return schema.Geometry{Rows: rows, Cols: cols}
}

// Viewport keeps an emulator's grid fitted to its container.
type Viewport struct {
	container Container
	cell      schema.CellSize
	target    Resizer
	log       pslog.Logger

	mu      sync.Mutex
	current schema.Geometry
	applied bool
}

// NewViewport constructs a viewport. A nil container fits to the defaults.
func NewViewport(container Container, cell schema.CellSize, target Resizer, logger pslog.Logger) *Viewport {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Viewport{container: container, cell: cell, target: target, log: logger}
}

// Fit measures the container and applies the grid when it changed. On a
// measurement error the current grid is kept, or the defaults applied if
// none was applied yet.
func (v *Viewport) Fit() (schema.Geometry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var dims schema.Dimensions
	var measureErr error
	if v.container != nil {
		dims, measureErr = v.container.Dimensions()
	}
	if measureErr != nil {
		v.log.Debug("viewport measure failed", "err", measureErr)
		if v.applied {
			return v.current, measureErr
		}
		dims = schema.Dimensions{}
	}
	next := Fit(dims, v.cell)
	if v.applied && next == v.current {
		return v.current, measureErr
	}
	if v.target != nil {
		if err := v.target.Resize(next); err != nil {
			v.log.Warn("viewport resize failed", "rows", next.Rows, "cols", next.Cols, "err", err)
			return v.current, err
		}
	}
	v.log.Trace("viewport fitted", "rows", next.Rows, "cols", next.Cols)
	v.current = next
	v.applied = true
	return next, measureErr
}

// Geometry returns the last applied grid.
func (v *Viewport) Geometry() schema.Geometry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}
