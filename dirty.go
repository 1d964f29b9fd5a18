package termcore

// DirtyRegion is a rectangle of cells changed since the last frame.
// Bounds are inclusive on both ends. The invariant maintained by Clamp is
// that a region is always a subset of the grid bounds.
type DirtyRegion struct {
	Row0, Col0 int
	Row1, Col1 int
}

// FullGrid returns the region covering an entire rows×cols grid.
func FullGrid(rows, cols int) DirtyRegion {
	return DirtyRegion{Row0: 0, Col0: 0, Row1: rows - 1, Col1: cols - 1}
}

// CellRegion returns the single-cell region at (row, col).
func CellRegion(row, col int) DirtyRegion {
	return DirtyRegion{Row0: row, Col0: col, Row1: row, Col1: col}
}

// IsEmpty reports whether the region contains no cells.
func (d DirtyRegion) IsEmpty() bool {
	return d.Row1 < d.Row0 || d.Col1 < d.Col0
}

// Area returns the number of cells covered by the region.
func (d DirtyRegion) Area() int {
	if d.IsEmpty() {
		return 0
	}
	return (d.Row1 - d.Row0 + 1) * (d.Col1 - d.Col0 + 1)
}

// Contains reports whether (row, col) lies inside the region.
func (d DirtyRegion) Contains(row, col int) bool {
	return row >= d.Row0 && row <= d.Row1 && col >= d.Col0 && col <= d.Col1
}

// Clamp restricts the region to a rows×cols grid. The result may be empty.
func (d DirtyRegion) Clamp(rows, cols int) DirtyRegion {
	if d.Row0 < 0 {
		d.Row0 = 0
	}
	if d.Col0 < 0 {
		d.Col0 = 0
	}
	if d.Row1 > rows-1 {
		d.Row1 = rows - 1
	}
	if d.Col1 > cols-1 {
		d.Col1 = cols - 1
	}
	return d
}

// Union returns the smallest region covering both d and o.
func (d DirtyRegion) Union(o DirtyRegion) DirtyRegion {
	if d.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return d
	}
	if o.Row0 < d.Row0 {
		d.Row0 = o.Row0
	}
	if o.Col0 < d.Col0 {
		d.Col0 = o.Col0
	}
	if o.Row1 > d.Row1 {
		d.Row1 = o.Row1
	}
	if o.Col1 > d.Col1 {
		d.Col1 = o.Col1
	}
	return d
}

// TotalArea sums the areas of a region set. Overlapping regions are counted
// once per region; callers comparing against a grid-fraction threshold treat
// the sum as an upper bound on the cells to rebuild.
func TotalArea(regions []DirtyRegion) int {
	total := 0
	for _, r := range regions {
		total += r.Area()
	}
	return total
}

// ClampAll clamps every region to the grid and drops the ones that become
// empty. The input slice is not modified.
func ClampAll(regions []DirtyRegion, rows, cols int) []DirtyRegion {
	out := make([]DirtyRegion, 0, len(regions))
	for _, r := range regions {
		c := r.Clamp(rows, cols)
		if !c.IsEmpty() {
			out = append(out, c)
		}
	}
	return out
}
