// Package layout converts terminal grid cells into positioned glyph draw
// instances. It groups cells into style runs, splits them by bidi direction,
// shapes each run through HarfBuzz so ligatures and combining marks resolve
// correctly, and pins the shaped output back onto the cell grid.
package layout
