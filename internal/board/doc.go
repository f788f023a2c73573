// Package board maps logical input and output pins of the expansion board to
// polarity-aware "active" states.
//
// Raw electrical levels come from a Driver. Inputs are active-low normally-open
// by default and may be configured as normally-closed; outputs are always
// active-low (pulled to ground when active, left floating otherwise). One extra
// input, VirtualInput, has no hardware backing and is set from software.
package board
