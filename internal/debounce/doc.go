// Package debounce filters bouncing contacts: a changed reading becomes the
// stable value of an input only after it stayed consistent for a configured
// interval.
package debounce
