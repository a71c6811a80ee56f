// Package textutil sanitizes user-visible names: file names and Blu-ray
// disc labels.
package textutil
