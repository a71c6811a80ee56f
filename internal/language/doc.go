// Package language normalizes stream language tags into the ISO 639-2 codes
// tsMuxeR writes into the Blu-ray playlist, and renders display names for the
// track tables.
package language
