// Package testsupport holds shared test helpers: temp-dir backed configs,
// a scriptable fake tool runner, and byte-stream fixtures.
package testsupport
