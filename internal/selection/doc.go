// Package selection resolves the source, work directory, and output target
// for a conversion, prompting on the terminal when flags leave a choice open.
//
// Prompts never block when stdin is not a terminal: the default answer is
// used instead, and an assume-yes option answers every confirmation with yes.
package selection
