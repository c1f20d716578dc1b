// Package tools defines the assistant's tool set.
//
// Each tool pairs a typed request, which validates itself before any I/O,
// with a handler that reads through the fallback patterns: privileged then
// restricted store access, preferred then legacy procedures, semantic then
// keyword search, and remote then bundled data. Every response carries the
// tier that answered.
//
// The registry is closed: Tool has an unexported method and tools are only
// built inside this package, so New returns exactly the tools listed in the
// Name constants.
package tools
