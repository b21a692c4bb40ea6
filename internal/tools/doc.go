// Package tools defines the callables the model may invoke.
//
// A ToolDefinition carries the wire name, a description, an input schema
// reflected from a Go struct and the handler. Sets are built per request by
// Provider and are read-only while a completion runs.
package tools
