// Package tools implements the tool dispatcher: a registry of named tools
// with JSON Schema argument descriptions, and the four built-ins
// (web_search, read_file, write_file, run_code).
//
// Dispatch never fails structurally. Unknown names, invalid arguments,
// executor errors and panics all come back as text the model can read.
package tools
