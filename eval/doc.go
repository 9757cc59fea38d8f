// Package eval runs the agent against a fixed set of tasks and grades each
// run on tool use, answer keywords and step efficiency.
package eval
