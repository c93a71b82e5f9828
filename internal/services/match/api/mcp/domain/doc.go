// Package domain defines the MCP tool surface for the match engine: typed
// tool inputs and results, tool descriptors, and handlers that bind each tool
// to an engine operation. Caller identity comes from the transport, never
// from tool input, so an agent cannot act as another player by editing
// arguments.
package domain
