// Package batch formats the outcome of calendar batch operations for MCP
// tool results.
//
// This package includes helpers for:
//   - Parsing parameters that accept both single values and arrays
//   - Converting a calendar.BatchResponse into per-item results
//   - Formatting results with success and failure counts
package batch
