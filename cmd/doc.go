// Package cmd implements the command-line interface for gcalkit.
//
// This package provides the following commands:
//   - auth: Sign in, sign out and show the sign-in state
//   - events: Get, list, create, update, delete and bulk-modify events
//   - serve: Start the MCP server to provide calendar tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// Configuration comes from GCAL_* environment variables, optionally loaded
// from a .env file, and persistent flags that override them.
package cmd
