// Package google implements the calendar provider on top of the Google
// Calendar v3 API.
//
// Authentication uses the OAuth2 installed-app flow. Tokens are cached per
// account as JSON files in the user cache directory and refreshed
// transparently; a refreshed token is written back to the cache.
//
// Batch operations use Google's HTTP batch protocol: every queued request
// becomes one application/http part of a multipart/mixed request, and the
// answer parts are matched back to their requests through Content-ID.
package google
