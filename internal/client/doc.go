// Package client is the REST transport to the dashboard backend.
//
// Every request goes through Client.Send, which returns a Response carrying
// either the decoded body or an error. Callers treat any error as a failed
// call; a 401 additionally publishes a forced-logout signal on the session
// bus. The typed helpers on Client (valuation and evaluation lookups,
// session TTL, login, version) build on Send and normalize their responses.
package client
