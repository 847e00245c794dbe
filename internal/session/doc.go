// Package session owns the client side of an authenticated dashboard
// session: a single TTL countdown, a keeper that periodically synchronizes
// the countdown with the server, and a typed signal bus used to announce
// forced logouts and expiry to interested components.
package session
