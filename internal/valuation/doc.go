// Package valuation normalizes the valuation and evaluation responses of the
// dashboard backend into canonical Go types.
//
// The bulk endpoints are loosely typed: a single object or an array, with or
// without a data envelope, with field names that differ between backend
// versions and locales. Everything shape-related lives here so that the
// bulk engine only ever sees Quote values and grade maps.
package valuation
