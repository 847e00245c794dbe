// Package export renders bulk query results into XLSX workbooks and
// persists them.
//
// The workbook has a single sheet with a bold, centered header row and one
// row per result. Rows are filled by display tier. Rendering happens fully in
// memory so a failure never leaves a partial file behind; DirSink writes the
// finished payload atomically.
package export
