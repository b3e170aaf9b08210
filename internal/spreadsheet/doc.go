// Package spreadsheet implements the workbook operations exposed by the MCP tools.
//
// Every operation opens the target file, validates its inputs, performs a single
// action, saves if anything changed and closes the file again. Nothing is kept in
// memory between calls. Expected failures (missing file, unknown sheet, invalid
// reference) are reported in the returned result with Success set to false rather
// than as Go errors; only the read-only metadata queries return an error.
package spreadsheet
