// Package barcode holds the data model shared by the scanning pipeline:
// symbology formats, decoded code regions, stabilized scan events and the
// error taxonomy (invalid input, per-family decode errors, missing decoder
// capabilities, and lookup unavailability).
package barcode
