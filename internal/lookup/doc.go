// Package lookup adapts an inventory repository to scan events. It bounds
// each lookup with a timeout, distinguishes unknown codes from repository
// failures, and records outcomes in the scan history when supported.
package lookup
