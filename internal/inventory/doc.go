// Package inventory resolves scanned payloads to inventory items.
//
// The SQLite Store is the default backend: it keeps items, the codes printed on
// their labels, and a scan history. HTTPRepository delegates lookups to a
// remote inventory service. Both satisfy Repository. Payloads that are not
// registered codes are parsed with ParseReference, which understands the label
// shapes produced by the inventory system (JSON, item URLs, "KIND-id: label"
// and short label barcodes such as HW000123).
package inventory
