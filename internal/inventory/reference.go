package inventory

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Item kinds understood by the reference grammar.
const (
	KindHardware = "hardware"
	KindCable    = "cable"
	KindLocation = "location"
)

// Reference points at an inventory item by kind and numeric identifier.
type Reference struct {
	Kind string
	ID   int64
}

func (r Reference) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

var labelPrefixes = []struct {
	prefix string
	kind   string
	digits int
}{
	{"LOC", KindLocation, 5},
	{"HW", KindHardware, 6},
	{"CB", KindCable, 6},
}

var kindCaser = cases.Lower(language.Und)

// NormalizePayload trims whitespace and applies Unicode NFC so visually equal
// payloads compare equal.
func NormalizePayload(payload string) string {
	return norm.NFC.String(strings.TrimSpace(payload))
}

// NormalizeKind lower-cases a kind and maps known aliases.
func NormalizeKind(kind string) string {
	k := kindCaser.String(strings.TrimSpace(kind))
	switch k {
	case "hw":
		return KindHardware
	case "cb", "kabel":
		return KindCable
	case "loc", "standort":
		return KindLocation
	}
	return k
}

// ValidKind reports whether kind is one of the known item kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindHardware, KindCable, KindLocation:
		return true
	}
	return false
}

// LabelCode returns the printed label barcode for an item ("HW000123").
func LabelCode(kind string, id int64) (string, error) {
	for _, p := range labelPrefixes {
		if p.kind == kind {
			return fmt.Sprintf("%s%0*d", p.prefix, p.digits, id), nil
		}
	}
	return "", fmt.Errorf("no label format for kind %q", kind)
}

// ParseReference recognises the payload shapes printed on inventory labels:
//
//	{"type":"hardware","id":123}
//	https://inventory.local/hardware/123
//	HARDWARE-123: Server rack 4
//	HW000123, CB000123, LOC00012
func ParseReference(payload string) (Reference, bool) {
	payload = NormalizePayload(payload)
	if payload == "" {
		return Reference{}, false
	}
	for _, parse := range []func(string) (Reference, bool){
		parseJSONReference,
		parseURLReference,
		parseLabeledReference,
		parseLabelBarcode,
	} {
		if ref, ok := parse(payload); ok {
			return ref, true
		}
	}
	return Reference{}, false
}

func parseJSONReference(payload string) (Reference, bool) {
	if !strings.HasPrefix(payload, "{") {
		return Reference{}, false
	}
	var doc struct {
		Type string          `json:"type"`
		ID   json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return Reference{}, false
	}
	kind := NormalizeKind(doc.Type)
	if !ValidKind(kind) || len(doc.ID) == 0 {
		return Reference{}, false
	}
	raw := strings.Trim(string(doc.ID), `"`)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Reference{}, false
	}
	return Reference{Kind: kind, ID: id}, true
}

func parseURLReference(payload string) (Reference, bool) {
	if !strings.HasPrefix(strings.ToLower(payload), "http") {
		return Reference{}, false
	}
	u, err := url.Parse(payload)
	if err != nil {
		return Reference{}, false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return Reference{}, false
	}
	kind := NormalizeKind(parts[len(parts)-2])
	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || !ValidKind(kind) {
		return Reference{}, false
	}
	return Reference{Kind: kind, ID: id}, true
}

func parseLabeledReference(payload string) (Reference, bool) {
	head, _, ok := strings.Cut(payload, ":")
	if !ok {
		return Reference{}, false
	}
	kindPart, idPart, ok := strings.Cut(strings.TrimSpace(head), "-")
	if !ok {
		return Reference{}, false
	}
	kind := NormalizeKind(kindPart)
	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil || !ValidKind(kind) {
		return Reference{}, false
	}
	return Reference{Kind: kind, ID: id}, true
}

func parseLabelBarcode(payload string) (Reference, bool) {
	upper := strings.ToUpper(payload)
	for _, p := range labelPrefixes {
		if !strings.HasPrefix(upper, p.prefix) {
			continue
		}
		digits := upper[len(p.prefix):]
		if len(digits) != p.digits {
			return Reference{}, false
		}
		id, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || id < 0 {
			return Reference{}, false
		}
		return Reference{Kind: p.kind, ID: id}, true
	}
	return Reference{}, false
}
