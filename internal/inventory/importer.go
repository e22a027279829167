package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ImportFile is the YAML document accepted by Import.
//
//	items:
//	  - kind: hardware
//	    name: Rack switch
//	    serial: SN-4411
//	    location: Room 2
//	    codes: [HW000001]
type ImportFile struct {
	Items []NewItem `yaml:"items"`
}

// ImportFailure records an entry that could not be inserted.
type ImportFailure struct {
	Index int
	Name  string
	Err   error
}

// ImportResult summarises an import run.
type ImportResult struct {
	Added    []*Item
	Failures []ImportFailure
}

// Import reads a YAML inventory document and inserts each item. Invalid
// entries are reported in the result and do not stop the run.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var doc ImportFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return ImportResult{}, nil
		}
		return ImportResult{}, fmt.Errorf("parse inventory yaml: %w", err)
	}

	var result ImportResult
	for i, entry := range doc.Items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item, err := s.AddItem(ctx, entry)
		if err != nil {
			result.Failures = append(result.Failures, ImportFailure{Index: i, Name: entry.Name, Err: err})
			continue
		}
		result.Added = append(result.Added, item)
	}
	return result, nil
}

// ImportPath imports the YAML document at path.
func (s *Store) ImportPath(ctx context.Context, path string) (ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()
	return s.Import(ctx, file)
}

// Export writes every item as a YAML document accepted by Import.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	items, err := s.ListItems(ctx, ListFilter{})
	if err != nil {
		return err
	}
	doc := ImportFile{Items: make([]NewItem, 0, len(items))}
	for _, item := range items {
		doc.Items = append(doc.Items, NewItem{
			Kind:     item.Kind,
			Name:     item.Name,
			Serial:   item.Serial,
			Location: item.Location,
			Status:   item.Status,
			Notes:    item.Notes,
			Codes:    item.Codes,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode inventory yaml: %w", err)
	}
	return enc.Close()
}
