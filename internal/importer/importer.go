// Package importer loads menu products from a CSV export into the catalog.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"brewpos/internal/domain"
	"brewpos/internal/money"
	"go.uber.org/zap"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads menu rows (name,type,price,availability,image) and upserts products by name.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	logger      *zap.Logger
}

func NewCSVImporter(r io.Reader, repo ProductWriter, logger *zap.Logger) *CSVImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		logger:      logger.Named("importer"),
	}
}

// RowError reports a rejected CSV line. Line is 1-based and counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// Run parses every row and upserts the products. The first bad row stops the import.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range []string{"name", "type", "price"} {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing column %q", col)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			return imported, &RowError{Line: line, Err: err}
		}
		if _, err := i.productRepo.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", p.Name, err)
		}
		imported++
	}

	i.logger.Info("menu imported", zap.Int("products", imported))
	return imported, nil
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	name := pick(record, index, "name")
	kind := pick(record, index, "type")
	if name == "" || kind == "" {
		return domain.Product{}, fmt.Errorf("%w: name and type are required", domain.ErrInvalidInput)
	}
	cents, err := money.Parse(pick(record, index, "price"))
	if err != nil {
		return domain.Product{}, fmt.Errorf("price of %q: %w", name, err)
	}
	availability, err := parseAvailability(pick(record, index, "availability"))
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		Name:         name,
		Type:         kind,
		PriceCents:   cents,
		Availability: availability,
		ImagePath:    pick(record, index, "image"),
	}, nil
}

func parseAvailability(raw string) (string, error) {
	switch strings.ToLower(strings.Join(strings.Fields(raw), " ")) {
	case "", "available":
		return domain.AvailabilityAvailable, nil
	case "limited":
		return domain.AvailabilityLimited, nil
	case "out of stock", "outofstock", "sold out":
		return domain.AvailabilityOutOfStock, nil
	default:
		return "", fmt.Errorf("%w: availability %q", domain.ErrInvalidInput, raw)
	}
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
