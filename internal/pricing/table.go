// Package pricing estimates the monthly cost of a resource from a static,
// versioned price table. It never calls a pricing service: estimates are a
// function of resource attributes and the local table only.
package pricing

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// SampleVersion labels the embedded table.
const SampleVersion = "sample"

// HoursPerMonth converts hourly prices into monthly ones.
const HoursPerMonth = 730

//go:embed tables/sample.yaml
var sampleTable []byte

// Unit is the billing unit of a price entry.
type Unit string

const (
	UnitGBMonth Unit = "gb-month"
	UnitMonth   Unit = "month"
	UnitHour    Unit = "hour"
)

// Entry is one row of a price table. Provider and Kind are required; Region
// and Match narrow the entry and make it more specific.
type Entry struct {
	Provider models.Provider   `yaml:"provider"`
	Kind     models.Kind       `yaml:"kind"`
	Region   string            `yaml:"region,omitempty"`
	Unit     Unit              `yaml:"unit"`
	Price    decimal.Decimal   `yaml:"price"`
	Match    map[string]string `yaml:"match,omitempty"`
}

func (e Entry) specificity() int {
	n := len(e.Match)
	if e.Region != "" {
		n++
	}
	return n
}

// Table is a parsed price table.
type Table struct {
	Version  string  `yaml:"version"`
	Currency string  `yaml:"currency"`
	Prices   []Entry `yaml:"prices"`
}

// Sample returns the embedded sample table.
func Sample() *Table {
	t, err := Parse(bytes.NewReader(sampleTable))
	if err != nil {
		panic(fmt.Sprintf("embedded price table: %v", err))
	}
	return t
}

// Parse decodes and validates a price table. Unknown fields are rejected.
func Parse(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Table
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("price table is empty")
		}
		return nil, fmt.Errorf("parse price table: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) validate() error {
	if t.Version == "" {
		return fmt.Errorf("price table: version is required")
	}
	if t.Currency == "" {
		t.Currency = "USD"
	}
	for i, e := range t.Prices {
		if _, err := models.ParseProvider(string(e.Provider)); err != nil {
			return fmt.Errorf("price table prices[%d]: %w", i, err)
		}
		if _, err := models.ParseKind(string(e.Kind)); err != nil {
			return fmt.Errorf("price table prices[%d]: %w", i, err)
		}
		switch e.Unit {
		case UnitGBMonth, UnitMonth, UnitHour:
		default:
			return fmt.Errorf("price table prices[%d]: invalid unit %q; valid values: gb-month, month, hour", i, e.Unit)
		}
		if e.Price.IsNegative() {
			return fmt.Errorf("price table prices[%d]: price must not be negative", i)
		}
	}
	return nil
}

// Load returns the table at path, or the embedded sample table when path is
// empty. A non-empty wantVersion must equal the loaded table's version.
// Every failure is a ConfigError.
func Load(path, wantVersion string) (*Table, error) {
	var (
		t   *Table
		err error
	)
	if path == "" {
		t = Sample()
	} else {
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, &auditerr.ConfigError{Field: "price_table", Err: openErr}
		}
		defer f.Close()
		if t, err = Parse(f); err != nil {
			return nil, &auditerr.ConfigError{Field: "price_table", Err: err}
		}
	}
	if wantVersion != "" && wantVersion != t.Version {
		return nil, auditerr.NewConfigError("cost_price_table_version",
			"price table version %q requested but %q loaded", wantVersion, t.Version)
	}
	return t, nil
}
