package contracts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ColumnType declares how a schema column is validated and transformed.
type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnCategorical ColumnType = "categorical"
	ColumnBinary      ColumnType = "binary"
)

// ColumnSpec declares validation rules for one column.
type ColumnSpec struct {
	Name     string     `yaml:"name"`
	Type     ColumnType `yaml:"type"`
	Required bool       `yaml:"required"`

	// Numeric bounds, inclusive. Ignored for categorical columns.
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`

	// Allowed values for categorical columns.
	Domain []string `yaml:"domain,omitempty"`
}

// Schema is the declared column set the validation stage checks against.
type Schema struct {
	Target  string       `yaml:"target"`
	Columns []ColumnSpec `yaml:"columns"`
}

// Column looks up a column spec by name.
func (s Schema) Column(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// FeatureColumns returns all non-target columns in declaration order.
func (s Schema) FeatureColumns() []ColumnSpec {
	out := make([]ColumnSpec, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name != s.Target {
			out = append(out, c)
		}
	}
	return out
}

// NumericColumns returns numeric and binary feature columns.
func (s Schema) NumericColumns() []ColumnSpec {
	out := make([]ColumnSpec, 0, len(s.Columns))
	for _, c := range s.FeatureColumns() {
		if c.Type == ColumnNumeric || c.Type == ColumnBinary {
			out = append(out, c)
		}
	}
	return out
}

// CategoricalColumns returns categorical feature columns.
func (s Schema) CategoricalColumns() []ColumnSpec {
	out := make([]ColumnSpec, 0, len(s.Columns))
	for _, c := range s.FeatureColumns() {
		if c.Type == ColumnCategorical {
			out = append(out, c)
		}
	}
	return out
}

// DefaultSchema returns the compiled-in schema for the vehicle-insurance
// dataset. A YAML file given via SCHEMA_PATH overrides it.
func DefaultSchema() Schema {
	return Schema{
		Target: ColResponse,
		Columns: []ColumnSpec{
			{Name: ColGender, Type: ColumnCategorical, Required: true, Domain: []string{"Male", "Female"}},
			{Name: ColAge, Type: ColumnNumeric, Required: true, Min: 18, Max: 100},
			{Name: ColDrivingLicense, Type: ColumnBinary, Required: true, Min: 0, Max: 1},
			{Name: ColRegionCode, Type: ColumnNumeric, Required: true, Min: 0, Max: 52},
			{Name: ColPreviouslyInsured, Type: ColumnBinary, Required: true, Min: 0, Max: 1},
			{Name: ColVehicleAge, Type: ColumnCategorical, Required: true, Domain: []string{"< 1 Year", "1-2 Year", "> 2 Years"}},
			{Name: ColVehicleDamage, Type: ColumnCategorical, Required: true, Domain: []string{"Yes", "No"}},
			{Name: ColAnnualPremium, Type: ColumnNumeric, Required: true, Min: 0, Max: 600000},
			{Name: ColPolicySalesChannel, Type: ColumnNumeric, Required: true, Min: 0, Max: 200},
			{Name: ColVintage, Type: ColumnNumeric, Required: true, Min: 0, Max: 300},
			{Name: ColResponse, Type: ColumnBinary, Required: true, Min: 0, Max: 1},
		},
	}
}

// LoadSchema reads a schema definition from a YAML file.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read schema file: %w", err)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("parse schema file: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Schema{}, fmt.Errorf("invalid schema %s: %w", path, err)
	}

	return s, nil
}

// Validate checks structural sanity of a schema definition.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema declares no columns")
	}
	if s.Target == "" {
		return fmt.Errorf("schema declares no target column")
	}
	if _, ok := s.Column(s.Target); !ok {
		return fmt.Errorf("target column %q not declared", s.Target)
	}

	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("column with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true

		switch c.Type {
		case ColumnNumeric, ColumnBinary:
			if c.Min > c.Max {
				return fmt.Errorf("column %q: min %v exceeds max %v", c.Name, c.Min, c.Max)
			}
		case ColumnCategorical:
			if len(c.Domain) == 0 {
				return fmt.Errorf("categorical column %q declares no domain", c.Name)
			}
		default:
			return fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
		}
	}

	return nil
}
