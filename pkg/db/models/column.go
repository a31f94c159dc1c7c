package models

import (
	"fmt"
	"strings"
)

// ColumnDef defines a single column of an analytical replica table.
// It is the single source of truth for the CREATE TABLE schema and for the
// column order used by replication batches.
type ColumnDef struct {
	// Name is the column name, shared with the transactional table.
	Name string

	// Type is the ClickHouse data type (e.g., "Int64", "String", "DateTime('UTC')").
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)", "Delta, ZSTD(3)").
	Codec string
}

// SQL returns the column definition for CREATE TABLE statements.
// Example: "title String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Name, c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// Validate checks the column definition is complete.
func (c ColumnDef) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	if c.Type == "" {
		return fmt.Errorf("column %s: type cannot be empty", c.Name)
	}
	return nil
}

// ColumnsToSchemaSQL joins column definitions into a CREATE TABLE body.
func ColumnsToSchemaSQL(columns []ColumnDef) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// ColumnsToNameList extracts the column names, in order, for INSERT statements.
func ColumnsToNameList(columns []ColumnDef) []string {
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		names = append(names, col.Name)
	}
	return names
}

// ValidateColumns returns the first invalid column definition.
func ValidateColumns(columns []ColumnDef) error {
	for _, col := range columns {
		if err := col.Validate(); err != nil {
			return err
		}
	}
	return nil
}
