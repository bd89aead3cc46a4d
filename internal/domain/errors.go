// Package domain defines the core types, ports, and errors of the ICU
// time-series access layer.
package domain

import (
	"fmt"
	"strings"
)

// MalformedCatalogError reports all validation problems found while loading a
// catalog document. Load is all-or-nothing: when this error is returned no
// catalog has been produced.
type MalformedCatalogError struct {
	Problems []string
}

func (e *MalformedCatalogError) Error() string {
	if len(e.Problems) == 1 {
		return "malformed catalog: " + e.Problems[0]
	}
	return fmt.Sprintf("malformed catalog (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// UnknownConceptError indicates a requested concept identifier is absent from
// the catalog. This is a configuration error, distinct from a concept that
// merely has no location in a given database.
type UnknownConceptError struct {
	Identifier string
}

func (e *UnknownConceptError) Error() string {
	return fmt.Sprintf("unknown concept %q", e.Identifier)
}

// UnknownCodeError indicates a reverse lookup missed: a physical code returned
// by a database is not bound to any concept. Usually means the catalog and the
// database have drifted apart.
type UnknownCodeError struct {
	Database string
	Schema   string
	Table    string
	Code     string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("no concept bound to code %q in %s.%s (database %q)", e.Code, e.Schema, e.Table, e.Database)
}

// AdapterNotFoundError indicates no adapter is registered for the requested
// database.
type AdapterNotFoundError struct {
	Database string
}

func (e *AdapterNotFoundError) Error() string {
	return fmt.Sprintf("no adapter registered for database %q", e.Database)
}

// AdapterQueryError wraps an adapter/transport failure and names the table
// whose dispatch failed.
type AdapterQueryError struct {
	Database string
	Schema   string
	Table    string
	Err      error
}

func (e *AdapterQueryError) Error() string {
	return fmt.Sprintf("query against %s.%s (database %q) failed: %v", e.Schema, e.Table, e.Database, e.Err)
}

func (e *AdapterQueryError) Unwrap() error { return e.Err }

// ErrMalformedCatalog creates a MalformedCatalogError from collected problems.
func ErrMalformedCatalog(problems []string) *MalformedCatalogError {
	return &MalformedCatalogError{Problems: problems}
}

// ErrUnknownConcept creates an UnknownConceptError for the given identifier.
func ErrUnknownConcept(identifier string) *UnknownConceptError {
	return &UnknownConceptError{Identifier: identifier}
}

// ErrUnknownCode creates an UnknownCodeError for the given physical location.
func ErrUnknownCode(database, schema, table, code string) *UnknownCodeError {
	return &UnknownCodeError{Database: database, Schema: schema, Table: table, Code: code}
}

// ErrAdapterNotFound creates an AdapterNotFoundError for the given database.
func ErrAdapterNotFound(database string) *AdapterNotFoundError {
	return &AdapterNotFoundError{Database: database}
}

// ErrAdapterQuery wraps err with the physical location whose dispatch failed.
func ErrAdapterQuery(database, schema, table string, err error) *AdapterQueryError {
	return &AdapterQueryError{Database: database, Schema: schema, Table: table, Err: err}
}
