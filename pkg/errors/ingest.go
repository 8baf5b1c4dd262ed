package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for the ingestion failure taxonomy. Each typed error below
// matches exactly one of these through errors.Is.
var (
	// ErrSanityCheck indicates a raw record is missing required core keys
	ErrSanityCheck = errors.New("sanity check failed")

	// ErrMissingSchema indicates no schema was given and no default is configured
	ErrMissingSchema = errors.New("missing schema")

	// ErrMissingInstitution indicates no institution was given and no default is configured
	ErrMissingInstitution = errors.New("missing institution")

	// ErrHierarchy indicates a parent reference resolves to no catalogue object
	ErrHierarchy = errors.New("hierarchy error")

	// ErrNotUnique indicates a lookup returned more than one exact match
	ErrNotUnique = errors.New("unable to find unique object")

	// ErrPartialMatch indicates a candidate disagreed on comparison keys
	ErrPartialMatch = errors.New("partial match")

	// ErrBlocked indicates the object or all of its parents are blocked for this run
	ErrBlocked = errors.New("blocked")

	// ErrMalformedURI indicates a string is not a catalogue resource URI
	ErrMalformedURI = errors.New("malformed URI")
)

// SanityCheckError is returned when a raw record lacks required core keys.
type SanityCheckError struct {
	ObjectType string
	Name       string
	Missing    []string
}

// Error implements the error interface
func (e *SanityCheckError) Error() string {
	return fmt.Sprintf("%s %q is missing required fields: %s",
		e.ObjectType, e.Name, strings.Join(e.Missing, ", "))
}

// Is implements errors.Is support
func (e *SanityCheckError) Is(target error) bool {
	return target == ErrSanityCheck || target == ErrInvalidInput
}

// NewSanityCheckError creates a new SanityCheckError
func NewSanityCheckError(objectType, name string, missing []string) *SanityCheckError {
	return &SanityCheckError{ObjectType: objectType, Name: name, Missing: missing}
}

// MissingSchemaError is returned when normalization cannot inject a schema.
type MissingSchemaError struct {
	ObjectType string
	Name       string
}

// Error implements the error interface
func (e *MissingSchemaError) Error() string {
	return fmt.Sprintf("%s %q has no schema and no default %s schema is configured",
		e.ObjectType, e.Name, e.ObjectType)
}

// Is implements errors.Is support
func (e *MissingSchemaError) Is(target error) bool {
	return target == ErrMissingSchema
}

// NewMissingSchemaError creates a new MissingSchemaError
func NewMissingSchemaError(objectType, name string) *MissingSchemaError {
	return &MissingSchemaError{ObjectType: objectType, Name: name}
}

// MissingInstitutionError is returned when a project has no institution and no default exists.
type MissingInstitutionError struct {
	ObjectType string
	Name       string
}

// Error implements the error interface
func (e *MissingInstitutionError) Error() string {
	return fmt.Sprintf("%s %q has no institution and no default institution is configured",
		e.ObjectType, e.Name)
}

// Is implements errors.Is support
func (e *MissingInstitutionError) Is(target error) bool {
	return target == ErrMissingInstitution
}

// NewMissingInstitutionError creates a new MissingInstitutionError
func NewMissingInstitutionError(objectType, name string) *MissingInstitutionError {
	return &MissingInstitutionError{ObjectType: objectType, Name: name}
}

// HierarchyError is returned when a declared reference cannot be resolved
// to any catalogue object. Only the referencing object is skipped.
type HierarchyError struct {
	ObjectType string
	Name       string
	ParentType string
	Reference  string
}

// Error implements the error interface
func (e *HierarchyError) Error() string {
	return fmt.Sprintf("%s %q references %s %q which does not exist in the catalogue",
		e.ObjectType, e.Name, e.ParentType, e.Reference)
}

// Is implements errors.Is support
func (e *HierarchyError) Is(target error) bool {
	return target == ErrHierarchy || target == ErrNotFound
}

// NewHierarchyError creates a new HierarchyError
func NewHierarchyError(objectType, name, parentType, reference string) *HierarchyError {
	return &HierarchyError{ObjectType: objectType, Name: name, ParentType: parentType, Reference: reference}
}

// UnableToFindUniqueError is returned when a lookup yields more than one
// object where exactly one is expected.
type UnableToFindUniqueError struct {
	ObjectType string
	Key        string
	Matches    []string
}

// Error implements the error interface
func (e *UnableToFindUniqueError) Error() string {
	return fmt.Sprintf("unable to find unique %s for %q: %d matches (%s)",
		e.ObjectType, e.Key, len(e.Matches), strings.Join(e.Matches, ", "))
}

// Is implements errors.Is support
func (e *UnableToFindUniqueError) Is(target error) bool {
	return target == ErrNotUnique
}

// NewUnableToFindUniqueError creates a new UnableToFindUniqueError
func NewUnableToFindUniqueError(objectType, key string, matches []string) *UnableToFindUniqueError {
	return &UnableToFindUniqueError{ObjectType: objectType, Key: key, Matches: matches}
}

// FieldConflict describes one comparison key on which a candidate disagreed.
type FieldConflict struct {
	Field  string
	Local  any
	Remote any
}

// PartialMatchError is returned when a catalogue candidate shares the
// object's natural key but differs on at least one comparison key.
type PartialMatchError struct {
	ObjectType string
	Key        string
	Candidate  string
	Conflicts  []FieldConflict
}

// Error implements the error interface
func (e *PartialMatchError) Error() string {
	fields := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		fields = append(fields, c.Field)
	}
	return fmt.Sprintf("%s %q partially matches %s (differs on %s); blocked",
		e.ObjectType, e.Key, e.Candidate, strings.Join(fields, ", "))
}

// Is implements errors.Is support
func (e *PartialMatchError) Is(target error) bool {
	return target == ErrPartialMatch || target == ErrBlocked
}

// BlockedError is returned for an object whose parents were all removed
// because they are blocked in the current run.
type BlockedError struct {
	ObjectType string
	Name       string
	ParentType string
	Parents    []string
}

// Error implements the error interface
func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s %q is blocked: every %s parent is blocked (%s)",
		e.ObjectType, e.Name, e.ParentType, strings.Join(e.Parents, ", "))
}

// Is implements errors.Is support
func (e *BlockedError) Is(target error) bool {
	return target == ErrBlocked
}

// NewBlockedError creates a new BlockedError
func NewBlockedError(objectType, name, parentType string, parents []string) *BlockedError {
	return &BlockedError{ObjectType: objectType, Name: name, ParentType: parentType, Parents: parents}
}

// MalformedURIError is returned when a string is not of the form /api/v1/<type>/<id>/.
type MalformedURIError struct {
	Value  string
	Reason string
}

// Error implements the error interface
func (e *MalformedURIError) Error() string {
	return fmt.Sprintf("malformed URI %q: %s", e.Value, e.Reason)
}

// Is implements errors.Is support
func (e *MalformedURIError) Is(target error) bool {
	return target == ErrMalformedURI || target == ErrInvalidInput
}

// NewMalformedURIError creates a new MalformedURIError
func NewMalformedURIError(value, reason string) *MalformedURIError {
	return &MalformedURIError{Value: value, Reason: reason}
}

// IsBlocked reports whether err blocks an object (partial match or cascade).
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}

// IsHierarchy reports whether err is a hierarchy error
func IsHierarchy(err error) bool {
	return errors.Is(err, ErrHierarchy)
}

// IsNotUnique reports whether err is an UnableToFindUniqueError
func IsNotUnique(err error) bool {
	return errors.Is(err, ErrNotUnique)
}

// IsSkippable reports whether err stems from the input record itself
// rather than the catalogue or transport.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrSanityCheck) ||
		errors.Is(err, ErrMissingSchema) ||
		errors.Is(err, ErrMissingInstitution)
}
