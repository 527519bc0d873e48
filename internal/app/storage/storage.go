package storage

import "errors"

// Sentinel errors wrapped by every backend so callers can map
// persistence failures without knowing which engine is bound.
var (
	// ErrNotFound reports that the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness or reference violation.
	ErrConflict = errors.New("conflict")
)

// Pagination bounds shared by every list operation.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListParams selects one page of a listing. Zero values mean the first
// page with the default size.
type ListParams struct {
	Limit  int
	Offset int
}

// Normalize clamps the parameters into the supported window.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Page converts the offset into a 1-based page number for responses.
func (p ListParams) Page() int64 {
	return int64(p.Offset/p.Limit) + 1
}

// Stats reports row counts per entity for monitoring surfaces.
type Stats struct {
	Users        int64 `json:"users"`
	Jobs         int64 `json:"jobs"`
	Applications int64 `json:"applications"`
}
