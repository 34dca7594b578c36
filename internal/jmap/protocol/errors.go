package protocol

import (
	"fmt"
	"sort"
)

// MethodError is a method-level error response (RFC 8620 Section 3.6.2).
type MethodError struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`

	// CallId of the failed call. Filled in by the response decoder.
	CallId string `json:"-"`
}

// Error returns the server's description, falling back to the error type.
func (e *MethodError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Type
}

// SetError reports why one object in a /set call could not be created,
// updated or destroyed (RFC 8620 Section 5.3).
type SetError struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Properties  []string `json:"properties,omitempty"`

	// Id is the creation id or object id the error belongs to.
	Id string `json:"-"`
}

// Error returns the server's description, falling back to the error type.
func (e *SetError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Type
}

// Common SetError types.
const (
	SetErrorForbidden     = "forbidden"
	SetErrorNotFound      = "notFound"
	SetErrorOverQuota     = "overQuota"
	SetErrorInvalidScript = "invalidScript"
)

// Err returns the first failure recorded in the response, or nil. Creation
// failures are checked before update failures, and update failures before
// destroy failures; within each group ids are visited in sorted order so the
// result is deterministic.
func (r *SetResponse) Err() error {
	if err := firstSetError(r.NotCreated); err != nil {
		return err
	}
	if err := firstSetError(r.NotUpdated); err != nil {
		return err
	}
	return firstSetError(r.NotDestroyed)
}

// CreatedId returns the server id assigned to creationId.
func (r *SetResponse) CreatedId(creationId string) (Id, error) {
	if se, ok := r.NotCreated[creationId]; ok && se != nil {
		se.Id = creationId
		return "", se
	}
	raw, ok := r.Created[creationId]
	if !ok {
		return "", fmt.Errorf("creation %q missing from response", creationId)
	}
	var created struct {
		Id Id `json:"id"`
	}
	if err := unmarshalArgs(raw, &created); err != nil {
		return "", err
	}
	if created.Id == "" {
		return "", fmt.Errorf("creation %q has no id", creationId)
	}
	return created.Id, nil
}

func firstSetError[K ~string](m map[K]*SetError) error {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	se := m[K(keys[0])]
	if se == nil {
		se = &SetError{Type: "unknown"}
	}
	se.Id = keys[0]
	return se
}
