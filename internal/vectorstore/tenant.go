package vectorstore

import "errors"

// ErrInvalidTenant is returned when the tenant identifier is empty or
// malformed. Operations fail before any provider call.
var ErrInvalidTenant = errors.New("invalid tenant identifier")

// Tenant is the isolation boundary for all store operations.
//
// It is an explicit parameter on every Store method rather than an
// optional filter, so omitting it is a compile-time error rather than a
// runtime data leak.
type Tenant struct {
	// UserID is the tenant identifier (required).
	UserID string
}

// Validate checks that the tenant identifier is usable.
func (t Tenant) Validate() error {
	if t.UserID == "" {
		return ErrInvalidTenant
	}
	return nil
}

// Filter returns the mandatory metadata filter for this tenant's queries.
func (t Tenant) Filter() map[string]interface{} {
	return map[string]interface{}{FieldUserID: t.UserID}
}

// FileFilter returns the tenant filter additionally scoped to one file.
func (t Tenant) FileFilter(fileID string) map[string]interface{} {
	return map[string]interface{}{
		FieldUserID: t.UserID,
		FieldFileID: fileID,
	}
}

// Tag overwrites the tenant field in chunk metadata. Caller data never
// wins over the tenant tag.
func (t Tenant) Tag(meta map[string]interface{}) {
	meta[FieldUserID] = t.UserID
}
