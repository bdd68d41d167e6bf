package rbac

import (
	"strconv"
	"strings"
)

// OwnerKind tags how a stored creator value identifies its owner.
type OwnerKind uint8

const (
	// OwnerByID marks a creator stored as a stringified user ID.
	OwnerByID OwnerKind = iota
	// OwnerByUsername marks a creator stored as a username.
	OwnerByUsername
)

// Owner is the resolved form of a task or column creator field.
//
// Legacy rows store the creator inconsistently: either a stringified user
// ID or a username. ParseOwner classifies the stored value once, and
// Matches keeps the dual-representation comparison as an explicit
// compatibility shim so existing data keeps working.
type Owner struct {
	// Kind tags which representation the stored value was classified as.
	Kind OwnerKind
	// ID is the owner's user ID when Kind is OwnerByID.
	ID uint64
	// Username is the owner's username when Kind is OwnerByUsername.
	Username string

	raw string
}

// OwnerByUserID returns the canonical owner for newly created resources.
func OwnerByUserID(userID uint64) Owner {
	ref := strconv.FormatUint(userID, 10)

	return Owner{Kind: OwnerByID, ID: userID, raw: ref}
}

// ParseOwner classifies a stored creator value.
func ParseOwner(raw string) Owner {
	trimmed := strings.TrimSpace(raw)

	if id, err := strconv.ParseUint(trimmed, 10, 64); err == nil && trimmed != "" {
		return Owner{Kind: OwnerByID, ID: id, raw: raw}
	}

	return Owner{Kind: OwnerByUsername, Username: trimmed, raw: raw}
}

// Ref returns the storage form of the owner, written to the creator column
// at resource-creation time.
func (o Owner) Ref() string {
	return o.raw
}

// Matches reports whether the owner is the given user. It compares the
// trimmed stored value against the stringified user ID, and the stored
// value against the username, matching the behavior legacy data relies on.
func (o Owner) Matches(userID uint64, username string) bool {
	if strings.TrimSpace(o.raw) == strconv.FormatUint(userID, 10) {
		return true
	}

	return o.raw == username
}
