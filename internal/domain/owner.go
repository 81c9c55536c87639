package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OwnerRef identifies who owns an account or sits on one side of an escrow:
// exactly one user or exactly one organization. The zero value means "no owner".
type OwnerRef struct {
	kind string
	id   uuid.UUID
}

func UserOwner(id uuid.UUID) OwnerRef {
	return OwnerRef{kind: OwnerTypeUser, id: id}
}

func OrganizationOwner(id uuid.UUID) OwnerRef {
	return OwnerRef{kind: OwnerTypeOrganization, id: id}
}

// ParseOwner builds an OwnerRef from its persisted (type, id) pair.
func ParseOwner(ownerType string, id uuid.UUID) (OwnerRef, error) {
	if id == uuid.Nil {
		return OwnerRef{}, fmt.Errorf("%w: owner id is required", ErrInvalidOwner)
	}
	switch strings.ToLower(strings.TrimSpace(ownerType)) {
	case OwnerTypeUser:
		return UserOwner(id), nil
	case OwnerTypeOrganization:
		return OrganizationOwner(id), nil
	default:
		return OwnerRef{}, fmt.Errorf("%w: unknown owner type %q", ErrInvalidOwner, ownerType)
	}
}

func (o OwnerRef) Type() string   { return o.kind }
func (o OwnerRef) ID() uuid.UUID  { return o.id }
func (o OwnerRef) IsZero() bool   { return o.kind == "" }
func (o OwnerRef) IsUser() bool   { return o.kind == OwnerTypeUser }
func (o OwnerRef) IsOrg() bool    { return o.kind == OwnerTypeOrganization }
func (o OwnerRef) String() string { return o.kind + ":" + o.id.String() }

func (o OwnerRef) Equal(other OwnerRef) bool {
	return o.kind == other.kind && o.id == other.id
}

type ownerJSON struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

func (o OwnerRef) MarshalJSON() ([]byte, error) {
	if o.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ownerJSON{Type: o.kind, ID: o.id})
}

func (o *OwnerRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OwnerRef{}
		return nil
	}
	var raw ownerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseOwner(raw.Type, raw.ID)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Actor is the authenticated identity invoking an operation. OrgID is set when
// the caller acts on behalf of an organization.
type Actor struct {
	UserID  uuid.UUID
	OrgID   *uuid.UUID
	Email   string
	IsAdmin bool
}

// SystemActor is used by background jobs such as the expiry sweep.
var SystemActor = Actor{}

func (a Actor) IsSystem() bool {
	return a.UserID == uuid.Nil && !a.IsAdmin
}

// Owner returns the ledger identity the actor is operating as.
func (a Actor) Owner() OwnerRef {
	if a.OrgID != nil {
		return OrganizationOwner(*a.OrgID)
	}
	return UserOwner(a.UserID)
}

// Represents reports whether the actor may act for the given owner.
func (a Actor) Represents(owner OwnerRef) bool {
	if owner.IsZero() {
		return false
	}
	if owner.IsUser() {
		return owner.ID() == a.UserID
	}
	return a.OrgID != nil && *a.OrgID == owner.ID()
}
