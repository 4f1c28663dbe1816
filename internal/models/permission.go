package models

import (
	"fmt"

	"github.com/google/uuid"
)

// PermissionSource records which precedence tier produced an EffectivePermission
type PermissionSource int

const (
	SourceNone       PermissionSource = 0
	SourceOwner      PermissionSource = 1
	SourceDirect     PermissionSource = 2
	SourceDepartment PermissionSource = 3
	SourcePublic     PermissionSource = 4
)

func (s PermissionSource) String() string {
	switch s {
	case SourceNone:
		return "None"
	case SourceOwner:
		return "Owner"
	case SourceDirect:
		return "Direct"
	case SourceDepartment:
		return "Department"
	case SourcePublic:
		return "Public"
	default:
		return fmt.Sprintf("PermissionSource(%d)", int(s))
	}
}

// MarshalText renders the source by name in API responses
func (s PermissionSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Capability names one boolean of the capability set
type Capability string

const (
	CapabilityView     Capability = "view"
	CapabilityEdit     Capability = "edit"
	CapabilityDelete   Capability = "delete"
	CapabilityShare    Capability = "share"
	CapabilityDownload Capability = "download"
	CapabilityPrint    Capability = "print"
	CapabilityComment  Capability = "comment"
	CapabilityApprove  Capability = "approve"
)

// EffectivePermission is the resolved capability set for one (order, actor) pair
type EffectivePermission struct {
	OrderID     uuid.UUID        `json:"orderId"`
	UserID      uuid.UUID        `json:"userId"`
	CanView     bool             `json:"canView"`
	CanEdit     bool             `json:"canEdit"`
	CanDelete   bool             `json:"canDelete"`
	CanShare    bool             `json:"canShare"`
	CanDownload bool             `json:"canDownload"`
	CanPrint    bool             `json:"canPrint"`
	CanComment  bool             `json:"canComment"`
	CanApprove  bool             `json:"canApprove"`
	IsOwner     bool             `json:"isOwner"`
	IsExcluded  bool             `json:"isExcluded"`
	Source      PermissionSource `json:"source"`
}

// Has reports whether the capability is granted
func (p EffectivePermission) Has(c Capability) bool {
	switch c {
	case CapabilityView:
		return p.CanView
	case CapabilityEdit:
		return p.CanEdit
	case CapabilityDelete:
		return p.CanDelete
	case CapabilityShare:
		return p.CanShare
	case CapabilityDownload:
		return p.CanDownload
	case CapabilityPrint:
		return p.CanPrint
	case CapabilityComment:
		return p.CanComment
	case CapabilityApprove:
		return p.CanApprove
	default:
		return false
	}
}

// Actor is the acting user as supplied by the identity layer. The engine
// trusts it and performs no credential checks.
type Actor struct {
	ID            uuid.UUID   `json:"id"`
	DepartmentIDs []uuid.UUID `json:"departmentIds,omitempty"`
	IsAdmin       bool        `json:"isAdmin"`
	IPAddress     string      `json:"-"`
	UserAgent     string      `json:"-"`

	// DepartmentsKnown is true when the identity layer supplied memberships,
	// so no directory lookup is needed.
	DepartmentsKnown bool `json:"-"`
}

// SystemActorID performs automatic operations such as the expiration sweep
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// SystemActor returns the actor used for background work
func SystemActor() Actor {
	return Actor{ID: SystemActorID, IsAdmin: true, DepartmentsKnown: true}
}
