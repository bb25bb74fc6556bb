// Package access maps organization roles to the actions they may perform.
//
// Roles arrive as strings from tokens and storage. They are parsed once at
// the authorization boundary into the closed Role set; everything past that
// point checks capabilities through Can or Principal.Authorize.
package access

import (
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrUnknownRole is returned by ParseRole for strings outside the role set.
	ErrUnknownRole = errors.New("unknown role")
	// ErrForbidden is returned when a principal lacks a capability.
	ErrForbidden = errors.New("forbidden")
)

// Role is an organization member's role.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleManager
	RoleModerator
	RolePromoter
	RoleStaff
)

var roleNames = map[Role]string{
	RoleAdmin:     "admin",
	RoleManager:   "manager",
	RoleModerator: "moderator",
	RolePromoter:  "promoter",
	RoleStaff:     "staff",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleUnknown, errors.Wrapf(ErrUnknownRole, "%q", s)
}

// Action is something a member can be permitted to do.
type Action uint8

const (
	ManageOrganization Action = iota + 1
	ManageMembers
	ManageBilling
	ManageEvents
	ManageTicketTypes
	ManagePromoCodes
	ViewAnalytics
	ManageGuestList
	AddGuests
	CheckInGuests
	SendCampaigns
)

var actionNames = map[Action]string{
	ManageOrganization: "manage_organization",
	ManageMembers:      "manage_members",
	ManageBilling:      "manage_billing",
	ManageEvents:       "manage_events",
	ManageTicketTypes:  "manage_ticket_types",
	ManagePromoCodes:   "manage_promo_codes",
	ViewAnalytics:      "view_analytics",
	ManageGuestList:    "manage_guest_list",
	AddGuests:          "add_guests",
	CheckInGuests:      "check_in_guests",
	SendCampaigns:      "send_campaigns",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

func actions(list ...Action) map[Action]struct{} {
	m := make(map[Action]struct{}, len(list))
	for _, a := range list {
		m[a] = struct{}{}
	}
	return m
}

// capabilities is the single source of truth for role permissions.
var capabilities = map[Role]map[Action]struct{}{
	RoleAdmin: actions(
		ManageOrganization, ManageMembers, ManageBilling,
		ManageEvents, ManageTicketTypes, ManagePromoCodes,
		ViewAnalytics, ManageGuestList, AddGuests, CheckInGuests, SendCampaigns,
	),
	RoleManager: actions(
		ManageMembers,
		ManageEvents, ManageTicketTypes, ManagePromoCodes,
		ViewAnalytics, ManageGuestList, AddGuests, CheckInGuests, SendCampaigns,
	),
	RoleModerator: actions(ViewAnalytics, ManageGuestList, CheckInGuests),
	RolePromoter:  actions(AddGuests, ViewAnalytics),
	RoleStaff:     actions(CheckInGuests),
}

// Can reports whether role is permitted to perform action.
func Can(role Role, action Action) bool {
	_, ok := capabilities[role][action]
	return ok
}

// IsManager reports whether the role administers the organization's events.
func IsManager(role Role) bool {
	return role == RoleAdmin || role == RoleManager
}

// IsModerator reports whether the role moderates events.
func IsModerator(role Role) bool {
	return role == RoleModerator
}

// IsPromoter reports whether the role is a promoter.
func IsPromoter(role Role) bool {
	return role == RolePromoter
}

// Principal is an authenticated organization member.
type Principal struct {
	UserID         string
	OrganizationID string
	Role           Role
}

// Authorize checks that the principal belongs to organizationID and that its
// role permits action.
func (p Principal) Authorize(action Action, organizationID string) error {
	if p.OrganizationID == "" || p.OrganizationID != organizationID {
		return errors.Wrap(ErrForbidden, "organization mismatch")
	}
	if !Can(p.Role, action) {
		return errors.Wrapf(ErrForbidden, "role %s cannot %s", p.Role, action)
	}
	return nil
}
