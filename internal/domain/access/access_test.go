package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "admin", want: RoleAdmin},
		{in: "Manager", want: RoleManager},
		{in: " moderator ", want: RoleModerator},
		{in: "PROMOTER", want: RolePromoter},
		{in: "staff", want: RoleStaff},
		{in: "owner", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownRole)
				assert.Equal(t, RoleUnknown, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_StringRoundTrip(t *testing.T) {
	for r := range roleNames {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	assert.Equal(t, "unknown", RoleUnknown.String())
}

func TestCan(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ManageBilling, true},
		{RoleManager, ManageBilling, false},
		{RoleManager, ManagePromoCodes, true},
		{RoleManager, ViewAnalytics, true},
		{RoleModerator, CheckInGuests, true},
		{RoleModerator, ManagePromoCodes, false},
		{RolePromoter, AddGuests, true},
		{RolePromoter, CheckInGuests, false},
		{RoleStaff, CheckInGuests, true},
		{RoleStaff, ViewAnalytics, false},
		{RoleUnknown, CheckInGuests, false},
	}

	for _, tt := range tests {
		t.Run(tt.role.String()+"/"+tt.action.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.action))
		})
	}
}

func TestAdminHoldsEveryCapability(t *testing.T) {
	for a := range actionNames {
		assert.True(t, Can(RoleAdmin, a), "admin should be able to %s", a)
	}
}

func TestRolePredicates(t *testing.T) {
	assert.True(t, IsManager(RoleAdmin))
	assert.True(t, IsManager(RoleManager))
	assert.False(t, IsManager(RolePromoter))
	assert.True(t, IsPromoter(RolePromoter))
	assert.False(t, IsPromoter(RoleStaff))
	assert.True(t, IsModerator(RoleModerator))
	assert.False(t, IsModerator(RoleAdmin))
}

func TestPrincipal_Authorize(t *testing.T) {
	p := Principal{UserID: "u1", OrganizationID: "org-1", Role: RoleStaff}

	require.NoError(t, p.Authorize(CheckInGuests, "org-1"))

	err := p.Authorize(CheckInGuests, "org-2")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "organization mismatch")

	err = p.Authorize(ViewAnalytics, "org-1")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "view_analytics")

	anon := Principal{}
	require.ErrorIs(t, anon.Authorize(CheckInGuests, ""), ErrForbidden)
}
