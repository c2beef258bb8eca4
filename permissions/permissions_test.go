package permissions

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
)

func TestTableIsTotal(t *testing.T) {
	known := make(map[Action]bool)
	for _, a := range Actions() {
		known[a] = true
	}
	for role, actions := range grants {
		for _, a := range actions {
			assert.True(t, known[a], "role %s grants unknown action %s", role, a)
		}
	}
	for _, role := range Roles() {
		row, ok := table[role]
		require.True(t, ok, "role %s missing from table", role)
		assert.Len(t, row, len(Actions()), "role %s row is not exhaustive", role)
	}
}

func TestAllowedIsDeterministic(t *testing.T) {
	for _, role := range Roles() {
		for _, action := range Actions() {
			first := Allowed(role, action)
			for i := 0; i < 5; i++ {
				assert.Equal(t, first, Allowed(role, action), "%s/%s", role, action)
			}
		}
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleOwner, AdminsManage, true},
		{RoleAdmin, AdminsManage, false},
		{RoleAdmin, PaymentWrite, false},
		{RoleAdmin, OrdersCancel, true},
		{RoleOperator, OrdersUpdate, true},
		{RoleOperator, OrdersCancel, false},
		{RoleOperator, CustomersDelete, false},
		{RoleCustomer, OrdersPlace, true},
		{RoleCustomer, OrdersRead, false},
		{RoleCustomer, OrdersCancelOwn, true},
		{Role("GUEST"), CatalogRead, false},
		{RoleOwner, Action("unknown:action"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"_"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.role, tt.action))
		})
	}
}

func TestCheckReturnsForbidden(t *testing.T) {
	require.NoError(t, Check(RoleOwner, SettingsWrite))

	err := Check(RoleOperator, SettingsWrite)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apperr.Status(err))
}

func TestParseStaffRole(t *testing.T) {
	role, err := ParseStaffRole(" admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseStaffRole("CUSTOMER")
	assert.Error(t, err)
	_, err = ParseStaffRole("root")
	assert.Error(t, err)
}
