// Package permissions holds the static role to action table that guards every
// administrative operation.
package permissions

import (
	"fmt"
	"strings"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
)

// Role identifies a principal's privilege level.
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
	RoleCustomer Role = "CUSTOMER"
)

// Action is a capability that can be granted to a role.
type Action string

const (
	AdminsManage Action = "admins:manage"
	AuditRead    Action = "audit:read"

	CustomersRead   Action = "customers:read"
	CustomersWrite  Action = "customers:write"
	CustomersDelete Action = "customers:delete"
	CustomersExport Action = "customers:export"

	TagsRead  Action = "tags:read"
	TagsWrite Action = "tags:write"

	CoursesRead      Action = "courses:read"
	CoursesWrite     Action = "courses:write"
	EnrollmentsWrite Action = "enrollments:write"

	CatalogRead   Action = "catalog:read"
	CatalogWrite  Action = "catalog:write"
	CatalogDelete Action = "catalog:delete"

	ShippingRead  Action = "shipping:read"
	ShippingWrite Action = "shipping:write"
	ShippingQuote Action = "shipping:quote"

	OrdersRead      Action = "orders:read"
	OrdersUpdate    Action = "orders:update"
	OrdersCancel    Action = "orders:cancel"
	OrdersPlace     Action = "orders:place"
	OrdersReadOwn   Action = "orders:read_own"
	OrdersCancelOwn Action = "orders:cancel_own"
	OrdersPayOwn    Action = "orders:pay_own"

	EmailTemplates Action = "email:templates"
	EmailSend      Action = "email:send"
	EmailLogsRead  Action = "email:logs"

	PaymentRead  Action = "payment:read"
	PaymentWrite Action = "payment:write"

	SettingsRead  Action = "settings:read"
	SettingsWrite Action = "settings:write"
)

var allActions = []Action{
	AdminsManage, AuditRead,
	CustomersRead, CustomersWrite, CustomersDelete, CustomersExport,
	TagsRead, TagsWrite,
	CoursesRead, CoursesWrite, EnrollmentsWrite,
	CatalogRead, CatalogWrite, CatalogDelete,
	ShippingRead, ShippingWrite, ShippingQuote,
	OrdersRead, OrdersUpdate, OrdersCancel, OrdersPlace, OrdersReadOwn, OrdersCancelOwn, OrdersPayOwn,
	EmailTemplates, EmailSend, EmailLogsRead,
	PaymentRead, PaymentWrite,
	SettingsRead, SettingsWrite,
}

var allRoles = []Role{RoleOwner, RoleAdmin, RoleOperator, RoleCustomer}

// grants lists what each role may do. Anything not listed is denied; the test
// suite checks that every action named here is a known one.
var grants = map[Role][]Action{
	RoleOwner: {
		AdminsManage, AuditRead,
		CustomersRead, CustomersWrite, CustomersDelete, CustomersExport,
		TagsRead, TagsWrite,
		CoursesRead, CoursesWrite, EnrollmentsWrite,
		CatalogRead, CatalogWrite, CatalogDelete,
		ShippingRead, ShippingWrite, ShippingQuote,
		OrdersRead, OrdersUpdate, OrdersCancel,
		EmailTemplates, EmailSend, EmailLogsRead,
		PaymentRead, PaymentWrite,
		SettingsRead, SettingsWrite,
	},
	RoleAdmin: {
		AuditRead,
		CustomersRead, CustomersWrite, CustomersDelete, CustomersExport,
		TagsRead, TagsWrite,
		CoursesRead, CoursesWrite, EnrollmentsWrite,
		CatalogRead, CatalogWrite, CatalogDelete,
		ShippingRead, ShippingWrite, ShippingQuote,
		OrdersRead, OrdersUpdate, OrdersCancel,
		EmailTemplates, EmailSend, EmailLogsRead,
		PaymentRead,
		SettingsRead,
	},
	RoleOperator: {
		CustomersRead, CustomersWrite,
		TagsRead,
		CoursesRead, EnrollmentsWrite,
		CatalogRead,
		ShippingRead, ShippingQuote,
		OrdersRead, OrdersUpdate,
		EmailLogsRead,
		SettingsRead,
	},
	RoleCustomer: {
		CatalogRead,
		ShippingQuote,
		OrdersPlace, OrdersReadOwn, OrdersCancelOwn, OrdersPayOwn,
	},
}

var table = buildTable()

func buildTable() map[Role]map[Action]bool {
	t := make(map[Role]map[Action]bool, len(allRoles))
	for _, role := range allRoles {
		row := make(map[Action]bool, len(allActions))
		for _, action := range allActions {
			row[action] = false
		}
		for _, action := range grants[role] {
			row[action] = true
		}
		t[role] = row
	}
	return t
}

// Roles returns every role in a stable order.
func Roles() []Role {
	return append([]Role(nil), allRoles...)
}

// Actions returns every action in a stable order.
func Actions() []Action {
	return append([]Action(nil), allActions...)
}

// Allowed reports whether role may perform action. Unknown roles or actions are denied.
func Allowed(role Role, action Action) bool {
	return table[role][action]
}

// Check returns an authorization error when role may not perform action.
func Check(role Role, action Action) error {
	if Allowed(role, action) {
		return nil
	}
	return apperr.Forbidden(fmt.Sprintf("Role %s is not allowed to perform %s", role, action))
}

// IsStaff reports whether role is one of the administrative roles.
func (r Role) IsStaff() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleOperator
}

func (r Role) String() string { return string(r) }

// ParseStaffRole accepts OWNER, ADMIN or OPERATOR in any case.
func ParseStaffRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !role.IsStaff() {
		return "", apperr.Validation("Invalid role %q", s)
	}
	return role, nil
}
