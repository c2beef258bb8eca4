package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

// Kind distinguishes staff accounts from customer accounts.
type Kind string

const (
	KindAdmin    Kind = "admin"
	KindCustomer Kind = "customer"
	KindSystem   Kind = "system"
)

const principalKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	Kind  Kind             `json:"kind"`
	ID    uint             `json:"id"`
	Email string           `json:"email"`
	Name  string           `json:"name"`
	Role  permissions.Role `json:"role"`
}

func (p Principal) IsCustomer() bool { return p.Kind == KindCustomer }

// ActorType is the audit/cancellation label for this principal.
func (p Principal) ActorType() models.ActorType {
	switch p.Kind {
	case KindCustomer:
		return models.ActorCustomer
	case KindSystem:
		return models.ActorSystem
	}
	return models.ActorAdmin
}

// Actor is the principal as recorded in audit logs.
func (p Principal) Actor() audit.Actor {
	return audit.Actor{Type: p.ActorType(), ID: p.ID, Role: p.Role.String()}
}

// Can reports whether the principal's role grants action.
func (p Principal) Can(action permissions.Action) bool {
	return permissions.Allowed(p.Role, action)
}

// SystemPrincipal acts for webhooks and other unattended callers.
var SystemPrincipal = Principal{Kind: KindSystem, Name: "system", Role: permissions.RoleOwner}

func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the caller stored by the session middleware.
func PrincipalFrom(c *gin.Context) (Principal, error) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, apperr.Unauthenticated("Not signed in")
	}
	p, ok := v.(Principal)
	if !ok {
		return Principal{}, apperr.Unauthenticated("Not signed in")
	}
	return p, nil
}

func grantedActions(p Principal) []permissions.Action {
	var out []permissions.Action
	for _, a := range permissions.Actions() {
		if p.Can(a) {
			out = append(out, a)
		}
	}
	return out
}
