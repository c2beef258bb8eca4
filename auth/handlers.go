package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
}

func respondWithToken(c *gin.Context, issuer *TokenIssuer, status int, p Principal, account any) {
	token, exp, err := issuer.Issue(p)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(status, gin.H{
		"token":      token,
		"expires_at": exp,
		"principal":  p,
		"account":    account,
	})
}

// POST /auth/admin/login
func AdminLoginHandler(db *gorm.DB, issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
			return
		}
		admin, err := AuthenticateAdmin(db, req.Email, req.Password)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		respondWithToken(c, issuer, http.StatusOK, AdminPrincipal(admin), admin)
	}
}

// POST /auth/admin/google
func AdminGoogleLoginHandler(db *gorm.DB, issuer *TokenIssuer, verifier IDTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			IDToken string `json:"idToken" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
			return
		}
		identity, err := verifier.Verify(c.Request.Context(), req.IDToken)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		admin, err := GoogleAdminSignIn(db, identity)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		respondWithToken(c, issuer, http.StatusOK, AdminPrincipal(admin), admin)
	}
}

// POST /auth/customer/register
func CustomerRegisterHandler(db *gorm.DB, issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email, name and password are required"})
			return
		}
		customer, err := RegisterCustomer(db, CustomerRegistration{
			Email:    req.Email,
			Name:     req.Name,
			Phone:    req.Phone,
			Password: req.Password,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		p := CustomerPrincipal(customer)
		if err := audit.Record(db, audit.Entry{
			Actor:      p.Actor(),
			Action:     "customer.register",
			EntityType: "customer",
			EntityID:   customer.ID,
			After:      customer,
		}); err != nil {
			apperr.Respond(c, err)
			return
		}
		respondWithToken(c, issuer, http.StatusCreated, p, customer)
	}
}

// POST /auth/customer/login
func CustomerLoginHandler(db *gorm.DB, issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
			return
		}
		customer, err := AuthenticateCustomer(db, req.Email, req.Password)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		respondWithToken(c, issuer, http.StatusOK, CustomerPrincipal(customer), customer)
	}
}

// GET /api/me
func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"principal": p, "permissions": grantedActions(p)})
	}
}
