package customerControllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var ErrCustomerNotFound = apperr.NotFound("Customer not found")

type CreateCustomerInput struct {
	Email       string          `json:"email" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Phone       string          `json:"phone"`
	Address     *models.Address `json:"address"`
	Note        string          `json:"note"`
	EmailOptOut bool            `json:"email_opt_out"`
	TagIDs      []uint          `json:"tag_ids"`
}

type UpdateCustomerInput struct {
	Email       *string         `json:"email"`
	Name        *string         `json:"name"`
	Phone       *string         `json:"phone"`
	Address     *models.Address `json:"address"`
	Note        *string         `json:"note"`
	EmailOptOut *bool           `json:"email_opt_out"`
}

func customerID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid customer ID")
	}
	return uint(id), nil
}

func findCustomer(db *gorm.DB, id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := db.Preload("Tags").First(&customer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// Filter narrows customer listings and exports.
type Filter struct {
	Search string
	TagID  uint
}

func filterFrom(c *gin.Context) (Filter, error) {
	f := Filter{Search: strings.TrimSpace(c.Query("search"))}
	if v := c.Query("tag_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, apperr.Validation("Invalid tag_id")
		}
		f.TagID = uint(id)
	}
	return f, nil
}

func (f Filter) apply(db *gorm.DB) *gorm.DB {
	q := db.Model(&models.Customer{})
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, like)
	}
	if f.TagID != 0 {
		q = q.Where("id IN (?)", db.Model(&models.CustomerTag{}).Select("customer_id").Where("tag_id = ?", f.TagID))
	}
	return q
}

// ListCustomers handles GET /api/customers?search=&tag_id=&page=&limit=
func ListCustomers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := filterFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var total int64
		if err := filter.apply(db).Count(&total).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > maxPageSize {
			limit = defaultPageSize
		}

		var customers []models.Customer
		if err := filter.apply(db).
			Preload("Tags").
			Order("created_at desc, id desc").
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&customers).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customers": customers, "total": total, "page": page, "limit": limit})
	}
}

// GetCustomer returns a customer with tags, enrollments and order history.
func GetCustomer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := customerID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var customer models.Customer
		if err := db.
			Preload("Tags").
			Preload("Enrollments.Course").
			Preload("Orders", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at desc") }).
			First(&customer, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperr.Respond(c, ErrCustomerNotFound)
				return
			}
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

func CreateCustomer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input CreateCustomerInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Email and name are required"))
			return
		}
		email, err := auth.ValidateEmail(input.Email)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		name := strings.TrimSpace(input.Name)
		if name == "" {
			apperr.Respond(c, apperr.Validation("Name is required"))
			return
		}

		customer := models.Customer{
			Email:       email,
			Name:        name,
			Phone:       strings.TrimSpace(input.Phone),
			Note:        input.Note,
			EmailOptOut: input.EmailOptOut,
		}
		if input.Address != nil {
			customer.Address = *input.Address
		}

		var created *models.Customer
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := auth.EnsureEmailAvailable(tx, email, 0, 0); err != nil {
				return err
			}
			if err := tx.Omit("Tags").Create(&customer).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return auth.ErrEmailTaken
				}
				return fmt.Errorf("create customer: %w", err)
			}
			if err := replaceTags(tx, customer.ID, input.TagIDs); err != nil {
				return err
			}
			var err error
			if created, err = findCustomer(tx, customer.ID); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "customer.create",
				EntityType: "customer", EntityID: customer.ID, After: created,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// UpdateCustomer handles PUT /api/customers/:id; absent fields are left alone.
func UpdateCustomer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := customerID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input UpdateCustomerInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid request payload"))
			return
		}

		var customer *models.Customer
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findCustomer(tx, id)
			if err != nil {
				return err
			}

			updates := make(map[string]interface{})
			if input.Email != nil {
				email, err := auth.ValidateEmail(*input.Email)
				if err != nil {
					return err
				}
				if email != before.Email {
					if err := auth.EnsureEmailAvailable(tx, email, id, 0); err != nil {
						return err
					}
					updates["email"] = email
				}
			}
			if input.Name != nil {
				name := strings.TrimSpace(*input.Name)
				if name == "" {
					return apperr.Validation("Name must not be empty")
				}
				updates["name"] = name
			}
			if input.Phone != nil {
				updates["phone"] = strings.TrimSpace(*input.Phone)
			}
			if input.Note != nil {
				updates["note"] = *input.Note
			}
			if input.EmailOptOut != nil {
				updates["email_opt_out"] = *input.EmailOptOut
			}
			if input.Address != nil {
				updates["street"] = input.Address.Street
				updates["city"] = input.Address.City
				updates["state"] = input.Address.State
				updates["postal_code"] = input.Address.PostalCode
				updates["country"] = input.Address.Country
			}

			if len(updates) > 0 {
				if err := tx.Model(&models.Customer{}).Where("id = ?", id).Updates(updates).Error; err != nil {
					return fmt.Errorf("update customer: %w", err)
				}
			}
			if customer, err = findCustomer(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "customer.update",
				EntityType: "customer", EntityID: id, Before: before, After: customer,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

// DeleteCustomer removes a customer with their tags and enrollments. Customers
// with orders are kept for order history.
func DeleteCustomer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := customerID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			customer, err := findCustomer(tx, id)
			if err != nil {
				return err
			}
			var orders int64
			if err := tx.Model(&models.Order{}).Where("customer_id = ?", id).Count(&orders).Error; err != nil {
				return err
			}
			if orders > 0 {
				return apperr.Conflict(fmt.Sprintf("Customer has %d orders and cannot be deleted", orders))
			}

			if err := tx.Where("customer_id = ?", id).Delete(&models.CustomerTag{}).Error; err != nil {
				return fmt.Errorf("delete customer tags: %w", err)
			}
			if err := tx.Where("customer_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
				return fmt.Errorf("delete enrollments: %w", err)
			}
			if err := tx.Model(&models.EmailLog{}).Where("customer_id = ?", id).
				Update("customer_id", nil).Error; err != nil {
				return fmt.Errorf("detach email logs: %w", err)
			}
			if err := tx.Delete(&models.Customer{}, id).Error; err != nil {
				return fmt.Errorf("delete customer: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "customer.delete",
				EntityType: "customer", EntityID: id, Before: customer,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
	}
}
