package orderControllers_test

import (
	"math"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	orderControllers "github.com/junaidrashid-git/crm-admin-api/controllers/order"
	"github.com/junaidrashid-git/crm-admin-api/database/dbtest"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
	"github.com/junaidrashid-git/crm-admin-api/shipping"
)

type fixture struct {
	db       *gorm.DB
	buyer    models.Customer
	stranger models.Customer
	a, b     models.Product
}

var (
	admin    = auth.Principal{Kind: auth.KindAdmin, ID: 1, Role: permissions.RoleAdmin}
	operator = auth.Principal{Kind: auth.KindAdmin, ID: 2, Role: permissions.RoleOperator}
)

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func customerPrincipal(c models.Customer) auth.Principal {
	return auth.Principal{Kind: auth.KindCustomer, ID: c.ID, Email: c.Email, Role: permissions.RoleCustomer}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: dbtest.Open(t)}
	f.buyer = models.Customer{Email: "buyer@example.com", Name: "Buyer"}
	f.stranger = models.Customer{Email: "other@example.com", Name: "Other"}
	require.NoError(t, f.db.Create(&f.buyer).Error)
	require.NoError(t, f.db.Create(&f.stranger).Error)

	f.a = models.Product{Name: "Product A", Price: decimal.NewFromInt(50), Stock: 10, Active: true}
	f.b = models.Product{Name: "Product B", Price: decimal.NewFromInt(30), Stock: 20, Active: true}
	require.NoError(t, f.db.Create(&f.a).Error)
	require.NoError(t, f.db.Create(&f.b).Error)
	return f
}

// seedOrder writes an order directly, as if placed earlier, without touching stock.
func (f *fixture) seedOrder(t *testing.T, status models.OrderStatus, items ...models.OrderItem) models.Order {
	t.Helper()
	if len(items) == 0 {
		items = []models.OrderItem{
			{ProductID: f.a.ID, ProductName: f.a.Name, UnitPrice: f.a.Price, Quantity: 2},
			{ProductID: f.b.ID, ProductName: f.b.Name, UnitPrice: f.b.Price, Quantity: 3},
		}
	}
	order := models.Order{
		OrderNumber:   "ORD-" + t.Name() + "-" + string(status),
		CustomerID:    f.buyer.ID,
		Items:         items,
		Status:        status,
		PaymentMethod: models.PaymentMethodCOD,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
	require.NoError(t, f.db.Create(&order).Error)
	return order
}

func (f *fixture) stock(t *testing.T, id uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.Unscoped().First(&p, id).Error)
	return p.Stock
}

func (f *fixture) status(t *testing.T, id uint) models.OrderStatus {
	t.Helper()
	var o models.Order
	require.NoError(t, f.db.First(&o, id).Error)
	return o.Status
}

func (f *fixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, models.OrderStatusPending)

	cancelled, err := orderControllers.CancelOrder(f.db, order.ID, customerPrincipal(f.buyer), "")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, models.ActorCustomer, cancelled.CancelledBy)
	assert.Equal(t, orderControllers.CustomerCancelReason, cancelled.CancelReason)
	assert.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, 12, f.stock(t, f.a.ID))
	assert.Equal(t, 23, f.stock(t, f.b.ID))

	var stored models.Order
	require.NoError(t, f.db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	assert.Equal(t, orderControllers.CustomerCancelReason, stored.CancelReason)
	assert.EqualValues(t, 1, f.auditCount(t, "order.cancel"))
}

func TestCancelOrderRollsBackOnMidwayFailure(t *testing.T) {
	f := newFixture(t)
	// The second item points at a product row that does not exist, so the
	// stock restore fails after the status and the first item were written.
	order := f.seedOrder(t, models.OrderStatusPending,
		models.OrderItem{ProductID: f.a.ID, ProductName: f.a.Name, UnitPrice: f.a.Price, Quantity: 2},
		models.OrderItem{ProductID: 9999, ProductName: "Ghost", UnitPrice: decimal.NewFromInt(1), Quantity: 3},
	)

	_, err := orderControllers.CancelOrder(f.db, order.ID, admin, "")
	require.Error(t, err)
	assert.Equal(t, 500, apperr.Status(err))

	assert.Equal(t, models.OrderStatusPending, f.status(t, order.ID))
	assert.Equal(t, 10, f.stock(t, f.a.ID))
	assert.Zero(t, f.auditCount(t, "order.cancel"))
}

func TestCancelOrderTwiceRejected(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, models.OrderStatusPending)

	_, err := orderControllers.CancelOrder(f.db, order.ID, admin, "")
	require.NoError(t, err)

	_, err = orderControllers.CancelOrder(f.db, order.ID, admin, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 12, f.stock(t, f.a.ID), "second cancel must not restore stock again")
	assert.Equal(t, 23, f.stock(t, f.b.ID))
}

func TestCancelOrderRejectedStates(t *testing.T) {
	for _, status := range []models.OrderStatus{models.OrderStatusShipped, models.OrderStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			order := f.seedOrder(t, status)

			_, err := orderControllers.CancelOrder(f.db, order.ID, customerPrincipal(f.buyer), "")
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, status, f.status(t, order.ID))
			assert.Equal(t, 10, f.stock(t, f.a.ID))
		})
	}
}

func TestCancelBackorderedAllowed(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, models.OrderStatusBackordered)
	_, err := orderControllers.CancelOrder(f.db, order.ID, admin, "")
	require.NoError(t, err)
	assert.Equal(t, 12, f.stock(t, f.a.ID))
}

func TestCancelOrderForeignCustomer(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, models.OrderStatusPending)

	_, err := orderControllers.CancelOrder(f.db, order.ID, customerPrincipal(f.stranger), "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.Equal(t, 403, apperr.Status(err))

	assert.Equal(t, models.OrderStatusPending, f.status(t, order.ID))
	assert.Equal(t, 10, f.stock(t, f.a.ID))
	assert.Equal(t, 20, f.stock(t, f.b.ID))
}

func TestCancelOrderNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := orderControllers.CancelOrder(f.db, 4242, admin, "")
	assert.ErrorIs(t, err, orderControllers.ErrOrderNotFound)
	assert.Equal(t, 404, apperr.Status(err))
}

func TestAdminCancelRestoresDeletedProduct(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, models.OrderStatusPending)
	require.NoError(t, f.db.Delete(&models.Product{}, f.a.ID).Error)

	cancelled, err := orderControllers.CancelOrder(f.db, order.ID, admin, "  ")
	require.NoError(t, err)
	assert.Equal(t, models.ActorAdmin, cancelled.CancelledBy)
	assert.Equal(t, orderControllers.AdminCancelReason, cancelled.CancelReason)
	assert.Equal(t, 12, f.stock(t, f.a.ID))
}

func TestCanTransition(t *testing.T) {
	s := struct{ P, B, S, C, X models.OrderStatus }{
		models.OrderStatusPending, models.OrderStatusBackordered, models.OrderStatusShipped,
		models.OrderStatusCompleted, models.OrderStatusCancelled,
	}
	allowed := map[[2]models.OrderStatus]bool{
		{s.P, s.S}: true, {s.P, s.B}: true, {s.P, s.C}: true, {s.P, s.X}: true,
		{s.B, s.P}: true, {s.B, s.S}: true, {s.B, s.X}: true,
		{s.S, s.C}: true,
	}
	for _, from := range models.OrderStatuses() {
		for _, to := range models.OrderStatuses() {
			assert.Equal(t, allowed[[2]models.OrderStatus{from, to}], orderControllers.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, models.OrderStatusPending)

	updated, err := orderControllers.UpdateOrderStatus(f.db, order.ID, "shipped", operator, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
	assert.NotNil(t, updated.ShippedAt)

	_, err = orderControllers.UpdateOrderStatus(f.db, order.ID, "SHIPPED", operator, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "same status")

	_, err = orderControllers.UpdateOrderStatus(f.db, order.ID, "PENDING", operator, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "shipped cannot go back")

	_, err = orderControllers.UpdateOrderStatus(f.db, order.ID, "LOST", operator, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "unknown status")

	updated, err = orderControllers.UpdateOrderStatus(f.db, order.ID, "COMPLETED", operator, "")
	require.NoError(t, err)
	assert.NotNil(t, updated.CompletedAt)
	assert.EqualValues(t, 2, f.auditCount(t, "order.status"))
}

func TestUpdateOrderStatusToCancelledRestoresStock(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, models.OrderStatusPending)

	updated, err := orderControllers.UpdateOrderStatus(f.db, order.ID, "CANCELLED", admin, "Out of stock at supplier")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
	assert.Equal(t, "Out of stock at supplier", updated.CancelReason)
	assert.Equal(t, 12, f.stock(t, f.a.ID))
	assert.Equal(t, 23, f.stock(t, f.b.ID))
}

func TestOperatorCannotCancel(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, models.OrderStatusPending)

	_, err := orderControllers.UpdateOrderStatus(f.db, order.ID, "CANCELLED", operator, "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.Equal(t, models.OrderStatusPending, f.status(t, order.ID))
}

func TestCustomerCannotUpdateStatus(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, models.OrderStatusPending)
	_, err := orderControllers.UpdateOrderStatus(f.db, order.ID, "SHIPPED", customerPrincipal(f.buyer), "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func enableCOD(t *testing.T, db *gorm.DB, fee int64) {
	t.Helper()
	require.NoError(t, db.Model(&models.PaymentSettings{}).Where("id = ?", models.PaymentSettingsID).
		Updates(map[string]interface{}{"cod_enabled": true, "cod_fee": decimal.NewFromInt(fee)}).Error)
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	enableCOD(t, f.db, 10)
	require.NoError(t, f.db.Create(&models.ShippingRate{
		Fee:                   decimal.NewFromInt(20),
		FreeShippingThreshold: decimal.NewNullDecimal(decimal.NewFromInt(500)),
	}).Error)

	order, err := orderControllers.PlaceOrder(f.db, customerPrincipal(f.buyer), orderControllers.PlaceOrderRequest{
		Items: []shipping.Item{
			{ProductID: f.a.ID, Quantity: 1},
			{ProductID: f.b.ID, Quantity: 3},
			{ProductID: f.a.ID, Quantity: 1},
		},
		PaymentMethod: "cod",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)
	assert.Regexp(t, `^ORD-\d{14}-[0-9a-f]{8}$`, order.OrderNumber)
	require.Len(t, order.Items, 2)
	assert.True(t, decimal.NewFromInt(190).Equal(order.Subtotal), order.Subtotal.String())
	assert.True(t, decimal.NewFromInt(20).Equal(order.ShippingFee))
	assert.True(t, decimal.NewFromInt(10).Equal(order.CODFee))
	assert.True(t, decimal.NewFromInt(220).Equal(order.Total))

	assert.Equal(t, 8, f.stock(t, f.a.ID))
	assert.Equal(t, 17, f.stock(t, f.b.ID))
	assert.EqualValues(t, 1, f.auditCount(t, "order.place"))

	// Placement and cancellation are inverse on stock
	_, err = orderControllers.CancelOrder(f.db, order.ID, customerPrincipal(f.buyer), "")
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, f.a.ID))
	assert.Equal(t, 20, f.stock(t, f.b.ID))
}

func TestPlaceOrderRejections(t *testing.T) {
	f := newFixture(t)
	enableCOD(t, f.db, 0)

	tests := []struct {
		name string
		p    auth.Principal
		req  orderControllers.PlaceOrderRequest
		kind apperr.Kind
	}{
		{"staff cannot place", admin, orderControllers.PlaceOrderRequest{
			Items: []shipping.Item{{ProductID: f.a.ID, Quantity: 1}}, PaymentMethod: "COD"}, apperr.KindUnauthorized},
		{"no items", customerPrincipal(f.buyer), orderControllers.PlaceOrderRequest{PaymentMethod: "COD"}, apperr.KindValidation},
		{"disabled method", customerPrincipal(f.buyer), orderControllers.PlaceOrderRequest{
			Items: []shipping.Item{{ProductID: f.a.ID, Quantity: 1}}, PaymentMethod: "CARD"}, apperr.KindValidation},
		{"unknown method", customerPrincipal(f.buyer), orderControllers.PlaceOrderRequest{
			Items: []shipping.Item{{ProductID: f.a.ID, Quantity: 1}}, PaymentMethod: "CRYPTO"}, apperr.KindValidation},
		{"unknown product", customerPrincipal(f.buyer), orderControllers.PlaceOrderRequest{
			Items: []shipping.Item{{ProductID: 777, Quantity: 1}}, PaymentMethod: "COD"}, apperr.KindValidation},
		{"quantity over limit", customerPrincipal(f.buyer), orderControllers.PlaceOrderRequest{
			Items: []shipping.Item{{ProductID: f.a.ID, Quantity: shipping.MaxQuantity + 1}}, PaymentMethod: "COD"}, apperr.KindValidation},
		{"overflowing repeated lines", customerPrincipal(f.buyer), orderControllers.PlaceOrderRequest{
			Items: []shipping.Item{{ProductID: f.a.ID, Quantity: math.MaxInt}, {ProductID: f.a.ID, Quantity: 1}}, PaymentMethod: "COD"}, apperr.KindValidation},
		{"insufficient stock", customerPrincipal(f.buyer), orderControllers.PlaceOrderRequest{
			Items: []shipping.Item{{ProductID: f.a.ID, Quantity: 1}, {ProductID: f.b.ID, Quantity: 21}}, PaymentMethod: "COD"}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orderControllers.PlaceOrder(f.db, tt.p, tt.req)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	assert.Equal(t, 10, f.stock(t, f.a.ID))
	assert.Equal(t, 20, f.stock(t, f.b.ID), "failed placement must not keep earlier deductions")
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	assert.Zero(t, n)
}
