// Package shipping computes order shipping fees from per-category rates.
package shipping

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/junaidrashid-git/crm-admin-api/models"
)

const (
	DefaultGroup      = "default"
	NotShippableGroup = "not_shippable"
	categoryPrefix    = "category:"
)

// Line is one priced cart entry.
type Line struct {
	ProductID    uint                `json:"product_id"`
	Name         string              `json:"name"`
	Price        decimal.Decimal     `json:"price"`
	Quantity     int                 `json:"quantity"`
	CategoryID   *uint               `json:"category_id"`
	CategoryType models.CategoryType `json:"category_type"`
}

func (l Line) Amount() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Rate struct {
	Fee       decimal.Decimal
	Threshold decimal.NullDecimal
}

func RateFrom(r models.ShippingRate) Rate {
	return Rate{Fee: r.Fee, Threshold: r.FreeShippingThreshold}
}

// RateBook holds every configured rate. Default is nil when no fallback row exists.
type RateBook struct {
	Default    *Rate
	ByCategory map[uint]Rate
}

// Group is the set of lines billed under one rate.
type Group struct {
	Key        string              `json:"key"`
	CategoryID *uint               `json:"category_id,omitempty"`
	Subtotal   decimal.Decimal     `json:"subtotal"`
	Fee        decimal.Decimal     `json:"fee"`
	Threshold  decimal.NullDecimal `json:"free_shipping_threshold"`
	Waived     bool                `json:"waived"`
	Shippable  bool                `json:"shippable"`
	Lines      int                 `json:"lines"`
}

type Quote struct {
	ShippingFee           decimal.Decimal     `json:"shipping_fee"`
	SubtotalAmount        decimal.Decimal     `json:"subtotal_amount"`
	TotalAmount           decimal.Decimal     `json:"total_amount"`
	FreeShippingApplied   bool                `json:"free_shipping_applied"`
	FreeShippingThreshold decimal.NullDecimal `json:"free_shipping_threshold"`
	Groups                []Group             `json:"groups"`
}

// Calculate prices lines against book. It does no I/O; callers validate lines first.
//
// Lines whose category has its own rate are billed under that rate. Every other
// shippable line pools into the default group. Non-shippable category types
// (digital goods, courses) never incur a fee. A group's fee is waived when its
// subtotal reaches the rate's free-shipping threshold.
func Calculate(lines []Line, book RateBook) Quote {
	groups := make(map[string]*Group)
	for _, l := range lines {
		g := groupFor(groups, l, book)
		g.Subtotal = g.Subtotal.Add(l.Amount())
		g.Lines++
	}

	q := Quote{
		ShippingFee:    decimal.Zero,
		SubtotalAmount: decimal.Zero,
	}
	if book.Default != nil {
		q.FreeShippingThreshold = book.Default.Threshold
	}

	var shippable []*Group
	for _, g := range groups {
		if g.Shippable {
			if g.Threshold.Valid && g.Subtotal.GreaterThanOrEqual(g.Threshold.Decimal) {
				g.Waived = true
				g.Fee = decimal.Zero
			}
			shippable = append(shippable, g)
		}
		q.SubtotalAmount = q.SubtotalAmount.Add(g.Subtotal)
		q.ShippingFee = q.ShippingFee.Add(g.Fee)
	}
	if len(shippable) == 1 {
		q.FreeShippingThreshold = shippable[0].Threshold
	}

	q.TotalAmount = q.SubtotalAmount.Add(q.ShippingFee)
	q.FreeShippingApplied = q.ShippingFee.IsZero()
	q.Groups = sortedGroups(groups)
	return q
}

func groupFor(groups map[string]*Group, l Line, book RateBook) *Group {
	key, rate, categoryID := resolve(l, book)
	if g, ok := groups[key]; ok {
		return g
	}
	g := &Group{Key: key, CategoryID: categoryID, Subtotal: decimal.Zero, Fee: decimal.Zero}
	if key != NotShippableGroup {
		g.Shippable = true
		if rate != nil {
			g.Fee = rate.Fee
			g.Threshold = rate.Threshold
		}
	}
	groups[key] = g
	return g
}

func resolve(l Line, book RateBook) (string, *Rate, *uint) {
	if !l.CategoryType.Shippable() {
		return NotShippableGroup, nil, nil
	}
	if l.CategoryID != nil {
		if rate, ok := book.ByCategory[*l.CategoryID]; ok {
			id := *l.CategoryID
			return categoryPrefix + strconv.FormatUint(uint64(id), 10), &rate, &id
		}
	}
	return DefaultGroup, book.Default, nil
}

// sortedGroups orders the default group first, then categories by id, then the
// non-shippable group.
func sortedGroups(groups map[string]*Group) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	rank := func(g Group) (int, uint) {
		switch {
		case g.Key == DefaultGroup:
			return 0, 0
		case g.CategoryID != nil:
			return 1, *g.CategoryID
		default:
			return 2, 0
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, ci := rank(out[i])
		rj, cj := rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return ci < cj
	})
	return out
}
