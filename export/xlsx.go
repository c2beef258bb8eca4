package export

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"

	"github.com/junaidrashid-git/crm-admin-api/models"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ProductHeader = []string{
	"ID", "Name", "Description", "Price", "Stock", "Active",
	"CategoryID", "Category", "Image", "CreatedAt", "UpdatedAt",
}

var ErrEmptySheet = errors.New("excel file is empty or missing header row")

// Products writes a one-sheet workbook. Categories should be preloaded.
func Products(w io.Writer, products []models.Product) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return err
	}

	headerRow := sheet.AddRow()
	for _, h := range ProductHeader {
		headerRow.AddCell().SetString(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetInt(int(p.ID))
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.Description)
		row.AddCell().SetString(p.Price.StringFixed(2))
		row.AddCell().SetInt(p.Stock)
		row.AddCell().SetBool(p.Active)

		categoryID, categoryName := "", ""
		if p.CategoryID != nil {
			categoryID = id(*p.CategoryID)
		}
		if p.Category != nil {
			categoryName = p.Category.Name
		}
		row.AddCell().SetString(categoryID)
		row.AddCell().SetString(categoryName)
		row.AddCell().SetString(p.Image)
		row.AddCell().SetString(formatTime(p.CreatedAt))
		row.AddCell().SetString(formatTime(p.UpdatedAt))
	}

	return file.Write(w)
}

// ImportedProduct is one parsed sheet row. ID is zero for new products.
type ImportedProduct struct {
	Row        int
	ID         uint
	Name       string
	Desc       string
	Price      decimal.Decimal
	Stock      int
	Active     bool
	CategoryID *uint
	Image      string
}

// ParseProducts reads rows laid out like the Products export. Rows without a
// name or with an unparseable price or stock are counted as skipped.
func ParseProducts(r io.ReaderAt, size int64) ([]ImportedProduct, int, error) {
	xlFile, err := xlsx.OpenReaderAt(r, size)
	if err != nil {
		return nil, 0, err
	}
	if len(xlFile.Sheets) == 0 || xlFile.Sheets[0].MaxRow < 2 {
		return nil, 0, ErrEmptySheet
	}

	sheet := xlFile.Sheets[0]
	var out []ImportedProduct
	skipped := 0
	for i := 1; i < len(sheet.Rows); i++ {
		row := sheet.Rows[i]
		get := func(index int) string {
			if index < len(row.Cells) {
				return strings.TrimSpace(row.Cells[index].String())
			}
			return ""
		}

		name := get(1)
		price, errPrice := decimal.NewFromString(get(3))
		stock, errStock := strconv.Atoi(get(4))
		if name == "" || errPrice != nil || errStock != nil || price.IsNegative() || stock < 0 {
			skipped++
			continue
		}

		p := ImportedProduct{
			Row:    i + 1,
			Name:   name,
			Desc:   get(2),
			Price:  price,
			Stock:  stock,
			Active: parseBool(get(5)),
			Image:  get(8),
		}
		if v, err := strconv.ParseUint(get(0), 10, 64); err == nil {
			p.ID = uint(v)
		}
		if v, err := strconv.ParseUint(get(6), 10, 64); err == nil && v > 0 {
			cid := uint(v)
			p.CategoryID = &cid
		}
		out = append(out, p)
	}
	return out, skipped, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
