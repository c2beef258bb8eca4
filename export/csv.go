// Package export renders admin listings as CSV and spreadsheet downloads.
package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/junaidrashid-git/crm-admin-api/models"
)

const (
	bom        = "\uFEFF"
	timeLayout = "2006-01-02 15:04:05"
)

var (
	CustomerHeader = []string{"ID", "Name", "Email", "Phone", "Tags", "CreatedAt"}
	CourseHeader   = []string{"ID", "Name", "Price", "Active", "Enrollments", "CreatedAt"}
	TagHeader      = []string{"ID", "Name", "Color", "Customers"}
)

// CSVWriter writes a BOM-prefixed file where every field is double-quoted.
// encoding/csv only quotes fields that need it, which spreadsheet imports of
// phone numbers and ids mangle.
type CSVWriter struct {
	w       *bufio.Writer
	started bool
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: bufio.NewWriter(w)}
}

func (cw *CSVWriter) Write(record []string) error {
	if !cw.started {
		if _, err := cw.w.WriteString(bom); err != nil {
			return err
		}
		cw.started = true
	}
	for i, field := range record {
		if i > 0 {
			if err := cw.w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := cw.w.WriteString(quote(field)); err != nil {
			return err
		}
	}
	return cw.w.WriteByte('\n')
}

func (cw *CSVWriter) Flush() error {
	return cw.w.Flush()
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

func id(v uint) string { return strconv.FormatUint(uint64(v), 10) }

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := NewCSVWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// Customers writes customers with their tag names joined by "; ".
// Tags must be preloaded.
func Customers(w io.Writer, customers []models.Customer) error {
	rows := make([][]string, 0, len(customers))
	for _, c := range customers {
		names := make([]string, 0, len(c.Tags))
		for _, t := range c.Tags {
			names = append(names, t.Name)
		}
		rows = append(rows, []string{
			id(c.ID), c.Name, c.Email, c.Phone, strings.Join(names, "; "), formatTime(c.CreatedAt),
		})
	}
	return writeAll(w, CustomerHeader, rows)
}

type CourseRow struct {
	Course      models.Course
	Enrollments int64
}

func Courses(w io.Writer, courses []CourseRow) error {
	rows := make([][]string, 0, len(courses))
	for _, r := range courses {
		rows = append(rows, []string{
			id(r.Course.ID),
			r.Course.Name,
			r.Course.Price.StringFixed(2),
			strconv.FormatBool(r.Course.Active),
			strconv.FormatInt(r.Enrollments, 10),
			formatTime(r.Course.CreatedAt),
		})
	}
	return writeAll(w, CourseHeader, rows)
}

type TagRow struct {
	Tag       models.Tag
	Customers int64
}

func Tags(w io.Writer, tags []TagRow) error {
	rows := make([][]string, 0, len(tags))
	for _, r := range tags {
		rows = append(rows, []string{
			id(r.Tag.ID), r.Tag.Name, r.Tag.Color, strconv.FormatInt(r.Customers, 10),
		})
	}
	return writeAll(w, TagHeader, rows)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
