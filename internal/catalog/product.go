// Package catalog holds the product snapshot of a browsing session and the query engine over it.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Product is a read-only catalog item as served by the backend.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Photo        *string         `json:"photo"`
	Category     *Label          `json:"category"`
	Manufacturer *Label          `json:"manufacturer"`
	Rating       *float64        `json:"avg_grade,omitempty"`
}

// Label is a category or manufacturer name.
// The backend sends it as a string, a {"name": ...} object or a numeric id.
type Label string

func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Label(s)
	case '{':
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*l = Label(obj.Name)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported label value %s", data)
		}
		if i, err := n.Int64(); err == nil {
			*l = Label(strconv.FormatInt(i, 10))
			return nil
		}
		*l = Label(n.String())
	}
	return nil
}

// labelValue returns the label text, empty for a missing label.
func labelValue(l *Label) string {
	if l == nil {
		return ""
	}
	return string(*l)
}

type Reviewer struct {
	Name string `json:"fio"`
}

type Review struct {
	Text  string          `json:"text"`
	Grade decimal.Decimal `json:"grade"`
	User  *Reviewer       `json:"user,omitempty"`
}

// Detail is a single product with its reviews.
type Detail struct {
	Product
	Reviews []Review `json:"reviews"`
}

// AverageGrade returns the backend's average if present, otherwise the mean of the review grades.
func (d Detail) AverageGrade() (decimal.Decimal, bool) {
	if d.Rating != nil {
		return decimal.NewFromFloat(*d.Rating), true
	}
	if len(d.Reviews) == 0 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, r := range d.Reviews {
		sum = sum.Add(r.Grade)
	}
	return sum.Div(decimal.NewFromInt(int64(len(d.Reviews)))).Round(1), true
}
