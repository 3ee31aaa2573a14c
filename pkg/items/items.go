// Package items reads article records exported by inventory systems and
// turns them into label line items.
package items

import (
	"encoding/json"
	"io"

	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/zpl"
)

// Article is one inventory record. Distribuidor (distributor price) is
// carried through for templates but never printed.
type Article struct {
	Code         string   `json:"code" validate:"required"`
	Name         string   `json:"name"`
	Price        float64  `json:"price" validate:"gte=0"`
	Distribuidor *float64 `json:"distribuidor,omitempty"`
	Quantity     float64  `json:"quantity"`
}

// LineItem converts a into an emitter line item. Quantity becomes the copy
// count; fractional or negative quantities are normalized by [zpl.Copies].
func (a Article) LineItem() zpl.Item {
	return zpl.Item{
		Code:      a.Code,
		Name:      a.Name,
		UnitPrice: a.Price,
		Copies:    zpl.Copies(a.Quantity),
	}
}

// LineItems converts articles in order.
func LineItems(articles []Article) []zpl.Item {
	out := make([]zpl.Item, len(articles))
	for i, a := range articles {
		out[i] = a.LineItem()
	}
	return out
}

// TotalCopies returns the number of labels the articles will produce.
func TotalCopies(articles []Article) int {
	n := 0
	for _, a := range articles {
		n += zpl.Copies(a.Quantity)
	}
	return n
}

// ReadJSON decodes a JSON array of articles.
func ReadJSON(r io.Reader) ([]Article, error) {
	var articles []Article
	if err := json.NewDecoder(r).Decode(&articles); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode articles")
	}
	for i, a := range articles {
		if a.Code == "" {
			return nil, errors.Validation("article %d: code is required", i+1)
		}
	}
	return articles, nil
}
