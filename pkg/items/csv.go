package items

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/matzehuels/labelkit/pkg/errors"
)

// Recognized CSV header names. Matching is case-insensitive and ignores
// surrounding spaces.
var columnAliases = map[string]string{
	"code":         "code",
	"codigo":       "code",
	"sku":          "code",
	"name":         "name",
	"nombre":       "name",
	"descripcion":  "name",
	"price":        "price",
	"precio":       "price",
	"quantity":     "quantity",
	"qty":          "quantity",
	"cantidad":     "quantity",
	"distribuidor": "distribuidor",
}

// ReadCSV reads articles from a CSV export with a header row. The separator
// is ',' or ';', detected from the header. Only the code column is
// required; a missing quantity column means one copy per article.
//
// Prices and quantities accept a decimal comma ("19,50") when the separator
// is ';'. Malformed rows are reported with their line number.
func ReadCSV(r io.Reader) ([]Article, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read csv")
	}
	sep := detectSeparator(head)

	cr := csv.NewReader(br)
	cr.Comma = sep
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Validation("csv is empty")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read csv header")
	}

	cols := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name, ok := columnAliases[key]; ok {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
		}
	}
	if _, ok := cols["code"]; !ok {
		return nil, errors.Validation("csv header has no code column: %v", header)
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var articles []Article
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read csv")
		}
		line, _ := cr.FieldPos(0)
		if isBlank(rec) {
			continue
		}

		a := Article{
			Code:     field(rec, "code"),
			Name:     field(rec, "name"),
			Quantity: 1,
		}
		if a.Code == "" {
			return nil, errors.Validation("line %d: code is required", line)
		}
		if a.Price, err = parseNumber(field(rec, "price"), sep); err != nil {
			return nil, errors.Validation("line %d: invalid price %q", line, field(rec, "price"))
		}
		if a.Price < 0 {
			return nil, errors.Validation("line %d: negative price %q", line, field(rec, "price"))
		}
		if _, ok := cols["quantity"]; ok {
			if a.Quantity, err = parseNumber(field(rec, "quantity"), sep); err != nil {
				return nil, errors.Validation("line %d: invalid quantity %q", line, field(rec, "quantity"))
			}
		}
		if s := field(rec, "distribuidor"); s != "" {
			d, err := parseNumber(s, sep)
			if err != nil {
				return nil, errors.Validation("line %d: invalid distribuidor %q", line, s)
			}
			a.Distribuidor = &d
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func detectSeparator(head []byte) rune {
	first, _, _ := bytes.Cut(head, []byte("\n"))
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

// parseNumber parses a plain decimal. Empty means zero.
func parseNumber(s string, sep rune) (float64, error) {
	if s == "" {
		return 0, nil
	}
	if sep == ';' {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
