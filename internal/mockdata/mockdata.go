// Package mockdata serves the static example datasets (customers,
// products, orders) behind generic filter/sort/paginate helpers. It only
// feeds example pages; the calendar engine never reads it.
package mockdata

import (
	"fmt"
	"math/rand"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Row is one dataset record; values are strings or numbers.
type Row map[string]any

// Dataset is a named in-memory collection.
type Dataset struct {
	Name string
	Rows []Row
}

// Options controls deterministic dataset generation.
type Options struct {
	Seed      int64
	Customers int
	Products  int
	Orders    int
}

// DefaultOptions matches the sample data sizes of the example pages.
func DefaultOptions() Options {
	return Options{Seed: 1, Customers: 50, Products: 40, Orders: 120}
}

var (
	firstNames = []string{"Alice", "Bob", "Carol", "David", "Elena", "Frank", "Grace", "Henrik", "Ines", "Jonas", "Karin", "Liam", "Mara", "Noel", "Olga", "Pavel"}
	lastNames  = []string{"Anders", "Brown", "Chen", "Dubois", "Evans", "Fischer", "Garcia", "Huang", "Ivanov", "Jensen", "Kim", "Larsen", "Meyer", "Novak", "Olsen", "Peters"}
	cities     = []string{"Berlin", "Lisbon", "Oslo", "Prague", "Seoul", "Tokyo", "Toronto", "Vienna", "Warsaw", "Zurich"}
	adjectives = []string{"Compact", "Deluxe", "Eco", "Heavy-Duty", "Modular", "Portable", "Smart", "Ultra"}
	nouns      = []string{"Desk", "Lamp", "Monitor", "Mouse", "Notebook", "Router", "Speaker", "Stand"}
	statuses   = []string{"pending", "shipped", "delivered", "cancelled"}
)

// Generate builds the three datasets deterministically from the seed.
func Generate(opts Options) map[string]*Dataset {
	rng := rand.New(rand.NewSource(opts.Seed))

	customers := &Dataset{Name: "customers"}
	for i := 0; i < opts.Customers; i++ {
		customers.Rows = append(customers.Rows, Row{
			"id":    i + 1,
			"name":  firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))],
			"email": fmt.Sprintf("customer%d@example.com", i+1),
			"city":  cities[rng.Intn(len(cities))],
		})
	}

	products := &Dataset{Name: "products"}
	for i := 0; i < opts.Products; i++ {
		products.Rows = append(products.Rows, Row{
			"id":    i + 1,
			"name":  adjectives[rng.Intn(len(adjectives))] + " " + nouns[rng.Intn(len(nouns))],
			"price": float64(rng.Intn(49000)+1000) / 100,
			"stock": rng.Intn(500),
		})
	}

	orders := &Dataset{Name: "orders"}
	for i := 0; i < opts.Orders; i++ {
		orders.Rows = append(orders.Rows, Row{
			"id":         i + 1,
			"customerId": rng.Intn(max(opts.Customers, 1)) + 1,
			"productId":  rng.Intn(max(opts.Products, 1)) + 1,
			"quantity":   rng.Intn(9) + 1,
			"status":     statuses[rng.Intn(len(statuses))],
		})
	}

	return map[string]*Dataset{
		"customers": customers,
		"products":  products,
		"orders":    orders,
	}
}

// FilterPrefix is the query-parameter prefix marking substring filters,
// e.g. filter_name=ali.
const FilterPrefix = "filter_"

// Filter keeps the rows whose field value contains the filter text,
// case-insensitively, for every filter_<field> pair in the query.
func Filter(rows []Row, query url.Values) []Row {
	type match struct{ field, needle string }
	matches := make([]match, 0)
	for key, vals := range query {
		if !strings.HasPrefix(key, FilterPrefix) || len(vals) == 0 || vals[0] == "" {
			continue
		}
		matches = append(matches, match{field: strings.TrimPrefix(key, FilterPrefix), needle: strings.ToLower(vals[0])})
	}
	if len(matches) == 0 {
		return rows
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, m := range matches {
			v, ok := row[m.field]
			if !ok || !strings.Contains(strings.ToLower(fmt.Sprint(v)), m.needle) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

// Sort orders rows by the given field. sortOrder "desc" reverses; the
// sort is stable so equal keys keep their dataset order. Unknown fields
// leave the order untouched.
func Sort(rows []Row, sortBy, sortOrder string) []Row {
	if sortBy == "" {
		return rows
	}
	out := make([]Row, len(rows))
	copy(out, rows)

	desc := strings.EqualFold(sortOrder, "desc")
	sort.SliceStable(out, func(i, j int) bool {
		less := lessValue(out[i][sortBy], out[j][sortBy])
		if desc {
			return lessValue(out[j][sortBy], out[i][sortBy])
		}
		return less
	})
	return out
}

func lessValue(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	rv := reflect.ValueOf(v)
	if rv.IsValid() && rv.CanFloat() {
		return rv.Float(), true
	}
	return 0, false
}

// Page is one page of results plus its envelope metadata.
type Page struct {
	Rows       []Row
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// Paginate slices rows into the requested page. page and limit are
// 1-based and clamped to sane values; a page past the end is empty.
func Paginate(rows []Row, page, limit int) Page {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	total := len(rows)
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return Page{
		Rows:       rows[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// Envelope renders the response shape the example pages expect:
// { <entity>: [...], total, page, limit, totalPages }.
func Envelope(entity string, p Page) map[string]any {
	return map[string]any{
		entity:       p.Rows,
		"total":      p.Total,
		"page":       p.Page,
		"limit":      p.Limit,
		"totalPages": p.TotalPages,
	}
}
