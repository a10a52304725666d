package mockdata

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleRows() []Row {
	return []Row{
		{"id": 1, "name": "Alice Chen", "city": "Berlin"},
		{"id": 2, "name": "Bob Evans", "city": "Lisbon"},
		{"id": 3, "name": "Carol Alison", "city": "Berlin"},
		{"id": 4, "name": "David Kim", "city": "Oslo"},
	}
}

func rowIDs(rows []Row) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["id"].(int))
	}
	return out
}

func TestGenerateIsDeterministic(t *testing.T) {
	t.Parallel()
	opts := Options{Seed: 42, Customers: 10, Products: 5, Orders: 20}
	a := Generate(opts)
	b := Generate(opts)

	if diff := cmp.Diff(a["customers"].Rows, b["customers"].Rows); diff != "" {
		t.Errorf("same seed produced different customers (-a +b):\n%s", diff)
	}
	if len(a["customers"].Rows) != 10 || len(a["products"].Rows) != 5 || len(a["orders"].Rows) != 20 {
		t.Errorf("dataset sizes = %d/%d/%d, want 10/5/20",
			len(a["customers"].Rows), len(a["products"].Rows), len(a["orders"].Rows))
	}
}

func TestFilterSubstringCaseInsensitive(t *testing.T) {
	t.Parallel()
	rows := sampleRows()

	got := Filter(rows, url.Values{"filter_name": {"ali"}})
	if diff := cmp.Diff(rowIDs(got), []int{1, 3}); diff != "" {
		t.Errorf("filter_name=ali mismatch (-got +want):\n%s", diff)
	}

	got = Filter(rows, url.Values{"filter_city": {"BERLIN"}})
	if diff := cmp.Diff(rowIDs(got), []int{1, 3}); diff != "" {
		t.Errorf("filter_city=BERLIN mismatch (-got +want):\n%s", diff)
	}

	// Multiple filters combine with AND.
	got = Filter(rows, url.Values{"filter_name": {"ali"}, "filter_city": {"berlin"}})
	if diff := cmp.Diff(rowIDs(got), []int{1, 3}); diff != "" {
		t.Errorf("combined filters mismatch (-got +want):\n%s", diff)
	}

	// Unknown field matches nothing.
	if got = Filter(rows, url.Values{"filter_nope": {"x"}}); len(got) != 0 {
		t.Errorf("filter on unknown field kept %d rows, want 0", len(got))
	}

	// Non-filter params are ignored.
	if got = Filter(rows, url.Values{"page": {"2"}}); len(got) != len(rows) {
		t.Errorf("non-filter params dropped rows: %d", len(got))
	}
}

func TestSortStableAndTyped(t *testing.T) {
	t.Parallel()
	rows := []Row{
		{"id": 1, "price": 9.5},
		{"id": 2, "price": 2.0},
		{"id": 3, "price": 9.5},
		{"id": 4, "price": 30.0},
	}

	asc := Sort(rows, "price", "asc")
	if diff := cmp.Diff(rowIDs(asc), []int{2, 1, 3, 4}); diff != "" {
		t.Errorf("ascending sort mismatch (-got +want):\n%s", diff)
	}

	desc := Sort(rows, "price", "desc")
	if diff := cmp.Diff(rowIDs(desc), []int{4, 1, 3, 2}); diff != "" {
		t.Errorf("descending sort mismatch (-got +want):\n%s", diff)
	}

	// Empty sortBy leaves order untouched.
	same := Sort(rows, "", "asc")
	if diff := cmp.Diff(rowIDs(same), []int{1, 2, 3, 4}); diff != "" {
		t.Errorf("no-op sort mismatch (-got +want):\n%s", diff)
	}

	// String fields sort lexically.
	named := Sort(sampleRows(), "name", "asc")
	if diff := cmp.Diff(rowIDs(named), []int{1, 2, 3, 4}); diff != "" {
		t.Errorf("name sort mismatch (-got +want):\n%s", diff)
	}
}

func TestPaginate(t *testing.T) {
	t.Parallel()
	rows := sampleRows()

	p := Paginate(rows, 1, 3)
	if p.Total != 4 || p.TotalPages != 2 || len(p.Rows) != 3 {
		t.Errorf("page 1: %+v", p)
	}

	p = Paginate(rows, 2, 3)
	if len(p.Rows) != 1 || p.Rows[0]["id"].(int) != 4 {
		t.Errorf("page 2: %+v", p)
	}

	// Past the end: empty rows, metadata intact.
	p = Paginate(rows, 99, 3)
	if len(p.Rows) != 0 || p.Total != 4 {
		t.Errorf("page 99: %+v", p)
	}

	// Bad inputs clamp to defaults.
	p = Paginate(rows, 0, 0)
	if p.Page != 1 || p.Limit != 10 || len(p.Rows) != 4 {
		t.Errorf("clamped page: %+v", p)
	}

	// Empty dataset still reports one page.
	p = Paginate(nil, 1, 10)
	if p.TotalPages != 1 || p.Total != 0 {
		t.Errorf("empty dataset: %+v", p)
	}
}

func TestEnvelopeShape(t *testing.T) {
	t.Parallel()
	p := Paginate(sampleRows(), 1, 2)
	env := Envelope("customers", p)

	if _, ok := env["customers"]; !ok {
		t.Error("envelope missing entity key")
	}
	for _, key := range []string{"total", "page", "limit", "totalPages"} {
		if _, ok := env[key]; !ok {
			t.Errorf("envelope missing %q", key)
		}
	}
}
