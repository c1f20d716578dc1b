package store

import (
	"context"
	"errors"
	"testing"
)

func seededMemory() *Memory {
	m := NewMemory()
	m.Insert("cars",
		Row{"slug": "bmw-m3-e46", "name": "BMW M3", "make": "BMW", "year": 2004, "hp": 333},
		Row{"slug": "nissan-gtr-r35", "name": "Nissan GT-R", "make": "Nissan", "year": 2017, "hp": 565},
		Row{"slug": "mazda-mx5-nd", "name": "Mazda MX-5", "make": "Mazda", "year": 2019, "hp": 181},
	)
	return m
}

func TestMemory_SelectFilters(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"eq", Query{Table: "cars", Filters: []Filter{Eq("make", "BMW")}}, []string{"bmw-m3-e46"}},
		{"gte", Query{Table: "cars", Filters: []Filter{Gte("hp", 300)}, OrderBy: "hp"}, []string{"bmw-m3-e46", "nissan-gtr-r35"}},
		{"lte", Query{Table: "cars", Filters: []Filter{Lte("year", 2010)}}, []string{"bmw-m3-e46"}},
		{"ilike", Query{Table: "cars", Filters: []Filter{ILike("name", "%gt-r%")}}, []string{"nissan-gtr-r35"}},
		{"in", Query{Table: "cars", Filters: []Filter{In("slug", "mazda-mx5-nd", "bmw-m3-e46")}, OrderBy: "slug"}, []string{"bmw-m3-e46", "mazda-mx5-nd"}},
		{"or", Query{Table: "cars", Or: []Filter{ILike("name", "%mazda%"), ILike("make", "%bmw%")}, OrderBy: "year", Desc: true}, []string{"mazda-mx5-nd", "bmw-m3-e46"}},
		{"limit", Query{Table: "cars", OrderBy: "hp", Desc: true, Limit: 1}, []string{"nissan-gtr-r35"}},
		{"missing table", Query{Table: "nope"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := m.Select(ctx, tt.q)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if len(rows) != len(tt.want) {
				t.Fatalf("Select() returned %d rows, want %d", len(rows), len(tt.want))
			}
			for i, slug := range tt.want {
				if rows[i]["slug"] != slug {
					t.Errorf("row %d slug = %v, want %s", i, rows[i]["slug"], slug)
				}
			}
		})
	}
}

func TestMemory_SelectProjectsColumns(t *testing.T) {
	rows, err := seededMemory().Select(context.Background(), Query{
		Table:   "cars",
		Columns: []string{"slug"},
		Filters: []Filter{Eq("make", "Mazda")},
	})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows[0]) != 1 {
		t.Errorf("projected row = %v, want only slug", rows[0])
	}
}

func TestMemory_SelectRejectsBadIdentifiers(t *testing.T) {
	_, err := seededMemory().Select(context.Background(), Query{Table: "cars; drop table cars"})
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("Select() error = %v, want ErrInvalidIdentifier", err)
	}
}

func TestMemory_CallMissingProcedure(t *testing.T) {
	m := NewMemory()
	_, err := m.Call(context.Background(), "get_car_ai_context_v2", nil)
	if !errors.Is(err, ErrProcedureNotFound) {
		t.Errorf("Call() error = %v, want ErrProcedureNotFound", err)
	}
	if m.Calls("get_car_ai_context_v2") != 1 {
		t.Error("missing procedure calls should still be counted")
	}
}

func TestMemory_CallRegistered(t *testing.T) {
	m := NewMemory()
	m.Register("recommend_build", func(_ context.Context, args map[string]any) (Rows, error) {
		return Rows{{"goal": args["goal"]}}, nil
	})

	rows, err := m.Call(context.Background(), "recommend_build", map[string]any{"goal": "track"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if rows[0]["goal"] != "track" {
		t.Errorf("Call() = %v", rows)
	}
}

func TestMemory_Update(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	err := m.Update(ctx, "cars", map[string]any{"slug": "bmw-m3-e46"}, map[string]any{"hp": 343})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	rows, _ := m.Select(ctx, Query{Table: "cars", Filters: []Filter{Eq("slug", "bmw-m3-e46")}})
	if rows[0]["hp"] != 343 {
		t.Errorf("hp = %v, want 343", rows[0]["hp"])
	}

	err = m.Update(ctx, "cars", map[string]any{"slug": "missing"}, map[string]any{"hp": 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() on no rows = %v, want ErrNotFound", err)
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := seededMemory().Select(ctx, Query{Table: "cars"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Select() error = %v, want context.Canceled", err)
	}
}

func TestLikeMatch(t *testing.T) {
	tests := []struct {
		s, pattern string
		want       bool
	}{
		{"turbo charger", "%turbo%", true},
		{"turbo charger", "turbo%", true},
		{"turbo charger", "%charger", true},
		{"turbo charger", "%super%", false},
		{"abc", "abc", true},
		{"abc", "a%c", true},
		{"abc", "a%d", false},
		{"m23", "m_3", true},
		{"m23", `m\_3`, false},
		{"m_3", `m\_3`, true},
		{"100% synthetic", `%100\%%`, true},
		{"1000 synthetic", `%100\%%`, false},
		{`c:\tmp`, `c:\\tmp`, true},
		{"aXbXc", "%b%c", true},
		{"", "%", true},
		{"", "_", false},
	}
	for _, tt := range tests {
		if got := likeMatch(tt.s, tt.pattern); got != tt.want {
			t.Errorf("likeMatch(%q, %q) = %v, want %v", tt.s, tt.pattern, got, tt.want)
		}
	}
}

type carRow struct {
	Slug string `json:"slug"`
	Year int    `json:"year"`
}

func TestDecodeAndFirst(t *testing.T) {
	rows := Rows{{"slug": "a", "year": 2001}, {"slug": "b", "year": 2002}}

	cars, err := Decode[carRow](rows)
	if err != nil || len(cars) != 2 || cars[1].Year != 2002 {
		t.Fatalf("Decode() = %+v, %v", cars, err)
	}

	first, err := First[carRow](rows)
	if err != nil || first.Slug != "a" {
		t.Errorf("First() = %+v, %v", first, err)
	}

	if _, err := First[carRow](nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("First(nil) error = %v, want ErrNotFound", err)
	}
}

func TestEscapeLike(t *testing.T) {
	if got, want := EscapeLike(`50%_off\`), `50\%\_off\\`; got != want {
		t.Errorf("EscapeLike() = %s, want %s", got, want)
	}

	m := NewMemory()
	m.Insert("parts", Row{"name": "M23 mount"}, Row{"name": "m_3 bracket"})
	rows, err := m.Select(context.Background(), Query{
		Table:   "parts",
		Filters: []Filter{ILike("name", "%"+EscapeLike("m_3")+"%")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["name"] != "m_3 bracket" {
		t.Errorf("rows = %v", rows)
	}
}
