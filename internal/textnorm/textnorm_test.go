package textnorm

import (
	"sort"
	"testing"
	"time"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse spaces", "  El   padrino  ", "El padrino"},
		{"space after comma", "Hola,mundo", "Hola, mundo"},
		{"no space before colon", "Star Wars : Episodio IV", "Star Wars: Episodio IV"},
		{"hyphen", "Spider-Man", "Spider- Man"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.in); got != tt.want {
				t.Fatalf("String(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUserName(t *testing.T) {
	if got := UserName(" José  Pérez "); got != "joseperez" {
		t.Fatalf("UserName = %q, want joseperez", got)
	}
	if got := UserName("ÑANDÚ"); got != "nandu" {
		t.Fatalf("UserName = %q, want nandu", got)
	}
}

func TestFold(t *testing.T) {
	if got := Fold("Ciencia  Ficción"); got != "ciencia ficcion" {
		t.Fatalf("Fold = %q", got)
	}
}

func TestListAndDedupe(t *testing.T) {
	got := Dedupe(List("Dune, Alien", "Alien", " ", "Heat"))
	want := []string{"Dune", "Alien", "Heat"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)
	if got := Timestamp(ts); got != "05/03/2024 07:08:09" {
		t.Fatalf("Timestamp = %q", got)
	}
	if got := Timestamp(time.Time{}); got != "" {
		t.Fatalf("zero Timestamp = %q, want empty", got)
	}
}

func TestSorterIgnoresCaseAndAccents(t *testing.T) {
	titles := []string{"zodiac", "Érase una vez", "alien", "Eclipse"}
	s := NewSorter()
	sort.Slice(titles, func(i, j int) bool { return s.Less(titles[i], titles[j]) })

	want := []string{"alien", "Eclipse", "Érase una vez", "zodiac"}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", titles, want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := EscapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("EscapeLike = %q", got)
	}
}

func FuzzString(f *testing.F) {
	for _, seed := range []string{"a,b", " x : y ", "", "--", "á é"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		once := String(raw)
		if twice := String(once); twice != once {
			t.Fatalf("String not idempotent: %q -> %q -> %q", raw, once, twice)
		}
	})
}
