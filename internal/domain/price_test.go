package domain

import (
	"encoding/json"
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw     string
		want    Price
		wantErr bool
	}{
		{"0", 0, false},
		{"12", 1200, false},
		{"12.5", 1250, false},
		{"12.05", 1205, false},
		{" 59.99 ", 5999, false},
		{"-1", 0, true},
		{"1.234", 0, true},
		{"1.", 0, true},
		{".5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"1e3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePrice(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePrice(%q) expected error, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrice(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParsePrice(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestPriceJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Price Price `json:"price"`
	}{Price: 4999})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"price":49.99}` {
		t.Fatalf("payload = %s", payload)
	}

	var decoded struct {
		Price Price `json:"price"`
	}
	if err := json.Unmarshal([]byte(`{"price":"7.5"}`), &decoded); err != nil {
		t.Fatalf("unmarshal quoted: %v", err)
	}
	if decoded.Price != 750 {
		t.Fatalf("decoded = %d, want 750", decoded.Price)
	}
	if err := json.Unmarshal([]byte(`{"price":1.999}`), &decoded); err == nil {
		t.Fatalf("expected error for three fractional digits")
	}
}

func FuzzParsePrice(f *testing.F) {
	for _, seed := range []string{"0", "10.5", "99.99", "-3", "1.2.3"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		p, err := ParsePrice(raw)
		if err != nil {
			return
		}
		if p < 0 {
			t.Fatalf("negative price %d from %q", p, raw)
		}
		again, err := ParsePrice(p.String())
		if err != nil || again != p {
			t.Fatalf("round trip %q -> %s -> %d (%v)", raw, p, again, err)
		}
	})
}
