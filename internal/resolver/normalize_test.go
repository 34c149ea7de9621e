package resolver

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want float64
		ok   bool
	}{
		{"plain string", "77", 77, true},
		{"thousands separator", "1,358", 1358, true},
		{"many separators", "2,000,000,000", 2e9, true},
		{"decimal string", "0.5", 0.5, true},
		{"padded string", " 172 ", 172, true},
		{"negative string", "-3.25", -3.25, true},
		{"json number", json.Number("85"), 85, true},
		{"float", 4600.0, 4600, true},
		{"int", 62, 62, true},
		{"unknown", "unknown", 0, false},
		{"n/a", "n/a", 0, false},
		{"empty", "", 0, false},
		{"trailing garbage", "12abc", 0, false},
		{"nan literal", "NaN", 0, false},
		{"inf literal", "Inf", 0, false},
		{"overflow", "1e400", 0, false},
		{"nan float", math.NaN(), 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"array", []any{"a"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalize(tt.raw)
			if ok != tt.ok {
				t.Fatalf("normalize(%v) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
