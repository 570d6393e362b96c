package capability

import (
	"encoding/json"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestNormalize(t *testing.T) {
	tests := []struct {
		name            string
		value, min, max float64
		want            float64
		wantOK          bool
	}{
		{"lower bound", 0, 0, 100, 0, true},
		{"upper bound", 100, 0, 100, 100, true},
		{"mid range", 750, 500, 1000, 50, true},
		{"negative range", -5, -10, 10, 25, true},
		{"below min", 499, 500, 1000, 0, false},
		{"above max", 1001, 500, 1000, 0, false},
		{"min equals max", 5, 5, 5, 0, false},
		{"min above max", 5, 10, 0, 0, false},
		{"NaN", math.NaN(), 0, 100, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.value, tt.min, tt.max)
			if ok != tt.wantOK {
				t.Fatalf("Normalize() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > epsilon {
				t.Errorf("Normalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDenormalize(t *testing.T) {
	tests := []struct {
		name                 string
		percentage, min, max float64
		want                 float64
		wantOK               bool
	}{
		{"zero", 0, 500, 1000, 500, true},
		{"full", 100, 500, 1000, 1000, true},
		{"three quarters", 75, 500, 1000, 875, true},
		{"below zero", -1, 0, 100, 0, false},
		{"above hundred", 100.5, 0, 100, 0, false},
		{"empty range", 50, 1, 1, 0, false},
		{"inverted range", 50, 100, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Denormalize(tt.percentage, tt.min, tt.max)
			if ok != tt.wantOK {
				t.Fatalf("Denormalize() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > epsilon {
				t.Errorf("Denormalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeDenormalize_RoundTrip(t *testing.T) {
	ranges := [][2]float64{{0, 100}, {0, 255}, {500, 1000}, {-20, 40}, {0.1, 0.2}}

	for _, r := range ranges {
		min, max := r[0], r[1]
		for i := 0; i <= 20; i++ {
			value := min + (max-min)*float64(i)/20
			pct, ok := Normalize(value, min, max)
			if !ok {
				t.Fatalf("Normalize(%v, %v, %v) failed", value, min, max)
			}
			back, ok := Denormalize(pct, min, max)
			if !ok || math.Abs(back-value) > 1e-6*(max-min) {
				t.Errorf("round trip %v in [%v,%v] = %v", value, min, max, back)
			}
		}
		for pct := 0.0; pct <= 100; pct += 12.5 {
			value, _ := Denormalize(pct, min, max)
			back, ok := Normalize(value, min, max)
			if !ok || math.Abs(back-pct) > 1e-6 {
				t.Errorf("inverse round trip %v%% in [%v,%v] = %v", pct, min, max, back)
			}
		}
	}
}

func TestClampPercentage(t *testing.T) {
	for in, want := range map[float64]float64{-20: 0, 0: 0, 42: 42, 100: 100, 130: 100} {
		if got := ClampPercentage(in); got != want {
			t.Errorf("ClampPercentage(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{float64(1.5), 1.5, true},
		{int(3), 3, true},
		{int64(4), 4, true},
		{json.Number("7.25"), 7.25, true},
		{"12", 12, true},
		{" 8 ", 8, true},
		{true, 1, true},
		{"abc", 0, false},
		{nil, 0, false},
		{[]int{1}, 0, false},
	}

	for _, tt := range tests {
		got, ok := ToFloat(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("ToFloat(%#v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestToBool(t *testing.T) {
	truthy := []any{true, 1, 0.5, "true", "ON", "1"}
	falsy := []any{false, 0, "false", "off", "", nil}

	for _, v := range truthy {
		if !ToBool(v) {
			t.Errorf("ToBool(%#v) = false, want true", v)
		}
	}
	for _, v := range falsy {
		if ToBool(v) {
			t.Errorf("ToBool(%#v) = true, want false", v)
		}
	}
}
