package application_test

import (
	"math"
	"strings"
	"testing"

	"stronghold/server/application"
	"stronghold/server/domain"
)

func TestBoundedString(t *testing.T) {
	cases := []struct {
		name string
		v    string
		max  int
		want bool
	}{
		{"empty", "", 10, false},
		{"single char", "a", 10, true},
		{"at limit", strings.Repeat("a", 10), 10, true},
		{"over limit", strings.Repeat("a", 11), 10, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := application.BoundedString(tc.v, tc.max); got != tc.want {
				t.Fatalf("BoundedString(%q, %d) = %v, want %v", tc.v, tc.max, got, tc.want)
			}
		})
	}
}

func TestIntInRange(t *testing.T) {
	if !application.IntInRange(1, 1, 50) {
		t.Fatal("lower bound should be inclusive")
	}
	if !application.IntInRange(50, 1, 50) {
		t.Fatal("upper bound should be inclusive")
	}
	if application.IntInRange(0, 1, 50) {
		t.Fatal("below range should fail")
	}
	if application.IntInRange(51, 1, 50) {
		t.Fatal("above range should fail")
	}
}

func TestValidVector3(t *testing.T) {
	if !application.ValidVector3(domain.Vector3{X: 1, Y: 2, Z: 3}) {
		t.Fatal("finite vector should be valid")
	}
	if application.ValidVector3(domain.Vector3{X: math.NaN()}) {
		t.Fatal("NaN component should be invalid")
	}
	if application.ValidVector3(domain.Vector3{Z: math.Inf(1)}) {
		t.Fatal("infinite component should be invalid")
	}
}
