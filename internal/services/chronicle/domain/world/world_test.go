package world

import (
	"reflect"
	"testing"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
)

func TestParsePower(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   PowerID
		wantOK bool
	}{
		{raw: "usa", want: "USA", wantOK: true},
		{raw: "  CHN ", want: "CHN", wantOK: true},
		{raw: "EU_27", want: "EU_27", wantOK: true},
		{raw: "", wantOK: false},
		{raw: "U S A", wantOK: false},
		{raw: "ABCDEFGHIJKLMNOPQ", wantOK: false},
		{raw: "R*S", wantOK: false},
	}
	for _, tc := range tests {
		got, ok := ParsePower(tc.raw)
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("ParsePower(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestPowerSetSortedAndDeduped(t *testing.T) {
	t.Parallel()

	set := NewPowerSet("RUS", "CHN", "RUS", "", "USA")
	want := PowerSet{"CHN", "RUS", "USA"}
	if !reflect.DeepEqual(set, want) {
		t.Fatalf("set = %v, want %v", set, want)
	}
	if !set.Contains("RUS") || set.Contains("IND") {
		t.Fatalf("contains mismatch for %v", set)
	}
	if NewPowerSet() != nil {
		t.Fatal("expected nil empty set")
	}
}

func TestPowerSetMinus(t *testing.T) {
	t.Parallel()

	a := NewPowerSet("CHN", "RUS", "USA")
	b := NewPowerSet("USA")
	if got := a.Minus(b); !reflect.DeepEqual(got, PowerSet{"CHN", "RUS"}) {
		t.Fatalf("minus = %v", got)
	}
	if got := b.Minus(a); got != nil {
		t.Fatalf("minus = %v, want empty", got)
	}
}

func TestClampInfluence(t *testing.T) {
	t.Parallel()

	if ClampInfluence(-4) != 0 || ClampInfluence(140) != 100 || ClampInfluence(55) != 55 {
		t.Fatal("clamp mismatch")
	}
}

func TestNewFrameIndexesZones(t *testing.T) {
	t.Parallel()

	frame := NewFrame(calendar.Start, World{}, []Zone{
		{ID: "z2", Name: "Arctic"},
		{ID: "", Name: "ignored"},
		{ID: "z1", Name: "Sahel"},
	})
	if len(frame.Zones) != 2 {
		t.Fatalf("zones = %d, want 2", len(frame.Zones))
	}
	list := frame.ZoneList()
	if list[0].ID != "z1" || list[1].ID != "z2" {
		t.Fatalf("zone order = %v", list)
	}
}

func TestDisplayNames(t *testing.T) {
	t.Parallel()

	if got := (Zone{ID: "z1"}).DisplayName(); got != "z1" {
		t.Fatalf("zone display = %q", got)
	}
	w := World{Countries: []Country{{ID: "FRA", Name: "France"}}}
	if got := w.CountryName("FRA"); got != "France" {
		t.Fatalf("country name = %q", got)
	}
	if got := w.CountryName("DEU"); got != "DEU" {
		t.Fatalf("country fallback = %q", got)
	}
}
