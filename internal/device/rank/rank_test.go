package rank

import "testing"

func TestAndroidDevicePriorityIdempotent(t *testing.T) {
	cases := []struct{ id, name string }{
		{"pixel_7", "Pixel 7"},
		{"Nexus 5", "Nexus 5"},
		{"wearos_small_round", "Wear OS Small Round"},
		{"", ""},
		{"unknown_thing", "Frobnicator 9000"},
	}
	for _, tc := range cases {
		first := AndroidDevicePriority(tc.id, tc.name)
		for i := 0; i < 5; i++ {
			if got := AndroidDevicePriority(tc.id, tc.name); got != first {
				t.Fatalf("(%q,%q): call %d returned %d, first returned %d", tc.id, tc.name, i, got, first)
			}
		}
	}
}

func TestIosDevicePriorityIdempotent(t *testing.T) {
	names := []string{"iPhone 15 Pro Max", "iPad mini", "Apple Watch Ultra 2", ""}
	for _, name := range names {
		first := IosDevicePriority(name)
		for i := 0; i < 5; i++ {
			if got := IosDevicePriority(name); got != first {
				t.Fatalf("%q: call %d returned %d, first returned %d", name, i, got, first)
			}
		}
	}
}

func TestAndroidPriorityOrdering(t *testing.T) {
	pixel7 := AndroidDevicePriority("pixel_7", "Pixel 7")
	pixel9 := AndroidDevicePriority("pixel_9", "Pixel 9")
	pixelPlain := AndroidDevicePriority("pixel", "Pixel")
	nexus := AndroidDevicePriority("Nexus 7", "Nexus 7")
	oneplus := AndroidDevicePriority("oneplus_7", "OnePlus 7")
	wear := AndroidDevicePriority("wearos_small_round", "Wear OS Small Round")

	if pixel9 >= pixel7 {
		t.Fatalf("newer Pixel must sort first: pixel9=%d pixel7=%d", pixel9, pixel7)
	}
	if pixel7 >= pixelPlain {
		t.Fatalf("versioned Pixel must beat unversioned: %d vs %d", pixel7, pixelPlain)
	}
	if pixelPlain >= nexus {
		t.Fatalf("Pixel must beat Nexus: %d vs %d", pixelPlain, nexus)
	}
	if nexus >= oneplus {
		t.Fatalf("Nexus must beat OnePlus: %d vs %d", nexus, oneplus)
	}
	if oneplus >= wear {
		t.Fatalf("phones must beat wearables: %d vs %d", oneplus, wear)
	}
}

func TestIosPriorityOrdering(t *testing.T) {
	proMax := IosDevicePriority("iPhone 15 Pro Max")
	pro := IosDevicePriority("iPhone 15 Pro")
	base := IosDevicePriority("iPhone 15")
	se := IosDevicePriority("iPhone SE (3rd generation)")
	ipad := IosDevicePriority("iPad Pro (12.9-inch)")
	tv := IosDevicePriority("Apple TV 4K")
	watch := IosDevicePriority("Apple Watch Ultra 2")
	unknown := IosDevicePriority("Vision Widget")

	ordered := []struct {
		label string
		a, b  int
	}{
		{"pro max < pro", proMax, pro},
		{"pro < base", pro, base},
		{"base < se", base, se},
		{"iphone < ipad", se, ipad},
		{"ipad < tv", ipad, tv},
		{"tv < watch", tv, watch},
		{"watch < unknown", watch, unknown},
	}
	for _, o := range ordered {
		if o.a >= o.b {
			t.Fatalf("%s violated: %d vs %d", o.label, o.a, o.b)
		}
	}
}

func TestAndroidVersionName(t *testing.T) {
	cases := map[int]string{
		34: "14",
		32: "12L",
		21: "5.0",
		7:  "API 7",
		99: "API 99",
	}
	for api, want := range cases {
		if got := AndroidVersionName(api); got != want {
			t.Fatalf("API %d: expected %q, got %q", api, want, got)
		}
	}
}

func TestAPILevelForVersion(t *testing.T) {
	cases := map[string]int{
		"14.0":    34,
		"14":      34,
		"13.0":    33,
		"12.1":    32,
		"5.1":     21,
		"4.4":     0,
		"99":      0,
		"notanum": 0,
	}
	for version, want := range cases {
		if got := APILevelForVersion(version); got != want {
			t.Fatalf("version %q: expected %d, got %d", version, want, got)
		}
	}
}
