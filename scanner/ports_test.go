package scanner

import (
	"errors"
	"reflect"
	"testing"
)

func TestExpandPorts_Valid(t *testing.T) {
	cases := map[string][]int{
		"22":          {22},
		"1-3":         {1, 2, 3},
		" 80-82 ":     {80, 81, 82},
		"65535":       {65535},
		"65530-65535": {65530, 65531, 65532, 65533, 65534, 65535},
	}
	for spec, want := range cases {
		t.Run(spec, func(t *testing.T) {
			got, err := ExpandPorts(spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("got %v want %v", got, want)
			}
		})
	}
}

func TestExpandPorts_CountAndOrder(t *testing.T) {
	ranges := [][2]int{{1, 1}, {1, 1024}, {100, 200}, {60000, 65535}, {1, 65535}}
	for _, r := range ranges {
		lo, hi := r[0], r[1]
		spec := itoa(lo) + "-" + itoa(hi)
		ports, err := ExpandPorts(spec)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", spec, err)
		}
		if len(ports) != hi-lo+1 {
			t.Fatalf("%s: got %d ports want %d", spec, len(ports), hi-lo+1)
		}
		if ports[0] != lo {
			t.Fatalf("%s: first port %d want %d", spec, ports[0], lo)
		}
		for i := 1; i < len(ports); i++ {
			if ports[i] <= ports[i-1] {
				t.Fatalf("%s: not strictly ascending at %d: %d after %d", spec, i, ports[i], ports[i-1])
			}
		}
	}
}

func TestExpandPorts_Invalid(t *testing.T) {
	cases := []string{
		"",
		"500-10",
		"0-100",
		"1-70000",
		"0",
		"65536",
		"abc",
		"1-b",
		"-5",
		"1-",
		"1-2-3",
		"22,80",
		"+80",
		"080",
		"80 - 82",
		"80-+82",
		"1e3",
		"0x50",
		"000080",
	}
	for _, spec := range cases {
		t.Run(spec, func(t *testing.T) {
			_, err := ExpandPorts(spec)
			var rangeErr *InvalidRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("expected InvalidRangeError for %q, got %v", spec, err)
			}
			if rangeErr.Spec != spec {
				t.Fatalf("error spec %q want %q", rangeErr.Spec, spec)
			}
		})
	}
}
