package device

import (
	"testing"

	"github.com/moffa90/go-hvsp/protocol"
)

func TestTableSignaturesUnique(t *testing.T) {
	seen := make(map[protocol.Signature]string)
	for _, d := range table {
		if d.Signature.IsZero() {
			t.Errorf("%s has an all-zero signature", d.Name)
		}
		if prev, ok := seen[d.Signature]; ok {
			t.Errorf("%s and %s share signature %s", prev, d.Name, d.Signature)
		}
		seen[d.Signature] = d.Name
	}
}

func TestLookupSelectsExactDescriptor(t *testing.T) {
	for _, want := range table {
		t.Run(want.Name, func(t *testing.T) {
			got, ok := Lookup(want.Signature)
			if !ok {
				t.Fatalf("Lookup(%s) found nothing", want.Signature)
			}
			if got.Name != want.Name {
				t.Errorf("Lookup(%s) = %s, want %s", want.Signature, got.Name, want.Name)
			}
		})
	}
}

func TestLookupSiblings(t *testing.T) {
	// ATtiny24, ATtiny25 and ATtiny2313 share the first two signature bytes
	tests := []struct {
		sig  protocol.Signature
		want string
	}{
		{sig: protocol.Signature{0x1E, 0x91, 0x0B}, want: "ATtiny24"},
		{sig: protocol.Signature{0x1E, 0x91, 0x08}, want: "ATtiny25"},
		{sig: protocol.Signature{0x1E, 0x91, 0x0A}, want: "ATtiny2313"},
		{sig: protocol.Signature{0x1E, 0x93, 0x0C}, want: "ATtiny84"},
		{sig: protocol.Signature{0x1E, 0x93, 0x0B}, want: "ATtiny85"},
	}

	for _, tt := range tests {
		got, ok := Lookup(tt.sig)
		if !ok || got.Name != tt.want {
			t.Errorf("Lookup(%s) = %v, %v; want %s", tt.sig, got, ok, tt.want)
		}
	}
}

func TestLookupNoMatch(t *testing.T) {
	tests := []struct {
		name string
		sig  protocol.Signature
	}{
		{name: "all ones", sig: protocol.Signature{0xFF, 0xFF, 0xFF}},
		{name: "all zero", sig: protocol.Signature{}},
		{name: "last byte differs", sig: protocol.Signature{0x1E, 0x91, 0x09}},
		{name: "first byte differs", sig: protocol.Signature{0x1F, 0x91, 0x08}},
		{name: "middle byte differs", sig: protocol.Signature{0x1E, 0x94, 0x08}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d, ok := Lookup(tt.sig); ok {
				t.Errorf("Lookup(%s) = %s, want no match", tt.sig, d.Name)
			}
		})
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	d, ok := Lookup(protocol.Signature{0x1E, 0x93, 0x0B})
	if !ok {
		t.Fatal("ATtiny85 not found")
	}
	d.Low = 0x00

	again, _ := Lookup(protocol.Signature{0x1E, 0x93, 0x0B})
	if again.Low != 0x62 {
		t.Errorf("table modified through Lookup result: low = 0x%02X", again.Low)
	}
}

func TestFuses(t *testing.T) {
	tests := []struct {
		name string
		want []Fuse
	}{
		{
			name: "ATtiny25",
			want: []Fuse{
				{Kind: protocol.FuseLow, Value: 0x62},
				{Kind: protocol.FuseHigh, Value: 0xDF},
			},
		},
		{
			name: "ATtiny13",
			want: []Fuse{
				{Kind: protocol.FuseLow, Value: 0x6A},
				{Kind: protocol.FuseHigh, Value: 0xFF},
			},
		},
		{
			name: "ATtiny2313",
			want: []Fuse{
				{Kind: protocol.FuseLow, Value: 0x64},
				{Kind: protocol.FuseHigh, Value: 0xDF},
				{Kind: protocol.FuseExtended, Value: 0xFF},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := ByName(tt.name)
			if !ok {
				t.Fatalf("ByName(%q) found nothing", tt.name)
			}
			got := d.Fuses()
			if len(got) != len(tt.want) {
				t.Fatalf("Fuses() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Fuses()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDefault(t *testing.T) {
	d, _ := ByName("attiny13")

	if v, ok := d.Default(protocol.FuseLow); !ok || v != 0x6A {
		t.Errorf("Default(low) = 0x%02X, %v", v, ok)
	}
	if v, ok := d.Default(protocol.FuseHigh); !ok || v != 0xFF {
		t.Errorf("Default(high) = 0x%02X, %v", v, ok)
	}
	if _, ok := d.Default(protocol.FuseExtended); ok {
		t.Error("Default(extended) ok for a device without extended fuse")
	}
	if _, ok := d.Default(protocol.FuseKind(5)); ok {
		t.Error("Default(unknown) ok")
	}
}

func TestByName(t *testing.T) {
	if _, ok := ByName("ATTINY85"); !ok {
		t.Error("ByName is case sensitive")
	}
	if _, ok := ByName("ATmega328P"); ok {
		t.Error("ByName found an unsupported part")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	if len(all) != len(table) {
		t.Fatalf("All() returned %d entries, want %d", len(all), len(table))
	}
	all[0].Name = "changed"
	if table[0].Name == "changed" {
		t.Error("All() exposes the table")
	}
}

func TestDescriptorString(t *testing.T) {
	d, _ := ByName("ATtiny85")
	if got, want := d.String(), "ATtiny85 (1E 93 0B)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
