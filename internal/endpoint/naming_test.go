package endpoint

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-voicebridge/internal/control"
)

func TestJoinName(t *testing.T) {
	tests := []struct {
		name string
		opts NamingOptions
		want string
	}{
		{"default", NamingOptions{}, "Kitchen Light"},
		{"function first", NamingOptions{FunctionFirst: true}, "Light Kitchen"},
		{"concat word", NamingOptions{ConcatWord: "in", FunctionFirst: true}, "Light in Kitchen"},
		{"concat word room first", NamingOptions{ConcatWord: " - "}, "Kitchen - Light"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinName("Kitchen", "Light", tt.opts); got != tt.want {
				t.Errorf("JoinName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEndpointID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces", "Kitchen Light", "Kitchen_Light"},
		{"allowed punctuation", "a-b=c#d;e:f?g@h&i", "a-b=c#d;e:f?g@h&i"},
		{"umlaut", "Küche Licht", "K_che_Licht"},
		{"trimmed", "  Hall  ", "Hall"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EndpointID(tt.in); got != tt.want {
				t.Errorf("EndpointID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEndpointID_Generated(t *testing.T) {
	id := EndpointID("Кухня")
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("EndpointID(cyrillic) = %q, want a UUID", id)
	}
	if EndpointID("Кухня") != id {
		t.Error("generated ids must be stable")
	}
	if EndpointID("Спальня") == id {
		t.Error("different names must get different ids")
	}
}

func TestEndpointID_Truncated(t *testing.T) {
	id := EndpointID(strings.Repeat("a", 300))
	if len(id) != maxEndpointIDLength {
		t.Errorf("len = %d, want %d", len(id), maxEndpointIDLength)
	}
}

func TestUniqueID(t *testing.T) {
	used := make(map[string]struct{})
	got := []string{uniqueID("Hall", used), uniqueID("Hall", used), uniqueID("Hall", used)}
	want := []string{"Hall", "Hall_2", "Hall_3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("uniqueID #%d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPartitionControls(t *testing.T) {
	noFunction := kitchenLight()
	noFunction.Function = nil
	noFunction.ObjectID = "hm.lamp"

	orphan := control.Control{Type: control.TypeLight, ObjectID: "hm.orphan"}

	parts := partitionControls([]control.Control{
		kitchenDimmer(""),
		gardenGate(),
		kitchenLight(),
		noFunction,
		orphan,
	}, NamingOptions{})

	if len(parts) != 4 {
		for _, p := range parts {
			t.Logf("partition %q with %d controls", p.name, len(p.controls))
		}
		t.Fatalf("partitions = %d, want 4", len(parts))
	}

	if parts[0].name != "Kitchen Light" || len(parts[0].controls) != 2 {
		t.Errorf("first partition = %q with %d controls", parts[0].name, len(parts[0].controls))
	}
	if parts[0].roomName != "Kitchen" || parts[0].funcName != "Light" {
		t.Errorf("room/function = %q/%q", parts[0].roomName, parts[0].funcName)
	}
	if parts[1].name != "Garden Gate" {
		t.Errorf("smart name partition = %q", parts[1].name)
	}
	if parts[2].name != "Kitchen" {
		t.Errorf("room-only partition = %q", parts[2].name)
	}
	if parts[3].name != "hm.orphan" {
		t.Errorf("orphan partition = %q", parts[3].name)
	}
}

func TestPartitionControls_MergesSameName(t *testing.T) {
	a := kitchenLight()
	b := kitchenLight()
	b.Room = ref("enum.rooms.kitchen2", "kitchen") // different enum, same name
	b.ObjectID = "hm.light2"

	parts := partitionControls([]control.Control{a, b}, NamingOptions{})
	if len(parts) != 1 || len(parts[0].controls) != 2 {
		t.Fatalf("partitions = %+v, want one merged partition", parts)
	}
}

func TestPartitionControls_Language(t *testing.T) {
	c := kitchenLight()
	c.Room.Name = control.Text{"en": "Kitchen", "de": "Küche"}
	c.Function.Name = control.Text{"en": "Light", "de": "Licht"}

	parts := partitionControls([]control.Control{c}, NamingOptions{Language: "de", FunctionFirst: true, ConcatWord: "in"})
	if parts[0].name != "Licht in Küche" {
		t.Errorf("name = %q", parts[0].name)
	}
}
