package metadata

import "testing"

func TestAddIntFormatsBase10(t *testing.T) {
	r := New(QueryProcess, "1")
	r.AddInt("pid", 1234567)
	r.AddInt("nice", -5)
	r.AddUint("size", 18446744073709551615)

	if got := r.Attributes[0].Values[0]; got != "1234567" {
		t.Fatalf("expected plain base-10 formatting, got %q", got)
	}
	if got := r.Attributes[1].Values[0]; got != "-5" {
		t.Fatalf("expected signed value, got %q", got)
	}
	if got := r.Attributes[2].Values[0]; got != "18446744073709551615" {
		t.Fatalf("expected full uint64 range, got %q", got)
	}
}

func TestAttributeOrderIsInsertionOrder(t *testing.T) {
	r := New(QueryFile, "/etc/passwd")
	names := []string{"type", "size", "uid", "owner"}
	for _, n := range names {
		r.AddAttribute(n, "x")
	}

	if len(r.Attributes) != len(names) {
		t.Fatalf("expected %d attributes, got %d", len(names), len(r.Attributes))
	}
	for i, n := range names {
		if r.Attributes[i].Name != n {
			t.Fatalf("attribute %d: expected %q, got %q", i, n, r.Attributes[i].Name)
		}
	}
}

func TestDuplicateNamesAreAllowed(t *testing.T) {
	r := New(QueryFile, "/tmp/x")
	r.AddAttribute("note", "first")
	r.AddAttribute("note", "second")

	if len(r.Attributes) != 2 {
		t.Fatalf("duplicate names should not collapse, got %d attributes", len(r.Attributes))
	}
}

func TestNewErrorResult(t *testing.T) {
	r := NewErrorResult(QueryPort, "99999", "Invalid port number: 99999")

	if r.Success {
		t.Fatal("error result must not be successful")
	}
	if r.Err != "Invalid port number: 99999" {
		t.Fatalf("unexpected error message: %q", r.Err)
	}
	if len(r.Attributes) != 0 {
		t.Fatalf("error result must carry no attributes, got %d", len(r.Attributes))
	}
	if r.Type != QueryPort || r.Identifier != "99999" {
		t.Fatalf("error result lost query metadata: %+v", r)
	}
}

func TestParseProtocol(t *testing.T) {
	for _, valid := range []string{"tcp", "udp", "both"} {
		if _, ok := ParseProtocol(valid); !ok {
			t.Fatalf("expected %q to parse", valid)
		}
	}
	for _, invalid := range []string{"", "TCP", "sctp", "tcp6"} {
		if _, ok := ParseProtocol(invalid); ok {
			t.Fatalf("expected %q to be rejected", invalid)
		}
	}
}
