package domain

import "testing"

func TestRequestKey_StringIsSorted(t *testing.T) {
	a := NewRequestKey("/x", map[string]string{"b": "2", "a": "1", "c": "3"})
	b := NewRequestKey("/x", map[string]string{"c": "3", "a": "1", "b": "2"})

	if a.String() != "/x?a=1&b=2&c=3" {
		t.Errorf("unexpected fingerprint %q", a.String())
	}
	if a.String() != b.String() {
		t.Errorf("same params must give same fingerprint: %q vs %q", a, b)
	}
}

func TestRequestKey_NoParams(t *testing.T) {
	if got := LondonKey().String(); got != EndpointLondon {
		t.Errorf("expected %q, got %q", EndpointLondon, got)
	}
}

func TestRequestKey_EscapesValues(t *testing.T) {
	k := NewRequestKey("/h", map[string]string{"product": "AuT+D"})
	if k.String() != "/h?product=AuT%2BD" {
		t.Errorf("unexpected fingerprint %q", k.String())
	}
	if k.Query().Get("product") != "AuT+D" {
		t.Errorf("query should carry the raw value, got %q", k.Query().Get("product"))
	}
}

func TestRequestKey_ParamsAreCopied(t *testing.T) {
	params := map[string]string{"a": "1"}
	k := NewRequestKey("/x", params)
	params["a"] = "changed"
	k.Params()["a"] = "changed too"

	if k.String() != "/x?a=1" {
		t.Errorf("key must not alias caller maps, got %q", k.String())
	}
}
