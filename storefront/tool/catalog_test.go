package tool

import (
	"testing"

	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

func TestInfos(t *testing.T) {
	t.Parallel()

	infos := Infos()
	if len(infos) != 3 {
		t.Fatalf("expected 3 tool infos, got %d", len(infos))
	}
	want := []contract.ToolName{contract.ToolSearch, contract.ToolViewCart, contract.ToolAddToCart}
	for i, name := range want {
		if infos[i].Name != string(name) {
			t.Fatalf("tool %d = %s, want %s", i, infos[i].Name, name)
		}
		if infos[i].Desc == "" {
			t.Fatalf("tool %s has no description", name)
		}
	}
}

func TestParseCallState(t *testing.T) {
	t.Parallel()

	for _, s := range []CallState{CallStreaming, CallAvailable, CallFulfilled, CallFailed} {
		got, err := ParseCallState(s.String())
		if err != nil {
			t.Fatalf("ParseCallState(%q) error = %v", s, err)
		}
		if got != s {
			t.Fatalf("ParseCallState(%q) = %v", s, got)
		}
	}
	if _, err := ParseCallState("input-pending"); err == nil {
		t.Fatal("expected error for unknown state")
	}
	if !CallFailed.Terminal() || CallAvailable.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
}
