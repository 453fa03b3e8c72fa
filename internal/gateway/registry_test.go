package gateway

import (
	"testing"

	"github.com/llmhub/llmhub/internal/domain"
)

func entry(name, url string, healthy bool, tools ...string) *domain.ServiceEntry {
	m := make(map[string]domain.ToolSchema, len(tools))
	for _, tool := range tools {
		m[tool] = domain.ToolSchema{}
	}
	return &domain.ServiceEntry{Name: name, URL: url, Healthy: healthy, Tools: m}
}

func TestUpsertAndRemove(t *testing.T) {
	r := NewServiceRegistry()

	r.Upsert(entry("bridge", "http://bridge:3000", true, "inference"))
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}

	got := r.Get("bridge")
	if got == nil || got.URL != "http://bridge:3000" {
		t.Fatalf("Get(bridge) = %+v", got)
	}
	if got.LastSeen.IsZero() {
		t.Error("Upsert should stamp LastSeen")
	}

	r.Remove("bridge")
	if r.Get("bridge") != nil {
		t.Error("entry still present after Remove")
	}
	// Removing twice is a no-op.
	r.Remove("bridge")
}

func TestAllIsSortedByName(t *testing.T) {
	r := NewServiceRegistry()
	r.Upsert(entry("zeta", "http://z", true))
	r.Upsert(entry("alpha", "http://a", true))
	r.Upsert(entry("mid", "http://m", true))

	all := r.All()
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("All()[%d] = %q, want %q", i, all[i].Name, name)
		}
	}
}

func TestFindToolPrefersFirstHealthyMatch(t *testing.T) {
	r := NewServiceRegistry()
	r.Upsert(entry("alpha", "http://a", false, "inference"))
	r.Upsert(entry("beta", "http://b", true, "inference"))
	r.Upsert(entry("gamma", "http://c", true, "inference"))

	got, ok := r.FindTool("inference")
	if !ok {
		t.Fatal("FindTool() found nothing")
	}
	if got.Name != "beta" {
		t.Errorf("FindTool() = %q, want beta (first healthy in name order)", got.Name)
	}

	if _, ok := r.FindTool("nope"); ok {
		t.Error("FindTool() matched a tool nobody exposes")
	}
}
