package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBuild_MixCoverage(t *testing.T) {
	weights := map[string]float64{
		"injection":        10,
		"malformed-amount": 15,
		"negative-amount":  5,
	}
	b := NewBuilder(nil, 1)
	seq, err := b.Build(70, weights)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if seq.Len() != 100 {
		t.Fatalf("sequence length = %d, want 100", seq.Len())
	}

	counts := make(map[string]int)
	valid := 0
	for _, d := range seq.Descriptors() {
		if d.Kind == KindValid {
			valid++
			if d.Category != "" {
				t.Errorf("valid descriptor carries category %q", d.Category)
			}
		} else {
			counts[d.Category]++
		}
	}
	if valid != 70 {
		t.Errorf("valid count = %d, want 70", valid)
	}
	for cat, want := range map[string]int{"injection": 10, "malformed-amount": 15, "negative-amount": 5} {
		if counts[cat] != want {
			t.Errorf("category %s count = %d, want %d", cat, counts[cat], want)
		}
	}
}

func TestBuild_Shuffled(t *testing.T) {
	b := NewBuilder(nil, 99)
	seq, err := b.Build(50, map[string]float64{"injection": 50})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// A shuffled 50/50 mix should not keep all valid requests in one
	// contiguous block.
	descriptors := seq.Descriptors()
	firstBlockValid := true
	for i := 0; i < 50; i++ {
		if descriptors[i].Kind != KindValid {
			firstBlockValid = false
			break
		}
	}
	if firstBlockValid {
		t.Error("sequence does not appear shuffled")
	}
}

func TestSequence_WrapsCyclically(t *testing.T) {
	b := NewBuilder(nil, 3)
	seq, err := b.Build(2, map[string]float64{"injection": 1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if seq.Len() != 3 {
		t.Fatalf("len = %d, want 3", seq.Len())
	}

	var first []Descriptor
	for i := 0; i < 3; i++ {
		first = append(first, seq.Next())
	}
	for i := 0; i < 3; i++ {
		if got := seq.Next(); got != first[i] {
			t.Errorf("wrap mismatch at %d: got %+v want %+v", i, got, first[i])
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	weights := map[string]float64{"injection": 20}
	a, err := NewBuilder(nil, 7).Build(60, weights)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, err := NewBuilder(nil, 7).Build(60, weights)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := range a.Descriptors() {
		if a.Descriptors()[i] != b.Descriptors()[i] {
			t.Fatalf("same seed produced different sequences at %d", i)
		}
	}
}

func TestBuiltinInjectionPool_CarriesControlCharacter(t *testing.T) {
	var found bool
	for _, f := range builtinPools["injection"] {
		if strings.ContainsRune(f.Payload, 0) {
			found = true
			break
		}
	}
	if !found {
		t.Error("injection pool has no NUL-bearing payload")
	}
}

func TestBuild_UnknownCategory(t *testing.T) {
	b := NewBuilder(nil, 1)
	if _, err := b.Build(50, map[string]float64{"no-such-pool": 10}); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestStore_LoadsAndFallsBack(t *testing.T) {
	dir := t.TempDir()

	custom := []Fixture{{Payload: `{"from":"USD","to":"EUR","amount":"1"}`}}
	data, _ := json.Marshal(custom)
	if err := os.WriteFile(filepath.Join(dir, "valid.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if got := store.Pool(""); len(got) != 1 || got[0] != custom[0] {
		t.Errorf("valid pool = %+v, want custom fixture", got)
	}
	// Categories without files fall back to the builtin catalog.
	if got := store.Pool("injection"); len(got) == 0 {
		t.Error("expected builtin fallback for injection pool")
	}
}

func TestStore_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer func() { _ = store.Close() }()

	fixtures := []Fixture{{Payload: `{"from":"CHF","to":"SEK","amount":"5"}`}}
	data, _ := json.Marshal(fixtures)
	if err := os.WriteFile(filepath.Join(dir, "valid.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := store.Pool("")
		if len(got) == 1 && got[0] == fixtures[0] {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("store did not pick up new fixture file")
}
