package attribution

import (
	"reflect"
	"testing"
)

func testAnnotator() *RegexAnnotator {
	return NewRegexAnnotator([]string{"hvordan", "hvorfor", "dette", "skal", "være"})
}

func TestEntitiesCapitalizedRuns(t *testing.T) {
	a := testAnnotator()
	got := a.Entities("John Smith presenterte strategien til Acme Corp i Oslo.")
	want := []string{"John Smith", "Acme Corp", "Oslo"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("entities: got %v, want %v", got, want)
	}
}

func TestEntitiesNorwegianInitials(t *testing.T) {
	a := testAnnotator()
	got := a.Entities("Østfold og Ålesund ble nevnt.")
	if len(got) < 2 {
		t.Fatalf("expected Østfold and Ålesund recognized, got %v", got)
	}
}

func TestEntitiesDeduplicated(t *testing.T) {
	a := testAnnotator()
	got := a.Entities("Oslo er fint. Oslo er stort.")
	count := 0
	for _, e := range got {
		if e == "Oslo" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected Oslo once, got %v", got)
	}
}

func TestKeywordsFilterShortAndStopwords(t *testing.T) {
	a := testAnnotator()
	got := a.Keywords("Hvordan skal dette kvartalsbudsjettet være for salgsavdelingen?")
	for _, k := range got {
		if k == "hvordan" || k == "skal" || k == "dette" || k == "være" {
			t.Fatalf("stop word leaked through: %v", got)
		}
	}
	found := false
	for _, k := range got {
		if k == "kvartalsbudsjettet" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected kvartalsbudsjettet kept, got %v", got)
	}
}

func TestKeywordsStripPunctuation(t *testing.T) {
	a := testAnnotator()
	got := a.Keywords("strategien, budsjett!")
	want := []string{"strategien", "budsjett"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keywords: got %v, want %v", got, want)
	}
}

func TestQueryTokens(t *testing.T) {
	got := queryTokens("Hva sa John om Q3?")
	want := []string{"hva", "john"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("query tokens: got %v, want %v", got, want)
	}
}
