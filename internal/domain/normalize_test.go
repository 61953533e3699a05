package domain

import "testing"

func TestSlugifyName_StripsDiacriticsAndLowercases(t *testing.T) {
	if got := SlugifyName("Jiří's Wedding"); got != "jiri-s-wedding" {
		t.Errorf("got %q", got)
	}
}

func TestSlugifyName_CollapsesRunsOfSeparators(t *testing.T) {
	if got := SlugifyName("  Summer   Camp 2026!!  "); got != "summer-camp-2026" {
		t.Errorf("got %q", got)
	}
}

func TestSlugifyName_Empty(t *testing.T) {
	if got := SlugifyName("!!!"); got != "" {
		t.Errorf("got %q", got)
	}
}
