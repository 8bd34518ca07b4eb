package availability

import (
	"testing"

	"streamfade/internal/match"
	"streamfade/internal/services/offers"
)

func entry(title string, year int, offerList ...offers.Offer) offers.Entry {
	return offers.Entry{Title: title, ReleaseYear: year, Offers: offerList}
}

func TestFindOfferEntryExactYearFirstPass(t *testing.T) {
	entries := []offers.Entry{
		entry("Dune", 2020),
		entry("Dune", 2021),
	}
	found, ok := FindOfferEntry(entries, "dune", 2021)
	if !ok || found.ReleaseYear != 2021 {
		t.Fatalf("expected exact-year entry, got %+v ok=%v", found, ok)
	}
}

func TestFindOfferEntrySecondPassOnlyWithoutExact(t *testing.T) {
	entries := []offers.Entry{
		entry("Dune", 2020),
		entry("Dune", 2022),
	}
	found, ok := FindOfferEntry(entries, "Dune", 2021)
	if !ok {
		t.Fatal("expected a fallback entry")
	}
	// Second pass keeps scanning; the last qualifying entry wins.
	if found.ReleaseYear != 2022 {
		t.Fatalf("expected last fallback entry, got %+v", found)
	}
}

func TestFindOfferEntryUnknownYear(t *testing.T) {
	entries := []offers.Entry{entry("Dune", 1984)}
	if _, ok := FindOfferEntry(entries, "Dune", match.YearUnknown); !ok {
		t.Fatal("unknown target year should match on title alone")
	}
}

func TestFindOfferEntryOutsideWindow(t *testing.T) {
	entries := []offers.Entry{entry("Dune", 1984)}
	if _, ok := FindOfferEntry(entries, "Dune", 2021); ok {
		t.Fatal("1984 must not satisfy a 2021 target")
	}
}

func TestFindOfferEntryMatchesOriginalTitle(t *testing.T) {
	entries := []offers.Entry{
		{OriginalTitle: "Fack ju Göhte", ReleaseYear: 2013},
	}
	if _, ok := FindOfferEntry(entries, "fack ju göhte", 2013); !ok {
		t.Fatal("expected match on original title")
	}
}

func TestFindOfferEntrySkipsUntitledEntries(t *testing.T) {
	entries := []offers.Entry{{ReleaseYear: 2021}}
	if _, ok := FindOfferEntry(entries, "Dune", 2021); ok {
		t.Fatal("untitled entries must be skipped")
	}
	if _, ok := FindOfferEntry(entries, "", 2021); ok {
		t.Fatal("empty target title must never match")
	}
}

func TestHasFlatrateOffer(t *testing.T) {
	entries := []offers.Entry{
		entry("Dune", 2021,
			offers.Offer{MonetizationType: "rent", ProviderID: 8},
			offers.Offer{MonetizationType: "flatrate", ProviderID: 8},
		),
	}
	if !HasFlatrateOffer(entries, "Dune", 2021, 8) {
		t.Fatal("expected flatrate availability")
	}
	if HasFlatrateOffer(entries, "Dune", 2021, 9) {
		t.Fatal("provider 9 has no offer")
	}
}

func TestHasFlatrateOfferFreeMonetization(t *testing.T) {
	entries := []offers.Entry{
		entry("Nosferatu", 1922, offers.Offer{MonetizationType: "free", ProviderID: 175}),
	}
	if !HasFlatrateOffer(entries, "Nosferatu", 1922, 175) {
		t.Fatal("free monetization counts as available")
	}
}

func TestHasFlatrateOfferSkipsMalformedOffers(t *testing.T) {
	entries := []offers.Entry{
		entry("Dune", 2021,
			offers.Offer{MonetizationType: "flatrate"}, // missing provider id
			offers.Offer{ProviderID: 8},                // missing monetization
		),
	}
	if HasFlatrateOffer(entries, "Dune", 2021, 8) {
		t.Fatal("malformed offers must be skipped, not matched")
	}
}
