package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/flipsave/flipsave/internal/domain"
	"gopkg.in/yaml.v3"
)

func entry(vendor string, category domain.Category) domain.Entry {
	rec := domain.Record{TransactionType: domain.TransactionOffer, Category: category}
	if vendor != "" {
		rec.Vendor = &vendor
	}
	return domain.Entry{Record: rec}
}

func sampleEntries() []domain.Entry {
	return []domain.Entry{
		entry(" amazon ", domain.CategoryShopping),
		entry("Amazon", domain.CategoryShopping),
		entry("FLIPKART", domain.CategoryShopping),
		entry("zomato", domain.CategoryFoodDining),
		entry("", domain.CategoryFinance),
	}
}

func TestNormalizeVendor(t *testing.T) {
	tests := map[string]string{
		"  amazon ":      "Amazon",
		"HDFC BANK":      "Hdfc Bank",
		"h&m":            "H&M",
		"make my trip":   "Make My Trip",
		"big-basket":     "Big-Basket",
		"":               "",
		"o'reilly books": "O'Reilly Books",
		"mcdonald's":     "Mcdonald'S",
		"7-eleven 2nd":   "7-Eleven 2Nd",
	}
	for in, want := range tests {
		if got := NormalizeVendor(in); got != want {
			t.Errorf("NormalizeVendor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuild_NoFilter(t *testing.T) {
	rep := Build(sampleEntries(), Filter{})

	if rep.TotalOffers != 5 {
		t.Errorf("Expected 5 offers, got %d", rep.TotalOffers)
	}
	if rep.UniqueVendors != 3 {
		t.Errorf("Expected 3 unique vendors, got %d", rep.UniqueVendors)
	}
	if len(rep.TopVendors) == 0 || rep.TopVendors[0] != (VendorCount{Vendor: "Amazon", Count: 2}) {
		t.Errorf("Expected Amazon to lead with 2 offers, got %+v", rep.TopVendors)
	}

	if rep.Categories[0].Category != string(domain.CategoryShopping) || rep.Categories[0].Count != 3 {
		t.Errorf("Expected Shopping first with 3, got %+v", rep.Categories[0])
	}
	if rep.Categories[0].Percent != 60 {
		t.Errorf("Expected Shopping share 60%%, got %v", rep.Categories[0].Percent)
	}

	wantVendors := []string{"Amazon", "Flipkart", "Zomato"}
	if strings.Join(rep.AllVendors, ",") != strings.Join(wantVendors, ",") {
		t.Errorf("Expected vendors %v, got %v", wantVendors, rep.AllVendors)
	}
}

func TestBuild_Filters(t *testing.T) {
	rep := Build(sampleEntries(), Filter{Vendors: []string{"amazon", "Zomato"}, Categories: []string{"Shopping"}})

	if rep.TotalOffers != 2 {
		t.Errorf("Expected 2 offers, got %d", rep.TotalOffers)
	}
	if rep.UniqueVendors != 1 {
		t.Errorf("Expected 1 vendor, got %d", rep.UniqueVendors)
	}
	if len(rep.Categories) != 1 || rep.Categories[0].Percent != 100 {
		t.Errorf("Expected a single category at 100%%, got %+v", rep.Categories)
	}
	if len(rep.AllVendors) != 3 {
		t.Errorf("Expected filter options to cover all rows, got %v", rep.AllVendors)
	}
}

func TestBuild_TopVendorsLimit(t *testing.T) {
	var entries []domain.Entry
	for i := 0; i < 15; i++ {
		entries = append(entries, entry(string(rune('a'+i))+"mart", domain.CategoryGroceries))
	}
	entries = append(entries, entry("omart", domain.CategoryGroceries))

	rep := Build(entries, Filter{})
	if len(rep.TopVendors) != TopVendorsLimit {
		t.Fatalf("Expected %d top vendors, got %d", TopVendorsLimit, len(rep.TopVendors))
	}
	if rep.TopVendors[0].Vendor != "Omart" {
		t.Errorf("Expected most frequent vendor first, got %+v", rep.TopVendors[0])
	}
}

func TestBuild_Empty(t *testing.T) {
	rep := Build(nil, Filter{})
	if rep.TotalOffers != 0 || len(rep.TopVendors) != 0 || len(rep.Categories) != 0 {
		t.Errorf("Expected empty report, got %+v", rep)
	}
}

func TestWrite(t *testing.T) {
	rep := Build(sampleEntries(), Filter{})

	var jsonBuf bytes.Buffer
	if err := Write(&jsonBuf, rep, OutputJSON); err != nil {
		t.Fatalf("Write json: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(jsonBuf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if decoded.TotalOffers != 5 {
		t.Errorf("Expected total_offers 5 in JSON, got %d", decoded.TotalOffers)
	}
	if !strings.Contains(jsonBuf.String(), "Food & Dining") {
		t.Error("Expected unescaped category names in JSON output")
	}

	var yamlBuf bytes.Buffer
	if err := Write(&yamlBuf, rep, OutputYAML); err != nil {
		t.Fatalf("Write yaml: %v", err)
	}
	var fromYAML map[string]interface{}
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("Invalid YAML output: %v", err)
	}
	if fromYAML["unique_vendors"] != 3 {
		t.Errorf("Expected unique_vendors 3 in YAML, got %v", fromYAML["unique_vendors"])
	}

	var tableBuf bytes.Buffer
	if err := Write(&tableBuf, rep, OutputTable); err != nil {
		t.Fatalf("Write table: %v", err)
	}
	if !strings.Contains(tableBuf.String(), "60.0%") {
		t.Errorf("Expected category share in table output, got:\n%s", tableBuf.String())
	}

	if err := Write(&bytes.Buffer{}, rep, "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}
