// Package report aggregates a processed offers table into dashboard figures.
package report

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/flipsave/flipsave/internal/domain"
)

// TopVendorsLimit is the number of vendors listed in TopVendors.
const TopVendorsLimit = 10

// Filter selects the rows a report covers. Empty lists select everything.
type Filter struct {
	Vendors    []string `json:"vendors,omitempty" yaml:"vendors,omitempty"`
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

type VendorCount struct {
	Vendor string `json:"vendor" yaml:"vendor"`
	Count  int    `json:"count" yaml:"count"`
}

type CategoryShare struct {
	Category string  `json:"category" yaml:"category"`
	Count    int     `json:"count" yaml:"count"`
	Percent  float64 `json:"percent" yaml:"percent"`
}

// Report holds the aggregates of the filtered rows plus the filter options.
type Report struct {
	TotalOffers   int             `json:"total_offers" yaml:"total_offers"`
	UniqueVendors int             `json:"unique_vendors" yaml:"unique_vendors"`
	TopVendors    []VendorCount   `json:"top_vendors" yaml:"top_vendors"`
	Categories    []CategoryShare `json:"categories" yaml:"categories"`
	AllVendors    []string        `json:"all_vendors" yaml:"all_vendors"`
	AllCategories []string        `json:"all_categories" yaml:"all_categories"`
	Filter        Filter          `json:"filter" yaml:"filter"`
}

// NormalizeVendor trims a vendor name and title-cases it: the first letter of
// every run of letters is upper case, the rest lower case. Any non-letter ends
// a run, so "mcdonald's" becomes "Mcdonald'S" and "2nd" becomes "2Nd".
func NormalizeVendor(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

type row struct {
	vendor   string // normalized; empty when absent
	category string
}

// Build computes the report for entries under f.
func Build(entries []domain.Entry, f Filter) *Report {
	rows := make([]row, 0, len(entries))
	allVendors := map[string]struct{}{}
	allCategories := map[string]struct{}{}
	for _, e := range entries {
		r := row{category: string(e.Record.Category)}
		if e.Record.Vendor != nil {
			r.vendor = NormalizeVendor(*e.Record.Vendor)
		}
		if r.vendor != "" {
			allVendors[r.vendor] = struct{}{}
		}
		if r.category != "" {
			allCategories[r.category] = struct{}{}
		}
		rows = append(rows, r)
	}

	vendorSet := normalizedSet(f.Vendors, NormalizeVendor)
	categorySet := normalizedSet(f.Categories, strings.TrimSpace)

	vendorCounts := map[string]int{}
	categoryCounts := map[string]int{}
	total := 0
	for _, r := range rows {
		if vendorSet != nil {
			if _, ok := vendorSet[r.vendor]; !ok {
				continue
			}
		}
		if categorySet != nil {
			if _, ok := categorySet[r.category]; !ok {
				continue
			}
		}
		total++
		if r.vendor != "" {
			vendorCounts[r.vendor]++
		}
		if r.category != "" {
			categoryCounts[r.category]++
		}
	}

	rep := &Report{
		TotalOffers:   total,
		UniqueVendors: len(vendorCounts),
		TopVendors:    []VendorCount{},
		Categories:    []CategoryShare{},
		AllVendors:    sortedKeys(allVendors),
		AllCategories: sortedKeys(allCategories),
		Filter:        f,
	}

	for v, n := range vendorCounts {
		rep.TopVendors = append(rep.TopVendors, VendorCount{Vendor: v, Count: n})
	}
	sort.Slice(rep.TopVendors, func(i, j int) bool {
		a, b := rep.TopVendors[i], rep.TopVendors[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Vendor < b.Vendor
	})
	if len(rep.TopVendors) > TopVendorsLimit {
		rep.TopVendors = rep.TopVendors[:TopVendorsLimit]
	}

	categorized := 0
	for _, n := range categoryCounts {
		categorized += n
	}
	for c, n := range categoryCounts {
		rep.Categories = append(rep.Categories, CategoryShare{
			Category: c,
			Count:    n,
			Percent:  math.Round(float64(n)*1000/float64(categorized)) / 10,
		})
	}
	sort.Slice(rep.Categories, func(i, j int) bool {
		a, b := rep.Categories[i], rep.Categories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})

	return rep
}

func normalizedSet(values []string, norm func(string) string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[norm(v)] = struct{}{}
	}
	return set
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
