// Package cities holds the city/county reference data used to derive an
// organization's county from its city. County is never set directly.
package cities

import (
	"context"
)

// City is one reference row. Name is unique within a county.
type City struct {
	Name   string
	County string
}

// KnownCounties is the fixed county catalog. CSV rows naming a county
// outside this set are skipped, not imported.
var KnownCounties = []string{
	"Alba", "Arad", "Argeș", "Bacău", "Bihor", "Bistrița-Năsăud", "Botoșani",
	"Brașov", "Brăila", "București", "Buzău", "Caraș-Severin", "Călărași",
	"Cluj", "Constanța", "Covasna", "Dâmbovița", "Dolj", "Galați", "Giurgiu",
	"Gorj", "Harghita", "Hunedoara", "Ialomița", "Iași", "Ilfov", "Maramureș",
	"Mehedinți", "Mureș", "Neamț", "Olt", "Prahova", "Satu Mare", "Sălaj",
	"Sibiu", "Suceava", "Teleorman", "Timiș", "Tulcea", "Vaslui", "Vâlcea",
	"Vrancea",
}

// Store is the persistence contract for the city registry.
type Store interface {
	Upsert(ctx context.Context, city City) error
	FindByName(ctx context.Context, name string) (City, error)
	Count(ctx context.Context) (int, error)
}

func knownCounty(county string) bool {
	for _, c := range KnownCounties {
		if c == county {
			return true
		}
	}
	return false
}
