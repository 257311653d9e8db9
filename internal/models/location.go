package models

import "strings"

// Location filter keys used by the dashboard and the admin listing.
const (
	LocationDirtyArea = "dirty_area"
	LocationCleanArea = "clean_area"
	LocationTruck     = "truck"
	LocationClient    = "client"
)

// SplitLocation splits "Sector - Detail" on the first '-'.
func SplitLocation(loc string) (sector, detail string) {
	head, tail, found := strings.Cut(loc, "-")
	sector = strings.TrimSpace(head)
	if found {
		detail = strings.TrimSpace(tail)
	}
	return sector, detail
}

// sectorAliases are the sector names stored locations use for each key.
var sectorAliases = map[string][]string{
	LocationDirtyArea: {"área suja", "area suja"},
	LocationCleanArea: {"área limpa", "area limpa"},
	LocationTruck:     {"caminhão", "caminhao"},
	LocationClient:    {"cliente"},
}

// MatchesLocation reports whether loc belongs to the sector named by key.
// Keys match as a case-insensitive substring with '_' read as a space, or
// by one of the key's sector aliases. An empty key or "all" matches everything.
func MatchesLocation(loc, key string) bool {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" || key == "all" {
		return true
	}
	loc = strings.ToLower(loc)
	if strings.Contains(loc, strings.ReplaceAll(key, "_", " ")) {
		return true
	}
	for _, alias := range sectorAliases[key] {
		if strings.Contains(loc, alias) {
			return true
		}
	}
	return false
}
