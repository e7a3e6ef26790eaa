package geography

import (
	"strings"

	"googlemaps.github.io/maps"
)

// countryToContinent maps normalized country names to continents for path
// building. Unknown countries simply omit the continent segment.
var countryToContinent = map[string]string{
	"united states":  "north_america",
	"canada":         "north_america",
	"mexico":         "north_america",
	"brazil":         "south_america",
	"argentina":      "south_america",
	"chile":          "south_america",
	"colombia":       "south_america",
	"peru":           "south_america",
	"united kingdom": "europe",
	"ireland":        "europe",
	"france":         "europe",
	"germany":        "europe",
	"spain":          "europe",
	"portugal":       "europe",
	"italy":          "europe",
	"netherlands":    "europe",
	"belgium":        "europe",
	"switzerland":    "europe",
	"austria":        "europe",
	"poland":         "europe",
	"czechia":        "europe",
	"sweden":         "europe",
	"norway":         "europe",
	"denmark":        "europe",
	"finland":        "europe",
	"greece":         "europe",
	"turkey":         "europe",
	"russia":         "europe",
	"china":          "asia",
	"japan":          "asia",
	"south korea":    "asia",
	"taiwan":         "asia",
	"hong kong":      "asia",
	"singapore":      "asia",
	"malaysia":       "asia",
	"thailand":       "asia",
	"vietnam":        "asia",
	"indonesia":      "asia",
	"philippines":    "asia",
	"india":          "asia",
	"israel":         "asia",
	"united arab emirates": "asia",
	"south africa":         "africa",
	"egypt":                "africa",
	"morocco":              "africa",
	"kenya":                "africa",
	"nigeria":              "africa",
	"australia":            "oceania",
	"new zealand":          "oceania",
}

// GetContinent returns the continent for a given country name (case-insensitive).
// Returns empty string if country not found.
func GetContinent(country string) string {
	normalized := strings.ToLower(strings.TrimSpace(country))
	return countryToContinent[normalized]
}

// NormalizeName converts a string to lowercase with spaces replaced by underscores.
func NormalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(normalized, " ", "_")
}

// Slugify builds a URL-safe slug from a display name. Non-alphanumeric runs
// collapse to single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// GenerateLocalityPath generates a locality grouping path from Google
// address components. Returns a path string in format:
// "continent|country|state|county|city|neighborhood".
// Only includes components that are present in the address.
func GenerateLocalityPath(addressComponents []maps.AddressComponent) string {
	// Component types we want, in order from broad to specific
	wantedTypes := map[string]int{
		"country":                     0,
		"administrative_area_level_1": 1, // State/Province
		"administrative_area_level_2": 2, // County
		"locality":                    3, // City
		"sublocality":                 4, // Neighborhood
	}

	found := make(map[int]string)
	for _, component := range addressComponents {
		for _, compType := range component.Types {
			if priority, exists := wantedTypes[compType]; exists {
				if _, alreadyFound := found[priority]; !alreadyFound {
					found[priority] = component.LongName
				}
			}
		}
	}

	var pathComponents []string
	if countryName, hasCountry := found[0]; hasCountry {
		if continent := GetContinent(countryName); continent != "" {
			pathComponents = append(pathComponents, continent)
		}
	}
	for i := 0; i < len(wantedTypes); i++ {
		if component, exists := found[i]; exists {
			pathComponents = append(pathComponents, NormalizeName(component))
		}
	}

	return strings.Join(pathComponents, "|")
}
