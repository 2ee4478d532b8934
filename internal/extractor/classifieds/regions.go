package classifieds

// regionMap expands one logical region code into the concrete sub-region
// subdomains scanned for it. Unknown codes fall back to "all".
var regionMap = map[string][]string{
	"all":       {"sfbay", "losangeles", "seattle", "chicago", "newyork", "dallas", "miami", "denver", "phoenix", "atlanta"},
	"west":      {"sfbay", "losangeles", "seattle", "portland", "sandiego", "phoenix", "denver", "lasvegas", "sacramento"},
	"midwest":   {"chicago", "detroit", "minneapolis", "stlouis", "kansascity", "columbus", "cleveland", "indianapolis"},
	"northeast": {"newyork", "boston", "philadelphia", "dc", "baltimore", "pittsburgh", "hartford", "providence"},
	"south":     {"atlanta", "miami", "dallas", "houston", "austin", "orlando", "nashville", "charlotte", "tampa"},
}

// Subregions resolves a logical region code to its sub-region list.
func Subregions(code string) []string {
	if regions, ok := regionMap[code]; ok {
		return regions
	}
	return regionMap["all"]
}
