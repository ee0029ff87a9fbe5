// Package vehiclenlp normalises vehicle makes and extracts make/model/year
// mentions from free-text symptom descriptions.
package vehiclenlp

import (
	"sort"
	"strings"
)

// makeAliases maps lower-case names and nicknames to canonical makes.
var makeAliases = map[string]string{
	"chevy":         "Chevrolet",
	"chevrolet":     "Chevrolet",
	"merc":          "Mercedes-Benz",
	"benz":          "Mercedes-Benz",
	"mercedes":      "Mercedes-Benz",
	"mercedes-benz": "Mercedes-Benz",
	"vw":            "Volkswagen",
	"volkswagen":    "Volkswagen",
	"toyota":        "Toyota",
	"honda":         "Honda",
	"ford":          "Ford",
	"bmw":           "BMW",
	"audi":          "Audi",
	"nissan":        "Nissan",
	"hyundai":       "Hyundai",
	"kia":           "Kia",
	"subaru":        "Subaru",
	"mazda":         "Mazda",
	"jeep":          "Jeep",
	"ram":           "Ram",
	"gmc":           "GMC",
	"dodge":         "Dodge",
	"lexus":         "Lexus",
	"acura":         "Acura",
	"tesla":         "Tesla",
	"porsche":       "Porsche",
	"volvo":         "Volvo",
	"buick":         "Buick",
	"cadillac":      "Cadillac",
	"lincoln":       "Lincoln",
	"infiniti":      "Infiniti",
	"genesis":       "Genesis",
	"mitsubishi":    "Mitsubishi",
	"chrysler":      "Chrysler",
	"land rover":    "Land Rover",
	"jaguar":        "Jaguar",
	"alfa romeo":    "Alfa Romeo",
	"fiat":          "Fiat",
	"mini":          "Mini",
	"rivian":        "Rivian",
	"lucid":         "Lucid",
	"polestar":      "Polestar",
}

// makeModels lists well-known models per canonical make.
var makeModels = map[string][]string{
	"Toyota":        {"Camry", "Corolla", "RAV4", "Highlander", "Tacoma", "Tundra", "Prius", "4Runner", "Sienna", "Supra", "Venza", "C-HR", "Sequoia", "Land Cruiser"},
	"Honda":         {"Civic", "Accord", "CR-V", "Pilot", "Odyssey", "HR-V", "Ridgeline", "Fit", "Passport", "Insight"},
	"Ford":          {"F-150", "F-250", "F-350", "Mustang", "Explorer", "Escape", "Ranger", "Bronco", "Edge", "Expedition", "Maverick", "Focus", "Fusion", "Fiesta", "Transit"},
	"Chevrolet":     {"Silverado", "Equinox", "Malibu", "Tahoe", "Suburban", "Camaro", "Colorado", "Traverse", "Blazer", "Bolt", "Impala", "Trax", "Cruze", "Spark"},
	"BMW":           {"3 Series", "5 Series", "7 Series", "X3", "X5", "X1", "X7", "M3", "M5", "i4", "iX", "4 Series", "2 Series", "X6"},
	"Mercedes-Benz": {"C-Class", "E-Class", "S-Class", "GLC", "GLE", "A-Class", "CLA", "GLA", "GLB", "GLS", "EQS", "EQE"},
	"Audi":          {"A4", "A6", "A3", "Q5", "Q7", "Q3", "A5", "A8", "Q8", "e-tron", "S4", "TT"},
	"Nissan":        {"Altima", "Sentra", "Rogue", "Pathfinder", "Frontier", "Maxima", "Murano", "Titan", "Kicks", "Versa", "Armada", "Leaf"},
	"Hyundai":       {"Elantra", "Sonata", "Tucson", "Santa Fe", "Kona", "Palisade", "Ioniq 5", "Venue", "Accent", "Santa Cruz"},
	"Kia":           {"Forte", "K5", "Sportage", "Telluride", "Sorento", "Seltos", "EV6", "Soul", "Stinger", "Carnival", "Rio", "Niro"},
	"Volkswagen":    {"Golf", "Jetta", "Tiguan", "Atlas", "Passat", "Taos", "ID.4", "GTI", "Arteon", "Beetle"},
	"Subaru":        {"Outback", "Forester", "Crosstrek", "Impreza", "WRX", "Legacy", "Ascent", "BRZ"},
	"Mazda":         {"Mazda3", "Mazda6", "CX-5", "CX-9", "CX-30", "CX-50", "MX-5", "CX-90"},
	"Jeep":          {"Wrangler", "Grand Cherokee", "Cherokee", "Compass", "Renegade", "Gladiator", "Wagoneer"},
	"Ram":           {"1500", "2500", "3500", "ProMaster"},
	"GMC":           {"Sierra", "Terrain", "Acadia", "Yukon", "Canyon"},
	"Dodge":         {"Charger", "Challenger", "Durango", "Hornet"},
	"Lexus":         {"RX", "ES", "NX", "IS", "GX", "LX", "UX"},
	"Acura":         {"TLX", "MDX", "RDX", "Integra", "ILX"},
	"Tesla":         {"Model 3", "Model Y", "Model S", "Model X", "Cybertruck"},
	"Porsche":       {"911", "Cayenne", "Macan", "Taycan", "Panamera"},
	"Volvo":         {"XC90", "XC60", "XC40", "S60", "S90", "V60"},
	"Buick":         {"Enclave", "Encore", "Envision", "LaCrosse"},
	"Cadillac":      {"Escalade", "CT5", "CT4", "XT5", "XT4", "XT6"},
	"Lincoln":       {"Navigator", "Aviator", "Corsair", "Nautilus"},
	"Infiniti":      {"Q50", "Q60", "QX50", "QX60", "QX80"},
	"Genesis":       {"G70", "G80", "G90", "GV70", "GV80"},
	"Mitsubishi":    {"Outlander", "Eclipse Cross", "Mirage"},
	"Chrysler":      {"Pacifica", "300"},
	"Land Rover":    {"Range Rover", "Defender", "Discovery", "Evoque"},
	"Jaguar":        {"F-Pace", "E-Pace", "XF", "XE", "F-Type"},
	"Alfa Romeo":    {"Giulia", "Stelvio", "Tonale"},
	"Fiat":          {"500", "500X"},
	"Mini":          {"Cooper", "Countryman", "Clubman"},
	"Rivian":        {"R1T", "R1S"},
	"Lucid":         {"Air"},
	"Polestar":      {"Polestar 2", "Polestar 3"},
}

// CanonicalMake returns the canonical spelling of a make or alias
// ("chevy" -> "Chevrolet"). Unknown makes come back trimmed and unchanged.
func CanonicalMake(name string) string {
	trimmed := strings.TrimSpace(name)
	if c, ok := makeAliases[strings.ToLower(trimmed)]; ok {
		return c
	}
	return trimmed
}

// CanonicalModel returns the catalogue spelling of model for make, or the
// trimmed input when the pair is unknown.
func CanonicalModel(make_, model string) string {
	trimmed := strings.TrimSpace(model)
	for _, m := range makeModels[CanonicalMake(make_)] {
		if strings.EqualFold(m, trimmed) {
			return m
		}
	}
	return trimmed
}

// KnownMake reports whether name resolves to a catalogued make.
func KnownMake(name string) bool {
	_, ok := makeAliases[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Makes returns the canonical makes in alphabetical order.
func Makes() []string {
	out := make([]string, 0, len(makeModels))
	for m := range makeModels {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
