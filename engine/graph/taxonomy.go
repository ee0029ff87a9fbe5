package graph

import (
	"sort"
	"strings"
)

// SystemTaxonomy lists the vehicle systems and their subsystems used to
// group bulletin components in the graph.
var SystemTaxonomy = map[string][]string{
	"Engine":       {"Fuel Injection", "Ignition", "Lubrication", "Intake", "Timing", "Turbo/Supercharger"},
	"Transmission": {"Automatic", "Manual", "CVT", "Clutch", "Torque Converter", "Differential"},
	"Brakes":       {"Disc Brakes", "Drum Brakes", "ABS", "Brake Lines", "Master Cylinder", "Parking Brake", "Brake Pads"},
	"Suspension":   {"Front Suspension", "Rear Suspension", "Shocks/Struts", "Springs", "Control Arms", "Sway Bars", "Bushings"},
	"Electrical":   {"Battery", "Alternator", "Starter", "Wiring Harness", "Fuse Box", "Lighting", "ECU/PCM"},
	"HVAC":         {"Compressor", "Condenser", "Evaporator", "Heater Core", "Blower Motor", "Refrigerant"},
	"Fuel System":  {"Fuel Pump", "Fuel Filter", "Fuel Tank", "Fuel Injectors", "Fuel Rail"},
	"Steering":     {"Power Steering", "Steering Rack", "Steering Column", "Tie Rods", "Ball Joints"},
	"Body":         {"Doors", "Windows", "Mirrors", "Bumpers", "Weatherstripping"},
	"Exhaust":      {"Catalytic Converter", "Muffler", "Exhaust Manifold", "O2 Sensors", "EGR"},
	"Cooling":      {"Radiator", "Water Pump", "Thermostat", "Coolant Hoses", "Fan"},
	"Safety":       {"Airbags", "Seatbelts", "TPMS", "Backup Camera", "Collision Avoidance"},
}

type keyword struct {
	word      string
	system    string
	subsystem string
}

// keywords are matched longest first so "brake pad" wins over "brake".
var keywords = sortKeywords([]keyword{
	{"fuel injection", "Engine", "Fuel Injection"},
	{"ignition", "Engine", "Ignition"},
	{"spark plug", "Engine", "Ignition"},
	{"coil pack", "Engine", "Ignition"},
	{"oil pump", "Engine", "Lubrication"},
	{"oil", "Engine", "Lubrication"},
	{"timing chain", "Engine", "Timing"},
	{"timing belt", "Engine", "Timing"},
	{"turbo", "Engine", "Turbo/Supercharger"},
	{"supercharger", "Engine", "Turbo/Supercharger"},
	{"intake", "Engine", "Intake"},
	{"engine", "Engine", ""},
	{"motor mount", "Engine", ""},
	{"piston", "Engine", ""},
	{"camshaft", "Engine", ""},
	{"crankshaft", "Engine", ""},
	{"cvt", "Transmission", "CVT"},
	{"clutch", "Transmission", "Clutch"},
	{"torque converter", "Transmission", "Torque Converter"},
	{"differential", "Transmission", "Differential"},
	{"automatic transmission", "Transmission", "Automatic"},
	{"manual transmission", "Transmission", "Manual"},
	{"transmission", "Transmission", ""},
	{"transaxle", "Transmission", ""},
	{"brake pad", "Brakes", "Brake Pads"},
	{"brake rotor", "Brakes", "Disc Brakes"},
	{"caliper", "Brakes", "Disc Brakes"},
	{"disc brake", "Brakes", "Disc Brakes"},
	{"drum brake", "Brakes", "Drum Brakes"},
	{"abs", "Brakes", "ABS"},
	{"brake line", "Brakes", "Brake Lines"},
	{"master cylinder", "Brakes", "Master Cylinder"},
	{"parking brake", "Brakes", "Parking Brake"},
	{"brake", "Brakes", ""},
	{"front suspension", "Suspension", "Front Suspension"},
	{"rear suspension", "Suspension", "Rear Suspension"},
	{"shock", "Suspension", "Shocks/Struts"},
	{"strut", "Suspension", "Shocks/Struts"},
	{"spring", "Suspension", "Springs"},
	{"control arm", "Suspension", "Control Arms"},
	{"sway bar", "Suspension", "Sway Bars"},
	{"bushing", "Suspension", "Bushings"},
	{"suspension", "Suspension", ""},
	{"battery", "Electrical", "Battery"},
	{"alternator", "Electrical", "Alternator"},
	{"starter", "Electrical", "Starter"},
	{"wiring harness", "Electrical", "Wiring Harness"},
	{"fuse", "Electrical", "Fuse Box"},
	{"headlight", "Electrical", "Lighting"},
	{"taillight", "Electrical", "Lighting"},
	{"ecu", "Electrical", "ECU/PCM"},
	{"pcm", "Electrical", "ECU/PCM"},
	{"electrical", "Electrical", ""},
	{"a/c compressor", "HVAC", "Compressor"},
	{"compressor", "HVAC", "Compressor"},
	{"condenser", "HVAC", "Condenser"},
	{"evaporator", "HVAC", "Evaporator"},
	{"heater core", "HVAC", "Heater Core"},
	{"blower motor", "HVAC", "Blower Motor"},
	{"refrigerant", "HVAC", "Refrigerant"},
	{"air conditioning", "HVAC", ""},
	{"hvac", "HVAC", ""},
	{"fuel pump", "Fuel System", "Fuel Pump"},
	{"fuel filter", "Fuel System", "Fuel Filter"},
	{"fuel tank", "Fuel System", "Fuel Tank"},
	{"fuel injector", "Fuel System", "Fuel Injectors"},
	{"fuel rail", "Fuel System", "Fuel Rail"},
	{"fuel", "Fuel System", ""},
	{"power steering", "Steering", "Power Steering"},
	{"steering rack", "Steering", "Steering Rack"},
	{"steering column", "Steering", "Steering Column"},
	{"tie rod", "Steering", "Tie Rods"},
	{"ball joint", "Steering", "Ball Joints"},
	{"steering", "Steering", ""},
	{"door", "Body", "Doors"},
	{"window", "Body", "Windows"},
	{"mirror", "Body", "Mirrors"},
	{"bumper", "Body", "Bumpers"},
	{"weatherstrip", "Body", "Weatherstripping"},
	{"catalytic converter", "Exhaust", "Catalytic Converter"},
	{"muffler", "Exhaust", "Muffler"},
	{"exhaust manifold", "Exhaust", "Exhaust Manifold"},
	{"o2 sensor", "Exhaust", "O2 Sensors"},
	{"oxygen sensor", "Exhaust", "O2 Sensors"},
	{"egr", "Exhaust", "EGR"},
	{"exhaust", "Exhaust", ""},
	{"radiator", "Cooling", "Radiator"},
	{"water pump", "Cooling", "Water Pump"},
	{"thermostat", "Cooling", "Thermostat"},
	{"coolant hose", "Cooling", "Coolant Hoses"},
	{"cooling fan", "Cooling", "Fan"},
	{"coolant", "Cooling", ""},
	{"airbag", "Safety", "Airbags"},
	{"seatbelt", "Safety", "Seatbelts"},
	{"seat belt", "Safety", "Seatbelts"},
	{"tpms", "Safety", "TPMS"},
	{"tire pressure", "Safety", "TPMS"},
	{"backup camera", "Safety", "Backup Camera"},
	{"collision", "Safety", "Collision Avoidance"},
})

func sortKeywords(kws []keyword) []keyword {
	sort.SliceStable(kws, func(i, j int) bool { return len(kws[i].word) > len(kws[j].word) })
	return kws
}

// Classify maps a component name or free text to a (system, subsystem)
// pair. Both are empty when nothing matches.
func Classify(text string) (system, subsystem string) {
	lower := " " + strings.ToLower(text) + " "
	for _, kw := range keywords {
		if containsWord(lower, kw.word) {
			return kw.system, kw.subsystem
		}
	}
	return "", ""
}

// containsWord matches word on word boundaries, allowing a plural "s",
// so "abs" does not match "absorber".
func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		j += i
		k := j + len(word)
		if !isAlnum(s[j-1]) && (!isAlnum(s[k]) || (s[k] == 's' && !isAlnum(s[k+1]))) {
			return true
		}
		i = j + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// sanitizeID converts a name to a lowercase dash-separated id.
func sanitizeID(name string) string {
	b := make([]byte, 0, len(name))
	for i := range name {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b = append(b, c+32)
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b = append(b, c)
		case c == ' ' || c == '/' || c == '_' || c == '-':
			if len(b) > 0 && b[len(b)-1] != '-' {
				b = append(b, '-')
			}
		}
	}
	if len(b) > 0 && b[len(b)-1] == '-' {
		b = b[:len(b)-1]
	}
	return string(b)
}
