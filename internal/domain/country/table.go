package country

import "sort"

// Unknown is the key for empty or blank input.
const Unknown = "unknown"

// variants maps each canonical key to its known spellings. Entries are
// cleaned at init, so punctuation and case here do not matter.
var variants = map[string][]string{
	"austria":        {"austria", "at", "aut", "österreich", "osterreich", "republic of austria"},
	"belgium":        {"belgium", "be", "bel", "belgique", "belgie", "kingdom of belgium"},
	"bulgaria":       {"bulgaria", "bg", "bgr", "republic of bulgaria"},
	"croatia":        {"croatia", "hr", "hrv", "hrvatska", "republic of croatia"},
	"cyprus":         {"cyprus", "cy", "cyp", "republic of cyprus"},
	"czech_republic": {"czech republic", "czechia", "cz", "cze", "czech rep.", "česko", "ceska republika"},
	"denmark":        {"denmark", "dk", "dnk", "danmark", "kingdom of denmark"},
	"estonia":        {"estonia", "ee", "est", "eesti", "republic of estonia"},
	"finland":        {"finland", "fi", "fin", "suomi", "republic of finland"},
	"france":         {"france", "fr", "fra", "french republic", "république française"},
	"germany":        {"germany", "de", "deu", "deutschland", "federal republic of germany", "bundesrepublik deutschland"},
	"greece":         {"greece", "gr", "grc", "hellenic republic", "hellas", "ellada", "el"},
	"hungary":        {"hungary", "hu", "hun", "magyarország", "magyarorszag"},
	"ireland":        {"ireland", "ie", "irl", "éire", "eire", "republic of ireland"},
	"italy":          {"italy", "it", "ita", "italia", "italian republic"},
	"latvia":         {"latvia", "lv", "lva", "latvija"},
	"lithuania":      {"lithuania", "lt", "ltu", "lietuva"},
	"luxembourg":     {"luxembourg", "lu", "lux", "grand duchy of luxembourg"},
	"malta":          {"malta", "mt", "mlt", "republic of malta"},
	"netherlands":    {"netherlands", "nl", "nld", "holland", "the netherlands", "nederland", "kingdom of the netherlands"},
	"poland":         {"poland", "pl", "pol", "polska", "republic of poland"},
	"portugal":       {"portugal", "pt", "prt", "portuguese republic"},
	"romania":        {"romania", "ro", "rou", "românia"},
	"slovakia":       {"slovakia", "sk", "svk", "slovak republic", "slovensko"},
	"slovenia":       {"slovenia", "si", "svn", "slovenija"},
	"spain":          {"spain", "es", "esp", "españa", "espana", "kingdom of spain"},
	"sweden":         {"sweden", "se", "swe", "sverige", "kingdom of sweden"},
	"united_kingdom": {"united kingdom", "uk", "gb", "gbr", "great britain", "britain", "england", "scotland", "wales", "northern ireland", "united kingdom of great britain and northern ireland"},
	"united_states":  {"united states", "usa", "us", "u.s.", "u.s.a.", "america", "united states of america"},
	"china":          {"china", "cn", "chn", "people's republic of china", "prc", "zhongguo"},
	"japan":          {"japan", "jp", "jpn", "nippon", "nihon"},
	"south_korea":    {"south korea", "kr", "kor", "republic of korea", "korea republic of"},
	"north_korea":    {"north korea", "kp", "prk", "dprk", "dpr korea", "korea dpr", "democratic people's republic of korea"},
	"brazil":         {"brazil", "br", "bra", "brasil", "federative republic of brazil"},
	"india":          {"india", "in", "ind", "bharat", "republic of india"},
	"russia":         {"russia", "ru", "rus", "russian federation", "rossiya"},
	"canada":         {"canada", "ca", "can"},
	"australia":      {"australia", "au", "aus", "commonwealth of australia"},
	"norway":         {"norway", "no", "nor", "norge", "kingdom of norway"},
	"switzerland":    {"switzerland", "ch", "che", "schweiz", "suisse", "svizzera", "swiss confederation"},
	"iceland":        {"iceland", "is", "isl", "ísland"},
	"turkey":         {"turkey", "tr", "tur", "türkiye", "turkiye", "republic of türkiye"},
	"mexico":         {"mexico", "mx", "mex", "méxico", "united mexican states"},
	"argentina":      {"argentina", "ar", "arg", "argentine republic"},
	"south_africa":   {"south africa", "za", "zaf", "republic of south africa", "rsa"},
	"egypt":          {"egypt", "eg", "egy", "arab republic of egypt", "misr"},
	"saudi_arabia":   {"saudi arabia", "sa", "sau", "kingdom of saudi arabia", "ksa"},
	"uae":            {"united arab emirates", "uae", "ae", "are", "emirates"},
	"israel":         {"israel", "il", "isr", "state of israel"},
	"new_zealand":    {"new zealand", "nz", "nzl", "aotearoa"},
	"chile":          {"chile", "cl", "chl", "republic of chile"},
	"colombia":       {"colombia", "co", "col", "republic of colombia"},
	"ukraine":        {"ukraine", "ua", "ukr", "ukraina"},
	"indonesia":      {"indonesia", "id", "idn", "ri", "republik indonesia", "republic of indonesia", "nkri"},
	"malaysia":       {"malaysia", "my", "mys"},
	"singapore":      {"singapore", "sg", "sgp", "republic of singapore"},
	"thailand":       {"thailand", "th", "tha", "kingdom of thailand", "siam"},
	"vietnam":        {"vietnam", "viet nam", "vn", "vnm", "socialist republic of vietnam"},
	"philippines":    {"philippines", "ph", "phl", "filipinas", "republic of the philippines"},
	"nigeria":        {"nigeria", "ng", "nga", "federal republic of nigeria"},
	"niger":          {"niger", "ne", "ner", "republic of the niger"},
	"kenya":          {"kenya", "ke", "ken", "republic of kenya"},
	"pakistan":       {"pakistan", "pk", "pak", "islamic republic of pakistan"},
	"bangladesh":     {"bangladesh", "bd", "bgd", "people's republic of bangladesh"},
}

// stopWords carry no identifying information in a country name.
var stopWords = map[string]bool{
	"the":          true,
	"of":           true,
	"and":          true,
	"republic":     true,
	"republik":     true,
	"kingdom":      true,
	"federal":      true,
	"federative":   true,
	"state":        true,
	"states":       true,
	"democratic":   true,
	"people":       true,
	"s":            true,
	"islamic":      true,
	"socialist":    true,
	"commonwealth": true,
	"grand":        true,
	"duchy":        true,
	"arab":         true,
	"rep":          true,
}

// minFuzzyLen is the shortest variant considered for fuzzy matching.
// Shorter ones are two- and three-letter codes that only match exactly.
const minFuzzyLen = 4

type entry struct {
	variant string
	tokens  []string
	key     string
}

var (
	exact map[string]string // cleaned variant -> key
	fuzzy []entry           // variants eligible for token matching
)

func init() {
	exact = make(map[string]string, 512)
	exact[Unknown] = Unknown
	keys := Keys()
	sort.Strings(keys)
	for _, key := range keys {
		add(spaced(key), key)
	}
	for _, key := range keys {
		for _, v := range variants[key] {
			add(clean(v), key)
		}
	}
}

func add(v, key string) {
	if v == "" {
		return
	}
	if _, dup := exact[v]; dup {
		return
	}
	exact[v] = key
	if len([]rune(v)) >= minFuzzyLen {
		fuzzy = append(fuzzy, entry{variant: v, tokens: tokenize(v), key: key})
	}
}

// Keys returns every canonical key in the table.
func Keys() []string {
	out := make([]string, 0, len(variants))
	for k := range variants {
		out = append(out, k)
	}
	return out
}
