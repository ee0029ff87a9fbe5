package vehiclenlp

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Match is one vehicle mention found in text.
type Match struct {
	Make       string
	Model      string
	Year       int // 0 when no year was found
	Confidence float64
	Span       string
}

var (
	makePattern      *regexp.Regexp
	yearPattern      = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	shortYearPattern = regexp.MustCompile(`'(\d{2})\b`)

	// modelsByMake holds each make's models, longest first.
	modelsByMake map[string][]string
	// soleModels maps a lower-case model to the only make that builds it.
	soleModels    map[string]string
	soleModelKeys []string
)

// Models that read as ordinary words in a symptom description.
var ambiguousModels = map[string]bool{
	"air": true, "fit": true, "edge": true, "soul": true, "leaf": true,
	"spark": true, "venue": true, "escape": true, "focus": true, "pilot": true,
	"passport": true, "insight": true, "compass": true, "legacy": true,
	"mirage": true, "ranger": true, "titan": true, "cooper": true,
}

func init() {
	modelsByMake = make(map[string][]string, len(makeModels))
	owners := make(map[string][]string)
	for mk, models := range makeModels {
		sorted := append([]string(nil), models...)
		sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
		modelsByMake[mk] = sorted
		for _, m := range models {
			l := strings.ToLower(m)
			owners[l] = append(owners[l], mk)
		}
	}
	soleModels = make(map[string]string)
	for l, mks := range owners {
		if len(mks) == 1 && len(l) >= 3 && !ambiguousModels[l] {
			soleModels[l] = mks[0]
			soleModelKeys = append(soleModelKeys, l)
		}
	}
	sort.Slice(soleModelKeys, func(i, j int) bool {
		if len(soleModelKeys[i]) != len(soleModelKeys[j]) {
			return len(soleModelKeys[i]) > len(soleModelKeys[j])
		}
		return soleModelKeys[i] < soleModelKeys[j]
	})

	aliases := make([]string, 0, len(makeAliases))
	for a := range makeAliases {
		aliases = append(aliases, regexp.QuoteMeta(a))
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})
	makePattern = regexp.MustCompile(`(?i)\b(` + strings.Join(aliases, "|") + `)(?:'s)?\b`)
}

// Extract returns every vehicle mention in text, most confident first.
func Extract(text string) []Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var (
		out     []Match
		seen    = make(map[string]bool)
		covered [][2]int
	)

	for _, loc := range makePattern.FindAllStringSubmatchIndex(text, -1) {
		canonical := makeAliases[strings.ToLower(text[loc[2]:loc[3]])]
		if canonical == "" {
			continue
		}
		after := text[loc[1]:min(loc[1]+40, len(text))]
		model, modelEnd := modelPrefix(canonical, after)

		beforeStart := max(0, loc[0]-10)
		before := text[beforeStart:loc[0]]
		year := fullYear(before)
		if year == 0 {
			year = fullYear(after[modelEnd:])
		}
		if year == 0 {
			year = shortYear(before)
		}

		key := canonical + "|" + model + "|" + strconv.Itoa(year)
		if seen[key] {
			continue
		}
		seen[key] = true

		start := loc[0]
		if year > 0 {
			if i := strings.Index(before, strconv.Itoa(year)); i >= 0 {
				start = beforeStart + i
			}
		}
		end := loc[1]
		if model != "" {
			end = loc[1] + modelEnd
		}
		covered = append(covered, [2]int{loc[0], end})
		out = append(out, Match{
			Make:       canonical,
			Model:      model,
			Year:       year,
			Confidence: confidence(model != "", year > 0),
			Span:       strings.TrimSpace(text[start:end]),
		})
	}

	out = append(out, standaloneModels(text, seen, covered)...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// ExtractBest returns the most confident mention, or nil.
func ExtractBest(text string) *Match {
	matches := Extract(text)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

func confidence(hasModel, hasYear bool) float64 {
	switch {
	case hasModel && hasYear:
		return 0.95
	case hasModel:
		return 0.80
	case hasYear:
		return 0.70
	default:
		return 0.60
	}
}

// modelPrefix finds a model of make at the start of s, returning it and the
// byte offset just past it.
func modelPrefix(make_, s string) (string, int) {
	trimmed := strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\'' || r == '’'
	})
	offset := len(s) - len(trimmed)
	lower := strings.ToLower(trimmed)
	for _, m := range modelsByMake[make_] {
		ml := strings.ToLower(m)
		if !strings.HasPrefix(lower, ml) || !boundaryAt(lower, len(ml)) {
			continue
		}
		return m, offset + len(ml)
	}
	return "", 0
}

func standaloneModels(text string, seen map[string]bool, covered [][2]int) []Match {
	var out []Match
	lower := strings.ToLower(text)
	for _, ml := range soleModelKeys {
		idx := wordIndex(lower, ml)
		if idx < 0 || insideAny(idx, covered) {
			continue
		}
		mk := soleModels[ml]
		model := CanonicalModel(mk, ml)
		end := idx + len(ml)

		lo, hi := max(0, idx-12), min(end+12, len(text))
		year := fullYear(text[lo:hi])
		if year == 0 {
			year = shortYear(text[lo:idx])
		}
		key := mk + "|" + model + "|" + strconv.Itoa(year)
		if seen[key] {
			continue
		}
		seen[key] = true
		covered = append(covered, [2]int{idx, end})

		conf := 0.50
		if year > 0 {
			conf = 0.75
		}
		out = append(out, Match{
			Make:       mk,
			Model:      model,
			Year:       year,
			Confidence: conf,
			Span:       strings.TrimSpace(text[lo:hi]),
		})
	}
	return out
}

// wordIndex is strings.Index restricted to whole-word occurrences.
func wordIndex(s, sub string) int {
	from := 0
	for from < len(s) {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return -1
		}
		i += from
		if boundaryAt(s, i+len(sub)) && (i == 0 || !isWordByte(s[i-1])) {
			return i
		}
		from = i + 1
	}
	return -1
}

func boundaryAt(s string, i int) bool {
	return i >= len(s) || !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	r := rune(b)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func insideAny(i int, spans [][2]int) bool {
	for _, sp := range spans {
		if i >= sp[0] && i < sp[1] {
			return true
		}
	}
	return false
}

func fullYear(s string) int {
	m := yearPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	if y < 1980 || y > 2030 {
		return 0
	}
	return y
}

func shortYear(s string) int {
	m := shortYearPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	yy, _ := strconv.Atoi(m[1])
	switch {
	case yy <= 30:
		return 2000 + yy
	case yy >= 80:
		return 1900 + yy
	}
	return 0
}
