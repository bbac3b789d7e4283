package textfilter

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Common US English swear words filtered from generated text at PG13 and below
var swearWords = []string{
	"fuck", "shit", "damn", "hell", "ass", "bitch", "bastard", "crap",
	"piss", "cock", "dick", "pussy", "tits", "boobs", "whore", "slut",
	"fag", "retard", "nigger", "nigga", "spic", "chink", "kike",
	"motherfucker", "goddamn", "jesus christ", "christ", "asshole",
	"dumbass", "jackass", "smartass", "badass", "bullshit", "horseshit",
	"dipshit", "shithead", "dickhead", "prick", "douche", "douchebag",
}

// swearWordReplacements maps swear words to family-friendly alternatives
var swearWordReplacements = map[string]string{
	"fuck":         "fudge",
	"shit":         "shoot",
	"damn":         "dang",
	"hell":         "heck",
	"ass":          "butt",
	"bitch":        "jerk",
	"bastard":      "jerk",
	"crap":         "crud",
	"piss":         "ticked",
	"cock":         "[censored]",
	"dick":         "jerk",
	"pussy":        "[censored]",
	"tits":         "[censored]",
	"boobs":        "[censored]",
	"whore":        "[censored]",
	"slut":         "[censored]",
	"fag":          "[censored]",
	"retard":       "[censored]",
	"nigger":       "[censored]",
	"nigga":        "[censored]",
	"spic":         "[censored]",
	"chink":        "[censored]",
	"kike":         "[censored]",
	"motherfucker": "mother-trucker",
	"goddamn":      "gosh-dang",
	"jesus christ": "jeez",
	"christ":       "crikey",
	"asshole":      "jerk",
	"dumbass":      "dummy",
	"jackass":      "jerk",
	"smartass":     "smarty",
	"badass":       "tough",
	"bullshit":     "baloney",
	"horseshit":    "nonsense",
	"dipshit":      "dummy",
	"shithead":     "jerk",
	"dickhead":     "jerk",
	"prick":        "jerk",
	"douche":       "jerk",
	"douchebag":    "jerk",
}

// ProfanityFilter replaces swear words with milder ones.
type ProfanityFilter struct {
	regexes map[string]*regexp.Regexp
}

func NewProfanityFilter() *ProfanityFilter {
	pf := &ProfanityFilter{
		regexes: make(map[string]*regexp.Regexp, len(swearWords)),
	}
	for _, word := range swearWords {
		pf.regexes[word] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `(?:e?s)?\b`)
	}
	return pf
}

// FilterText replaces profanity in text, keeping the case of each match.
// Plural matches get a plural replacement.
func (pf *ProfanityFilter) FilterText(text string) string {
	result := text
	for _, word := range swearWords {
		replacement, ok := swearWordReplacements[word]
		if !ok {
			continue
		}
		result = pf.regexes[word].ReplaceAllStringFunc(result, func(match string) string {
			base := match[:len(word)]
			out := preserveCase(base, replacement)
			if len(match) > len(word) {
				if strings.ToUpper(base) == base {
					out += "S"
				} else {
					out += "s"
				}
			}
			return out
		})
	}
	return result
}

func (pf *ProfanityFilter) ContainsProfanity(text string) bool {
	for _, word := range swearWords {
		if pf.regexes[word].MatchString(text) {
			return true
		}
	}
	return false
}

func preserveCase(original, replacement string) string {
	if original == "" {
		return replacement
	}
	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	titleCaser := cases.Title(language.English)
	if titleCaser.String(strings.ToLower(original)) == original {
		return titleCaser.String(replacement)
	}

	// Mixed case: copy the pattern rune by rune.
	originalRunes := []rune(original)
	result := make([]rune, 0, len(replacement))
	for i, r := range []rune(replacement) {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			result = append(result, unicode.ToUpper(r))
		} else {
			result = append(result, unicode.ToLower(r))
		}
	}
	return string(result)
}

// NormalizeRating maps rating spellings such as "pg-13" to G, PG, PG13 or R.
// Unknown ratings are returned upper-cased and unfiltered.
func NormalizeRating(rating string) string {
	r := strings.ToUpper(strings.TrimSpace(rating))
	return strings.ReplaceAll(r, "-", "")
}

// ShouldFilterContent determines if content should be filtered based on rating
func ShouldFilterContent(rating string) bool {
	switch NormalizeRating(rating) {
	case "G", "PG", "PG13":
		return true
	default:
		return false
	}
}

// Words kept lower case inside a title.
var minorWords = map[string]bool{
	"a": true, "an": true, "and": true, "at": true, "by": true, "for": true,
	"in": true, "of": true, "on": true, "or": true, "the": true, "to": true,
}

// Sanitizer cleans synthesized location content for a content rating.
// It is safe for concurrent use.
type Sanitizer struct {
	filter    bool
	profanity *ProfanityFilter
}

func NewSanitizer(rating string) *Sanitizer {
	return &Sanitizer{
		filter:    ShouldFilterContent(rating),
		profanity: NewProfanityFilter(),
	}
}

// Text collapses whitespace and filters profanity when the rating requires it.
func (s *Sanitizer) Text(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if s.filter {
		text = s.profanity.FilterText(text)
	}
	return text
}

// Filters reports whether Text would replace profanity in text.
func (s *Sanitizer) Filters(text string) bool {
	return s.filter && s.profanity.ContainsProfanity(text)
}

// Name cleans a location name and title-cases it: "the ruined  chapel" becomes
// "The Ruined Chapel".
func (s *Sanitizer) Name(name string) string {
	words := strings.Fields(strings.Trim(s.Text(name), `"'.`))
	caser := cases.Title(language.English)
	for i, w := range words {
		lower := strings.ToLower(w)
		if i > 0 && minorWords[lower] {
			words[i] = lower
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// Items cleans item names, dropping blanks and case-insensitive duplicates.
// The result is sorted.
func (s *Sanitizer) Items(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		clean := strings.ToLower(s.Text(item))
		if clean == "" || seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	sort.Strings(out)
	return out
}
