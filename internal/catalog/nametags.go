package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Release-name tagging grammar. Each extractor targets its own bracketed
// segment, so the extractors are independent of one another; only the
// revision table below is order-sensitive (first match wins).

var (
	regionRegex   = regexp.MustCompile(`\((USA|Europe|Japan|World|Germany|France|Brazil|Australia|Korea|China|Taiwan|Spain|Italy|Netherlands|Sweden|Norway|Denmark|Finland|UK|Canada|Asia|Unknown)\)`)
	languageRegex = regexp.MustCompile(`\((En|Fr|De|Ja|Es|It|Nl|Pt|Sv|No|Da|Fi|Zh|Ko|Pl|Ru|M\d+(?:,[A-Za-z]{2,3})*)\)`)
	protoRegex    = regexp.MustCompile(`\((Proto|Prototype|Sample)\)`)
	betaRegex     = regexp.MustCompile(`\((Beta)\)`)
	demoRegex     = regexp.MustCompile(`\((Demo|Kiosk)\)`)
	unlRegex      = regexp.MustCompile(`\((Unl|Unlicensed)\)`)
	discRegex     = regexp.MustCompile(`\((Disc|Disk|Side)\s*([\w\d]+)\)`)
	translRegex   = regexp.MustCompile(`\[T\+[A-Za-z]{2,3}\]`)
	verifiedRegex = regexp.MustCompile(`\[!\]`)
	pirateRegex   = regexp.MustCompile(`\[p\]`)
	hackRegex     = regexp.MustCompile(`\[h\]`)
	trainerRegex  = regexp.MustCompile(`\[t\]`)
	overdumpRegex = regexp.MustCompile(`\[o\]`)
	titleRegex    = regexp.MustCompile(`^([^(]+)`)
)

// regionLanguageDefaults maps a region to the language assumed when the
// release name carries no explicit language tag. This inference is a
// usability feature: most catalogs omit the language for single-language
// releases.
var regionLanguageDefaults = map[string]string{
	"USA":         "En",
	"Europe":      "En",
	"Japan":       "Ja",
	"Germany":     "De",
	"France":      "Fr",
	"Spain":       "Es",
	"Italy":       "It",
	"Netherlands": "Nl",
	"Brazil":      "Pt",
	"Korea":       "Ko",
	"China":       "Zh",
	"Taiwan":      "Zh",
	"UK":          "En",
	"Canada":      "En",
	"Australia":   "En",
	"World":       "En",
	"Asia":        "En",
}

// revisionPattern pairs a pattern with the revision number it yields.
// extract is consulted only when fixed is negative.
type revisionPattern struct {
	re      *regexp.Regexp
	fixed   int
	extract func(match []string) int
}

func captureInt(match []string) int {
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

// revisionPatterns is evaluated in order; the first pattern that matches
// wins. Lettered revisions must precede the numeric Rev pattern.
var revisionPatterns = []revisionPattern{
	{re: regexp.MustCompile(`(?i)\(Rev\s*A\)`), fixed: 1},
	{re: regexp.MustCompile(`(?i)\(Rev\s*B\)`), fixed: 2},
	{re: regexp.MustCompile(`(?i)\(Rev\s*C\)`), fixed: 3},
	{re: regexp.MustCompile(`(?i)\(Rev\s*D\)`), fixed: 4},
	{re: regexp.MustCompile(`(?i)\(Rev\s*(\d+)\)`), fixed: -1, extract: captureInt},
	{re: regexp.MustCompile(`(?i)\(v1\.(\d+)\)`), fixed: -1, extract: captureInt},
	{re: regexp.MustCompile(`(?i)\(PRG(\d+)\)`), fixed: -1, extract: captureInt},
	{re: regexp.MustCompile(`(?i)\[a\]`), fixed: 1},
	{re: regexp.MustCompile(`(?i)\[b\]`), fixed: 2},
	{re: regexp.MustCompile(`(?i)\[c\]`), fixed: 3},
	{re: regexp.MustCompile(`(?i)\(Alt\s*(\d+)\)`), fixed: -1, extract: captureInt},
}

// nameAttributes holds everything derivable from a raw release name.
type nameAttributes struct {
	CanonicalTitle          string
	Region                  string
	Languages               string
	IsBeta                  bool
	IsDemo                  bool
	IsPrototype             bool
	IsUnlicensed            bool
	Revision                int
	IsUnofficialTranslation bool
	IsVerifiedDump          bool
	IsPirate                bool
	IsHack                  bool
	IsTrainer               bool
	IsOverdump              bool
	DiscInfo                string
}

// parseReleaseName extracts structured attributes from a raw release name.
// It never fails: an unusual title degrades to the raw string as canonical
// title with all flags false and revision 0.
func parseReleaseName(name string) nameAttributes {
	attrs := nameAttributes{CanonicalTitle: name}

	if m := titleRegex.FindStringSubmatch(name); m != nil {
		attrs.CanonicalTitle = strings.TrimSpace(m[1])
	}

	if m := regionRegex.FindStringSubmatch(name); m != nil {
		attrs.Region = m[1]
	}

	if m := languageRegex.FindStringSubmatch(name); m != nil {
		attrs.Languages = m[1]
	} else {
		attrs.Languages = defaultLanguage(attrs.Region, name)
	}

	attrs.IsBeta = betaRegex.MatchString(name)
	attrs.IsDemo = demoRegex.MatchString(name)
	attrs.IsPrototype = protoRegex.MatchString(name)
	attrs.IsUnlicensed = unlRegex.MatchString(name)
	attrs.IsUnofficialTranslation = translRegex.MatchString(name)
	attrs.IsVerifiedDump = verifiedRegex.MatchString(name)
	attrs.IsPirate = pirateRegex.MatchString(name)
	attrs.IsHack = hackRegex.MatchString(name)
	attrs.IsTrainer = trainerRegex.MatchString(name)
	attrs.IsOverdump = overdumpRegex.MatchString(name)
	attrs.Revision = parseRevision(name)

	if m := discRegex.FindStringSubmatch(name); m != nil {
		attrs.DiscInfo = fmt.Sprintf("%s %s", m[1], m[2])
	}

	return attrs
}

// defaultLanguage infers a language when the release name has no explicit
// language tag: region default table first, then substring heuristics on the
// raw name, then English.
func defaultLanguage(region, name string) string {
	if lang, ok := regionLanguageDefaults[region]; ok {
		return lang
	}

	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, "usa", "us", "america"):
		return "En"
	case containsAny(lower, "japan", "jp", "jap"):
		return "Ja"
	case containsAny(lower, "europe", "eu", "eur"):
		return "En"
	default:
		return "En"
	}
}

func containsAny(s string, tokens ...string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// parseRevision returns the revision number for a release name, or 0 for a
// base release.
func parseRevision(name string) int {
	for _, p := range revisionPatterns {
		m := p.re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if p.fixed >= 0 {
			return p.fixed
		}
		return p.extract(m)
	}
	return 0
}
