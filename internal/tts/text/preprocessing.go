// Package text normalises prose before it is segmented and sent to the
// speech synthesizer.
//
// Normalisation never adds terminal punctuation. Whether a final fragment without a
// terminator is spoken is decided by the segmenter alone.
package text

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// NumberBaseTen represents the base for decimal number system.
	NumberBaseTen = 10
	// NumberBaseTwenty represents the boundary for teen numbers.
	NumberBaseTwenty = 20
	// NumberBaseHundred represents the base for hundreds.
	NumberBaseHundred = 100
	// NumberBaseThousand represents the base for thousands.
	NumberBaseThousand = 1000
	// MaxNumberForWords represents the maximum number that can be converted to words.
	MaxNumberForWords = 999999
)

// Regex patterns for text normalisation.
const (
	numberRegexPattern       = `\d+`
	whitespaceRegexPattern   = `\s+`
	repeatedMarkRegexPattern = `([!?])[!?]+`
	longDotRunRegexPattern   = `\.{4,}`
	abbreviationRegexPattern = `\b(Mrs|Mr|Ms|Dr|Prof|Jr|Sr|Co|Ltd|Corp|Inc)\.`
)

// Punctuation constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
	// closingPunctuation may directly follow a sentence-final abbreviation.
	closingPunctuation = `"')].!?`
)

// Preprocessor normalises raw text for XTTS.
type Preprocessor struct {
	numberPattern       *regexp.Regexp
	whitespacePattern   *regexp.Regexp
	repeatedMarkPattern *regexp.Regexp
	longDotRunPattern   *regexp.Regexp
	abbreviationPattern *regexp.Regexp
	punctuationReplacer *strings.Replacer
}

// abbreviation is the spoken form of a dotted short form. Prefix forms (Mr.,
// Dr.) precede a name and never end a sentence in running text; suffix forms
// (Inc., Jr.) often do.
type abbreviation struct {
	expansion string
	suffix    bool
}

var abbreviations = map[string]abbreviation{
	"Mr":   {expansion: "Mister"},
	"Mrs":  {expansion: "Misses"},
	"Ms":   {expansion: "Miss"},
	"Dr":   {expansion: "Doctor"},
	"Prof": {expansion: "Professor"},
	"Jr":   {expansion: "Junior", suffix: true},
	"Sr":   {expansion: "Senior", suffix: true},
	"Co":   {expansion: "Company", suffix: true},
	"Ltd":  {expansion: "Limited", suffix: true},
	"Corp": {expansion: "Corporation", suffix: true},
	"Inc":  {expansion: "Incorporated", suffix: true},
}

// NewPreprocessor creates a preprocessor with compiled patterns and replacers.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		numberPattern:       regexp.MustCompile(numberRegexPattern),
		whitespacePattern:   regexp.MustCompile(whitespaceRegexPattern),
		repeatedMarkPattern: regexp.MustCompile(repeatedMarkRegexPattern),
		longDotRunPattern:   regexp.MustCompile(longDotRunRegexPattern),
		abbreviationPattern: regexp.MustCompile(abbreviationRegexPattern),
		punctuationReplacer: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize returns text in NFC form with typographic punctuation folded to ASCII,
// honorifics and integers spelled out, runs of "!"/"?" and long dot runs
// collapsed, and whitespace squeezed to single spaces.
func (p *Preprocessor) Normalize(text string) string {
	if text == "" {
		return text
	}

	normalized := norm.NFC.String(text)
	normalized = p.punctuationReplacer.Replace(normalized)
	normalized = p.expandAbbreviations(normalized)
	normalized = p.normalizeNumbers(normalized)
	normalized = p.repeatedMarkPattern.ReplaceAllString(normalized, "$1")
	normalized = p.longDotRunPattern.ReplaceAllString(normalized, ellipsis)
	normalized = p.whitespacePattern.ReplaceAllString(normalized, " ")

	return strings.TrimSpace(normalized)
}

// expandAbbreviations spells out known short forms. The full stop survives when
// it also ends the sentence: at the end of the text, directly before closing
// punctuation or another terminator, or, for suffix forms, before a capitalised word. Forms glued to
// the next word ("St.Louis") are left alone.
func (p *Preprocessor) expandAbbreviations(text string) string {
	matches := p.abbreviationPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var builder strings.Builder

	last := 0

	for _, match := range matches {
		rest := text[match[1]:]
		next, _ := utf8.DecodeRuneInString(rest)

		if rest != "" && (unicode.IsLetter(next) || unicode.IsDigit(next)) {
			continue
		}

		abbr := abbreviations[text[match[2]:match[3]]]

		builder.WriteString(text[last:match[0]])
		builder.WriteString(abbr.expansion)

		if endsSentence(abbr, rest) {
			builder.WriteString(".")
		}

		last = match[1]
	}

	builder.WriteString(text[last:])

	return builder.String()
}

func endsSentence(abbr abbreviation, rest string) bool {
	following := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if following == "" {
		return true
	}

	next, _ := utf8.DecodeRuneInString(following)
	if strings.ContainsRune(closingPunctuation, next) {
		return len(following) == len(rest)
	}

	return abbr.suffix && len(following) < len(rest) && unicode.IsUpper(next)
}

// normalizeNumbers converts every integer within range into words.
func (p *Preprocessor) normalizeNumbers(text string) string {
	return p.numberPattern.ReplaceAllStringFunc(text, func(digits string) string {
		num, err := strconv.Atoi(digits)
		if err != nil {
			return digits
		}

		return IntegerToWords(num)
	})
}

var (
	onesWords = []string{
		"", "one", "two", "three", "four", "five",
		"six", "seven", "eight", "nine",
	}
	teensWords = []string{
		"ten", "eleven", "twelve", "thirteen", "fourteen",
		"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
	}
	tensWords = []string{
		"", "", "twenty", "thirty", "forty", "fifty",
		"sixty", "seventy", "eighty", "ninety",
	}
)

// IntegerToWords spells out number in English. Values outside
// [0, MaxNumberForWords] are returned as digits.
func IntegerToWords(number int) string {
	if number < 0 || number > MaxNumberForWords {
		return strconv.Itoa(number)
	}

	if number == 0 {
		return "zero"
	}

	var parts []string

	if thousands := number / NumberBaseThousand; thousands > 0 {
		parts = append(parts, underThousand(thousands)+" thousand")
	}

	if remainder := number % NumberBaseThousand; remainder > 0 {
		parts = append(parts, underThousand(remainder))
	}

	return strings.Join(parts, " ")
}

func underThousand(number int) string {
	hundreds := number / NumberBaseHundred
	remainder := number % NumberBaseHundred

	switch {
	case hundreds == 0:
		return underHundred(remainder)
	case remainder == 0:
		return onesWords[hundreds] + " hundred"
	default:
		return onesWords[hundreds] + " hundred " + underHundred(remainder)
	}
}

func underHundred(number int) string {
	switch {
	case number < NumberBaseTen:
		return onesWords[number]
	case number < NumberBaseTwenty:
		return teensWords[number-NumberBaseTen]
	case number%NumberBaseTen == 0:
		return tensWords[number/NumberBaseTen]
	default:
		return tensWords[number/NumberBaseTen] + " " + onesWords[number%NumberBaseTen]
	}
}
