package text_test

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/book-expert/voiceclone/internal/segment"
	"github.com/book-expert/voiceclone/internal/tts/text"
)

// preprocessorTestCase defines a standard test case for the preprocessor.
type preprocessorTestCase struct {
	name     string
	input    string
	expected string
}

func runNormalizeTests(t *testing.T, tests []preprocessorTestCase) {
	t.Helper()

	preprocessor := text.NewPreprocessor()

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := preprocessor.Normalize(testCase.input)
			if result != testCase.expected {
				t.Errorf("Expected %q, got %q", testCase.expected, result)
			}
		})
	}
}

func TestPreprocessor_Normalize_EmptyInput(t *testing.T) {
	t.Parallel()

	result := text.NewPreprocessor().Normalize("")
	if result != "" {
		t.Errorf("Expected empty string for empty input, got %q", result)
	}
}

func TestPreprocessor_Normalize_DoesNotTerminate(t *testing.T) {
	t.Parallel()

	result := text.NewPreprocessor().Normalize("Hello world")
	if result != "Hello world" {
		t.Errorf("Expected 'Hello world', got %q", result)
	}
}

func TestPreprocessor_Normalize_Abbreviations(t *testing.T) {
	t.Parallel()

	runNormalizeTests(t, []preprocessorTestCase{
		{name: "Mr expansion", input: "Mr. Smith left.", expected: "Mister Smith left."},
		{name: "Dr expansion", input: "Dr. Johnson", expected: "Doctor Johnson"},
		{name: "Multiple abbreviations", input: "Mr. and Mrs. Smith.", expected: "Mister and Misses Smith."},
		{name: "Suffix ends text", input: "Founded by Acme Co.", expected: "Founded by Acme Company."},
		{
			name:     "Suffix ends sentence",
			input:    "I work at Acme Inc. It is fine.",
			expected: "I work at Acme Incorporated. It is fine.",
		},
		{name: "Suffix mid sentence", input: "Acme Inc. is big.", expected: "Acme Incorporated is big."},
		{name: "Suffix before quote", input: `He said "Tom Jr." twice.`, expected: `He said "Tom Junior." twice.`},
		{name: "Ellipsis after prefix", input: "Well, Mr... no.", expected: "Well, Mister... no."},
		{name: "Street left alone", input: "We met on Main St.", expected: "We met on Main St."},
		{name: "Word ending in suffix", input: "Zinc.", expected: "Zinc."},
		{name: "Glued to next word", input: "Mr.Smith", expected: "Mr.Smith"},
	})
}

// abbreviationProse builds sentences that may close on a dotted short form.
func abbreviationProse() *rapid.Generator[string] {
	first := rapid.StringMatching(`[A-Z][a-z]{0,7}`)
	word := rapid.StringMatching(`[a-z]{1,8}`)
	ending := rapid.SampledFrom([]string{
		"Inc.", "Co.", "Ltd.", "Corp.", "Jr.", "Sr.", "St.", "done.", "now!", "why?",
	})

	return rapid.Custom(func(rt *rapid.T) string {
		sentences := make([]string, rapid.IntRange(1, 5).Draw(rt, "sentences"))
		for i := range sentences {
			words := []string{first.Draw(rt, "first")}
			for range rapid.IntRange(0, 6).Draw(rt, "words") {
				words = append(words, word.Draw(rt, "word"))
			}

			sentences[i] = strings.Join(append(words, ending.Draw(rt, "ending")), " ")
		}

		return strings.Join(sentences, " ")
	})
}

func TestPreprocessor_Normalize_KeepsSentenceCount(t *testing.T) {
	t.Parallel()

	preprocessor := text.NewPreprocessor()

	rapid.Check(t, func(rt *rapid.T) {
		prose := abbreviationProse().Draw(rt, "prose")

		got := len(segment.Segment(preprocessor.Normalize(prose)))
		if want := len(segment.Segment(prose)); got != want {
			rt.Fatalf("Normalize(%q) yields %d sentences, want %d", prose, got, want)
		}
	})
}

func TestPreprocessor_Normalize_Numbers(t *testing.T) {
	t.Parallel()

	runNormalizeTests(t, []preprocessorTestCase{
		{name: "Single digit", input: "There are 3 cars.", expected: "There are three cars."},
		{name: "Teen", input: "I have 17 friends.", expected: "I have seventeen friends."},
		{name: "Round ten", input: "Only 40 left.", expected: "Only forty left."},
		{name: "Two digits", input: "The answer is 42.", expected: "The answer is forty two."},
		{name: "Hundred", input: "He has 100 dollars.", expected: "He has one hundred dollars."},
		{
			name:     "Thousands with remainder",
			input:    "About 5012 people attended.",
			expected: "About five thousand twelve people attended.",
		},
		{
			name:     "Maximum",
			input:    "The max value is 999999.",
			expected: "The max value is nine hundred ninety nine thousand nine hundred ninety nine.",
		},
		{name: "Over the limit", input: "A million is 1000000.", expected: "A million is 1000000."},
	})
}

func TestPreprocessor_Normalize_Punctuation(t *testing.T) {
	t.Parallel()

	runNormalizeTests(t, []preprocessorTestCase{
		{name: "Unicode ellipsis", input: "Wait… really?", expected: "Wait... really?"},
		{name: "Smart quotes", input: "He said, “Hello.”", expected: `He said, "Hello."`},
		{name: "Dashes", input: "A range (1–5) — it's important.", expected: "A range (one-five) - it's important."},
		{name: "Repeated marks", input: "Hello!!! How are you?!?", expected: "Hello! How are you?"},
		{name: "Long dot run", input: "Hmm..... fine.", expected: "Hmm... fine."},
		{name: "Ellipsis kept", input: "So... yes.", expected: "So... yes."},
	})
}

func TestPreprocessor_Normalize_Whitespace(t *testing.T) {
	t.Parallel()

	runNormalizeTests(t, []preprocessorTestCase{
		{name: "Multiple spaces", input: "Hello   world.", expected: "Hello world."},
		{name: "Tabs and newlines", input: "  Line one\nand\tline two.  ", expected: "Line one and line two."},
	})
}

func TestPreprocessor_Normalize_NFC(t *testing.T) {
	t.Parallel()

	decomposed := "Cafe\u0301 open."

	result := text.NewPreprocessor().Normalize(decomposed)
	if result != "Caf\u00e9 open." {
		t.Errorf("Expected composed form, got %q", result)
	}
}

func TestIntegerToWords(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		0:      "zero",
		7:      "seven",
		19:     "nineteen",
		20:     "twenty",
		305:    "three hundred five",
		1000:   "one thousand",
		21000:  "twenty one thousand",
		-4:     "-4",
		123456: "one hundred twenty three thousand four hundred fifty six",
	}

	for input, expected := range cases {
		result := text.IntegerToWords(input)
		if result != expected {
			t.Errorf("IntegerToWords(%d): expected %q, got %q", input, expected, result)
		}
	}
}
