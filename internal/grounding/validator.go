// Package grounding checks that the factual claims of a generated answer are
// backed by the retrieved context.
package grounding

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spigell/talentcore/internal/logger"
	"github.com/spigell/talentcore/internal/utils"

	"go.uber.org/zap"
)

// Verdict of a single claim.
type Verdict string

const (
	Entailed     Verdict = "entailed"
	Neutral      Verdict = "neutral"
	Contradicted Verdict = "contradicted"
)

// Claim is a factual sentence extracted from a response.
type Claim struct {
	Text              string   `json:"text"`
	Verdict           Verdict  `json:"verdict"`
	Confidence        float64  `json:"confidence"`
	SupportingSnippet string   `json:"supporting_snippet,omitempty"`
	Terms             []string `json:"-"`
}

// Result of validating one response.
type Result struct {
	IsValid            bool    `json:"is_valid"`
	Confidence         float64 `json:"confidence"`
	Claims             []Claim `json:"claims"`
	HallucinationCount int     `json:"hallucination_count"`
}

// Thresholds on the fraction of claim terms found in the context.
type Thresholds struct {
	Entailed float64 `mapstructure:"entailed"`
	Neutral  float64 `mapstructure:"neutral"`

	// MinNeutralConfidence below which a neutral claim counts as a hallucination.
	MinNeutralConfidence float64 `mapstructure:"min-neutral-confidence"`
}

// DefaultThresholds returns 0.7 / 0.3 / 0.5.
func DefaultThresholds() Thresholds {
	return Thresholds{Entailed: 0.7, Neutral: 0.3, MinNeutralConfidence: 0.5}
}

// Validator verifies responses against context. It holds no mutable state.
type Validator struct {
	thresholds Thresholds
	logger     *zap.Logger
}

// NewValidator builds a Validator. Zero thresholds fall back to the defaults.
func NewValidator(thresholds Thresholds, log *zap.Logger) *Validator {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Validator{thresholds: thresholds, logger: logger.Named(log, "grounding")}
}

// Validate extracts the claims of response and checks each against the
// concatenated context. A response without claims is valid.
func (v *Validator) Validate(response string, context []string) Result {
	claims := ExtractClaims(response)
	if len(claims) == 0 {
		return Result{IsValid: true, Confidence: 1, Claims: []Claim{}}
	}

	joined := strings.Join(context, "\n")
	haystack := strings.ToLower(joined)
	compact := compactNumbers(haystack)
	sentences := SplitSentences(joined)

	result := Result{Claims: make([]Claim, 0, len(claims))}
	total := 0.0
	for _, claim := range claims {
		found := 0
		for _, term := range claim.Terms {
			if containsTerm(haystack, compact, term) {
				found++
			}
		}

		coverage := float64(found) / float64(len(claim.Terms))
		claim.Confidence = coverage
		claim.Verdict = v.verdict(coverage)
		if found > 0 {
			claim.SupportingSnippet = bestSnippet(sentences, claim.Terms)
		}
		if v.hallucinated(claim) {
			result.HallucinationCount++
		}

		total += coverage
		result.Claims = append(result.Claims, claim)
	}

	result.Confidence = total / float64(len(result.Claims))
	result.IsValid = result.HallucinationCount == 0

	v.logger.Debug("response validated",
		zap.Int("claims", len(result.Claims)),
		zap.Int("hallucinations", result.HallucinationCount),
		zap.Float64("confidence", result.Confidence),
		zap.String("response", utils.TruncateForLog(response, 200)),
	)

	return result
}

func (v *Validator) verdict(coverage float64) Verdict {
	switch {
	case coverage >= v.thresholds.Entailed:
		return Entailed
	case coverage >= v.thresholds.Neutral:
		return Neutral
	default:
		return Contradicted
	}
}

func (v *Validator) hallucinated(c Claim) bool {
	return c.Verdict == Contradicted || (c.Verdict == Neutral && c.Confidence < v.thresholds.MinNeutralConfidence)
}

// ExtractClaims returns the factual sentences of text with their key terms.
func ExtractClaims(text string) []Claim {
	var claims []Claim
	for _, sentence := range SplitSentences(text) {
		if !Factual(sentence) {
			continue
		}
		terms := KeyTerms(sentence)
		if len(terms) == 0 {
			continue
		}
		claims = append(claims, Claim{Text: sentence, Terms: terms})
	}
	return claims
}

// SplitSentences splits on line breaks and on . ! ? followed by whitespace.
// Decimal points and abbreviations without a following space stay intact.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
	}

	for i, r := range runes {
		switch {
		case r == '\n':
			flush(i)
		case r == '.' || r == '!' || r == '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	flush(len(runes))
	return out
}

var fillerPrefixes = []string{
	"hola", "hello", "hi ", "hi,", "hey", "buenos días", "buenas", "good morning", "good afternoon",
	"gracias", "muchas gracias", "thank", "de nada", "you're welcome",
	"espero", "i hope", "hope this", "no dudes", "feel free", "let me know", "avísame",
	"si necesitas", "if you need", "si tienes", "if you have", "puedo ayudarte", "how can i",
	"en qué más", "anything else", "saludos", "un saludo", "best regards", "regards",
	"lo siento", "sorry", "disculpa", "no tengo", "no dispongo", "no cuento", "i don't have", "i do not have",
	"claro", "por supuesto", "of course", "sure", "¡", "perfecto", "great",
}

// Factual reports whether a sentence can carry a factual claim.
func Factual(sentence string) bool {
	s := strings.ToLower(strings.TrimSpace(sentence))
	if s == "" || strings.HasSuffix(s, "?") || strings.HasPrefix(s, "¿") {
		return false
	}
	for _, prefix := range fillerPrefixes {
		if strings.HasPrefix(s, prefix) {
			return false
		}
	}
	return true
}

var (
	numericTerm = regexp.MustCompile(`(?i)[$€]?\d+(?:[.,]\d+)*(?:\s?(?:%|€|\$)|\s?(?:euros|eur|usd|horas|hours|días|dias|days|meses|months|años|years|km|kg|gb)\b)?`)
	capitalized = regexp.MustCompile(`\p{Lu}[\p{L}\p{N}]*(?:\s+\p{Lu}[\p{L}\p{N}]*)*`)
	quoted      = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|«([^»]+)»`)
	numberUnit  = regexp.MustCompile(`(\d)\s+([%€$]|\p{L})`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Words that are capitalized only because they open a sentence.
var leadingWords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {}, "unas": {},
	"este": {}, "esta": {}, "estos": {}, "estas": {}, "nuestro": {}, "nuestra": {}, "nuestros": {}, "nuestras": {},
	"en": {}, "para": {}, "con": {}, "por": {}, "de": {}, "del": {}, "desde": {}, "hasta": {}, "si": {}, "no": {},
	"es": {}, "son": {}, "hay": {}, "puedes": {}, "tienes": {}, "tu": {}, "su": {}, "sus": {}, "se": {}, "cada": {},
	"todos": {}, "todas": {}, "también": {}, "además": {}, "sí": {}, "usted": {}, "nosotros": {},
	"the": {}, "a": {}, "an": {}, "this": {}, "that": {}, "these": {}, "those": {}, "our": {}, "your": {}, "their": {},
	"in": {}, "for": {}, "with": {}, "by": {}, "from": {}, "to": {}, "if": {}, "it": {}, "is": {}, "are": {},
	"there": {}, "we": {}, "you": {}, "they": {}, "each": {}, "all": {}, "also": {}, "yes": {},
}

// KeyTerms returns the lowercased numeric, capitalized and quoted terms of a sentence.
func KeyTerms(sentence string) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(spaces.ReplaceAllString(term, " ")))
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, m := range numericTerm.FindAllString(sentence, -1) {
		add(spaces.ReplaceAllString(m, ""))
	}

	for _, loc := range capitalized.FindAllStringIndex(sentence, -1) {
		phrase := sentence[loc[0]:loc[1]]
		if strings.TrimSpace(sentence[:loc[0]]) == "" {
			phrase = dropLeadingWord(phrase)
		}
		add(phrase)
	}

	for _, m := range quoted.FindAllStringSubmatch(sentence, -1) {
		for _, group := range m[1:] {
			add(group)
		}
	}

	return terms
}

func dropLeadingWord(phrase string) string {
	first, rest, _ := strings.Cut(phrase, " ")
	if _, ok := leadingWords[strings.ToLower(first)]; ok {
		return rest
	}
	return phrase
}

// containsTerm reports whether term occurs in haystack (or its number-compacted
// form) as whole tokens, so "5€" does not match "15€" and "go" does not match "google".
func containsTerm(haystack, compact, term string) bool {
	return containsToken(haystack, term) || containsToken(compact, strings.ReplaceAll(term, " ", ""))
}

func containsToken(s, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], term)
		if i < 0 {
			return false
		}
		start := offset + i
		if boundaryBefore(s, start) && boundaryAfter(s, start+len(term)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

// boundaryAfter also rejects a decimal or thousands continuation such as "5" in "5,50".
func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, size := utf8.DecodeRuneInString(s[i:])
	if r == '.' || r == ',' {
		next, _ := utf8.DecodeRuneInString(s[i+size:])
		return !unicode.IsDigit(next)
	}
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func compactNumbers(s string) string {
	return numberUnit.ReplaceAllString(s, "$1$2")
}

// bestSnippet returns the context sentence containing the most terms.
func bestSnippet(sentences, terms []string) string {
	best, bestCount := "", 0
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		compact := compactNumbers(lower)
		count := 0
		for _, term := range terms {
			if containsTerm(lower, compact, term) {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = sentence, count
		}
	}
	return best
}
