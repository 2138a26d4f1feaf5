package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopwords = toSet(
	// es
	"a", "al", "algo", "algun", "alguna", "algunas", "alguno", "algunos", "ante", "antes", "como", "con", "contra",
	"cual", "cuales", "cuando", "cuanto", "cuantos", "de", "del", "desde", "donde", "durante", "e", "el", "ella",
	"ellas", "ellos", "en", "entre", "era", "eres", "es", "esa", "ese", "eso", "esta", "estas", "este", "esto",
	"estos", "fue", "ha", "hay", "hola", "la", "las", "le", "les", "lo", "los", "mas", "me", "mi", "mis", "muy",
	"nada", "ni", "no", "nos", "nosotros", "o", "otra", "otro", "para", "pero", "poco", "por", "porque", "que",
	"quien", "quienes", "se", "ser", "si", "sin", "sobre", "son", "soy", "su", "sus", "tambien", "te", "ti",
	"tu", "tus", "un", "una", "uno", "unos", "y", "ya", "yo",
	// en
	"about", "an", "and", "are", "as", "at", "be", "by", "can", "do", "does", "for", "from", "have", "has",
	"hello", "hi", "how", "i", "in", "is", "it", "me", "my", "of", "on", "or", "that", "the", "there", "this",
	"to", "was", "we", "were", "what", "which", "who", "with", "you", "your",
)

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// Tokens lowercases text, strips accents and splits on anything that is not a
// letter or digit.
func Tokens(text string) []string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		stripped = strings.ToLower(text)
	}

	return strings.FieldsFunc(stripped, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Normalize returns the sorted non-stopword tokens of a query joined by
// spaces. A query made only of stopwords keeps all of its tokens.
func Normalize(query string) string {
	tokens := Tokens(query)

	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopwords[tok]; !stop {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		kept = tokens
	}

	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// Hash is the hex sha256 of the normalized query.
func Hash(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return hex.EncodeToString(sum[:])
}
