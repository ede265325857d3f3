package doc

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
)

// Tokenizer splits text into tokens. Whitespace never forms a token.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// TokenizerFunc adapts a function to the Tokenizer interface.
type TokenizerFunc func(text string) []Token

// Tokenize calls f(text).
func (f TokenizerFunc) Tokenize(text string) []Token {
	return f(text)
}

// Language profiles understood by TokenizerFor.
const (
	// LangMulti selects Unicode word segmentation (UAX #29).
	LangMulti = "xx"
	// LangWhitespace splits on whitespace and punctuation only.
	LangWhitespace = "ws"
)

// DefaultTokenizer returns the multilingual Unicode tokenizer.
func DefaultTokenizer() Tokenizer {
	return TokenizerFunc(unicodeTokens)
}

// TokenizerFor returns the tokenizer for a language profile.
// Unknown profiles fall back to the multilingual tokenizer.
func TokenizerFor(lang string) Tokenizer {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case LangWhitespace:
		return TokenizerFunc(whitespaceTokens)
	default:
		return DefaultTokenizer()
	}
}

func unicodeTokens(text string) []Token {
	var tokens []Token
	seg := words.FromString(text)
	for seg.Next() {
		value := seg.Value()
		if strings.TrimSpace(value) == "" {
			continue
		}
		tokens = append(tokens, Token{Text: value, Start: seg.Start(), End: seg.End()})
	}
	return tokens
}

// whitespaceTokens splits on runs of whitespace and emits each punctuation rune
// as its own token.
func whitespaceTokens(text string) []Token {
	var tokens []Token
	start := -1
	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, Token{Text: text[start:end], Start: start, End: end})
			start = -1
		}
	}
	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush(i)
			_, size := utf8.DecodeRuneInString(text[i:])
			tokens = append(tokens, Token{Text: text[i : i+size], Start: i, End: i + size})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))
	return tokens
}
