// Package strutil contains string utilities shared by the parser, the
// evaluator and the dependency builder.
package strutil

import "strings"

// Make splits words on the ASCII whitespace set, nothing else. Notably this
// excludes the Unicode spaces that strings.Fields would also split on.
const spaceBytes = " \t\n\v\f\r"

// IsSpace reports whether b is an ASCII whitespace byte.
func IsSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// TrimLeftSpace returns s with leading ASCII whitespace removed.
func TrimLeftSpace(s string) string {
	return strings.TrimLeft(s, spaceBytes)
}

// TrimRightSpace returns s with trailing ASCII whitespace removed.
func TrimRightSpace(s string) string {
	return strings.TrimRight(s, spaceBytes)
}

// TrimSpace returns s with leading and trailing ASCII whitespace removed.
func TrimSpace(s string) string {
	return strings.Trim(s, spaceBytes)
}

// SplitSpace splits s into words separated by runs of ASCII whitespace.
// Empty words are dropped.
func SplitSpace(s string) []string {
	var words []string
	for ws := NewWordScanner(s); ws.Scan(); {
		words = append(words, ws.Word())
	}
	return words
}

// WordScanner iterates over the words of a string without allocating the
// whole slice up front. The zero value is not usable; use NewWordScanner.
type WordScanner struct {
	src  string
	word string
}

// NewWordScanner returns a WordScanner over s.
func NewWordScanner(s string) *WordScanner {
	return &WordScanner{src: s}
}

// Scan advances to the next word. It returns false when no words remain.
func (ws *WordScanner) Scan() bool {
	i := 0
	for i < len(ws.src) && IsSpace(ws.src[i]) {
		i++
	}
	if i == len(ws.src) {
		ws.src, ws.word = "", ""
		return false
	}
	j := i
	for j < len(ws.src) && !IsSpace(ws.src[j]) {
		j++
	}
	ws.word = ws.src[i:j]
	ws.src = ws.src[j:]
	return true
}

// Word returns the current word.
func (ws *WordScanner) Word() string { return ws.word }

// WordWriter builds a word list, inserting a single space between words.
type WordWriter struct {
	sb    strings.Builder
	first bool
}

// NewWordWriter returns a ready-to-use WordWriter.
func NewWordWriter() *WordWriter {
	return &WordWriter{first: true}
}

// Write appends a word.
func (ww *WordWriter) Write(word string) {
	if !ww.first {
		ww.sb.WriteByte(' ')
	}
	ww.first = false
	ww.sb.WriteString(word)
}

// String returns the words joined by single spaces.
func (ww *WordWriter) String() string { return ww.sb.String() }

// JoinWords joins words with single spaces, dropping empty ones.
func JoinWords(words []string) string {
	ww := NewWordWriter()
	for _, w := range words {
		if w != "" {
			ww.Write(w)
		}
	}
	return ww.String()
}
