package main

import (
	"strings"

	"github.com/kjorund/extfs/errors"
)

// tokenize splits line on spaces, treating a double-quoted segment as a
// single argument, mirroring the C original's in-place tokenizer in
// main()'s command loop. Unbalanced quotes are reported as an error rather
// than printed directly so the caller controls output formatting.
func tokenize(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	haveToken := false

	flush := func() {
		if haveToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			haveToken = false
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes {
				inQuotes = false
			} else {
				inQuotes = true
				haveToken = true
			}
		case c == ' ' && !inQuotes:
			flush()
		default:
			haveToken = true
			cur.WriteByte(c)
		}
	}

	if inQuotes {
		return nil, errors.ErrQuotesUnbalanced
	}
	flush()

	return tokens, nil
}
