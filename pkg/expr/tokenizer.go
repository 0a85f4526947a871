package expr

import "unicode"

// tokenize scans text into infix tokens. Token and error indexes count
// significant characters: whitespace outside string literals is skipped
// without advancing the index.
func tokenize(text string) ([]Token, error) {
	rs := []rune(text)
	var toks []Token
	idx := 0

	emit := func(code Code, width int) {
		toks = append(toks, Token{Code: code, Index: idx})
		idx += width
	}

	for i := 0; i < len(rs); {
		c := rs[i]
		next := rune(0)
		if i+1 < len(rs) {
			next = rs[i+1]
		}

		switch {
		case unicode.IsSpace(c):
			i++

		case c == '(':
			emit(CodeParenOpen, 1)
			i++

		case c == ')':
			emit(CodeParenClose, 1)
			i++

		case c == '!':
			if next == '=' {
				emit(CodeNotEqual, 2)
				i += 2
			} else {
				emit(CodeNot, 1)
				i++
			}

		case c == '=', c == '&', c == '|':
			if next != c {
				return nil, &Error{Kind: InvalidCharacter, Char: c, Index: idx}
			}
			switch c {
			case '=':
				emit(CodeEqual, 2)
			case '&':
				emit(CodeAnd, 2)
			default:
				emit(CodeOr, 2)
			}
			i += 2

		case c == '\'':
			start := idx
			var lit []rune
			j := i + 1
			idx++
			closed := false
			for j < len(rs) {
				if rs[j] == '\'' {
					if j+1 < len(rs) && rs[j+1] == '\'' {
						lit = append(lit, '\'')
						j += 2
						idx += 2
						continue
					}
					j++
					idx++
					closed = true
					break
				}
				lit = append(lit, rs[j])
				j++
				idx++
			}
			if !closed {
				return nil, newError(MissingClosingQuote, start, "string literal is not terminated")
			}
			toks = append(toks, Token{Code: CodeString, Value: string(lit), Index: start})
			i = j

		case c == '$':
			start := idx
			j := i + 1
			idx++
			for j < len(rs) && isIdentChar(rs[j]) {
				j++
				idx++
			}
			if j == i+1 {
				if j < len(rs) && !unicode.IsSpace(rs[j]) {
					return nil, &Error{Kind: InvalidCharacter, Char: rs[j], Index: idx}
				}
				return nil, newError(InvalidExpression, start, "variable name expected after '$'")
			}
			toks = append(toks, Token{Code: CodeVariable, Value: string(rs[i+1 : j]), Index: start})
			i = j

		case isLetter(c):
			j := i
			for j < len(rs) && isLetter(rs[j]) {
				j++
			}
			word := string(rs[i:j])
			var code Code
			switch word {
			case "true":
				code = CodeTrue
			case "false":
				code = CodeFalse
			case "null":
				code = CodeNull
			case "contains":
				code = CodeContains
			default:
				return nil, &Error{Kind: InvalidCharacter, Char: c, Index: idx}
			}
			emit(code, j-i)
			i = j

		default:
			return nil, &Error{Kind: InvalidCharacter, Char: c, Index: idx}
		}
	}
	return toks, nil
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c rune) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '_'
}
