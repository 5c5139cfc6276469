package uri

import "strings"

func parseScheme(sc *scanner) (string, bool) {
	start := sc.pos
	if !isAlpha(sc.peek()) {
		return "", false
	}
	sc.pos++
	for isAlnum(sc.peek()) || sc.peek() == '-' || sc.peek() == '+' || sc.peek() == '.' {
		sc.pos++
	}
	scheme := sc.s[start:sc.pos]
	if sc.peek() != ':' {
		return "", false
	}
	sc.pos++
	return scheme, true
}

func parseAuthority(sc *scanner) (host string, port uint16, ok bool) {
	if sc.peekAt(0) != '/' && sc.peekAt(1) != '/' {
		return "", 0, false
	}
	sc.pos += 2

	rest := sc.s[sc.pos:]
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		afterChr := func(c byte) bool {
			pos := strings.IndexByte(rest, c)
			return pos >= 0 && at > pos
		}
		if !afterChr('/') && !afterChr('?') && !afterChr('#') {
			sc.pos += at + 1
		}
	}

	var buf strings.Builder

	if sc.peek() == '[' {
		buf.WriteByte('[')
		sc.pos++

		if sc.peekAt(0) == 'v' && isHex(sc.peekAt(1)) && sc.peekAt(2) == '.' {
			buf.WriteByte(sc.peek())
			sc.pos++
			buf.WriteByte(sc.peek())
			sc.pos++
			buf.WriteByte(sc.peek())
			sc.pos++
		}

		for isHex(sc.peek()) || sc.peek() == ':' || sc.peek() == '.' {
			buf.WriteByte(sc.peek())
			sc.pos++
		}

		if sc.peek() != ']' {
			return "", 0, false
		}
		buf.WriteByte(']')
		sc.pos++
	}

	for isAlnum(sc.peek()) || sc.peek() == '-' || sc.peek() == '.' || sc.peek() == '_' || sc.peek() == '~' {
		buf.WriteByte(sc.peek())
		sc.pos++
	}

	if sc.peek() == ':' {
		sc.pos++
		for isDigit(sc.peek()) {
			port = port*10 + uint16(sc.peek()-'0')
			sc.pos++
		}
	}

	return buf.String(), port, true
}

func decodePctEncoded(sc *scanner, out *strings.Builder) {
	if sc.peek() != '%' {
		return
	}
	if isHex(sc.peekAt(1)) && isHex(sc.peekAt(2)) {
		hi := hexVal(sc.peekAt(1))
		lo := hexVal(sc.peekAt(2))
		out.WriteByte(byte(hi<<4 | lo))
		sc.pos += 3
	} else {
		sc.pos++
	}
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func parsePath(sc *scanner) (string, bool) {
	var buf strings.Builder
	if sc.peek() == '/' {
		buf.WriteByte('/')
		sc.pos++

		for isPChar(sc.peek()) || sc.peek() == '/' {
			if sc.peek() == '%' {
				decodePctEncoded(sc, &buf)
			} else {
				buf.WriteByte(sc.peek())
				sc.pos++
			}
		}
	}

	if sc.peek() == 0 || sc.peek() == '?' || sc.peek() == '#' {
		return buf.String(), true
	}
	return buf.String(), false
}

func parseQuery(sc *scanner) (string, bool) {
	var buf strings.Builder
	for isPChar(sc.peek()) {
		if sc.peek() == '%' {
			decodePctEncoded(sc, &buf)
		} else {
			buf.WriteByte(sc.peek())
			sc.pos++
		}
	}

	if sc.peek() == 0 || sc.peek() == '#' {
		return buf.String(), true
	}
	return buf.String(), false
}
