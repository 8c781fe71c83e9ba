package control

import (
	"bytes"
	"strings"
)

// Unescape reverses tmux's %output encoding: bytes below 0x20 and the
// backslash itself arrive as three digit octal escapes (\033, \134).
// Single character escapes (\n, \r, \t, \\) are accepted as well.
func Unescape(raw string) ([]byte, bool) {
	if raw == "" {
		return []byte{}, true
	}
	if !strings.ContainsRune(raw, '\\') {
		return []byte(raw), true
	}
	out := bytes.NewBuffer(make([]byte, 0, len(raw)))
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if ch != '\\' {
			out.WriteByte(ch)
			continue
		}
		if i+1 >= len(raw) {
			return nil, false
		}
		next := raw[i+1]
		if next >= '0' && next <= '7' {
			if i+4 > len(raw) || !isOctal3(raw[i+1:i+4]) {
				return nil, false
			}
			oct := raw[i+1 : i+4]
			out.WriteByte((oct[0]-'0')<<6 | (oct[1]-'0')<<3 | (oct[2] - '0'))
			i += 3
			continue
		}
		switch next {
		case '\\':
			out.WriteByte('\\')
		case 'n':
			out.WriteByte('\n')
		case 'r':
			out.WriteByte('\r')
		case 't':
			out.WriteByte('\t')
		default:
			out.WriteByte(next)
		}
		i++
	}
	return out.Bytes(), true
}

func isOctal3(raw string) bool {
	if len(raw) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if raw[i] < '0' || raw[i] > '7' {
			return false
		}
	}
	return true
}

// cutToken splits off the first space separated token.
func cutToken(raw string) (token, tail string, ok bool) {
	trimmed := strings.TrimLeft(raw, " \t")
	if trimmed == "" {
		return "", "", false
	}
	idx := strings.IndexAny(trimmed, " \t")
	if idx < 0 {
		return trimmed, "", true
	}
	return trimmed[:idx], trimmed[idx+1:], true
}
