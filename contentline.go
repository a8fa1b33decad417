package calcore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// property is one unfolded content line: NAME;PARAM=V1,V2:VALUE.
type property struct {
	Name   string
	Params map[string][]string
	Value  string
}

// param returns the first value of the named parameter, or the empty
// string.  Parameter names are matched case-insensitively at parse time
// by upper-casing.
func (p *property) param(name string) string {
	vs := p.Params[name]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func (p *property) setParam(name string, values ...string) {
	if p.Params == nil {
		p.Params = map[string][]string{}
	}
	p.Params[name] = values
}

// lineScanner reads unfolded content lines from an iCalendar stream.
// A line broken across physical lines continues with a leading space or
// tab (RFC 5545 section 3.1).
type lineScanner struct {
	r *bufio.Reader
	// pending holds the first line of the next logical line, read ahead
	// while checking for a fold.
	pending string
	hasPend bool
	done    bool
}

func newLineScanner(r io.Reader) *lineScanner {
	return &lineScanner{r: bufio.NewReader(r)}
}

func (s *lineScanner) readPhysical() (string, bool) {
	line, err := s.r.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" && err != nil {
		return "", false
	}
	return line, true
}

// next returns the next unfolded logical line, or false at end of input.
// Blank lines are skipped; some producers emit them between components.
func (s *lineScanner) next() (string, bool) {
	for {
		var line string
		if s.hasPend {
			line, s.hasPend = s.pending, false
		} else {
			if s.done {
				return "", false
			}
			var ok bool
			line, ok = s.readPhysical()
			if !ok {
				s.done = true
				return "", false
			}
		}
		for {
			cont, ok := s.readPhysical()
			if !ok {
				s.done = true
				break
			}
			if len(cont) > 0 && (cont[0] == ' ' || cont[0] == '\t') {
				line += cont[1:]
				continue
			}
			s.pending, s.hasPend = cont, true
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line, true
	}
}

// parseContentLine splits an unfolded line into name, parameters and value.
func parseContentLine(line string) (property, error) {
	p := property{}
	i := 0
	// Name: iana-token or x-name.
	for i < len(line) && (isAlphaNum(line[i]) || line[i] == '-') {
		i++
	}
	if i == 0 {
		return p, fmt.Errorf("content line %q has no property name: %w", truncateForError(line), ErrMalformedInput)
	}
	p.Name = strings.ToUpper(line[:i])

	for i < len(line) && line[i] == ';' {
		i++
		start := i
		for i < len(line) && (isAlphaNum(line[i]) || line[i] == '-') {
			i++
		}
		if i == start || i >= len(line) || line[i] != '=' {
			return p, fmt.Errorf("bad parameter in content line %q: %w", truncateForError(line), ErrMalformedInput)
		}
		name := strings.ToUpper(line[start:i])
		i++
		var values []string
		for {
			var val string
			var err error
			val, i, err = scanParamValue(line, i)
			if err != nil {
				return p, err
			}
			values = append(values, val)
			if i < len(line) && line[i] == ',' {
				i++
				continue
			}
			break
		}
		p.setParam(name, values...)
	}
	if i >= len(line) || line[i] != ':' {
		return p, fmt.Errorf("content line %q has no value: %w", truncateForError(line), ErrMalformedInput)
	}
	p.Value = line[i+1:]
	return p, nil
}

func scanParamValue(line string, i int) (string, int, error) {
	if i < len(line) && line[i] == '"' {
		i++
		start := i
		for i < len(line) && line[i] != '"' {
			if line[i] < 0x20 && line[i] != '\t' {
				return "", i, fmt.Errorf("control character in parameter of %q: %w", truncateForError(line), ErrMalformedInput)
			}
			i++
		}
		if i >= len(line) {
			return "", i, fmt.Errorf("unterminated quoted parameter in %q: %w", truncateForError(line), ErrMalformedInput)
		}
		return line[start:i], i + 1, nil
	}
	start := i
	for i < len(line) && line[i] != ';' && line[i] != ',' && line[i] != ':' {
		if line[i] < 0x20 && line[i] != '\t' {
			return "", i, fmt.Errorf("control character in parameter of %q: %w", truncateForError(line), ErrMalformedInput)
		}
		i++
	}
	return line[start:i], i, nil
}

func isAlphaNum(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

func truncateForError(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// paramNeedsQuoting reports whether a parameter value must be emitted in
// DQUOTE form.
func paramNeedsQuoting(v string) bool {
	return strings.ContainsAny(v, ";:,")
}

// write serializes the property as a folded content line, splitting at 75
// octets without breaking UTF-8 sequences.
func (p *property) write(w *strings.Builder, maxLen int, newline string) {
	var line strings.Builder
	line.WriteString(p.Name)
	names := make([]string, 0, len(p.Params))
	for name := range p.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		line.WriteByte(';')
		line.WriteString(name)
		line.WriteByte('=')
		for i, v := range p.Params[name] {
			if i > 0 {
				line.WriteByte(',')
			}
			if paramNeedsQuoting(v) {
				line.WriteByte('"')
				line.WriteString(v)
				line.WriteByte('"')
			} else {
				line.WriteString(v)
			}
		}
	}
	line.WriteByte(':')
	line.WriteString(p.Value)
	foldLine(w, line.String(), maxLen, newline)
}

func foldLine(w *strings.Builder, line string, maxLen int, newline string) {
	if maxLen <= 1 {
		maxLen = 75
	}
	budget := maxLen
	for len(line) > budget {
		cut := budget
		// Never split inside a UTF-8 sequence.
		for cut > 1 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		w.WriteString(line[:cut])
		w.WriteString(newline)
		w.WriteByte(' ')
		line = line[cut:]
		// Continuation lines lose one octet to the leading space.
		budget = maxLen - 1
	}
	w.WriteString(line)
	w.WriteString(newline)
}

// EscapeText applies TEXT value escaping (RFC 5545 section 3.3.11).
func EscapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case ',':
			b.WriteString(`\,`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			// Bare CR does not survive the wire format.
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UnescapeText reverses TEXT value escaping.  Unknown escapes keep the
// escaped character, which tolerates sloppy producers.
func UnescapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	esc := false
	for _, r := range s {
		if esc {
			switch r {
			case 'n', 'N':
				b.WriteByte('\n')
			default:
				b.WriteRune(r)
			}
			esc = false
			continue
		}
		if r == '\\' {
			esc = true
			continue
		}
		b.WriteRune(r)
	}
	if esc {
		b.WriteByte('\\')
	}
	return b.String()
}

// decodeInput normalizes raw bytes to a UTF-8 string.  Invalid UTF-8 is
// reinterpreted as Latin-1, which covers the most common legacy exports.
func decodeInput(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	var b strings.Builder
	b.Grow(len(data) * 2)
	for _, c := range data {
		b.WriteRune(rune(c))
	}
	return b.String()
}
