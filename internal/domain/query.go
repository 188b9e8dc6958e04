package domain

import (
	"fmt"
	"strings"
)

// Term is a single field:value condition. A Value of "*" only requires the
// field to be present.
type Term struct {
	Field string
	Value string
}

// Query is a conjunction of terms used for custom sets, the default query
// and per-format record filters. The zero Query matches every record.
type Query struct {
	Terms []Term
}

// FieldEquals builds a single-term query.
func FieldEquals(field, value string) Query {
	return Query{Terms: []Term{{Field: field, Value: value}}}
}

// ParseQuery parses whitespace separated field:value terms. Values may be
// double quoted; "AND" between terms and "*:*" are accepted and ignored.
func ParseQuery(input string) (Query, error) {
	s := strings.TrimSpace(input)
	for strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	var q Query
	for len(s) > 0 {
		if s[0] == ' ' || s[0] == '\t' || s[0] == '\n' {
			s = s[1:]
			continue
		}
		if rest, ok := strings.CutPrefix(s, "AND "); ok {
			s = rest
			continue
		}

		sep := strings.IndexByte(s, ':')
		if sep <= 0 {
			return Query{}, fmt.Errorf("invalid query %q: expected field:value", input)
		}
		field := s[:sep]
		if strings.ContainsAny(field, " \t\"") {
			return Query{}, fmt.Errorf("invalid query %q: bad field name %q", input, field)
		}
		s = s[sep+1:]

		var value string
		if strings.HasPrefix(s, `"`) {
			var b strings.Builder
			i := 1
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return Query{}, fmt.Errorf("invalid query %q: unterminated quote", input)
			}
			value = b.String()
			s = s[i:]
		} else {
			end := strings.IndexAny(s, " \t\n")
			if end < 0 {
				end = len(s)
			}
			value = s[:end]
			s = s[end:]
		}
		if value == "" {
			return Query{}, fmt.Errorf("invalid query %q: empty value for %s", input, field)
		}

		if field == "*" && value == "*" {
			continue
		}
		q.Terms = append(q.Terms, Term{Field: field, Value: value})
	}
	return q, nil
}
