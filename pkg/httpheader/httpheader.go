package httpheader

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Separator sits between a header name and its value in the line form.
const Separator = ": "

// Field is a single header line.
type Field struct {
	Name  string
	Value string
}

func (f Field) String() string {
	return f.Name + Separator + f.Value
}

// List is an ordered header list. Duplicates are kept in order; name lookups
// are case-insensitive.
type List []Field

// Get returns the value of the first field named name.
func (l List) Get(name string) (string, bool) {
	for _, f := range l {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value for name in list order.
func (l List) Values(name string) []string {
	var values []string
	for _, f := range l {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Lines renders each field as "Name: value".
func (l List) Lines() []string {
	lines := make([]string, 0, len(l))
	for _, f := range l {
		lines = append(lines, f.String())
	}
	return lines
}

// FromHTTP converts an http.Header into a List. Go does not keep the wire
// order across distinct names, so names are sorted to make the result
// deterministic; values of a single name keep their received order.
func FromHTTP(h http.Header) List {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make(List, 0, len(h))
	for _, name := range names {
		for _, v := range h[name] {
			list = append(list, Field{Name: name, Value: v})
		}
	}
	return list
}

// ParseLine parses "Name: value". The value may itself contain ": ".
func ParseLine(line string) (Field, error) {
	i := strings.Index(line, Separator)
	if i <= 0 {
		return Field{}, fmt.Errorf("malformed header line %q", line)
	}
	return Field{Name: line[:i], Value: line[i+len(Separator):]}, nil
}

// ParseLines parses every line with ParseLine.
func ParseLines(lines []string) (List, error) {
	list := make(List, 0, len(lines))
	for _, line := range lines {
		f, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, nil
}
