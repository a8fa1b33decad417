package calcore

import (
	"fmt"
	"strings"
)

// rawComponent is a parsed BEGIN/END block before any semantic
// interpretation: its properties in document order plus nested components.
type rawComponent struct {
	name     string
	props    []property
	children []*rawComponent
}

func (c *rawComponent) add(name, value string) *property {
	c.props = append(c.props, property{Name: name, Value: value})
	return &c.props[len(c.props)-1]
}

// prop returns the first property with the given name, or nil.
func (c *rawComponent) prop(name string) *property {
	for i := range c.props {
		if c.props[i].Name == name {
			return &c.props[i]
		}
	}
	return nil
}

func (c *rawComponent) propValue(name string) string {
	if p := c.prop(name); p != nil {
		return p.Value
	}
	return ""
}

// parseRawDocument parses an entire stream into its top-level components.
func parseRawDocument(s *lineScanner) ([]*rawComponent, error) {
	var top []*rawComponent
	var stack []*rawComponent
	for {
		line, ok := s.next()
		if !ok {
			break
		}
		p, err := parseContentLine(line)
		if err != nil {
			return nil, err
		}
		switch p.Name {
		case "BEGIN":
			comp := &rawComponent{name: strings.ToUpper(p.Value)}
			if len(stack) == 0 {
				top = append(top, comp)
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, comp)
			}
			stack = append(stack, comp)
		case "END":
			if len(stack) == 0 {
				return nil, fmt.Errorf("END:%s without matching BEGIN: %w", p.Value, ErrMalformedInput)
			}
			open := stack[len(stack)-1]
			if !strings.EqualFold(open.name, p.Value) {
				return nil, fmt.Errorf("END:%s closes BEGIN:%s: %w", p.Value, open.name, ErrMalformedInput)
			}
			stack = stack[:len(stack)-1]
		default:
			if len(stack) == 0 {
				// Stray properties outside any component; some exports lead
				// with junk.  Skip them.
				continue
			}
			comp := stack[len(stack)-1]
			comp.props = append(comp.props, p)
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("ran out of lines with BEGIN:%s still open: %w", stack[len(stack)-1].name, ErrMalformedInput)
	}
	return top, nil
}

func (c *rawComponent) write(w *strings.Builder, maxLen int, newline string) {
	begin := property{Name: "BEGIN", Value: c.name}
	begin.write(w, maxLen, newline)
	for i := range c.props {
		c.props[i].write(w, maxLen, newline)
	}
	for _, child := range c.children {
		child.write(w, maxLen, newline)
	}
	end := property{Name: "END", Value: c.name}
	end.write(w, maxLen, newline)
}
