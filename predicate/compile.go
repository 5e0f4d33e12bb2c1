package predicate

import (
	"fmt"
	"strings"
)

// Fragment is a compiled WHERE clause.
type Fragment struct {
	// SQL is empty or starts with "WHERE ".
	SQL string
	// Args holds one value per placeholder, in placeholder order.
	Args []any
	// Params holds the condition behind each placeholder, in placeholder order.
	Params []Eq
}

// Empty reports whether the fragment restricts nothing.
func (f Fragment) Empty() bool {
	return f.SQL == ""
}

// Compile turns e into a WHERE clause for dialect d. Placeholders are
// numbered from offset+1 so callers can place their own arguments first.
// A nil or empty expression compiles to an empty fragment.
func Compile(e Expr, d Dialect, offset int) (Fragment, error) {
	c := compiler{dialect: d, next: offset + 1}

	body, _, err := c.render(e)
	if err != nil {
		return Fragment{}, err
	}

	if body == "" {
		return Fragment{}, nil
	}

	return Fragment{
		SQL:    "WHERE " + body,
		Args:   c.args,
		Params: c.params,
	}, nil
}

type compiler struct {
	dialect Dialect
	next    int
	args    []any
	params  []Eq
}

// render returns the SQL for e and whether it joins more than one member.
func (c *compiler) render(e Expr) (string, bool, error) {
	switch v := e.(type) {
	case nil, all:
		return "", false, nil
	case Eq:
		s, err := c.renderEq(v)
		return s, false, err
	case And:
		return c.renderAnd(v)
	case Or:
		return c.renderOr(v)
	default:
		return "", false, fmt.Errorf("compile predicate: unsupported expression %T", e)
	}
}

func (c *compiler) renderEq(eq Eq) (string, error) {
	col, err := QuoteColumn(c.dialect, eq.Column)
	if err != nil {
		return "", fmt.Errorf("compile predicate: %w", err)
	}

	if eq.Value == nil {
		return col + " IS NULL", nil
	}

	ph := c.dialect.Placeholder(c.next)
	c.next++
	c.args = append(c.args, eq.Value)
	c.params = append(c.params, eq)

	return col + " = " + ph, nil
}

func (c *compiler) renderAnd(members And) (string, bool, error) {
	var parts []string
	for _, m := range members {
		s, compound, err := c.render(m)
		if err != nil {
			return "", false, err
		}
		if s == "" {
			continue
		}
		if _, isOr := m.(Or); isOr && compound {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND "), len(parts) > 1, nil
}

func (c *compiler) renderOr(members Or) (string, bool, error) {
	var parts []string
	for _, m := range members {
		s, _, err := c.render(m)
		if err != nil {
			return "", false, err
		}
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}

	if len(parts) == 1 {
		return parts[0], false, nil
	}

	for i, p := range parts {
		parts[i] = "(" + p + ")"
	}
	return strings.Join(parts, " OR "), len(parts) > 1, nil
}
