// Package matcher maps abstract field roles onto concrete introspected form
// fields. Roles are resolved through a table of pure predicates; the first
// visible field that satisfies the role's predicate wins.
package matcher

import (
	"errors"
	"fmt"
	"form-agent/internal/entity"
	"regexp"
	"strings"
)

var ErrNoSelector = errors.New("unable to create selector")

type Predicate func(f entity.FieldDescriptor) bool

var predicates = map[entity.Role]Predicate{
	entity.RoleFirstName: hintContains("first"),
	entity.RoleLastName:  hintContains("last"),
	entity.RoleEmail:     anyOf(typeIs("email"), hintContains("email")),
	entity.RolePassword: allOf(
		typeIs("password"),
		not(idOrNameContains("confirm")),
	),
	entity.RoleConfirmPassword: allOf(
		typeIs("password"),
		idOrNameContains("confirm"),
	),
	entity.RoleUsername: hintContains("user"),
	entity.RolePhone:    anyOf(typeIs("tel"), hintContains("phone")),
	entity.RoleAddress:  hintContains("address"),
	entity.RoleCustom:   func(entity.FieldDescriptor) bool { return false },
}

func ParseRole(s string) (entity.Role, error) {
	role := entity.Role(s)
	if _, ok := predicates[role]; !ok {
		return "", fmt.Errorf("unsupported field type: %q", s)
	}

	return role, nil
}

// PredicateFor returns the predicate registered for role, or nil.
func PredicateFor(role entity.Role) Predicate {
	return predicates[role]
}

// Match returns the first visible field satisfying the role's predicate, in
// introspection order.
func Match(role entity.Role, fields []entity.FieldDescriptor) (entity.FieldDescriptor, bool) {
	pred, ok := predicates[role]
	if !ok {
		return entity.FieldDescriptor{}, false
	}

	for _, f := range fields {
		if f.Visible && pred(f) {
			return f, true
		}
	}

	return entity.FieldDescriptor{}, false
}

var cssIdent = regexp.MustCompile(`^-?[A-Za-z_][A-Za-z0-9_-]*$`)

// Locator derives a CSS selector for a matched field: id, then name, then
// placeholder. Placeholder selectors are ambiguous when several fields share
// the same placeholder; the first one in document order is used.
func Locator(f entity.FieldDescriptor) (string, error) {
	tag := f.TagName
	if tag == "" {
		tag = "input"
	}

	switch {
	case f.ID != "":
		if cssIdent.MatchString(f.ID) {
			return "#" + f.ID, nil
		}

		return fmt.Sprintf(`[id="%s"]`, QuoteAttr(f.ID)), nil
	case f.Name != "":
		return fmt.Sprintf(`%s[name="%s"]`, tag, QuoteAttr(f.Name)), nil
	case f.Placeholder != "":
		return fmt.Sprintf(`%s[placeholder="%s"]`, tag, QuoteAttr(f.Placeholder)), nil
	default:
		return "", ErrNoSelector
	}
}

// QuoteAttr escapes s for use inside a double-quoted CSS attribute value.
func QuoteAttr(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func typeIs(t string) Predicate {
	return func(f entity.FieldDescriptor) bool {
		return strings.EqualFold(f.Type, t)
	}
}

func hintContains(keyword string) Predicate {
	return func(f entity.FieldDescriptor) bool {
		return containsFold(keyword, f.ID, f.Name, f.Placeholder, f.Label)
	}
}

func idOrNameContains(keyword string) Predicate {
	return func(f entity.FieldDescriptor) bool {
		return containsFold(keyword, f.ID, f.Name)
	}
}

func anyOf(preds ...Predicate) Predicate {
	return func(f entity.FieldDescriptor) bool {
		for _, p := range preds {
			if p(f) {
				return true
			}
		}

		return false
	}
}

func allOf(preds ...Predicate) Predicate {
	return func(f entity.FieldDescriptor) bool {
		for _, p := range preds {
			if !p(f) {
				return false
			}
		}

		return true
	}
}

func not(p Predicate) Predicate {
	return func(f entity.FieldDescriptor) bool {
		return !p(f)
	}
}

func containsFold(keyword string, values ...string) bool {
	keyword = strings.ToLower(keyword)

	for _, v := range values {
		if v != "" && strings.Contains(strings.ToLower(v), keyword) {
			return true
		}
	}

	return false
}
