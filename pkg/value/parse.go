package value

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ParseBool accepts the spellings users type for yes/no answers.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "on", "1":
		return true, nil
	case "false", "no", "n", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// ParseList splits a comma-separated answer. Blank items are dropped.
func ParseList(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

// Coerce converts v to kind. Strings are parsed (booleans, comma lists);
// values already of the right kind are returned unchanged.
func Coerce(v Value, kind Kind) (Value, error) {
	if v.kind == kind || kind == KindEmpty {
		return v, nil
	}
	switch kind {
	case KindString:
		switch v.kind {
		case KindBool, KindEmpty:
			return String(v.String()), nil
		case KindList:
			return String(v.String()), nil
		}
	case KindBool:
		switch v.kind {
		case KindString:
			b, err := ParseBool(v.str)
			if err != nil {
				return Empty, err
			}
			return Bool(b), nil
		case KindEmpty:
			return Bool(false), nil
		}
	case KindList:
		switch v.kind {
		case KindString:
			return List(ParseList(v.str)...), nil
		case KindEmpty:
			return List(), nil
		case KindBool:
			return List(v.String()), nil
		}
	}
	return Empty, fmt.Errorf("cannot convert %s to %s", v.kind, kind)
}

// FromAny converts a decoded YAML/JSON scalar or sequence to a Value.
// Numbers become strings.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Empty, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case []string:
		return List(x...), nil
	case []any:
		items := make([]string, 0, len(x))
		for i, item := range x {
			s, err := scalar(item)
			if err != nil {
				return Empty, fmt.Errorf("list item %d: %w", i, err)
			}
			items = append(items, s)
		}
		return List(items...), nil
	}
	s, err := scalar(raw)
	if err != nil {
		return Empty, err
	}
	return String(s), nil
}

func scalar(raw any) (string, error) {
	switch raw.(type) {
	case map[string]any, map[any]any, []any, nil:
		return "", fmt.Errorf("unsupported value type %T", raw)
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", fmt.Errorf("unsupported value type %T", raw)
	}
	return s, nil
}
