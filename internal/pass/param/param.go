// Package param implements the parameter grammar shared by all nugget
// passes. A pass is selected and configured through a single string of the
// form
//
//	pass-name
//	pass-name<key1=value1;key2=value2;...>
//
// Keys and values are non-empty and `;`-separated; unknown keys are
// rejected; keys whose schema default is empty are required. Parsing is a
// pure function over its inputs: no side effects, no global state.
//
// Error discipline matters here because a dispatcher tries several pass
// names against the same raw string: ErrNameNotMatched means "not this
// pass, try the next one", while every other error means "this pass, but
// the configuration is broken" and must be reported to the user.
package param

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Option is one schema entry: an option name and its default value. An
// empty default marks the option as required.
type Option struct {
	Name    string
	Default string
}

// Schema is the ordered option list a pass declares. Order determines
// which missing required option is reported first.
type Schema []Option

// Config is a validated key/value configuration. After a successful Match
// every schema entry is present with a non-empty value.
type Config map[string]string

// ErrNameNotMatched reports that the raw string does not name this pass at
// all. A dispatcher trying multiple pass names treats it as "keep looking";
// every other error from Match is a real configuration failure.
var ErrNameNotMatched = errors.New("pass name not matched")

// SyntaxError reports a raw string that names this pass but has malformed
// parameter brackets: a missing '<', a missing trailing '>', or a bracket
// pair with nothing that could fit between them.
type SyntaxError struct {
	Raw string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed parameterized pass name: %q", e.Raw)
}

// InvalidOptionError reports a parameter item that does not split into a
// non-empty key and a non-empty value.
type InvalidOptionError struct {
	Item string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid option: %q", e.Item)
}

// UnknownOptionError reports a key that the pass schema does not declare.
type UnknownOptionError struct {
	Key string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("unknown option: %q", e.Key)
}

// MissingOptionError reports a required option (empty schema default) left
// unset after all parameter items were applied.
type MissingOptionError struct {
	Option string
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("missing required option: %s", e.Option)
}

// Match parses raw against the pass's base name and option schema.
//
// Outcomes:
//   - raw equals base: the schema defaults, or MissingOptionError when a
//     required option has no default.
//   - raw is base<items>: the defaults overwritten by the items, validated.
//   - raw does not start with base: ErrNameNotMatched.
//   - raw starts with base but the brackets are malformed: SyntaxError.
func Match(raw, base string, schema Schema) (Config, error) {
	if raw == base {
		cfg := defaults(schema)
		if err := checkRequired(cfg, schema); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if !strings.HasPrefix(raw, base) {
		return nil, ErrNameNotMatched
	}
	// Anything after the base name must be a bracketed parameter list with
	// room for at least "<>".
	if len(raw) <= len(base)+2 {
		return nil, &SyntaxError{Raw: raw}
	}
	if raw[len(base)] != '<' || !strings.HasSuffix(raw, ">") {
		return nil, &SyntaxError{Raw: raw}
	}
	body := raw[len(base)+1 : len(raw)-1]
	return parse(body, schema)
}

// parse applies `;`-separated key=value items from a bracket body to the
// schema defaults and validates the result.
func parse(body string, schema Schema) (Config, error) {
	cfg := defaults(schema)

	for _, item := range strings.Split(body, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, found := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !found || key == "" || value == "" {
			return nil, &InvalidOptionError{Item: item}
		}
		if !declared(schema, key) {
			return nil, &UnknownOptionError{Key: key}
		}
		cfg[key] = value
	}

	if err := checkRequired(cfg, schema); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults(schema Schema) Config {
	cfg := make(Config, len(schema))
	for _, opt := range schema {
		cfg[opt.Name] = opt.Default
	}
	return cfg
}

func declared(schema Schema, key string) bool {
	for _, opt := range schema {
		if opt.Name == key {
			return true
		}
	}
	return false
}

// checkRequired walks the schema in order so the first unset option by
// declaration order is the one reported.
func checkRequired(cfg Config, schema Schema) error {
	for _, opt := range schema {
		if cfg[opt.Name] == "" {
			return &MissingOptionError{Option: opt.Name}
		}
	}
	return nil
}

// Uint64 reads an option value as a base-10 unsigned integer. Block ids,
// marker counts and interval lengths all come through here.
func (c Config) Uint64(key string) (uint64, error) {
	v, err := strconv.ParseUint(c[key], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return v, nil
}

// Bool reads an option value as a boolean. Only the literal "true" is
// true; any other value is false, matching the original option handling.
func (c Config) Bool(key string) bool {
	return c[key] == "true"
}
