package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Validator rejects raw cell strings that do not satisfy a constraint.
type Validator interface {
	Validate(value string) error
}

type ValidatorFunc func(value string) error

func (f ValidatorFunc) Validate(value string) error { return f(value) }

// RegexValidator requires the whole value to match a pattern.
type RegexValidator struct {
	pattern string
	re      *regexp.Regexp
}

func Regex(pattern string) (*RegexValidator, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return &RegexValidator{pattern: pattern, re: re}, nil
}

func MustRegex(pattern string) *RegexValidator {
	v, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *RegexValidator) Pattern() string { return v.pattern }

func (v *RegexValidator) Validate(value string) error {
	if !v.re.MatchString(value) {
		return fmt.Errorf(`Value "%s" does not match pattern "%s".`, value, v.pattern)
	}
	return nil
}

type EnumValidator struct {
	Options    []string
	IgnoreCase bool
}

func Enum(options ...string) *EnumValidator {
	return &EnumValidator{Options: options}
}

func (v *EnumValidator) Validate(value string) error {
	for _, opt := range v.Options {
		if opt == value || (v.IgnoreCase && strings.EqualFold(opt, value)) {
			return nil
		}
	}
	return fmt.Errorf(`Value "%s" is not one of [%s].`, value, strings.Join(v.Options, ", "))
}

// IntRangeValidator bounds integer values. Values that are not integers pass;
// type parsing reports them.
type IntRangeValidator struct {
	Min *int64
	Max *int64
}

func IntRange(min, max int64) *IntRangeValidator {
	return &IntRangeValidator{Min: &min, Max: &max}
}

func (v *IntRangeValidator) Validate(value string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return nil
	}
	if v.Min != nil && n < *v.Min {
		return fmt.Errorf(`Value "%s" must be at least %d.`, value, *v.Min)
	}
	if v.Max != nil && n > *v.Max {
		return fmt.Errorf(`Value "%s" must be at most %d.`, value, *v.Max)
	}
	return nil
}

// All runs validators in order and returns the first failure.
func All(validators ...Validator) Validator {
	return ValidatorFunc(func(value string) error {
		for _, v := range validators {
			if v == nil {
				continue
			}
			if err := v.Validate(value); err != nil {
				return err
			}
		}
		return nil
	})
}
