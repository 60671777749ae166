package validator

import (
	"errors"
	"sort"
	"strings"
)

// ErrInvalid matches every Errors value with errors.Is
var ErrInvalid = errors.New("validation failed")

// Errors maps a JSON field name to a human readable problem
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+e[field])
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

func (e Errors) Is(target error) bool {
	return target == ErrInvalid
}
