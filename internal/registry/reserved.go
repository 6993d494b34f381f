package registry

import (
	"strconv"
	"strings"

	"demski/internal/types"
)

// reservedNames are keywords of the sentence and declaration grammars,
// compared case-insensitively.
var reservedNames = map[string]struct{}{
	"not": {}, "and": {}, "or": {}, "implies": {}, "xor": {},
	"=": {}, "==": {}, "iff": {}, "!=": {}, "<>": {},
	"<": {}, ">": {}, "<=": {}, ">=": {},
	"bool": {}, "boolean": {}, "unif": {}, "uniform": {},
}

// IsReserved reports whether name collides with a keyword.
func IsReserved(name string) bool {
	_, ok := reservedNames[strings.ToLower(name)]
	return ok
}

func validateName(name string) error {
	if name == "" {
		return types.NewConfigError("empty variable name")
	}
	if IsReserved(name) {
		return types.NewConfigError("%s is a reserved name", name)
	}
	if strings.ContainsAny(name, "()") {
		return types.NewConfigError("variable name %s contains a parenthesis", name)
	}
	// Integer tokens are literals in sentences.
	if _, err := strconv.Atoi(name); err == nil {
		return types.NewConfigError("variable name %s is an integer literal", name)
	}
	return nil
}
