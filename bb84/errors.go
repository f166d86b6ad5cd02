package bb84

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidParameter is returned, wrapped, for any argument a run cannot be
// performed with.
var ErrInvalidParameter = errors.New("bb84: invalid parameter")

// ParseSeed parses a base-10 seed. An empty (or all whitespace) string means
// no seed and yields nil.
func ParseSeed(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed seed %q", ErrInvalidParameter, s)
	}
	return &v, nil
}
