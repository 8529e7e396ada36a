package finding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rgournay/scout/internal/session"
)

// Category classifies finding provenance. The set is fixed; unknown
// categories are rejected rather than defaulted.
type Category string

const (
	CategoryRemoteSearch Category = "remote-search"
	CategoryRemoteFetch  Category = "remote-fetch"
	CategoryLocalSearch  Category = "local-search"
)

// All selects every category in list operations.
const All = "all"

// ErrInvalidCategory indicates an unknown category name.
var ErrInvalidCategory = errors.New("invalid category")

// Categories returns the fixed category set in its canonical order.
func Categories() []Category {
	return []Category{CategoryRemoteSearch, CategoryRemoteFetch, CategoryLocalSearch}
}

// ParseCategory validates a category name.
func ParseCategory(value string) (Category, error) {
	switch Category(strings.TrimSpace(value)) {
	case CategoryRemoteSearch:
		return CategoryRemoteSearch, nil
	case CategoryRemoteFetch:
		return CategoryRemoteFetch, nil
	case CategoryLocalSearch:
		return CategoryLocalSearch, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, value)
	}
}

// DirName maps a category to its subdirectory under findings/.
func (c Category) DirName() string {
	switch c {
	case CategoryRemoteSearch:
		return session.WebDir
	case CategoryRemoteFetch:
		return session.FetchDir
	case CategoryLocalSearch:
		return session.LocalDir
	default:
		return ""
	}
}
