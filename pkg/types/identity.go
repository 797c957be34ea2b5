// Package types provides core data types for Driftline.
package types

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Category classifies a schema object. Categories carry an execution
// precedence: objects of a lower-precedence category must be created before
// objects of a higher-precedence category that may reference them.
type Category string

const (
	CategoryExtension Category = "extension"
	CategorySchema    Category = "schema"
	CategoryEnum      Category = "enum"
	CategoryTable     Category = "table"
	CategoryFunction  Category = "function"
	CategoryView      Category = "view"
	CategoryPolicy    Category = "policy"
	CategoryTrigger   Category = "trigger"
	CategoryIndex     Category = "index"
	CategoryData      Category = "data"
)

// categoryPrecedence orders categories into execution phases.
var categoryPrecedence = map[Category]int{
	CategoryExtension: 0,
	CategorySchema:    1,
	CategoryEnum:      2,
	CategoryTable:     3,
	CategoryFunction:  4,
	CategoryView:      5,
	CategoryPolicy:    6,
	CategoryTrigger:   7,
	CategoryIndex:     8,
	CategoryData:      9,
}

// Precedence returns the phase ordering rank of the category.
// Unknown categories sort last.
func (c Category) Precedence() int {
	if p, ok := categoryPrecedence[c]; ok {
		return p
	}
	return len(categoryPrecedence)
}

// Categories returns all known categories in precedence order.
func Categories() []Category {
	return []Category{
		CategoryExtension,
		CategorySchema,
		CategoryEnum,
		CategoryTable,
		CategoryFunction,
		CategoryView,
		CategoryPolicy,
		CategoryTrigger,
		CategoryIndex,
		CategoryData,
	}
}

// Identity uniquely names a schema object within its category.
// For policies and triggers the name is qualified with the owning table
// ("table.name"); for functions the name carries the parameter type list
// ("name(int4,text)") so overloads stay distinct.
type Identity struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
}

// Key returns the canonical map key for the identity.
func (id Identity) Key() string {
	return string(id.Category) + ":" + id.Name
}

// NodeID returns a stable 64-bit id for the identity, used by the
// dependency graph arena and the history catalog.
func (id Identity) NodeID() uint64 {
	return murmur3.Sum64([]byte(id.Key()))
}

// String implements fmt.Stringer.
func (id Identity) String() string {
	return fmt.Sprintf("%s %s", id.Category, id.Name)
}
