package types

// RiskLevel classifies how dangerous a migration operation is.
type RiskLevel string

const (
	// RiskSafe marks operations that cannot lose data or break dependents.
	RiskSafe RiskLevel = "SAFE"

	// RiskWarning marks operations that may fail on existing data or
	// briefly degrade behavior (type conversions, policy recreation).
	RiskWarning RiskLevel = "WARNING"

	// RiskDestructive marks operations that can irrecoverably delete data
	// or definitions. Destructive operations always require confirmation.
	RiskDestructive RiskLevel = "DESTRUCTIVE"
)

// rank orders risk levels so the optimizer can keep the highest of two.
func (r RiskLevel) rank() int {
	switch r {
	case RiskSafe:
		return 0
	case RiskWarning:
		return 1
	case RiskDestructive:
		return 2
	default:
		return -1
	}
}

// Max returns the higher of two risk levels.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.rank() > r.rank() {
		return other
	}
	return r
}

// Metadata keys attached to operations by the diff engine. The optimizer
// and the plan compiler key merge/inverse decisions off these.
const (
	MetaKind   = "kind"
	MetaTable  = "table"
	MetaColumn = "column"
)

// Operation kinds recorded under MetaKind.
const (
	KindCreateTable       = "create-table"
	KindDropTable         = "drop-table"
	KindAddColumn         = "add-column"
	KindDropColumn        = "drop-column"
	KindAlterColumnType   = "alter-column-type"
	KindAlterColumnNull   = "alter-column-nullable"
	KindAlterColumnNotNul = "alter-column-not-null"
	KindSetDefault        = "set-default"
	KindDropDefault       = "drop-default"
	KindCreateEnum        = "create-enum"
	KindDropEnum          = "drop-enum"
	KindEnumAddValue      = "enum-add-value"
	KindEnumRemoveValues  = "enum-remove-values"
	KindCreateFunction    = "create-function"
	KindReplaceFunction   = "replace-function"
	KindDropFunction      = "drop-function"
	KindCreateTrigger     = "create-trigger"
	KindDropTrigger       = "drop-trigger"
	KindCreatePolicy      = "create-policy"
	KindDropPolicy        = "drop-policy"
	KindRecreatePolicy    = "recreate-policy"
	KindCreateIndex       = "create-index"
	KindDropIndex         = "drop-index"
	KindCreateView        = "create-view"
	KindDropView          = "drop-view"
	KindCreateExtension   = "create-extension"
	KindDropExtension     = "drop-extension"
	KindCreateSchema      = "create-schema"
	KindDropSchema        = "drop-schema"
)

// Operation is one classified, executable change moving a current schema
// toward a target schema.
type Operation struct {
	// Risk is the safety classification of the change.
	Risk RiskLevel `json:"type"`

	// Target identifies the schema object the change applies to.
	Target Identity `json:"target"`

	// SQL is the generated DDL statement. For changes with no systemic
	// expression (enum value removal) it is a manual-intervention
	// placeholder comment.
	SQL string `json:"sql"`

	// Description is a human-readable summary of the change.
	Description string `json:"description"`

	// Warning carries advisory text for WARNING and DESTRUCTIVE changes.
	Warning string `json:"warning,omitempty"`

	// RequiresConfirmation gates execution behind explicit approval.
	// Always true for DESTRUCTIVE operations.
	RequiresConfirmation bool `json:"requires_confirmation"`

	// Metadata carries structured hints (MetaKind, MetaTable, MetaColumn).
	Metadata map[string]string `json:"metadata,omitempty"`

	// Folded holds the operations the optimizer merged into this one,
	// in their original order. Rollback derivation inverts each folded
	// alteration individually.
	Folded []Operation `json:"folded,omitempty"`
}

// Kind returns the operation kind recorded by the diff engine, or "".
func (o Operation) Kind() string {
	return o.Metadata[MetaKind]
}

// Meta returns a metadata value, or "" when absent.
func (o Operation) Meta(key string) string {
	return o.Metadata[key]
}
