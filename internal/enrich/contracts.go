package enrich

import "context"

// CorrectionState tags the outcome of the normalize stage.
type CorrectionState int

const (
	// AlreadyCorrect means the result's reference field already held the
	// canonical identifier.
	AlreadyCorrect CorrectionState = iota
	// Corrected means the field was missing or non-canonical and has been
	// overwritten with the derived identifier.
	Corrected
)

// Normalization is the normalize stage outcome: the canonical identifier and
// whether the existing field already held it.
type Normalization struct {
	State      CorrectionState
	Identifier string
}

// LookupState tags the outcome of the lookup stage.
type LookupState int

const (
	LookupNoMatch LookupState = iota
	LookupFound
)

// LookupOutcome is the lookup stage outcome. Record is populated only for
// LookupFound.
type LookupOutcome struct {
	State  LookupState
	Record map[string]any
}

// LookupService is the external enrichment lookup the chain depends on.
// A transport or service failure is returned as an error and treated as
// best-effort by the chain; "no match" is a successful LookupNoMatch outcome.
type LookupService interface {
	Lookup(ctx context.Context, identifier string) (LookupOutcome, error)
}
