package common

import "fmt"

var (
	ErrRuleNotFoundError        = fmt.Errorf("rule not found")
	ErrSelectionNotFoundError   = fmt.Errorf("selection not found")
	ErrSettingsNotFoundError    = fmt.Errorf("selection settings not found")
	ErrNoCandidatesFoundError   = fmt.Errorf("no candidates found")
	ErrPageHasNoCandidatesError = fmt.Errorf("page has no candidates")
	ErrScanHasAlreadyStarted    = fmt.Errorf("scan process has already started")
	ErrInvalidRuleError         = fmt.Errorf("invalid rule")
	ErrInvalidSettingsError     = fmt.Errorf("invalid selection settings")
	ErrUnknownRuleTypeError     = fmt.Errorf("unknown rule type")
	ErrRuleOrderMismatchError   = fmt.Errorf("rule order does not list every rule exactly once")
)
