package bridge

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/finsightlab/mlbridge/models"
)

// Validator checks both sides of the analyzer contract: transaction input
// before any process is started, and the parsed result afterwards. It is
// pure; construct one per pipeline rather than sharing a package global.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator backed by a fresh validator instance.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateInput rejects an empty sequence or the first record missing a
// mandatory field. The returned InputError names every offending field of
// that record, so a caller can fix all of them in one pass.
func (v *Validator) ValidateInput(input *models.AnalysisInput) error {
	if input == nil || len(input.Transactions) == 0 {
		return &InputError{Reasons: []string{"transactions: sequence is empty"}}
	}
	for i, rec := range input.Transactions {
		if reasons := recordViolations(i, rec); len(reasons) > 0 {
			return &InputError{Reasons: reasons}
		}
	}
	return nil
}

func recordViolations(i int, rec models.TransactionRecord) []string {
	var reasons []string
	if rec.Amount.IsZero() {
		reasons = append(reasons, fmt.Sprintf("transactions[%d]: missing or zero amount", i))
	}
	if rec.Date.IsZero() {
		reasons = append(reasons, fmt.Sprintf("transactions[%d]: missing date", i))
	}
	if rec.Merchant == "" {
		reasons = append(reasons, fmt.Sprintf("transactions[%d]: missing merchant", i))
	}
	if rec.Category == "" {
		reasons = append(reasons, fmt.Sprintf("transactions[%d]: missing category", i))
	}
	if rec.Status != "" && !rec.Status.IsValid() {
		reasons = append(reasons, fmt.Sprintf("transactions[%d]: unknown status %q", i, rec.Status))
	}
	return reasons
}

// ValidateOutput structurally validates a parsed result against the output
// contract. Unlike input validation it aggregates every violation into one
// OutputError, since a malformed result document tends to break in several
// places at once.
func (v *Validator) ValidateOutput(result *models.AnalysisResult) error {
	if result == nil {
		return &OutputError{Reasons: []string{"result is nil"}}
	}

	var reasons []string
	if err := v.validate.Struct(result); err != nil {
		var violations validator.ValidationErrors
		if !errors.As(err, &violations) {
			return fmt.Errorf("validate analysis result: %w", err)
		}
		for _, fe := range violations {
			reasons = append(reasons, fmt.Sprintf("%s: failed '%s' constraint (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	if got, want := result.Metrics.TotalTransactions, result.Metrics.PositiveCount+result.Metrics.NegativeCount; got != want {
		reasons = append(reasons, fmt.Sprintf("metrics.totalTransactions: %d does not equal positiveCount+negativeCount (%d)", got, want))
	}

	if len(reasons) > 0 {
		return &OutputError{Reasons: reasons}
	}
	return nil
}
