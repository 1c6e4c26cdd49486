// Package storage provides the data persistence layer for the paisaflow engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paisaflow/paisaflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidMerchant    = errors.New("invalid merchant")
	ErrInvalidRule        = errors.New("invalid rule")
	ErrInvalidEnrichment  = errors.New("invalid enrichment")
	ErrInvalidOverride    = errors.New("invalid override")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Direction != model.DirectionDebit && txn.Direction != model.DirectionCredit {
		return fmt.Errorf("%w: invalid direction %q", ErrInvalidTransaction, txn.Direction)
	}
	return nil
}

// validateMerchant validates a merchant.
func validateMerchant(merchant *model.Merchant) error {
	if merchant == nil {
		return fmt.Errorf("%w: merchant", ErrNilParameter)
	}
	if strings.TrimSpace(merchant.Code) == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidMerchant)
	}
	if strings.TrimSpace(merchant.NormalizedName) == "" {
		return fmt.Errorf("%w: missing normalized name", ErrInvalidMerchant)
	}
	return nil
}

// validatePatternRule validates a pattern rule.
func validatePatternRule(rule *model.PatternRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateString(rule.Scope, "scope"); err != nil {
		return err
	}
	if rule.AppliesTo != model.FieldMerchant && rule.AppliesTo != model.FieldDescription {
		return fmt.Errorf("%w: invalid applies_to %q", ErrInvalidRule, rule.AppliesTo)
	}
	if err := validateString(rule.Pattern, "pattern"); err != nil {
		return err
	}
	if err := validateString(rule.Category, "category"); err != nil {
		return err
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidRule)
	}
	if rule.TypeOverride != "" && !model.ValidTransactionType(rule.TypeOverride) {
		return fmt.Errorf("%w: invalid type override %q", ErrInvalidRule, rule.TypeOverride)
	}
	switch rule.Provenance {
	case model.ProvenanceSeed, model.ProvenanceLearned, model.ProvenanceOps:
	default:
		return fmt.Errorf("%w: invalid provenance %q", ErrInvalidRule, rule.Provenance)
	}
	return nil
}

// validateEnrichmentRule validates a generic enrichment rule.
func validateEnrichmentRule(rule *model.EnrichmentRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	switch rule.Field {
	case model.EnrichCounterparty, model.EnrichACHEntity, model.EnrichMCC, model.EnrichDescription:
	default:
		return fmt.Errorf("%w: invalid field %q", ErrInvalidRule, rule.Field)
	}
	switch rule.Operator {
	case model.OperatorExact, model.OperatorContains, model.OperatorRegex:
	default:
		return fmt.Errorf("%w: invalid operator %q", ErrInvalidRule, rule.Operator)
	}
	if err := validateString(rule.Value, "value"); err != nil {
		return err
	}
	if err := validateString(rule.CategoryL1, "category_l1"); err != nil {
		return err
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidRule)
	}
	return nil
}

// validateEnrichment validates an enrichment row.
func validateEnrichment(enrichment *model.Enrichment) error {
	if enrichment == nil {
		return fmt.Errorf("%w: enrichment", ErrNilParameter)
	}
	if enrichment.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction ID", ErrInvalidEnrichment)
	}
	if !model.ValidTransactionType(enrichment.Type) {
		return fmt.Errorf("%w: invalid type %q", ErrInvalidEnrichment, enrichment.Type)
	}
	if enrichment.Confidence < 0 || enrichment.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidEnrichment)
	}
	return nil
}

// validateOverride validates an override row.
func validateOverride(override *model.Override) error {
	if override == nil {
		return fmt.Errorf("%w: override", ErrNilParameter)
	}
	if override.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction ID", ErrInvalidOverride)
	}
	if override.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidOverride)
	}
	if strings.TrimSpace(override.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidOverride)
	}
	if override.Type != "" && !model.ValidTransactionType(override.Type) {
		return fmt.Errorf("%w: invalid type %q", ErrInvalidOverride, override.Type)
	}
	return nil
}
