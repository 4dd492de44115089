package service

import (
	"strings"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

const (
	TierMaster   = "master"
	TierDetailed = "detailed"
	TierGeneric  = "generic"
	TierDefault  = "default"
)

// AccountLookup is the first tier of the cascade.
type AccountLookup interface {
	Lookup(description string) (models.ClassificationResult, bool)
}

// ClassificationEngine assigns an account to an item description. The cascade
// is master data, then DetailedRules, then GenericRules, then
// DefaultClassification. The first match wins.
type ClassificationEngine struct {
	master        AccountLookup
	detailedRules []KeywordRule
	genericRules  []KeywordRule
	fallback      models.ClassificationResult
}

// NewClassificationEngine builds an engine over the given master. A nil master
// skips the first tier.
func NewClassificationEngine(master AccountLookup) *ClassificationEngine {
	return NewClassificationEngineWithRules(master, DetailedRules, GenericRules, DefaultClassification)
}

func NewClassificationEngineWithRules(
	master AccountLookup,
	detailed []KeywordRule,
	generic []KeywordRule,
	fallback models.ClassificationResult,
) *ClassificationEngine {
	return &ClassificationEngine{
		master:        master,
		detailedRules: lowerRules(detailed),
		genericRules:  lowerRules(generic),
		fallback:      fallback,
	}
}

// lowerRules copies the rules with keywords lower-cased once, so matching
// only lowers the description.
func lowerRules(rules []KeywordRule) []KeywordRule {
	out := make([]KeywordRule, len(rules))
	for i, rule := range rules {
		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			if kw = strings.ToLower(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		out[i] = KeywordRule{Name: rule.Name, Keywords: keywords, Result: rule.Result}
	}
	return out
}

// Classify never fails; descriptions matching nothing get the fallback.
func (e *ClassificationEngine) Classify(description string) models.ClassificationResult {
	return e.Explain(description).Result
}

// Explain runs the cascade and reports which tier and rule matched.
func (e *ClassificationEngine) Explain(description string) models.ClassificationTrace {
	// STEP 1: accounting master
	if e.master != nil {
		if result, ok := e.master.Lookup(description); ok {
			return models.ClassificationTrace{Result: result, Tier: TierMaster, Rule: result.AccountCode}
		}
	}

	desc := strings.ToLower(description)

	// STEP 2: curated domain keywords
	if rule, ok := matchKeywordRule(e.detailedRules, desc); ok {
		return models.ClassificationTrace{Result: rule.Result, Tier: TierDetailed, Rule: rule.Name}
	}

	// STEP 3: generic keywords
	if rule, ok := matchKeywordRule(e.genericRules, desc); ok {
		return models.ClassificationTrace{Result: rule.Result, Tier: TierGeneric, Rule: rule.Name}
	}

	// STEP 4: default
	return models.ClassificationTrace{Result: e.fallback, Tier: TierDefault, Rule: "default"}
}

// matchKeywordRule finds the first rule with a keyword contained in desc
func matchKeywordRule(rules []KeywordRule, desc string) (KeywordRule, bool) {
	if desc == "" {
		return KeywordRule{}, false
	}
	for _, rule := range rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(desc, keyword) {
				return rule, true
			}
		}
	}
	return KeywordRule{}, false
}

// ClassifyItems annotates copies of items; the input slice is not modified.
func (e *ClassificationEngine) ClassifyItems(items []models.LineItem) []models.ClassifiedItem {
	classified := make([]models.ClassifiedItem, len(items))
	for i, item := range items {
		classified[i] = models.ClassifiedItem{
			LineItem:       item,
			Classification: e.Classify(item.Name),
		}
	}
	return classified
}

func (e *ClassificationEngine) ClassifyReceipt(receipt *models.ReceiptRecord) []models.ClassifiedItem {
	if receipt == nil {
		return nil
	}
	return e.ClassifyItems(receipt.Items)
}

// ReceiptAccount picks the account for the receipt as a whole: the first
// item's, or the receipt name / payee when the receipt has no items.
func (e *ClassificationEngine) ReceiptAccount(receipt *models.ReceiptRecord, items []models.ClassifiedItem) models.ClassificationResult {
	if len(items) > 0 {
		return items[0].Classification
	}
	if receipt == nil {
		return e.fallback
	}
	if receipt.ReceiptName != "" {
		return e.Classify(receipt.ReceiptName)
	}
	return e.Classify(receipt.Payee)
}
