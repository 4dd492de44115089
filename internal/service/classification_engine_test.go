package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
)

type stubLookup map[string]models.ClassificationResult

func (s stubLookup) Lookup(description string) (models.ClassificationResult, bool) {
	r, ok := s[description]
	return r, ok
}

func shippedEngine(t *testing.T) *ClassificationEngine {
	t.Helper()
	master, err := repository.LoadAccountMaster("../../data/account_master.json")
	require.NoError(t, err)
	return NewClassificationEngine(master)
}

func TestClassify_AlwaysReturnsAResult(t *testing.T) {
	engine := NewClassificationEngine(nil)

	for _, desc := range []string{"", "zzz", "   ", "謎の品目"} {
		trace := engine.Explain(desc)
		assert.Equal(t, TierDefault, trace.Tier, desc)
		assert.Equal(t, DefaultClassification, trace.Result, desc)
	}
}

func TestClassify_MasterWinsOverKeywordRules(t *testing.T) {
	master := stubLookup{
		"絵本セット": {AccountCode: "74510", AccountName: "新聞図書費", SubAccountCode: "0002", SubAccountName: "書籍代"},
	}
	engine := NewClassificationEngine(master)

	trace := engine.Explain("絵本セット")
	assert.Equal(t, TierMaster, trace.Tier)
	assert.Equal(t, "74510", trace.Result.AccountCode)
	assert.Equal(t, "74510", trace.Rule)

	// without the master entry the detailed rule applies
	trace = engine.Explain("絵本")
	assert.Equal(t, TierDetailed, trace.Tier)
	assert.Equal(t, "childcare_toys", trace.Rule)
	assert.Equal(t, "74620", trace.Result.AccountCode)
}

func TestClassify_DetailedBeforeGeneric(t *testing.T) {
	engine := NewClassificationEngine(nil)

	// おもちゃ is detailed, 電池 is generic
	trace := engine.Explain("おもちゃ用電池")
	assert.Equal(t, TierDetailed, trace.Tier)
	assert.Equal(t, "childcare_toys", trace.Rule)

	trace = engine.Explain("単三電池")
	assert.Equal(t, TierGeneric, trace.Tier)
	assert.Equal(t, "office_supplies", trace.Rule)
}

func TestClassify_KeywordsIgnoreCase(t *testing.T) {
	engine := NewClassificationEngine(nil)

	trace := engine.Explain("LEGO Classic")
	assert.Equal(t, "childcare_toys", trace.Rule)

	trace = engine.Explain("Suica チャージ")
	assert.Equal(t, "commuter_transport", trace.Rule)
	assert.Equal(t, "0001", trace.Result.SubAccountCode)
}

func TestClassify_SubstringMatchesAreTakenLiterally(t *testing.T) {
	engine := NewClassificationEngine(nil)

	// パン inside パンフレット still selects the food rule
	trace := engine.Explain("パンフレット")
	assert.Equal(t, "foodstuffs", trace.Rule)
}

func TestClassify_RuleOrderWithinTier(t *testing.T) {
	first := models.ClassificationResult{AccountCode: "1"}
	second := models.ClassificationResult{AccountCode: "2"}
	engine := NewClassificationEngineWithRules(nil,
		[]KeywordRule{{Name: "a", Keywords: []string{"X"}, Result: first}, {Name: "b", Keywords: []string{"x"}, Result: second}},
		nil,
		models.ClassificationResult{AccountCode: "9"},
	)

	assert.Equal(t, "1", engine.Classify("xyz").AccountCode)
	assert.Equal(t, "9", engine.Classify("abc").AccountCode)
}

func TestClassify_ShippedMaster(t *testing.T) {
	engine := shippedEngine(t)

	trace := engine.Explain("月極駐車場代")
	assert.Equal(t, TierMaster, trace.Tier)
	assert.Equal(t, "74710", trace.Result.AccountCode)
	assert.Equal(t, "駐車場代", trace.Result.SubAccountName)

	trace = engine.Explain("コインパーキング")
	assert.Equal(t, TierDetailed, trace.Tier)
	assert.Equal(t, "74110", trace.Result.AccountCode)
}

func TestClassifyItems_DoesNotModifyInput(t *testing.T) {
	engine := NewClassificationEngine(nil)
	items := []models.LineItem{{Name: "絵本", Amount: 1200}, {Name: "切手", Amount: 84}}

	classified := engine.ClassifyItems(items)

	require.Len(t, classified, 2)
	assert.Equal(t, "74620", classified[0].Classification.AccountCode)
	assert.Equal(t, "74310", classified[1].Classification.AccountCode)
	assert.Equal(t, 1200.0, classified[0].Amount)
	assert.Equal(t, []models.LineItem{{Name: "絵本", Amount: 1200}, {Name: "切手", Amount: 84}}, items)
}

func TestReceiptAccount(t *testing.T) {
	engine := NewClassificationEngine(nil)

	receipt := &models.ReceiptRecord{Payee: "郵便局", Items: []models.LineItem{{Name: "おもちゃ"}, {Name: "切手"}}}
	assert.Equal(t, "74620", engine.ReceiptAccount(receipt, engine.ClassifyReceipt(receipt)).AccountCode)

	noItems := &models.ReceiptRecord{Payee: "郵便局", ReceiptName: "タクシー代"}
	assert.Equal(t, "74110", engine.ReceiptAccount(noItems, nil).AccountCode)

	payeeOnly := &models.ReceiptRecord{Payee: "郵便局"}
	assert.Equal(t, "74310", engine.ReceiptAccount(payeeOnly, nil).AccountCode)

	assert.Equal(t, DefaultClassification, engine.ReceiptAccount(nil, nil))
	assert.Nil(t, engine.ClassifyReceipt(nil))
}
