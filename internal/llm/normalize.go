package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

var refusalPhrases = []string{
	"i'm sorry",
	"i am sorry",
	"i cannot",
	"i can't",
	"i'm unable",
	"i am unable",
	"unable to process",
	"cannot assist",
	"as an ai",
	"申し訳",
	"できません",
	"お答えできません",
	"対応できません",
	"読み取れません",
}

// NormalizeResponse turns raw model text into a decoded JSON value. Fenced
// and bare replies decode to the same value.
func NormalizeResponse(raw string) (any, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return nil, &ProviderError{Kind: KindMalformed, Message: "empty response"}
	}

	if v, err := decodeJSON(text); err == nil {
		return v, nil
	}
	if span := outermostJSONSpan(text); span != "" {
		if v, err := decodeJSON(span); err == nil {
			return v, nil
		}
	}

	if looksLikeRefusal(text) {
		return nil, &ProviderError{Kind: KindRefusal, Message: "model declined to extract", Cause: fmt.Errorf("%s", truncate(text, 200))}
	}
	return nil, &ProviderError{Kind: KindMalformed, Message: "response is not valid JSON", Cause: fmt.Errorf("%s", truncate(text, 200))}
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// drop the language tag line
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "json"), "JSON")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func outermostJSONSpan(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

func looksLikeRefusal(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// ParseReceipt converts a normalized reply into a ReceiptRecord. A single
// element array is unwrapped; an object without an amount is malformed.
func ParseReceipt(obj any) (*models.ReceiptRecord, error) {
	if arr, ok := obj.([]any); ok && len(arr) == 1 {
		obj = arr[0]
	}
	m, ok := obj.(map[string]any)
	if !ok {
		return nil, &ProviderError{Kind: KindMalformed, Message: "response is not a JSON object"}
	}

	amount, ok := parseAmount(m["amount"])
	if !ok {
		amount, ok = parseAmount(m["total"])
	}
	if !ok {
		return nil, &ProviderError{Kind: KindMalformed, Message: "response has no amount"}
	}

	receipt := &models.ReceiptRecord{
		Payee:         stringField(m, "payee", "store_name", "vendor"),
		Date:          NormalizeDate(stringField(m, "date")),
		Amount:        amount.InexactFloat64(),
		InvoiceNumber: stringField(m, "invoice_number"),
		PaymentMethod: stringField(m, "payment_method"),
		ReceiptName:   stringField(m, "receipt_name"),
		Remarks:       stringField(m, "remarks", "note"),
		Items:         []models.LineItem{},
	}
	if v, ok := parseAmount(m["subtotal"]); ok {
		f := v.InexactFloat64()
		receipt.Subtotal = &f
	}
	if v, ok := parseAmount(m["tax"]); ok {
		f := v.InexactFloat64()
		receipt.Tax = &f
	}
	if v, ok := parseAmount(m["reduced_tax"]); ok {
		f := v.InexactFloat64()
		receipt.ReducedTax = &f
	}

	if items, ok := m["items"].([]any); ok {
		for _, raw := range items {
			im, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			item := models.LineItem{
				Name:     stringField(im, "name", "description"),
				Category: models.NormalizeCategory(stringField(im, "category")),
			}
			if v, ok := parseAmount(im["amount"]); ok {
				item.Amount = v.InexactFloat64()
			}
			if item.Name == "" && item.Amount == 0 {
				continue
			}
			receipt.Items = append(receipt.Items, item)
		}
	}
	return receipt, nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

var amountCleaner = strings.NewReplacer(",", "", "，", "", "¥", "", "￥", "", "円", "", " ", "", "　", "")

// parseAmount accepts JSON numbers and strings such as "¥1,200" or "1200円".
func parseAmount(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case string:
		s := amountCleaner.Replace(strings.TrimSpace(n))
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

var (
	datePattern   = regexp.MustCompile(`^(\d{4})\s*[/\-.年]\s*(\d{1,2})\s*[/\-.月]\s*(\d{1,2})\s*日?$`)
	compactLayout = "20060102"
)

// NormalizeDate rewrites recognised date forms to yyyy/mm/dd and leaves
// anything else untouched.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := datePattern.FindStringSubmatch(s); m != nil {
		if t, err := time.Parse("2006/1/2", m[1]+"/"+m[2]+"/"+m[3]); err == nil {
			return t.Format("2006/01/02")
		}
		return s
	}
	if len(s) == len(compactLayout) {
		if t, err := time.Parse(compactLayout, s); err == nil {
			return t.Format("2006/01/02")
		}
	}
	return s
}
