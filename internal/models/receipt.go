package models

// Item categories the extraction prompt allows.
const (
	CategoryFood       = "食料品"
	CategoryDaily      = "日用品"
	CategoryStationery = "文具"
	CategoryBooks      = "書籍"
	CategoryToys       = "玩具"
	CategoryTransport  = "交通"
	CategoryTelecom    = "通信"
	CategoryUtilities  = "光熱"
	CategoryService    = "サービス"
	CategoryOther      = "その他"
)

var ItemCategories = []string{
	CategoryFood,
	CategoryDaily,
	CategoryStationery,
	CategoryBooks,
	CategoryToys,
	CategoryTransport,
	CategoryTelecom,
	CategoryUtilities,
	CategoryService,
	CategoryOther,
}

// NormalizeCategory maps anything outside ItemCategories to CategoryOther.
func NormalizeCategory(category string) string {
	for _, c := range ItemCategories {
		if c == category {
			return c
		}
	}
	return CategoryOther
}

type LineItem struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

// ReceiptRecord is the normalized extraction result for one receipt image.
type ReceiptRecord struct {
	Payee         string     `json:"payee"`
	Date          string     `json:"date"` // yyyy/mm/dd
	Subtotal      *float64   `json:"subtotal,omitempty"`
	Tax           *float64   `json:"tax,omitempty"`
	ReducedTax    *float64   `json:"reduced_tax,omitempty"`
	Amount        float64    `json:"amount"`
	Items         []LineItem `json:"items"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	ReceiptName   string     `json:"receipt_name,omitempty"`
	Remarks       string     `json:"remarks,omitempty"`
}

// SubtotalOrAmount returns the subtotal, falling back to the authoritative amount.
func (r *ReceiptRecord) SubtotalOrAmount() float64 {
	if r.Subtotal != nil {
		return *r.Subtotal
	}
	return r.Amount
}

func (r *ReceiptRecord) ReducedTaxOrZero() float64 {
	if r.ReducedTax != nil {
		return *r.ReducedTax
	}
	return 0
}

// ClassifiedItem is a LineItem annotated with its account assignment.
type ClassifiedItem struct {
	LineItem
	Classification ClassificationResult `json:"classification"`
}
