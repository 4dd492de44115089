package models

import "time"

// UploadedFile is one image held by an upload store.
type UploadedFile struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Buffer       []byte    `json:"-"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

type UploadBatch struct {
	Code      string    `json:"code"`
	FileCount int       `json:"file_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ExtractionOutcome is the per-file result of a batch run. Every input file
// produces exactly one outcome.
type ExtractionOutcome struct {
	ID        string           `json:"id"`
	FileName  string           `json:"file_name"`
	Success   bool             `json:"success"`
	Receipt   *ReceiptRecord   `json:"receipt,omitempty"`
	Items     []ClassifiedItem `json:"items,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
}

type FailureReason struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type BatchReport struct {
	BatchCode   string              `json:"batch_code"`
	Provider    string              `json:"provider"`
	Model       string              `json:"model"`
	Total       int                 `json:"total"`
	Succeeded   int                 `json:"succeeded"`
	Failed      int                 `json:"failed"`
	Failures    []FailureReason     `json:"failures"`
	Outcomes    []ExtractionOutcome `json:"outcomes"`
	ProcessedAt time.Time           `json:"processed_at"`
}

type BatchProgress struct {
	BatchCode string  `json:"batch_code"`
	Status    string  `json:"status"` // queued, processing, completed, failed
	Total     int     `json:"total"`
	Done      int     `json:"done"`
	Failed    int     `json:"failed"`
	Percent   float64 `json:"percent"`
}

// ReceiptHistory is one stored receipt row.
type ReceiptHistory struct {
	ID             int64     `db:"id" json:"id"`
	BatchCode      string    `db:"batch_code" json:"batch_code"`
	FileName       string    `db:"file_name" json:"file_name"`
	Payee          string    `db:"payee" json:"payee"`
	ReceiptDate    string    `db:"receipt_date" json:"receipt_date"`
	Subtotal       float64   `db:"subtotal" json:"subtotal"`
	Tax            float64   `db:"tax" json:"tax"`
	ReducedTax     float64   `db:"reduced_tax" json:"reduced_tax"`
	Amount         float64   `db:"amount" json:"amount"`
	InvoiceNumber  string    `db:"invoice_number" json:"invoice_number"`
	PaymentMethod  string    `db:"payment_method" json:"payment_method"`
	AccountCode    string    `db:"account_code" json:"account_code"`
	AccountName    string    `db:"account_name" json:"account_name"`
	SubAccountCode string    `db:"sub_account_code" json:"sub_account_code"`
	SubAccountName string    `db:"sub_account_name" json:"sub_account_name"`
	Provider       string    `db:"provider" json:"provider"`
	RawJSON        string    `db:"raw_json" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
