package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

// ReportRow is one receipt line of the spreadsheet.
type ReportRow struct {
	FileID         string   `json:"file_id"`
	FileName       string   `json:"file_name"`
	Date           string   `json:"date"`
	Payee          string   `json:"payee"`
	ReceiptName    string   `json:"receipt_name"`
	InvoiceNumber  string   `json:"invoice_number"`
	PaymentMethod  string   `json:"payment_method"`
	Subtotal       float64  `json:"subtotal"`
	StandardTax    *float64 `json:"standard_tax,omitempty"`
	ReducedTax     *float64 `json:"reduced_tax,omitempty"`
	Tax            float64  `json:"tax"`
	Total          float64  `json:"total"`
	AccountCode    string   `json:"account_code"`
	AccountName    string   `json:"account_name"`
	SubAccountCode string   `json:"sub_account_code"`
	SubAccountName string   `json:"sub_account_name"`
	Remarks        string   `json:"remarks"`
	Warnings       []string `json:"warnings,omitempty"`
}

// ItemRow is one classified line item of the spreadsheet.
type ItemRow struct {
	FileID         string  `json:"file_id"`
	Date           string  `json:"date"`
	Payee          string  `json:"payee"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Amount         float64 `json:"amount"`
	AccountCode    string  `json:"account_code"`
	AccountName    string  `json:"account_name"`
	SubAccountCode string  `json:"sub_account_code"`
	SubAccountName string  `json:"sub_account_name"`
}

type ReportService struct {
	engine *ClassificationEngine
	logger *logrus.Logger
}

func NewReportService(engine *ClassificationEngine, logger *logrus.Logger) *ReportService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReportService{engine: engine, logger: logger}
}

// BuildRows turns successful outcomes into receipt rows and item rows.
// Failed outcomes are skipped; they belong on the error sheet.
func (s *ReportService) BuildRows(outcomes []models.ExtractionOutcome) ([]ReportRow, []ItemRow) {
	rows := make([]ReportRow, 0, len(outcomes))
	var items []ItemRow

	for _, outcome := range outcomes {
		if !outcome.Success || outcome.Receipt == nil {
			continue
		}
		receipt := outcome.Receipt

		classified := outcome.Items
		if classified == nil {
			classified = s.engine.ClassifyReceipt(receipt)
		}
		account := s.engine.ReceiptAccount(receipt, classified)

		row := BuildTaxColumns(receipt)
		row.FileID = outcome.ID
		row.FileName = outcome.FileName
		row.Date = receipt.Date
		row.Payee = receipt.Payee
		row.ReceiptName = receipt.ReceiptName
		row.InvoiceNumber = receipt.InvoiceNumber
		row.PaymentMethod = receipt.PaymentMethod
		row.AccountCode = account.AccountCode
		row.AccountName = account.AccountName
		row.SubAccountCode = account.SubAccountCode
		row.SubAccountName = account.SubAccountName
		row.Remarks = receipt.Remarks

		if len(row.Warnings) > 0 {
			s.logger.WithFields(logrus.Fields{
				"file_id":  outcome.ID,
				"warnings": row.Warnings,
			}).Warn("Receipt tax figures are inconsistent")
		}
		rows = append(rows, row)

		for _, item := range classified {
			items = append(items, ItemRow{
				FileID:         outcome.ID,
				Date:           receipt.Date,
				Payee:          receipt.Payee,
				Name:           item.Name,
				Category:       item.Category,
				Amount:         item.Amount,
				AccountCode:    item.Classification.AccountCode,
				AccountName:    item.Classification.AccountName,
				SubAccountCode: item.Classification.SubAccountCode,
				SubAccountName: item.Classification.SubAccountName,
			})
		}
	}
	return rows, items
}

// BuildTaxColumns fills the money columns of a row. The standard and reduced
// columns are only set when the receipt carries a non-zero reduced tax;
// otherwise Tax alone holds the combined figure. A reduced tax larger than
// the total tax is reported in Warnings and kept as is.
func BuildTaxColumns(receipt *models.ReceiptRecord) ReportRow {
	total := decimal.NewFromFloat(receipt.Amount)
	subtotal := decimal.NewFromFloat(receipt.SubtotalOrAmount())

	tax := decimal.Zero
	if receipt.Tax != nil {
		tax = decimal.NewFromFloat(*receipt.Tax)
	}
	reduced := decimal.NewFromFloat(receipt.ReducedTaxOrZero())

	row := ReportRow{
		Subtotal: subtotal.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}

	if !reduced.IsZero() {
		standard := tax.Sub(reduced)
		std := standard.InexactFloat64()
		red := reduced.InexactFloat64()
		row.StandardTax = &std
		row.ReducedTax = &red
		if reduced.GreaterThan(tax) {
			row.Warnings = append(row.Warnings, fmt.Sprintf("reduced tax %s exceeds tax %s", reduced.String(), tax.String()))
		}
	}
	if receipt.Subtotal != nil && receipt.Tax != nil && !subtotal.Add(tax).Equal(total) {
		row.Warnings = append(row.Warnings, fmt.Sprintf("subtotal %s + tax %s does not equal amount %s", subtotal.String(), tax.String(), total.String()))
	}
	return row
}
