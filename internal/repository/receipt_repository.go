package repository

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

const receiptHistorySchema = `
CREATE TABLE IF NOT EXISTS receipt_history (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	batch_code VARCHAR(32) NOT NULL,
	file_name VARCHAR(255) NOT NULL DEFAULT '',
	payee VARCHAR(255) NOT NULL DEFAULT '',
	receipt_date VARCHAR(10) NOT NULL DEFAULT '',
	subtotal DECIMAL(15,2) NOT NULL DEFAULT 0,
	tax DECIMAL(15,2) NOT NULL DEFAULT 0,
	reduced_tax DECIMAL(15,2) NOT NULL DEFAULT 0,
	amount DECIMAL(15,2) NOT NULL DEFAULT 0,
	invoice_number VARCHAR(32) NOT NULL DEFAULT '',
	payment_method VARCHAR(64) NOT NULL DEFAULT '',
	account_code VARCHAR(16) NOT NULL DEFAULT '',
	account_name VARCHAR(64) NOT NULL DEFAULT '',
	sub_account_code VARCHAR(16) NOT NULL DEFAULT '',
	sub_account_name VARCHAR(64) NOT NULL DEFAULT '',
	provider VARCHAR(32) NOT NULL DEFAULT '',
	raw_json TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	INDEX idx_receipt_history_batch (batch_code)
) DEFAULT CHARSET=utf8mb4`

// ReceiptRepository stores extracted receipts for the history view.
type ReceiptRepository struct {
	db *sqlx.DB
}

func NewReceiptRepository(db *sqlx.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) EnsureSchema() error {
	_, err := r.db.Exec(receiptHistorySchema)
	return err
}

// HistoryFromReport converts the successful outcomes of a report into rows.
// account is the receipt-level account chosen for each outcome.
func HistoryFromReport(report *models.BatchReport, account func(models.ExtractionOutcome) models.ClassificationResult) []models.ReceiptHistory {
	var rows []models.ReceiptHistory
	for _, outcome := range report.Outcomes {
		if !outcome.Success || outcome.Receipt == nil {
			continue
		}
		receipt := outcome.Receipt
		acct := account(outcome)
		raw, _ := json.Marshal(outcome)

		tax := 0.0
		if receipt.Tax != nil {
			tax = *receipt.Tax
		}
		rows = append(rows, models.ReceiptHistory{
			BatchCode:      report.BatchCode,
			FileName:       outcome.FileName,
			Payee:          receipt.Payee,
			ReceiptDate:    receipt.Date,
			Subtotal:       receipt.SubtotalOrAmount(),
			Tax:            tax,
			ReducedTax:     receipt.ReducedTaxOrZero(),
			Amount:         receipt.Amount,
			InvoiceNumber:  receipt.InvoiceNumber,
			PaymentMethod:  receipt.PaymentMethod,
			AccountCode:    acct.AccountCode,
			AccountName:    acct.AccountName,
			SubAccountCode: acct.SubAccountCode,
			SubAccountName: acct.SubAccountName,
			Provider:       report.Provider,
			RawJSON:        string(raw),
		})
	}
	return rows
}

// SaveBatch inserts all rows in one transaction.
func (r *ReceiptRepository) SaveBatch(rows []models.ReceiptHistory) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO receipt_history (batch_code, file_name, payee, receipt_date,
	          subtotal, tax, reduced_tax, amount, invoice_number, payment_method,
	          account_code, account_name, sub_account_code, sub_account_name, provider, raw_json)
	          VALUES (:batch_code, :file_name, :payee, :receipt_date,
	          :subtotal, :tax, :reduced_tax, :amount, :invoice_number, :payment_method,
	          :account_code, :account_name, :sub_account_code, :sub_account_name, :provider, :raw_json)`
	for i := range rows {
		if _, err := tx.NamedExec(query, &rows[i]); err != nil {
			return fmt.Errorf("failed to insert receipt %s: %w", rows[i].FileName, err)
		}
	}
	return tx.Commit()
}

const historyColumns = `id, batch_code, file_name, payee, receipt_date, subtotal, tax, reduced_tax,
	amount, invoice_number, payment_method, account_code, account_name,
	sub_account_code, sub_account_name, provider, created_at`

func (r *ReceiptRepository) FindAll(limit, offset int, search string) ([]models.ReceiptHistory, int, error) {
	var rows []models.ReceiptHistory
	var total int

	whereClause := ""
	args := []interface{}{}

	if search != "" {
		whereClause = "WHERE payee LIKE ? OR account_name LIKE ? OR batch_code LIKE ?"
		searchPattern := "%" + search + "%"
		args = append(args, searchPattern, searchPattern, searchPattern)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM receipt_history %s", whereClause)
	if err := r.db.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM receipt_history %s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, historyColumns, whereClause)
	args = append(args, limit, offset)
	if err := r.db.Select(&rows, query, args...); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *ReceiptRepository) FindByBatch(code string) ([]models.ReceiptHistory, error) {
	var rows []models.ReceiptHistory
	query := fmt.Sprintf("SELECT %s FROM receipt_history WHERE batch_code = ? ORDER BY id", historyColumns)
	if err := r.db.Select(&rows, query, code); err != nil {
		return nil, err
	}
	return rows, nil
}
