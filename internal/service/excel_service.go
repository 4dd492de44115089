package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

const (
	SheetReceipts = "領収書一覧"
	SheetItems    = "明細"
	SheetErrors   = "エラー"
	SheetAccounts = "勘定科目"
)

var receiptHeaders = []string{
	"日付", "支払先", "但し書き", "登録番号", "支払方法",
	"小計", "標準税率分消費税", "軽減税率分消費税", "消費税", "合計",
	"勘定科目コード", "勘定科目", "補助科目コード", "補助科目", "備考", "ファイル名", "警告",
}

var itemHeaders = []string{
	"日付", "支払先", "品名", "分類", "金額",
	"勘定科目コード", "勘定科目", "補助科目コード", "補助科目",
}

type ExcelService struct {
	reports *ReportService
}

func NewExcelService(reports *ReportService) *ExcelService {
	return &ExcelService{reports: reports}
}

// WriteReport renders a batch report as an xlsx workbook.
func (s *ExcelService) WriteReport(report *models.BatchReport) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetReceipts); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetErrors); err != nil {
		return nil, err
	}

	headerStyle, err := newHeaderStyle(f)
	if err != nil {
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	if err != nil {
		return nil, err
	}

	rows, items := s.reports.BuildRows(report.Outcomes)

	// Receipts
	writeHeader(f, SheetReceipts, receiptHeaders, headerStyle)
	for i, r := range rows {
		values := []interface{}{
			r.Date, r.Payee, r.ReceiptName, r.InvoiceNumber, r.PaymentMethod,
			r.Subtotal, optionalMoney(r.StandardTax), optionalMoney(r.ReducedTax), r.Tax, r.Total,
			r.AccountCode, r.AccountName, r.SubAccountCode, r.SubAccountName, r.Remarks, r.FileName,
			strings.Join(r.Warnings, "; "),
		}
		if err := writeRow(f, SheetReceipts, i+2, values); err != nil {
			return nil, err
		}
	}
	if len(rows) > 0 {
		f.SetCellStyle(SheetReceipts, "F2", fmt.Sprintf("J%d", len(rows)+1), moneyStyle)
	}
	setColumnWidths(f, SheetReceipts, []float64{12, 25, 20, 16, 14, 12, 14, 14, 12, 12, 12, 18, 12, 20, 25, 25, 30})

	// Items
	writeHeader(f, SheetItems, itemHeaders, headerStyle)
	for i, it := range items {
		values := []interface{}{
			it.Date, it.Payee, it.Name, it.Category, it.Amount,
			it.AccountCode, it.AccountName, it.SubAccountCode, it.SubAccountName,
		}
		if err := writeRow(f, SheetItems, i+2, values); err != nil {
			return nil, err
		}
	}
	if len(items) > 0 {
		f.SetCellStyle(SheetItems, "E2", fmt.Sprintf("E%d", len(items)+1), moneyStyle)
	}
	setColumnWidths(f, SheetItems, []float64{12, 25, 30, 10, 12, 12, 18, 12, 20})

	// Errors
	writeHeader(f, SheetErrors, []string{"ファイルID", "ファイル名", "種別", "理由"}, headerStyle)
	row := 2
	for _, outcome := range report.Outcomes {
		if outcome.Success {
			continue
		}
		if err := writeRow(f, SheetErrors, row, []interface{}{outcome.ID, outcome.FileName, outcome.ErrorKind, outcome.Error}); err != nil {
			return nil, err
		}
		row++
	}
	setColumnWidths(f, SheetErrors, []float64{30, 25, 14, 60})

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	return buf, nil
}

// ExportAccountMaster writes the flattened chart of accounts, one row per
// sub-account (or one per account without sub-accounts).
func (s *ExcelService) ExportAccountMaster(accounts []models.Account, filePath string) error {
	f, err := s.accountMasterWorkbook(accounts)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filePath)
}

func (s *ExcelService) AccountMasterBuffer(accounts []models.Account) (*bytes.Buffer, error) {
	f, err := s.accountMasterWorkbook(accounts)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.WriteToBuffer()
}

func (s *ExcelService) accountMasterWorkbook(accounts []models.Account) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetAccounts); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := newHeaderStyle(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	headers := []string{"区分", "グループ", "主科目", "勘定科目コード", "勘定科目", "補助科目コード", "補助科目"}
	writeHeader(f, SheetAccounts, headers, headerStyle)

	row := 2
	for _, account := range accounts {
		subs := account.SubAccounts
		if len(subs) == 0 {
			subs = []models.SubAccount{{}}
		}
		for _, sub := range subs {
			values := []interface{}{
				account.Section, account.Group, account.MainAccount,
				account.Code, account.Name, sub.Code, sub.Name,
			}
			if err := writeRow(f, SheetAccounts, row, values); err != nil {
				f.Close()
				return nil, err
			}
			row++
		}
	}
	setColumnWidths(f, SheetAccounts, []float64{10, 22, 18, 14, 20, 14, 22})
	return f, nil
}

// ExportHistory writes stored receipt rows for the history download.
func (s *ExcelService) ExportHistory(history []models.ReceiptHistory) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetReceipts); err != nil {
		return nil, err
	}
	headerStyle, err := newHeaderStyle(f)
	if err != nil {
		return nil, err
	}
	headers := []string{"バッチ", "日付", "支払先", "小計", "消費税", "軽減税率分消費税", "合計",
		"勘定科目コード", "勘定科目", "補助科目コード", "補助科目", "プロバイダ", "ファイル名"}
	writeHeader(f, SheetReceipts, headers, headerStyle)

	for i, h := range history {
		values := []interface{}{
			h.BatchCode, h.ReceiptDate, h.Payee, h.Subtotal, h.Tax, h.ReducedTax, h.Amount,
			h.AccountCode, h.AccountName, h.SubAccountCode, h.SubAccountName, h.Provider, h.FileName,
		}
		if err := writeRow(f, SheetReceipts, i+2, values); err != nil {
			return nil, err
		}
	}
	return f.WriteToBuffer()
}

func newHeaderStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, header := range headers {
		f.SetCellValue(sheet, fmt.Sprintf("%s1", getColumnName(i)), header)
	}
	f.SetCellStyle(sheet, "A1", fmt.Sprintf("%s1", getColumnName(len(headers)-1)), style)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		if err := f.SetCellValue(sheet, fmt.Sprintf("%s%d", getColumnName(col), row), value); err != nil {
			return err
		}
	}
	return nil
}

func setColumnWidths(f *excelize.File, sheet string, widths []float64) {
	for i, width := range widths {
		colName := getColumnName(i)
		f.SetColWidth(sheet, colName, colName, width)
	}
}

// optionalMoney leaves the cell blank for absent values.
func optionalMoney(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func getColumnName(index int) string {
	result := ""
	for index >= 0 {
		result = string(rune('A'+(index%26))) + result
		index = index/26 - 1
	}
	return result
}
