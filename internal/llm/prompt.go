package llm

import (
	"fmt"
	"strings"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

const receiptPromptTemplate = `あなたは日本の領収書・請求書を読み取る経理アシスタントです。
画像から以下のJSONを1つだけ出力してください。説明文やコードブロックは不要です。

{
  "payee": "支払先の店名・会社名",
  "date": "yyyy/mm/dd",
  "subtotal": 税抜金額(数値、不明ならnull),
  "tax": 消費税合計(数値、不明ならnull),
  "reduced_tax": 軽減税率8%%分の消費税(数値、無ければnull),
  "amount": 支払総額(数値、必須),
  "invoice_number": "適格請求書発行事業者登録番号(T+13桁、無ければ空文字)",
  "payment_method": "現金/クレジットカード/電子マネー など",
  "receipt_name": "但し書き(無ければ空文字)",
  "remarks": "備考",
  "items": [
    {"name": "品名", "amount": 金額(数値), "category": "%s のいずれか"}
  ]
}

金額はカンマや円記号を含めない数値で出力してください。`

// ReceiptPrompt is the extraction prompt sent with every image.
func ReceiptPrompt() string {
	return fmt.Sprintf(receiptPromptTemplate, strings.Join(models.ItemCategories, ", "))
}

const healthPrompt = `{"status":"ok"} とだけJSONで返してください。`
