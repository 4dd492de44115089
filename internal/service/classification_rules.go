package service

import "github.com/khirohas/receipt-auto-input-agent-v3/internal/models"

// KeywordRule assigns Result when any keyword is a substring of the item
// description. Keywords are compared case-insensitively.
type KeywordRule struct {
	Name     string
	Keywords []string
	Result   models.ClassificationResult
}

// DefaultClassification is used when nothing else matches.
var DefaultClassification = models.ClassificationResult{
	AccountCode:    "74610",
	AccountName:    "消耗品費",
	SubAccountCode: "0001",
	SubAccountName: "事務用消耗品代",
}

// DetailedRules are the curated domain groups checked right after the master.
var DetailedRules = []KeywordRule{
	{
		Name:     "childcare_toys",
		Keywords: []string{"絵本", "おもちゃ", "玩具", "知育", "積み木", "ブロック", "粘土", "折り紙", "クレヨン", "画用紙", "ぬいぐるみ", "パズル", "toy", "lego"},
		Result: models.ClassificationResult{
			AccountCode: "74620", AccountName: "保育材料費",
			SubAccountCode: "0001", SubAccountName: "教材・玩具代",
		},
	},
	{
		Name:     "foodstuffs",
		Keywords: []string{"食材", "野菜", "果物", "精肉", "鮮魚", "牛乳", "卵", "米", "パン", "調味料", "おやつ", "菓子", "豆腐"},
		Result: models.ClassificationResult{
			AccountCode: "74630", AccountName: "給食費",
			SubAccountCode: "0001", SubAccountName: "食材費",
		},
	},
	{
		Name:     "photo_video",
		Keywords: []string{"写真", "プリント", "現像", "アルバム", "撮影", "フォト", "ビデオ", "動画", "dvd"},
		Result: models.ClassificationResult{
			AccountCode: "74650", AccountName: "印刷製本費",
			SubAccountCode: "0002", SubAccountName: "写真・映像代",
		},
	},
	{
		Name:     "transport_adjacent",
		Keywords: []string{"駐車", "パーキング", "高速", "有料道路", "etc", "タクシー", "送迎"},
		Result: models.ClassificationResult{
			AccountCode: "74110", AccountName: "旅費交通費",
			SubAccountCode: "0002", SubAccountName: "駐車場・高速料金",
		},
	},
}

// GenericRules are the broad groups checked after DetailedRules.
var GenericRules = []KeywordRule{
	{
		Name:     "office_supplies",
		Keywords: []string{"文具", "文房具", "ボールペン", "ノート", "コピー用紙", "用紙", "ファイル", "封筒", "付箋", "ホッチキス", "テープ", "インク", "トナー", "電池"},
		Result:   DefaultClassification,
	},
	{
		Name:     "postage",
		Keywords: []string{"切手", "郵便", "はがき", "ハガキ", "レターパック", "ゆうパック", "宅配", "送料", "郵送"},
		Result: models.ClassificationResult{
			AccountCode: "74310", AccountName: "通信費",
			SubAccountCode: "0001", SubAccountName: "郵送料",
		},
	},
	{
		Name:     "telecom",
		Keywords: []string{"電話", "携帯", "スマホ", "インターネット", "通信", "wi-fi", "wifi", "プロバイダ"},
		Result: models.ClassificationResult{
			AccountCode: "74310", AccountName: "通信費",
			SubAccountCode: "0002", SubAccountName: "電話・通信料",
		},
	},
	{
		Name:     "commuter_transport",
		Keywords: []string{"定期", "電車", "乗車券", "切符", "バス", "運賃", "suica", "pasmo", "icカード"},
		Result: models.ClassificationResult{
			AccountCode: "74110", AccountName: "旅費交通費",
			SubAccountCode: "0001", SubAccountName: "交通費",
		},
	},
	{
		Name:     "vehicle_fuel",
		Keywords: []string{"ガソリン", "軽油", "燃料", "レギュラー", "ハイオク", "洗車", "車検", "オイル交換", "タイヤ"},
		Result: models.ClassificationResult{
			AccountCode: "74410", AccountName: "車両費",
			SubAccountCode: "0001", SubAccountName: "燃料代",
		},
	},
	{
		Name:     "utilities_electricity",
		Keywords: []string{"電気", "電力"},
		Result: models.ClassificationResult{
			AccountCode: "74210", AccountName: "水道光熱費",
			SubAccountCode: "0001", SubAccountName: "電気料金",
		},
	},
	{
		Name:     "utilities_gas",
		Keywords: []string{"ガス代", "ガス料金", "都市ガス", "プロパン"},
		Result: models.ClassificationResult{
			AccountCode: "74210", AccountName: "水道光熱費",
			SubAccountCode: "0002", SubAccountName: "ガス料金",
		},
	},
	{
		Name:     "utilities_water",
		Keywords: []string{"水道", "下水"},
		Result: models.ClassificationResult{
			AccountCode: "74210", AccountName: "水道光熱費",
			SubAccountCode: "0003", SubAccountName: "水道料金",
		},
	},
	{
		Name:     "rent",
		Keywords: []string{"家賃", "賃料", "地代", "賃借", "共益費"},
		Result: models.ClassificationResult{
			AccountCode: "74710", AccountName: "地代家賃",
			SubAccountCode: "0001", SubAccountName: "事務所家賃",
		},
	},
	{
		Name:     "bank_fees",
		Keywords: []string{"振込手数料", "手数料", "決済", "振込"},
		Result: models.ClassificationResult{
			AccountCode: "74810", AccountName: "支払手数料",
			SubAccountCode: "0001", SubAccountName: "振込手数料",
		},
	},
}
