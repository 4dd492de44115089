package models

// SubAccount is a 補助科目 entry. Order inside Account.SubAccounts is significant.
type SubAccount struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Account is a leaf of the accounting master.
type Account struct {
	Key         string       `json:"key"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	SubAccounts []SubAccount `json:"sub_accounts"`

	// Position in the master, filled in at load time.
	Section     string `json:"section"`
	Group       string `json:"group"`
	MainAccount string `json:"main_account"`
}

// AccountMaster mirrors section → group → mainAccount → accountKey → Account,
// keeping every level in file declaration order.
type AccountMaster struct {
	Sections []MasterSection `json:"sections"`
}

type MasterSection struct {
	Name   string        `json:"name"`
	Groups []MasterGroup `json:"groups"`
}

type MasterGroup struct {
	Name         string              `json:"name"`
	MainAccounts []MasterMainAccount `json:"main_accounts"`
}

type MasterMainAccount struct {
	Name     string    `json:"name"`
	Accounts []Account `json:"accounts"`
}

// Sub-account fields used when the matched account has no 補助科目.
const (
	NoSubAccountCode = "0000"
	NoSubAccountName = "補助科目なし"
)

// ClassificationResult is the account assignment for one item description.
type ClassificationResult struct {
	AccountCode    string `json:"account_code"`
	AccountName    string `json:"account_name"`
	SubAccountCode string `json:"sub_account_code"`
	SubAccountName string `json:"sub_account_name"`
}

// ClassificationTrace records which tier of the cascade produced a result.
type ClassificationTrace struct {
	Result ClassificationResult `json:"result"`
	Tier   string               `json:"tier"` // master, detailed, generic, default
	Rule   string               `json:"rule"`
}

type ClassifyRequest struct {
	Descriptions []string `json:"descriptions"`
}
