package repository

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

// Sections searched by Lookup. Anything else in the master (liabilities,
// equity) is loaded but never matched against item descriptions.
const (
	SectionAssets        = "資産"
	SectionProfitAndLoss = "損益"
)

var lookupSections = map[string]bool{
	SectionAssets:        true,
	SectionProfitAndLoss: true,
}

// AccountMasterRepository is the read-only accounting master index.
type AccountMasterRepository struct {
	master   models.AccountMaster
	accounts []models.Account
	byCode   map[string]models.Account
}

// LoadAccountMaster reads the master JSON from disk. Callers treat an error as fatal.
func LoadAccountMaster(path string) (*AccountMasterRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read account master: %w", err)
	}
	return ParseAccountMaster(data)
}

// ParseAccountMaster builds the index from raw JSON, preserving key order at
// every level.
func ParseAccountMaster(data []byte) (*AccountMasterRepository, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("account master is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("account master must be a JSON object of sections")
	}

	var master models.AccountMaster
	var parseErr error

	root.ForEach(func(sectionKey, sectionVal gjson.Result) bool {
		if !sectionVal.IsObject() {
			parseErr = fmt.Errorf("section %q must be an object", sectionKey.String())
			return false
		}
		section := models.MasterSection{Name: sectionKey.String()}

		sectionVal.ForEach(func(groupKey, groupVal gjson.Result) bool {
			group := models.MasterGroup{Name: groupKey.String()}

			groupVal.ForEach(func(mainKey, mainVal gjson.Result) bool {
				main := models.MasterMainAccount{Name: mainKey.String()}

				mainVal.ForEach(func(accountKey, accountVal gjson.Result) bool {
					account, err := parseAccount(accountKey.String(), accountVal)
					if err != nil {
						parseErr = fmt.Errorf("%s/%s/%s: %w", section.Name, group.Name, main.Name, err)
						return false
					}
					account.Section = section.Name
					account.Group = group.Name
					account.MainAccount = main.Name
					main.Accounts = append(main.Accounts, account)
					return true
				})
				group.MainAccounts = append(group.MainAccounts, main)
				return parseErr == nil
			})
			section.Groups = append(section.Groups, group)
			return parseErr == nil
		})
		master.Sections = append(master.Sections, section)
		return parseErr == nil
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return NewAccountMasterRepository(master), nil
}

func parseAccount(key string, v gjson.Result) (models.Account, error) {
	if !v.IsObject() {
		return models.Account{}, fmt.Errorf("account %q must be an object", key)
	}
	account := models.Account{
		Key:  key,
		Code: v.Get("code").String(),
		Name: v.Get("name").String(),
	}
	if account.Code == "" {
		return models.Account{}, fmt.Errorf("account %q has no code", key)
	}

	subs := v.Get("subAccounts")
	if !subs.Exists() {
		subs = v.Get("sub_accounts")
	}
	for _, sub := range subs.Array() {
		account.SubAccounts = append(account.SubAccounts, models.SubAccount{
			Code: sub.Get("code").String(),
			Name: sub.Get("name").String(),
		})
	}
	return account, nil
}

func NewAccountMasterRepository(master models.AccountMaster) *AccountMasterRepository {
	r := &AccountMasterRepository{
		master: master,
		byCode: make(map[string]models.Account),
	}
	for _, section := range master.Sections {
		for _, group := range section.Groups {
			for _, main := range group.MainAccounts {
				for _, account := range main.Accounts {
					r.accounts = append(r.accounts, account)
					if _, exists := r.byCode[account.Code]; !exists {
						r.byCode[account.Code] = account
					}
				}
			}
		}
	}
	return r
}

// Lookup walks the asset and profit-and-loss sections depth first and returns
// the first account whose name, or failing that one of whose sub-account
// names, is contained in the description (case-insensitive).
func (r *AccountMasterRepository) Lookup(description string) (models.ClassificationResult, bool) {
	desc := strings.ToLower(description)
	if desc == "" {
		return models.ClassificationResult{}, false
	}

	for _, section := range r.master.Sections {
		if !lookupSections[section.Name] {
			continue
		}
		for _, group := range section.Groups {
			for _, main := range group.MainAccounts {
				for _, account := range main.Accounts {
					if result, ok := matchAccount(account, desc); ok {
						return result, true
					}
				}
			}
		}
	}
	return models.ClassificationResult{}, false
}

func matchAccount(account models.Account, desc string) (models.ClassificationResult, bool) {
	if containsFold(desc, account.Name) {
		result := models.ClassificationResult{
			AccountCode:    account.Code,
			AccountName:    account.Name,
			SubAccountCode: models.NoSubAccountCode,
			SubAccountName: models.NoSubAccountName,
		}
		if len(account.SubAccounts) > 0 {
			result.SubAccountCode = account.SubAccounts[0].Code
			result.SubAccountName = account.SubAccounts[0].Name
		}
		return result, true
	}

	for _, sub := range account.SubAccounts {
		if containsFold(desc, sub.Name) {
			return models.ClassificationResult{
				AccountCode:    account.Code,
				AccountName:    account.Name,
				SubAccountCode: sub.Code,
				SubAccountName: sub.Name,
			}, true
		}
	}
	return models.ClassificationResult{}, false
}

// containsFold expects lowered to be lower-cased already. Empty needles never match.
func containsFold(lowered, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(lowered, strings.ToLower(needle))
}

// Accounts returns every account in declaration order.
func (r *AccountMasterRepository) Accounts() []models.Account {
	return r.accounts
}

func (r *AccountMasterRepository) FindByCode(code string) (*models.Account, error) {
	account, ok := r.byCode[code]
	if !ok {
		return nil, fmt.Errorf("account %s not found", code)
	}
	return &account, nil
}

func (r *AccountMasterRepository) Sections() []string {
	names := make([]string, 0, len(r.master.Sections))
	for _, s := range r.master.Sections {
		names = append(names, s.Name)
	}
	return names
}
