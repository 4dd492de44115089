package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

const testMaster = `{
  "資産": {
    "固定資産": {
      "有形固定資産": {
        "equipment": {"code": "12150", "name": "工具器具備品", "subAccounts": [
          {"code": "0001", "name": "パソコン"},
          {"code": "0002", "name": "プリンター"}
        ]}
      }
    }
  },
  "負債": {
    "流動負債": {
      "未払金": {
        "payable": {"code": "21310", "name": "未払金", "subAccounts": []}
      }
    }
  },
  "損益": {
    "販売費及び一般管理費": {
      "経費": {
        "travel": {"code": "74110", "name": "旅費交通費", "subAccounts": [
          {"code": "0001", "name": "交通費"},
          {"code": "0003", "name": "宿泊費"}
        ]},
        "supplies": {"code": "74610", "name": "消耗品費", "subAccounts": [
          {"code": "0001", "name": "Office Supplies"}
        ]},
        "fees": {"code": "74810", "name": "支払手数料"}
      }
    }
  }
}`

func loadTestMaster(t *testing.T) *AccountMasterRepository {
	t.Helper()
	repo, err := ParseAccountMaster([]byte(testMaster))
	require.NoError(t, err)
	return repo
}

func TestParseAccountMaster_KeepsDeclarationOrder(t *testing.T) {
	repo := loadTestMaster(t)

	assert.Equal(t, []string{"資産", "負債", "損益"}, repo.Sections())

	var codes []string
	for _, a := range repo.Accounts() {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"12150", "21310", "74110", "74610", "74810"}, codes)

	travel, err := repo.FindByCode("74110")
	require.NoError(t, err)
	assert.Equal(t, "損益", travel.Section)
	assert.Equal(t, "経費", travel.MainAccount)
	assert.Len(t, travel.SubAccounts, 2)
}

func TestParseAccountMaster_Invalid(t *testing.T) {
	_, err := ParseAccountMaster([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseAccountMaster([]byte(`[1, 2]`))
	assert.Error(t, err)

	_, err = ParseAccountMaster([]byte(`{"資産": {"g": {"m": {"x": {"name": "no code"}}}}}`))
	assert.Error(t, err)
}

func TestLookup_AccountNameUsesFirstSubAccount(t *testing.T) {
	repo := loadTestMaster(t)

	result, ok := repo.Lookup("出張 旅費交通費 精算")
	require.True(t, ok)
	assert.Equal(t, "74110", result.AccountCode)
	assert.Equal(t, "0001", result.SubAccountCode)
	assert.Equal(t, "交通費", result.SubAccountName)
}

func TestLookup_SubAccountName(t *testing.T) {
	repo := loadTestMaster(t)

	result, ok := repo.Lookup("ビジネスホテル 宿泊費")
	require.True(t, ok)
	assert.Equal(t, "74110", result.AccountCode)
	assert.Equal(t, "0003", result.SubAccountCode)

	result, ok = repo.Lookup("ノートパソコン")
	require.True(t, ok)
	assert.Equal(t, "12150", result.AccountCode)
	assert.Equal(t, "パソコン", result.SubAccountName)
}

func TestLookup_CaseInsensitive(t *testing.T) {
	repo := loadTestMaster(t)

	result, ok := repo.Lookup("OFFICE SUPPLIES (pens)")
	require.True(t, ok)
	assert.Equal(t, "74610", result.AccountCode)
}

func TestLookup_SkipsLiabilitySection(t *testing.T) {
	repo := loadTestMaster(t)

	_, ok := repo.Lookup("未払金")
	assert.False(t, ok)
}

func TestLookup_NoSubAccountsAndMiss(t *testing.T) {
	repo := loadTestMaster(t)

	result, ok := repo.Lookup("振込 支払手数料")
	require.True(t, ok)
	assert.Equal(t, "74810", result.AccountCode)
	assert.Equal(t, models.NoSubAccountCode, result.SubAccountCode)
	assert.Equal(t, models.NoSubAccountName, result.SubAccountName)

	_, ok = repo.Lookup("りんご")
	assert.False(t, ok)

	_, ok = repo.Lookup("")
	assert.False(t, ok)
}

func TestLoadAccountMaster_ShippedFile(t *testing.T) {
	repo, err := LoadAccountMaster("../../data/account_master.json")
	require.NoError(t, err)
	assert.NotEmpty(t, repo.Accounts())

	result, ok := repo.Lookup("普通預金への振替")
	require.True(t, ok)
	assert.Equal(t, "11130", result.AccountCode)
	assert.Equal(t, models.NoSubAccountCode, result.SubAccountCode)
	assert.NotEmpty(t, result.SubAccountName)

	_, err = LoadAccountMaster("does-not-exist.json")
	assert.Error(t, err)
}
