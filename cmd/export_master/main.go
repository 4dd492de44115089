package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/config"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/service"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

// export_master writes the accounting master to a workbook so it can be
// reviewed by the accounting team. With -classify it prints the cascade
// result for each argument instead.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	masterPath := flag.String("master", cfg.AccountMasterPath, "account master JSON file")
	out := flag.String("out", "account_master.xlsx", "output workbook")
	classify := flag.Bool("classify", false, "classify the remaining arguments instead of exporting")
	flag.Parse()

	logger := utils.GetLogger()

	master, err := repository.LoadAccountMaster(*masterPath)
	if err != nil {
		logger.WithError(err).Errorf("Failed to load %s", *masterPath)
		os.Exit(1)
	}

	engine := service.NewClassificationEngine(master)

	if *classify {
		for _, desc := range flag.Args() {
			trace := engine.Explain(desc)
			fmt.Printf("%s\t%s %s\t%s %s\t(%s: %s)\n", desc,
				trace.Result.AccountCode, trace.Result.AccountName,
				trace.Result.SubAccountCode, trace.Result.SubAccountName,
				trace.Tier, trace.Rule)
		}
		return
	}

	excel := service.NewExcelService(service.NewReportService(engine, logger))
	if err := excel.ExportAccountMaster(master.Accounts(), *out); err != nil {
		logger.WithError(err).Error("Failed to write workbook")
		os.Exit(1)
	}

	fmt.Printf("✅ Exported %d accounts to %s\n", len(master.Accounts()), *out)
}
