// Command finledger imports bank statements into a local ledger,
// categorizes them, and reports on the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/balance"
	"github.com/finledger/finledger/internal/config"
	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/export"
	"github.com/finledger/finledger/internal/importer"
	"github.com/finledger/finledger/internal/recurrence"
	"github.com/finledger/finledger/internal/registry"
	"github.com/finledger/finledger/internal/rules"
	"github.com/finledger/finledger/internal/scanner"
	"github.com/finledger/finledger/internal/store"
)

func main() {
	var (
		configPath  = flag.String("config", defaultConfigPath(), "config file")
		user        = flag.String("user", "local", "user ID to operate as")
		accountName = flag.String("account", "", "account name for import operations")
		accountType = flag.String("account-type", "", "create the account with this type if missing (checking, savings, credit, cash, investment)")
		format      = flag.String("format", "auto", "source format: auto, delimited, bank-export, flat-tag, statement-text")

		importFile  = flag.String("import", "", "import a statement file")
		importDir   = flag.String("dir", "", "import every statement file under a directory")
		previewFile = flag.String("preview", "", "show how a file would import, without writing")
		doExport    = flag.Bool("export", false, "write the ledger as CSV to stdout")
		doRecurring = flag.Bool("recurring", false, "list detected recurring transactions")
		doAccounts  = flag.Bool("accounts", false, "list accounts with balances")
		rulesFile   = flag.String("rules", "", "load a YAML rules file into the database")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	setupLogging(cfg.LogLevel)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		fatal(fmt.Errorf("create data dir: %w", err))
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	engine := balance.New(st)
	imp := importer.New(st, engine, registry.New(), slog.Default())

	switch {
	case *previewFile != "":
		err = runPreview(ctx, imp, *previewFile, registry.Format(*format))
	case *importFile != "":
		err = runImport(ctx, st, imp, cfg, *user, *accountName, *accountType, registry.Format(*format), *importFile)
	case *importDir != "":
		err = runImportDir(ctx, st, imp, cfg, *user, *accountName, *accountType, registry.Format(*format), *importDir)
	case *doExport:
		err = export.New(st).Export(ctx, *user, os.Stdout)
	case *doRecurring:
		err = runRecurring(ctx, st, *user)
	case *doAccounts:
		err = runAccounts(ctx, st, *user)
	case *rulesFile != "":
		err = runLoadRules(ctx, st, *user, *rulesFile)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "finledger.yaml"
	}
	return filepath.Join(home, ".finledger", "config.yaml")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func fatal(err error) {
	color.Red("error: %v", err)
	os.Exit(1)
}

// resolveAccount finds the named account, creating it when a type was
// given.
func resolveAccount(ctx context.Context, st *store.Store, cfg *config.Config, userID, name, typ string) (*domain.Account, error) {
	if name == "" {
		return nil, fmt.Errorf("-account is required for imports")
	}
	acct, err := st.FindAccountByName(ctx, userID, name)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, domain.ErrNotFound) || typ == "" {
		return nil, err
	}
	acct, err = domain.NewAccount(userID, name, domain.AccountType(typ), cfg.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if err := st.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	color.Green("created account %q (%s)", name, typ)
	return acct, nil
}

func runImport(ctx context.Context, st *store.Store, imp *importer.Importer, cfg *config.Config, userID, accountName, accountType string, format registry.Format, path string) error {
	acct, err := resolveAccount(ctx, st, cfg, userID, accountName, accountType)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	result, err := imp.Import(ctx, userID, acct.ID, format, raw)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	printResult(path, result)
	return nil
}

func runImportDir(ctx context.Context, st *store.Store, imp *importer.Importer, cfg *config.Config, userID, accountName, accountType string, format registry.Format, dir string) error {
	files, err := scanner.Scan(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no importable files under %s", dir)
	}
	acct, err := resolveAccount(ctx, st, cfg, userID, accountName, accountType)
	if err != nil {
		return err
	}
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		result, err := imp.Import(ctx, userID, acct.ID, format, raw)
		if err != nil {
			color.Yellow("%s: %v", path, err)
			continue
		}
		printResult(path, result)
	}
	return nil
}

func printResult(path string, r *importer.BatchResult) {
	color.Green("%s: %d imported", path, r.Imported)
	if r.Duplicates > 0 {
		color.Yellow("  %d duplicates skipped", r.Duplicates)
	}
	if r.Skipped > 0 {
		fmt.Printf("  %d rows skipped\n", r.Skipped)
	}
	for _, re := range r.Errors {
		color.Red("  row %d: %s", re.Row, re.Message)
	}
}

func runPreview(ctx context.Context, imp *importer.Importer, path string, format registry.Format) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	pv, err := imp.Preview(ctx, format, raw, 0)
	if err != nil {
		return err
	}
	fmt.Printf("parser: %s, %d rows\n", pv.Parser, pv.TotalRows)
	if len(pv.Mapping.Columns) > 0 {
		fmt.Println("column mapping:")
		for field, col := range pv.Mapping.Columns {
			fmt.Printf("  %-12s <- %s\n", field, col)
		}
	}
	for _, row := range pv.Rows {
		if row.SkipReason != "" {
			color.Yellow("  line %d: skip (%s) %s", row.Line, row.SkipReason, row.Description)
			continue
		}
		fmt.Printf("  line %d: %s  %-8s %10s  %s\n",
			row.Line, row.Date.Format("2006-01-02"), row.Type, row.Amount.StringFixed(2), row.Description)
	}
	return nil
}

func runRecurring(ctx context.Context, st *store.Store, userID string) error {
	candidates, err := recurrence.New(st).Detect(ctx, userID)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Println("no recurring transactions detected")
		return nil
	}
	for _, c := range candidates {
		fmt.Printf("%-30s %-10s %10s  confidence %.2f  next ~%s\n",
			c.Payee, c.Cadence, c.Amount.StringFixed(2), c.Confidence,
			c.NextExpected.Format("2006-01-02"))
	}
	return nil
}

func runAccounts(ctx context.Context, st *store.Store, userID string) error {
	accounts, err := st.ListAccounts(ctx, userID)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, a := range accounts {
		reported := a.Balance.Add(a.ValuationBaseline)
		fmt.Printf("%-30s %-12s %12s %s\n", a.Name, a.Type, reported.StringFixed(2), a.Currency)
		total = total.Add(reported)
	}
	fmt.Printf("%-30s %-12s %12s\n", "total", "", total.StringFixed(2))
	return nil
}

func runLoadRules(ctx context.Context, st *store.Store, userID, path string) error {
	loaded, err := rules.LoadFile(path)
	if err != nil {
		return err
	}
	for _, r := range loaded {
		r.UserID = userID
		if err := st.SaveRule(ctx, r); err != nil {
			return err
		}
	}
	color.Green("loaded %d rules", len(loaded))
	return nil
}
