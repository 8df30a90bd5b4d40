package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/metaproph3t/futarchy-ui/internal/app"
	"github.com/metaproph3t/futarchy-ui/internal/config"
	"github.com/metaproph3t/futarchy-ui/internal/market"
	"github.com/metaproph3t/futarchy-ui/internal/swapengine"
	"github.com/sirupsen/logrus"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "simulate", "simulate | execute | deposit | proposals | vault | events")
	proposal := flag.String("proposal", "", "proposal address (simulate, execute)")
	branch := flag.String("branch", "pass", "pass | fail (simulate, execute)")
	inTok := flag.String("in", "USDC", "input token symbol (simulate, execute)")
	outTok := flag.String("out", "META", "output token symbol (simulate, execute)")
	amt := flag.String("amt", "", "amount in display units, e.g. 0.1 (simulate, execute, deposit)")
	vaultAddr := flag.String("vault", "", "conditional vault address (deposit, vault)")
	symbol := flag.String("symbol", "", "underlying symbol (deposit, vault); defaults to the vault mint's asset")
	walletAddr := flag.String("wallet", "", "wallet to act for; defaults to WALLET_PRIVATE_KEY's address")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg := config.Load()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Println("failed to init:", err)
		os.Exit(1)
	}
	defer a.Close()

	wallet := mustKeyOrZero("wallet", *walletAddr)
	if wallet.IsZero() {
		wallet = a.DefaultWallet()
	}
	sym := *symbol

	switch *mode {
	case "simulate", "execute":
		b, err := market.ParseBranch(*branch)
		if err != nil {
			exit(err)
		}
		intent := swapengine.SwapIntent{
			Proposal: mustKey("proposal", *proposal),
			Branch:   b,
			TokenIn:  *inTok,
			TokenOut: *outTok,
			Amount:   *amt,
			Wallet:   wallet,
		}
		if *mode == "simulate" {
			q, err := a.Swaps.SimulateSwap(ctx, intent)
			if err != nil {
				exit(err)
			}
			if q.Insufficient {
				fmt.Printf("insufficient liquidity market=%s error=%q\n", q.Market, q.SimulationError)
				return
			}
			fmt.Printf("market=%s expected_out=%.2f %s (raw %d) max_base_lots=%d max_quote_lots=%d creates=%d cu=%d\n",
				q.Market, q.ExpectedOut, q.TokenOut, q.ExpectedOutRaw,
				q.Order.MaxBaseLots, q.Order.MaxQuoteLotsIncludingFees, len(q.Creates), q.UnitsConsumed)
			return
		}
		res, err := a.Swaps.ExecuteSwap(ctx, intent)
		if err != nil {
			exit(err)
		}
		fmt.Printf("success=%v sig=%s duration=%s\n", res.Success, res.Signature, res.Duration)

	case "deposit":
		res, err := a.Deposits.DepositConditional(ctx, mustKey("vault", *vaultAddr), wallet, *amt, sym)
		if err != nil {
			exit(err)
		}
		fmt.Printf("state=%s sig=%s symbol=%s amount_raw=%d pass=%d fail=%d duration=%s\n",
			res.State, res.Signature, res.Symbol, res.AmountRaw, res.Vault.Pass.Balance, res.Vault.Fail.Balance, res.Duration)

	case "proposals":
		list, err := a.Proposals.List(ctx)
		if err != nil {
			exit(err)
		}
		for _, p := range list {
			fmt.Printf("#%d %s state=%s pass=%s fail=%s %s\n",
				p.Number, p.Address, p.State, p.OpenbookTwapPassMarket, p.OpenbookTwapFailMarket, p.DescriptionURL)
		}

	case "vault":
		view, err := a.Vaults.ResolveVault(ctx, mustKey("vault", *vaultAddr), wallet)
		if err != nil {
			exit(err)
		}
		sym, err := view.WithDisplay(a.Units, sym)
		if err != nil {
			exit(err)
		}
		fmt.Printf("vault=%s status=%s\n", view.Address, view.Vault.Status)
		for i, p := range view.Positions() {
			name := []string{"underlying", "pass", "fail"}[i]
			if p.NeedsCreation {
				fmt.Printf("  %-10s %s (not created)\n", name, p.Account)
				continue
			}
			fmt.Printf("  %-10s %s %.2f %s\n", name, p.Account, *p.Display, sym)
		}

	case "events":
		if a.Cache == nil {
			exit(fmt.Errorf("events need REDIS_ADDR"))
		}
		events, err := a.Cache.Subscribe(ctx)
		if err != nil {
			exit(err)
		}
		fmt.Println("listening for executed deposits and swaps, Ctrl+C to stop")
		for ev := range events {
			fmt.Printf("%s %s success=%v sig=%s wallet=%s subject=%s %s %s->%s err=%q\n",
				ev.ExecutedAt.Format("15:04:05"), ev.Kind, ev.Success, ev.Signature, ev.Wallet,
				ev.Subject, ev.Amount, ev.TokenIn, ev.TokenOut, ev.Error)
		}

	default:
		fmt.Println("unknown -mode:", *mode)
		os.Exit(2)
	}
}

func mustKey(name, raw string) solana.PublicKey {
	if raw == "" {
		fmt.Printf("missing -%s\n", name)
		os.Exit(2)
	}
	return mustKeyOrZero(name, raw)
}

func mustKeyOrZero(name, raw string) solana.PublicKey {
	if raw == "" {
		return solana.PublicKey{}
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		fmt.Printf("invalid -%s: %v\n", name, err)
		os.Exit(2)
	}
	return pk
}

func exit(err error) {
	fmt.Println("error:", err)
	os.Exit(1)
}
