// btc-wallet is a command-line Bitcoin wallet that keeps its mnemonic in
// an encrypted keystore and talks to an Esplora indexer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/Klingon-tech/btc-transfer/config"
	"github.com/Klingon-tech/btc-transfer/internal/indexer"
	"github.com/Klingon-tech/btc-transfer/internal/log"
	"github.com/Klingon-tech/btc-transfer/internal/transfer"
	"github.com/Klingon-tech/btc-transfer/internal/wallet"
	"github.com/Klingon-tech/btc-transfer/pkg/types"
	"golang.org/x/term"
)

const version = "0.1.0"

// app holds what every command needs, built once from the config.
type app struct {
	cfg    *config.Config
	client *indexer.Client
	engine *transfer.Engine
	ks     *wallet.Keystore
}

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		usage()
		return
	}
	if err != nil {
		fatal("%v", err)
	}
	if flags.Version {
		fmt.Printf("btc-wallet version %s\n", version)
		return
	}
	if len(flags.Args) == 0 {
		usage()
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]
	log.CLI.Debug().Str("command", cmd).Str("network", cfg.Network.String()).Msg("dispatch")

	switch cmd {
	case "wallet":
		a.cmdWallet(cmdArgs)
	case "address":
		a.cmdAddress(cmdArgs)
	case "balance":
		a.cmdBalance(ctx, cmdArgs)
	case "send":
		a.cmdSend(ctx, cmdArgs)
	case "fee":
		a.cmdFee(ctx)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) (*app, error) {
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	client := indexer.New(cfg.IndexerURL(),
		indexer.WithTimeout(cfg.Indexer.Timeout),
		indexer.WithFeeTarget(cfg.Indexer.FeeTarget),
		indexer.WithFallbackFeeRate(cfg.Indexer.FallbackFee),
		indexer.WithLogger(log.Indexer),
	)
	engine := transfer.New(client, cfg.Network,
		transfer.WithLogger(log.Transfer),
		transfer.WithFetchWorkers(cfg.Indexer.FetchWorkers),
	)
	return &app{cfg: cfg, client: client, engine: engine, ks: ks}, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: btc-wallet [global flags] <command> [flags]

%s
Commands:
  wallet create --name <n>        Create a new wallet
  wallet import --name <n> [--mnemonic "..."]
                                  Import a wallet from a BIP-39 mnemonic
  wallet list                     List wallets
  wallet delete --name <n>        Delete a wallet file
  address --wallet <w>            Show the wallet's receive address
  balance [--wallet <w> | <addr>] Show address balance
  send --wallet <w> --to <addr> --amount <btc>
                                  Send a transaction
  fee                             Show indexer fee estimates
`, config.Usage)
}

// ── wallet ──────────────────────────────────────────────────────────────

func (a *app) cmdWallet(args []string) {
	if len(args) < 1 {
		fatal("Usage: btc-wallet wallet <create|import|list|delete> [flags]")
	}

	switch args[0] {
	case "create":
		a.cmdWalletCreate(args[1:])
	case "import":
		a.cmdWalletImport(args[1:])
	case "list":
		a.cmdWalletList()
	case "delete":
		a.cmdWalletDelete(args[1:])
	default:
		fatal("Unknown wallet command: %s\nUsage: btc-wallet wallet <create|import|list|delete> [flags]", args[0])
	}
}

func (a *app) cmdWalletCreate(args []string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: btc-wallet wallet create --name <name>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	addr := a.storeWallet(*name, mnemonic)
	fmt.Printf("\nWallet created: %s\n", *name)
	fmt.Printf("Address: %s\n", addr)
}

func (a *app) cmdWalletImport(args []string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic (prompted when omitted)")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: btc-wallet wallet import --name <name> [--mnemonic \"word1 word2 ...\"]")
	}
	phrase := *mnemonic
	if phrase == "" {
		b, err := readPassword("Enter mnemonic: ")
		if err != nil {
			fatal("read mnemonic: %v", err)
		}
		phrase = string(b)
	}
	if !wallet.ValidateMnemonic(phrase) {
		fatal("invalid mnemonic")
	}

	addr := a.storeWallet(*name, phrase)
	fmt.Printf("\nWallet imported: %s\n", *name)
	fmt.Printf("Address: %s\n", addr)
}

// storeWallet encrypts mnemonic under a new password and returns the
// wallet's receive address.
func (a *app) storeWallet(name, mnemonic string) string {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	addr, err := a.engine.Address(transfer.Session{Mnemonic: mnemonic})
	if err != nil {
		fatal("derive address: %v", err)
	}
	if err := a.ks.Create(name, mnemonic, addr, password, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}
	return addr
}

func (a *app) cmdWalletList() {
	names, err := a.ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(names) == 0 {
		fmt.Printf("No %s wallets found.\n", a.cfg.Network)
		return
	}
	sort.Strings(names)
	fmt.Printf("%-20s %-64s %s\n", "NAME", "ADDRESS", "CREATED")
	for _, name := range names {
		info, err := a.ks.Info(name)
		if err != nil {
			fmt.Printf("%-20s (unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("%-20s %-64s %s\n", info.Name, info.Address, info.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func (a *app) cmdWalletDelete(args []string) {
	fs := flag.NewFlagSet("wallet delete", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: btc-wallet wallet delete --name <name>")
	}
	// Require the password so a typo cannot delete the wrong wallet.
	a.unlock(*name)
	if err := a.ks.Delete(*name); err != nil {
		fatal("delete wallet: %v", err)
	}
	fmt.Printf("Wallet deleted: %s\n", *name)
}

// unlock prompts for the wallet password and returns its session.
func (a *app) unlock(name string) transfer.Session {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	mnemonic, err := a.ks.Load(name, password)
	if err != nil {
		fatal("unlock wallet: %v", err)
	}
	return transfer.Session{Mnemonic: mnemonic}
}

// ── address / balance ───────────────────────────────────────────────────

func (a *app) cmdAddress(args []string) {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: btc-wallet address --wallet <name>")
	}
	info, err := a.ks.Info(*walletName)
	if err != nil {
		fatal("wallet: %v", err)
	}
	fmt.Println(info.Address)
}

func (a *app) cmdBalance(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	var addr string
	switch {
	case *walletName != "":
		info, err := a.ks.Info(*walletName)
		if err != nil {
			fatal("wallet: %v", err)
		}
		addr = info.Address
	case fs.NArg() == 1:
		decoded, err := types.DecodeAddress(fs.Arg(0), a.cfg.Network)
		if err != nil {
			fatal("%v", err)
		}
		addr = decoded.EncodeAddress()
	default:
		fatal("Usage: btc-wallet balance [--wallet <name> | <address>]")
	}

	bal, err := a.client.AddressBalance(ctx, addr)
	if err != nil {
		fatal("balance: %v", err)
	}
	fmt.Printf("Address:     %s\n", addr)
	fmt.Printf("Confirmed:   %s BTC\n", types.FormatAmount(bal.Confirmed))
	if bal.Unconfirmed < 0 {
		fmt.Printf("Unconfirmed: -%s BTC\n", types.FormatAmount(uint64(-bal.Unconfirmed)))
	} else {
		fmt.Printf("Unconfirmed: %s BTC\n", types.FormatAmount(uint64(bal.Unconfirmed)))
	}
	fmt.Printf("Total:       %s BTC\n", types.FormatAmount(bal.Total()))
}

// ── send ────────────────────────────────────────────────────────────────

func (a *app) cmdSend(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	to := fs.String("to", "", "Recipient address")
	amount := fs.String("amount", "", "Amount in BTC (e.g. 0.0015)")
	fs.Parse(args)

	if *walletName == "" || *to == "" || *amount == "" {
		fatal("Usage: btc-wallet send --wallet <name> --to <address> --amount <btc>")
	}

	session := a.unlock(*walletName)
	res, err := a.engine.Transfer(ctx, session, *to, *amount)
	if err != nil {
		var terr *transfer.Error
		if errors.As(err, &terr) {
			fatal("send failed at %s (%s): %v", terr.Stage, terr.Kind, terr.Err)
		}
		fatal("send: %v", err)
	}

	fmt.Printf("Transaction sent!\n")
	fmt.Printf("  TxID:    %s\n", res.TxID)
	fmt.Printf("  From:    %s\n", res.Address)
	fmt.Printf("  Inputs:  %d\n", res.Inputs)
	fmt.Printf("  Fee:     %s BTC\n", types.FormatAmount(res.Fee))
	if res.Change > 0 {
		fmt.Printf("  Change:  %s BTC\n", types.FormatAmount(res.Change))
	}
}

// ── fee ─────────────────────────────────────────────────────────────────

func (a *app) cmdFee(ctx context.Context) {
	estimates, err := a.client.FeeEstimates(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fee estimates unavailable: %v\n", err)
	} else {
		fmt.Printf("%-8s %s\n", "BLOCKS", "SAT/VB")
		for _, e := range estimates {
			fmt.Printf("%-8d %.2f\n", e.Target, e.Rate)
		}
	}
	fmt.Printf("\nRate used for sending: %d sat/vB\n", a.client.FeeRate(ctx))
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
