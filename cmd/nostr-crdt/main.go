// Command nostr-crdt is a demo shell around the replication engine. Run
// with -relay to host a relay, without to connect a replica to one and
// mutate shared state interactively.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/ergochat/readline"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	nostrcrdt "github.com/kasugamirai/nostr-crdt"
	"github.com/kasugamirai/nostr-crdt/crypto"
	"github.com/kasugamirai/nostr-crdt/relay"
	"github.com/kasugamirai/nostr-crdt/utils"
)

type Config struct {
	RelayAddr   string `env:"NOSTR_CRDT_RELAY" envDefault:"localhost:7447"`
	SecretKey   string `env:"NOSTR_CRDT_SECRET"`
	StoreDir    string `env:"NOSTR_CRDT_STORE"`
	MetricsAddr string `env:"NOSTR_CRDT_METRICS"`
	Debug       bool   `env:"NOSTR_CRDT_DEBUG"`
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("set"),
	readline.PcItem("get"),
	readline.PcItem("incr"),
	readline.PcItem("count"),
	readline.PcItem("add"),
	readline.PcItem("members"),
	readline.PcItem("whoami"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func main() {
	serve := flag.Bool("relay", false, "host a relay instead of joining one")
	flag.Parse()

	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-2)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := utils.NewDefaultLogger(level)

	if *serve {
		runRelay(log, cfg)
		return
	}
	runReplica(log, cfg)
}

func runRelay(log utils.Logger, cfg Config) {
	hub := relay.NewHub(log)
	if cfg.StoreDir != "" {
		store, err := relay.OpenEventLog(cfg.StoreDir)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(-1)
		}
		defer store.Close()
		hub = hub.WithStore(store)
	}
	srv := relay.NewServer(log, hub)
	if err := srv.Listen(cfg.RelayAddr); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	select {} // serve until killed
}

func runReplica(log utils.Logger, cfg Config) {
	var keys *crypto.Keys
	var err error
	if cfg.SecretKey != "" {
		keys, err = crypto.FromHex(cfg.SecretKey)
	} else {
		keys, err = crypto.Generate()
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}

	client, err := relay.Dial(log, cfg.RelayAddr)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	defer client.Close()

	mgr := nostrcrdt.NewManager(nostrcrdt.Options{
		Keys:  keys,
		Relay: client,
		Log:   log,
	})

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := mgr.Metrics().Register(reg); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(-1)
		}
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			_ = http.ListenAndServe(cfg.MetricsAddr, mux)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mgr.Run(ctx) }()

	repl(ctx, mgr, keys)
}

func repl(ctx context.Context, mgr *nostrcrdt.Manager, keys *crypto.Keys) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     "/tmp/nostr-crdt.history",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		args := strings.Split(line, " ")
		cmd := args[0]
		args = args[1:]
		err = nil

		switch cmd {
		case "help":
			fmt.Println("set <key> <value> | get <key> | incr <key> [n] |",
				"count <key> | add <key> <member> | members <key> | whoami | exit")
		case "set":
			if len(args) < 2 {
				err = fmt.Errorf("usage: set <key> <value>")
				break
			}
			var id string
			id, err = mgr.UpdateRegister(ctx, args[0], strings.Join(args[1:], " "))
			if err == nil {
				fmt.Println(id)
			}
		case "get":
			if len(args) != 1 {
				err = fmt.Errorf("usage: get <key>")
				break
			}
			if v, ok := mgr.RegisterValue(args[0]); ok {
				fmt.Println(v)
			} else {
				fmt.Println("(absent)")
			}
		case "incr":
			if len(args) < 1 {
				err = fmt.Errorf("usage: incr <key> [n]")
				break
			}
			amount := uint64(1)
			if len(args) > 1 {
				amount, err = strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					break
				}
			}
			var id string
			id, err = mgr.IncrementCounter(ctx, args[0], amount)
			if err == nil {
				fmt.Println(id)
			}
		case "count":
			if len(args) != 1 {
				err = fmt.Errorf("usage: count <key>")
				break
			}
			if n, ok := mgr.CounterValue(args[0]); ok {
				fmt.Println(n)
			} else {
				fmt.Println("(absent)")
			}
		case "add":
			if len(args) != 2 {
				err = fmt.Errorf("usage: add <key> <member>")
				break
			}
			var id string
			id, err = mgr.AddToSet(ctx, args[0], args[1])
			if err == nil {
				fmt.Println(id)
			}
		case "members":
			if len(args) != 1 {
				err = fmt.Errorf("usage: members <key>")
				break
			}
			if members, ok := mgr.SetMembers(args[0]); ok {
				fmt.Println(strings.Join(members, " "))
			} else {
				fmt.Println("(absent)")
			}
		case "whoami":
			fmt.Println(keys.PublicKey())
		case "exit", "quit":
			return
		default:
			_, _ = fmt.Fprintf(os.Stderr, "command unknown: %s\n", cmd)
		}

		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error executing %s: %s\n", cmd, err.Error())
		}
	}
}
