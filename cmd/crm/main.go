package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/jrsteele09/go-crm-client/account"
	"github.com/jrsteele09/go-crm-client/apiclient"
	"github.com/jrsteele09/go-crm-client/authz"
	"github.com/jrsteele09/go-crm-client/internal/config"
	"github.com/jrsteele09/go-crm-client/internal/logging"
	"github.com/jrsteele09/go-crm-client/session"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	flags := pflag.NewFlagSet("crm", pflag.ContinueOnError)
	apiURL := flags.String("api-url", "", "CRM API base URL (overrides CRM_API_URL)")
	sessionFile := flags.String("session-file", "", "session snapshot path (overrides CRM_SESSION_FILE)")
	logLevel := flags.String("log-level", "", "log level (overrides CRM_LOG_LEVEL)")
	flags.Usage = usage
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if flags.NArg() == 0 {
		usage()
		return nil
	}

	cfg, err := config.New()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	level := cfg.LogLevel()
	if *logLevel != "" {
		level = *logLevel
	}
	log := logging.NewConsole(level, os.Stderr)

	snapshotPath := cfg.SessionFile()
	if *sessionFile != "" {
		snapshotPath = *sessionFile
	}
	storeOptions := []session.FileStoreOption{session.WithLogger(log)}
	if cfg.SessionKeyFile() != "" {
		storeOptions = append(storeOptions, session.WithSealKeyFile(cfg.SessionKeyFile()))
	}
	store, err := session.NewFileStore(snapshotPath, storeOptions...)
	if err != nil {
		return errors.Wrap(err, "open session store")
	}

	baseURL := cfg.BaseURL()
	if *apiURL != "" {
		baseURL = *apiURL
	}
	api := apiclient.New(baseURL, store,
		apiclient.WithLogger(log),
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
	)

	accounts, err := account.New(api, store, account.WithLogger(log))
	if err != nil {
		return errors.Wrap(err, "build account service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := &runtime{
		log:      log,
		store:    store,
		api:      api,
		policy:   authz.New(store),
		accounts: accounts,
	}
	return rt.dispatch(ctx, flags.Arg(0), flags.Args()[1:])
}

func usage() {
	figure.NewFigure("CRM", "cybermedium", true).Print()
	fmt.Println()
	fmt.Print(`Usage: crm [flags] <command> [args]

Commands:
  login      --username <u> --password <p>
  logout
  register   --username <u> --email <e> --password <p> --confirm <p> [--admin]
  whoami
  dashboard
  customers  list [--page N] [--search TEXT] | create | delete --id N --confirm
  leads      list [--page N] [--search TEXT] [--status S] | create | delete --id N --confirm
  tasks      list [--page N] [--completed true|false] | create | complete --id N | delete --id N --confirm

Flags:
  --api-url, --session-file, --log-level
`)
}
