package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/answerdesk/internal/adapter/postgres"
	"github.com/Strob0t/answerdesk/internal/adapter/yamlkb"
	"github.com/Strob0t/answerdesk/internal/config"
	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
)

// runAdmin dispatches admin subcommands (migrate, kb-import, kb-list, approvals).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "kb-import":
		return runAdminKBImport(args[1:])
	case "kb-list":
		return runAdminKBList(args[1:])
	case "approvals":
		return runAdminApprovals(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: answerdesk admin <command> [options]

Commands:
  migrate      Apply, roll back or inspect database migrations
  kb-import    Load a YAML knowledge base into PostgreSQL
  kb-list      List knowledge base entries
  approvals    Show the archived decisions for an answer
  help         Show this help message

Examples:
  answerdesk admin migrate
  answerdesk admin migrate --down 1
  answerdesk admin migrate --version
  answerdesk admin kb-import --file knowledge.yaml --replace
  answerdesk admin kb-list --json
  answerdesk admin approvals --answer-id 3f1c...
`)
}

func loadAdminConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openAdminStore(ctx context.Context, cfg *config.Config) (*postgres.Store, func(), error) {
	if cfg.Postgres.DSN == "" {
		return nil, nil, errors.New("postgres.dsn is not configured")
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return postgres.NewStore(pool), pool.Close, nil
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	down := fs.Int("down", 0, "roll back this many migrations")
	showVersion := fs.Bool("version", false, "print the current migration version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is not configured")
	}

	ctx := context.Background()
	m, err := postgres.NewMigrator(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch {
	case *showVersion:
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case *down > 0:
		n, err := m.Down(ctx, *down)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", n)
	default:
		n, err := m.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Applied %d migration(s)\n", n)
	}
	return nil
}

func runAdminKBImport(args []string) error {
	fs := flag.NewFlagSet("kb-import", flag.ContinueOnError)
	file := fs.String("file", "", "YAML knowledge base file (required)")
	replace := fs.Bool("replace", false, "replace all stored entries instead of upserting")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	entries, err := yamlkb.ReadFile(*file)
	if err != nil {
		return err
	}

	if *replace && !*yes {
		ok, err := confirmTerminal(fmt.Sprintf("Replace the stored knowledge base with %d entries from %s?", len(entries), *file))
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("aborted")
		}
	}

	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, cleanup, err := openAdminStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return importEntries(ctx, store, entries, *replace, os.Stderr)
}

// kbWriter is the part of postgres.Store that kb-import writes through.
type kbWriter interface {
	ReplaceEntries(ctx context.Context, entries []knowledge.Entry) error
	UpsertEntries(ctx context.Context, entries []knowledge.Entry) error
}

func importEntries(ctx context.Context, store kbWriter, entries []knowledge.Entry, replace bool, log io.Writer) error {
	var err error
	if replace {
		err = store.ReplaceEntries(ctx, entries)
	} else {
		err = store.UpsertEntries(ctx, entries)
	}
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	_, _ = fmt.Fprintf(log, "Imported %d entries\n", len(entries))
	return nil
}

func runAdminKBList(args []string) error {
	fs := flag.NewFlagSet("kb-list", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print JSON (default when stdout is not a terminal)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	var entries []knowledge.Entry
	if cfg.Knowledge.Source == "postgres" {
		store, cleanup, err := openAdminStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		entries, err = store.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
	} else {
		entries, err = yamlkb.ReadFile(cfg.Knowledge.Path)
		if err != nil {
			return err
		}
	}

	return writeKBList(os.Stdout, entries, *asJSON || !stdoutIsTerminal())
}

func writeKBList(out io.Writer, entries []knowledge.Entry, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []knowledge.Entry{}
		}
		return printJSON(out, entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No entries found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUESTION\tKEYWORDS")
	for i := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			entries[i].ID, entries[i].QuestionText, strings.Join(entries[i].Keywords, ","))
	}
	return w.Flush()
}

func runAdminApprovals(args []string) error {
	fs := flag.NewFlagSet("approvals", flag.ContinueOnError)
	answerID := fs.String("answer-id", "", "answer ID (required)")
	asJSON := fs.Bool("json", false, "print JSON (default when stdout is not a terminal)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *answerID == "" {
		return fmt.Errorf("--answer-id is required")
	}

	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, cleanup, err := openAdminStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := store.ListByAnswer(ctx, *answerID)
	if err != nil {
		return fmt.Errorf("list decisions: %w", err)
	}

	if *asJSON || !stdoutIsTerminal() {
		return printJSON(os.Stdout, entries)
	}
	if len(entries) == 0 {
		fmt.Println("No decisions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATE\tDECIDED_BY\tRESPONSE_MS\tSOURCE\tORIGIN\tAT")
	for i := range entries {
		e := &entries[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.State, e.DecidedBy, e.ResponseTimeMs, e.Source, e.OriginRef, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec // fd fits in int
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// confirmTerminal asks a yes/no question on the terminal. Without a terminal
// on stdin it refuses.
func confirmTerminal(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
		return false, errors.New("confirmation required: pass --yes when not running in a terminal")
	}
	return confirm(os.Stdin, os.Stderr, question)
}

// confirm reads one answer line from in. Anything but y or yes, including
// end of input, is no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	_, _ = fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
