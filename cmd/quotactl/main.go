package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"media-toolkit/internal/quota"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default data directory path
	defaultDataDir = "./data"
)

// usageStore is the part of quota.Store the commands use.
type usageStore interface {
	Usage(ctx context.Context, clientID string) (quota.Usage, error)
	SetPro(ctx context.Context, clientID string, pro bool) error
	Purge(ctx context.Context) (int64, error)
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	dbPath := filepath.Join(dataDir, "quota.db")

	secret, err := readSecret()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store, err := quota.Open(ctx, dbPath, secret, quota.DefaultLimits())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open quota database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATA_DIR is set correctly (current: %s)\n", dataDir)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	if err := run(ctx, store, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// readSecret returns QUOTA_SECRET, prompting for it on a terminal. Client
// ids are stored hashed with this key, so it must match the server's.
func readSecret() (string, error) {
	if secret := os.Getenv("QUOTA_SECRET"); secret != "" {
		return secret, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("QUOTA_SECRET is not set")
	}
	fmt.Print("Quota secret: ")
	secret, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	if len(secret) == 0 {
		return "", errors.New("empty secret")
	}
	return string(secret), nil
}

var errUsage = errors.New("invalid arguments")

func run(ctx context.Context, store usageStore, args []string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	command := args[0]
	switch command {
	case "usage", "pro", "revoke":
		if len(args) != 2 || strings.TrimSpace(args[1]) == "" {
			printUsage(out)
			return errUsage
		}
	case "purge":
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", sanitizeCommand(command))
	}

	switch command {
	case "usage":
		return showUsage(ctx, store, args[1], out)
	case "pro", "revoke":
		pro := command == "pro"
		if err := store.SetPro(ctx, args[1], pro); err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}
		if pro {
			fmt.Fprintf(out, "Client %s upgraded to pro.\n", args[1])
		} else {
			fmt.Fprintf(out, "Client %s returned to the free tier.\n", args[1])
		}
		return showUsage(ctx, store, args[1], out)
	default:
		n, err := store.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		fmt.Fprintf(out, "Removed %d expired usage records.\n", n)
		return nil
	}
}

func showUsage(ctx context.Context, store usageStore, clientID string, out io.Writer) error {
	u, err := store.Usage(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}
	tier := "free"
	remaining := fmt.Sprint(u.Remaining)
	if u.Pro {
		tier = "pro"
	}
	if u.Remaining < 0 {
		remaining = "unlimited"
	}
	fmt.Fprintf(out, "Client:     %s\n", clientID)
	fmt.Fprintf(out, "Tier:       %s\n", tier)
	fmt.Fprintf(out, "Used:       %d\n", u.Used)
	fmt.Fprintf(out, "Remaining:  %s\n", remaining)
	fmt.Fprintf(out, "Max file:   %d MB\n", u.MaxFileSizeMB)
	if !u.ResetAt.IsZero() {
		fmt.Fprintf(out, "Resets at:  %s\n", u.ResetAt.Format(time.RFC3339))
	}
	return nil
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "media-toolkit quota management")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Usage: quotactl <command> [client-ip]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  usage <client-ip>   - Show a client's allowance")
	fmt.Fprintln(out, "  pro <client-ip>     - Grant unlimited jobs and the larger file limit")
	fmt.Fprintln(out, "  revoke <client-ip>  - Return a client to the free tier")
	fmt.Fprintln(out, "  purge               - Remove expired free-tier records")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Environment:")
	fmt.Fprintf(out, "  DATA_DIR     - Path to data directory (default: %s)\n", defaultDataDir)
	fmt.Fprintln(out, "  QUOTA_SECRET - Key used by the server to hash client ids (prompted if unset)")
}
