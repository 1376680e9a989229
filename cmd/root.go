// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"railrelay/config"
	"railrelay/internal/core"
	"railrelay/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X railrelay/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// options are flags that steer the CLI itself rather than the relay.
type options struct {
	configPath  string
	envFile     string
	timeoutSec  int
	verbose     int
	quiet       bool
	showVersion bool
	showHelp    bool
}

// Execute parses args and runs the selected railrelay mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stderr)
}

func execute(ctx context.Context, args []string, stderr io.Writer) error {
	// First pass: validate flags and find the config sources.
	var pre options
	fs := newFlagSet(config.Default(), &pre)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if pre.showHelp || len(args) == 0 {
		printUsage(stderr, fs)
		return nil
	}
	if pre.showVersion {
		fmt.Fprintf(stderr, "railrelay %s\n", version)
		return nil
	}

	// Second pass: defaults < file < env < flags.
	cfg := config.Default()
	if err := config.LoadDotEnv(pre.envFile); err != nil {
		return err
	}
	if pre.configPath != "" {
		if err := config.LoadFile(cfg, pre.configPath); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	var opts options
	fs = newFlagSet(cfg, &opts)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.Changed("timeout") {
		cfg.Timeout = time.Duration(opts.timeoutSec) * time.Second
	}
	if fs.Changed("verbose") {
		cfg.Verbose = 1 + opts.verbose
	}
	if opts.quiet {
		cfg.Verbose = 0
	}

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)

	if cfg.DryRun {
		describe(stderr, cfg)
		return nil
	}

	mode, err := core.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// newFlagSet binds every flag to cfg and o.  Flag defaults are the
// current values in cfg, so a second parse only overrides what the
// user typed.
func newFlagSet(cfg *config.Config, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("railrelay", flag.ContinueOnError)
	fs.SortFlags = false

	// ── mode & connection ────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Run the relay server")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Port to listen on (with -l)")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only host, no DNS resolution")
	fs.IntVarP(&o.timeoutSec, "timeout", "w", int(cfg.Timeout/time.Second), "Connect timeout in seconds")

	// ── server ───────────────────────────────────────────────────
	fs.IntVar(&cfg.MaxClients, "max-clients", cfg.MaxClients, "Concurrent clients accepted (0 = unbounded)")
	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "Bytes per receive")
	fs.BoolVar(&cfg.KeepStale, "keep-stale", cfg.KeepStale, "Keep names and keys after a client disconnects")
	fs.DurationVar(&cfg.GracePeriod, "grace-period", cfg.GracePeriod, "Shutdown wait for open connections")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.StringVar(&cfg.MetricsPath, "metrics-path", cfg.MetricsPath, "HTTP path for metrics")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Also publish decoded messages to Redis")
	fs.StringVar(&cfg.RedisChannel, "redis-channel", cfg.RedisChannel, "Redis channel for decoded messages")

	// ── client ───────────────────────────────────────────────────
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Name to join with (prompted when empty)")
	fs.IntVar(&cfg.DialRetries, "retries", cfg.DialRetries, "Connection attempts before giving up")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach the server via SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── configuration & output ───────────────────────────────────
	fs.StringVar(&o.configPath, "config", "", "YAML or TOML config file")
	fs.StringVar(&o.envFile, "env-file", ".env", "dotenv file with RAILRELAY_* variables")
	fs.CountVarP(&o.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&o.quiet, "quiet", "q", false, "Only print errors")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Validate configuration and exit")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&o.showHelp, "help", "h", false, "Show this help")

	return fs
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		switch len(remaining) {
		case 0: // railrelay -l -p PORT
		case 1:
			cfg.Host = remaining[0]
		default:
			return fmt.Errorf("too many arguments for listen mode")
		}
		return nil
	}

	switch len(remaining) {
	case 0:
		if cfg.Host == "" {
			return fmt.Errorf("server host required (use --help for usage)")
		}
		return nil
	case 1:
		cfg.Host = remaining[0]
		if cfg.Port == 0 {
			cfg.Port = config.DefaultPort
		}
		return nil
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
		return nil
	default:
		return fmt.Errorf("too many arguments: expected <host> [port]")
	}
}

func describe(w io.Writer, cfg *config.Config) {
	if cfg.Listen {
		host := cfg.Host
		if host == "" {
			host = "<this host>"
		}
		fmt.Fprintf(w, "listen on %s (max clients %d, buffer %d bytes)\n",
			util.FormatAddr(host, cfg.LocalPort), cfg.MaxClients, cfg.BufferSize)
		if cfg.MetricsAddr != "" {
			fmt.Fprintf(w, "metrics on http://%s%s\n", cfg.MetricsAddr, cfg.MetricsPath)
		}
		if cfg.RedisURL != "" {
			fmt.Fprintf(w, "publish to redis channel %s\n", cfg.RedisChannel)
		}
		return
	}
	fmt.Fprintf(w, "connect to %s (%d attempt(s))\n", util.FormatAddr(cfg.Host, cfg.Port), cfg.DialRetries)
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "via SSH gateway %s@%s\n", cfg.TunnelUser, util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `railrelay %s

Relays rail-fence enciphered messages from clients to a server that
deciphers and prints them.

Usage:
  railrelay -l [-p port] [bind-host] [options]      Server
  railrelay [options] <host> [port]                 Client
  railrelay -T user@gateway <host> [port]           Client via SSH

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprint(w, `
Examples:
  railrelay -l                                      Listen on port 4000
  railrelay -l -p 5000 --metrics-addr :9100         With Prometheus metrics
  railrelay --name alice 192.168.1.20               Join as alice
  railrelay -T admin@bastion --name bob 10.0.0.5    Through an SSH gateway
`)
}
