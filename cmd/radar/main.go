package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/joestump/client-radar/internal/config"
	"github.com/joestump/client-radar/internal/decrypt"
	"github.com/joestump/client-radar/internal/extract"
	"github.com/joestump/client-radar/internal/hub"
	"github.com/joestump/client-radar/internal/logging"
	"github.com/joestump/client-radar/internal/mcpserver"
	"github.com/joestump/client-radar/internal/report"
	"github.com/joestump/client-radar/internal/sampledb"
	"github.com/joestump/client-radar/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "radar:", err)
		stop()
		os.Exit(1)
	}
}

// app carries the configuration and logger resolved before any subcommand runs.
type app struct {
	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: logging.Nop()}

	rootCmd := &cobra.Command{
		Use:           "radar",
		Short:         "Read contacts and timeline posts from decrypted chat-client databases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	f := rootCmd.PersistentFlags()
	f.String("config", "", "path to a YAML config file")
	f.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	f.String("log-format", config.DefaultLogFormat, "log format (console or json)")
	f.String("decryptor-path", "", "explicit path to the decryption helper")
	f.String("decryptor-name", config.DefaultDecryptorName, "executable name searched for the decryption helper")

	// Viper keys use underscores so they match the env var suffix after
	// stripping the RADAR_ prefix.
	bindFlag := func(viperKey string, fs *pflag.FlagSet, flagName string) {
		_ = viper.BindPFlag(viperKey, fs.Lookup(flagName))
	}
	bindFlag("log_level", f, "log-level")
	bindFlag("log_format", f, "log-format")
	bindFlag("decryptor_path", f, "decryptor-path")
	bindFlag("decryptor_name", f, "decryptor-name")

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("RADAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	postsCmd := &cobra.Command{
		Use:   "posts <db>",
		Short: "List timeline posts, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runPosts,
	}
	postsCmd.Flags().Int("limit", config.DefaultPostLimit, "maximum number of posts to return")
	postsCmd.Flags().Bool("parse", false, "parse post payloads as timeline XML")
	postsCmd.Flags().Int("excerpt", 0, "max characters of raw content in markdown and html output")
	bindFlag("post_limit", postsCmd.Flags(), "limit")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
	serveCmd.Flags().String("listen", config.DefaultListenAddr, "HTTP listen address")
	bindFlag("listen_addr", serveCmd.Flags(), "listen")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE:  a.runMCP,
	}
	installCmd := &cobra.Command{
		Use:   "install <client-config>",
		Short: "Register the radar MCP server in an MCP client config file",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runMCPInstall,
	}
	installCmd.Flags().String("name", "radar", "server name under mcpServers")
	mcpCmd.AddCommand(installCmd)

	sampleCmd := &cobra.Command{
		Use:   "sample <path>",
		Short: "Write a sample database for trying the other commands",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runSample,
	}
	sampleCmd.Flags().String("schema", string(sampledb.FeedsV20), "sample layout: "+schemaNames())

	rootCmd.AddCommand(
		postsCmd,
		&cobra.Command{
			Use:   "contacts <db>",
			Short: "List personal contacts",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runContacts,
		},
		&cobra.Command{
			Use:   "inspect <db>",
			Short: "Show tables, row counts and how the timeline schema resolves",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runInspect,
		},
		&cobra.Command{
			Use:   "decrypt [-- helper args...]",
			Short: "Run the decryption helper and print its standard output",
			RunE:  a.runDecrypt,
		},
		serveCmd,
		mcpCmd,
		sampleCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), config.Version)
			},
		},
	)

	for _, c := range []string{"posts", "contacts", "inspect"} {
		sub, _, _ := rootCmd.Find([]string{c})
		sub.Flags().String("format", string(report.JSON), "output format (json, yaml, markdown, html)")
	}

	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	a.cfg = config.Load()
	a.log = logging.New(os.Stderr, a.cfg.LogLevel, logging.Format(a.cfg.LogFormat))
	cmd.SetContext(a.log.WithContext(cmd.Context()))
	return nil
}

func (a *app) engine() *extract.Engine {
	cands, roles := a.cfg.Profile()
	return extract.New(
		extract.WithCandidates(cands),
		extract.WithRoles(roles),
		extract.WithLimit(a.cfg.PostLimit),
		extract.WithLogger(a.log),
	)
}

func renderer(cmd *cobra.Command) (report.Renderer, error) {
	name, _ := cmd.Flags().GetString("format")
	f, err := report.ParseFormat(name)
	if err != nil {
		return report.Renderer{}, err
	}
	return report.Renderer{Format: f}, nil
}

// extractError renders a schema diagnostic to stderr before returning it, so
// the observed tables and columns are visible.
func extractError(cmd *cobra.Command, r report.Renderer, err error) error {
	var diag *extract.Diagnostic
	if errors.As(err, &diag) {
		_ = r.Diagnostic(cmd.ErrOrStderr(), diag)
	}
	return err
}

func (a *app) runPosts(cmd *cobra.Command, args []string) error {
	r, err := renderer(cmd)
	if err != nil {
		return err
	}
	r.Parse, _ = cmd.Flags().GetBool("parse")
	r.Excerpt, _ = cmd.Flags().GetInt("excerpt")

	posts, err := a.engine().ReadPosts(cmd.Context(), args[0])
	if err != nil {
		return extractError(cmd, r, err)
	}
	return r.Posts(cmd.OutOrStdout(), posts)
}

func (a *app) runContacts(cmd *cobra.Command, args []string) error {
	r, err := renderer(cmd)
	if err != nil {
		return err
	}
	contacts, err := a.engine().ReadContacts(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return r.Contacts(cmd.OutOrStdout(), contacts)
}

func (a *app) runInspect(cmd *cobra.Command, args []string) error {
	r, err := renderer(cmd)
	if err != nil {
		return err
	}
	in, err := a.engine().Inspect(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return r.Inspection(cmd.OutOrStdout(), in)
}

func (a *app) runDecrypt(cmd *cobra.Command, args []string) error {
	path, err := decrypt.Locate(a.cfg.DecryptorName, a.cfg.DecryptorPath)
	if err != nil {
		return &decrypt.ProcessError{Name: a.cfg.DecryptorName, Err: err}
	}

	agg := decrypt.NewAggregator(&decrypt.ExecLauncher{Path: path, Args: args},
		decrypt.WithName(a.cfg.DecryptorName),
		decrypt.WithLogger(a.log),
		decrypt.WithRedactor(decrypt.NewRedactionFilter(a.log)),
	)
	res, err := agg.Run(cmd.Context())
	if err != nil {
		return err
	}
	if res.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Output)
	}
	return nil
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	srv := web.New(a.cfg, hub.New(), a.log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
		a.log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("api shutdown")
	}
	return nil
}

func (a *app) runMCP(cmd *cobra.Command, args []string) error {
	return mcpserver.Run(cmd.Context(), a.cfg, a.log)
}

func (a *app) runMCPInstall(cmd *cobra.Command, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate radar executable: %w", err)
	}
	entry := mcpserver.ClientEntry{Command: exe, Args: []string{"mcp"}}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		entry.Args = append(entry.Args, "--config", abs)
	}

	name, _ := cmd.Flags().GetString("name")
	if err := mcpserver.Install(args[0], name, entry); err != nil {
		return err
	}
	a.log.Info().Str("path", args[0]).Str("name", name).Msg("mcp server registered")
	return nil
}

func (a *app) runSample(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("schema")
	if err := sampledb.Create(cmd.Context(), args[0], sampledb.Schema(name)); err != nil {
		return err
	}
	a.log.Info().Str("path", args[0]).Str("schema", name).Msg("sample database written")
	return nil
}

func schemaNames() string {
	var names []string
	for _, s := range sampledb.Schemas() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
