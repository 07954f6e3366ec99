// Package core provides the core command and server functionality for moliord.
package core

import (
	"fmt"
	"os"

	"github.com/bitswalk/molior/src/common/cli"
	"github.com/bitswalk/molior/src/common/logs"
	"github.com/bitswalk/molior/src/common/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Global logger instance
	log *logs.Logger

	// Configuration file path
	cfgFile string
)

// Linker variables - these are set via ldflags at build time
// They must be initialized as empty strings or literals for ldflags to work
var (
	Version        = "dev"
	ReleaseName    = "Phoenix"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "moliord",
	Short: "Molior build orchestrator daemon",
	Long: `moliord is the build pipeline engine for the Molior Debian package
build orchestrator.

It drives source repositories through clone, checkout, source-package,
binary-package and publish stages across remote build nodes, recording the
full lifecycle in a relational store. It exposes no HTTP surface itself;
that is the job of a separate admin API process sharing the same database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// Execute runs the root command
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.ReleaseName = ReleaseName
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "/etc/moliord/moliord.yaml")

	cli.RegisterLogFlags(rootCmd)

	// Database flags
	rootCmd.Flags().String("db-path", "/var/lib/molior/molior.db", "Path to the sqlite3 database file")

	// Storage flags
	rootCmd.Flags().String("storage-type", "local", "Storage backend type: 'local' or 's3'")
	rootCmd.Flags().String("storage-path", "/var/lib/molior", "Local storage base path (for local backend)")

	// Git collaborator flags
	rootCmd.Flags().Bool("git-insecure-tls", false, "Disable TLS verification for git clone/fetch")
	rootCmd.Flags().String("buildlog-path", "/var/lib/molior/buildout", "Base path for per-build log files")

	// Engine flags
	rootCmd.Flags().Int("max-parallel-chroots", 0, "Maximum concurrent buildenv constructions (0 disables the cap)")
	rootCmd.Flags().Duration("schedule-interval", 0, "Interval between automatic scheduler passes (0 disables the periodic trigger)")
	rootCmd.Flags().String("timezone", "UTC", "Local timezone for build timestamps")

	// Notification flags
	rootCmd.Flags().String("webhook-url", "", "Outbound webhook URL for build lifecycle hooks (empty disables)")

	// S3 storage flags
	rootCmd.Flags().String("s3-endpoint", "", "S3-compatible storage endpoint URL")
	rootCmd.Flags().String("s3-region", "us-east-1", "S3 region")
	rootCmd.Flags().String("s3-bucket", "molior-artifacts", "S3 bucket for build artifacts")
	rootCmd.Flags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.Flags().String("s3-secret-key", "", "S3 secret access key")

	_ = viper.BindPFlag("database.path", rootCmd.Flags().Lookup("db-path"))
	_ = viper.BindPFlag("storage.type", rootCmd.Flags().Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local.path", rootCmd.Flags().Lookup("storage-path"))
	_ = viper.BindPFlag("git.insecure_tls", rootCmd.Flags().Lookup("git-insecure-tls"))
	_ = viper.BindPFlag("buildlog.path", rootCmd.Flags().Lookup("buildlog-path"))
	_ = viper.BindPFlag("engine.max_parallel_chroots", rootCmd.Flags().Lookup("max-parallel-chroots"))
	_ = viper.BindPFlag("engine.schedule_interval", rootCmd.Flags().Lookup("schedule-interval"))
	_ = viper.BindPFlag("engine.timezone", rootCmd.Flags().Lookup("timezone"))
	_ = viper.BindPFlag("notify.webhook_url", rootCmd.Flags().Lookup("webhook-url"))
	_ = viper.BindPFlag("storage.s3.endpoint", rootCmd.Flags().Lookup("s3-endpoint"))
	_ = viper.BindPFlag("storage.s3.region", rootCmd.Flags().Lookup("s3-region"))
	_ = viper.BindPFlag("storage.s3.bucket", rootCmd.Flags().Lookup("s3-bucket"))
	_ = viper.BindPFlag("storage.s3.access_key", rootCmd.Flags().Lookup("s3-access-key"))
	_ = viper.BindPFlag("storage.s3.secret_key", rootCmd.Flags().Lookup("s3-secret-key"))

	viper.SetDefault("database.path", "/var/lib/molior/molior.db")
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.path", "/var/lib/molior")
	viper.SetDefault("git.insecure_tls", false)
	viper.SetDefault("buildlog.path", "/var/lib/molior/buildout")
	viper.SetDefault("engine.max_parallel_chroots", 0)
	viper.SetDefault("engine.schedule_interval", 0)
	viper.SetDefault("engine.timezone", "UTC")
	viper.SetDefault("notify.webhook_url", "")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.bucket", "molior-artifacts")
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	opts := cli.ConfigOptions{
		ConfigName: "moliord",
		ConfigType: "yaml",
		EnvPrefix:  "MOLIORD",
		SearchPaths: []string{
			"/etc/moliord",
			"/opt/moliord",
			"~/.moliord",
		},
	}
	opts.ConfigFile = cfgFile

	if err := cli.InitConfig(opts); err != nil {
		return err
	}

	log = cli.InitLogger("moliord")

	return nil
}
