package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/config"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "publish-admin",
	Short: "Administrative tooling for the simple-publish service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Content schema registry operations",
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a schema registry YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := simplepublish.LoadRegistry(args[0])
		if err != nil {
			return fmt.Errorf("schema invalid: %w", err)
		}
		var types []string
		for _, pt := range registry.PostTypes() {
			types = append(types, pt.Name)
		}
		var taxonomies []string
		for _, tx := range registry.Taxonomies() {
			taxonomies = append(taxonomies, tx.Name)
		}
		fmt.Printf("schema ok: post types [%s], taxonomies [%s]\n",
			strings.Join(types, ", "), strings.Join(taxonomies, ", "))
		return nil
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database operations",
}

var dbPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Verify database connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseType != "postgres" {
			fmt.Println("database type is memory; nothing to ping")
			return nil
		}
		if err := config.PingPostgres(cfg.DatabaseURL, cfg.DBSchema); err != nil {
			return err
		}
		fmt.Println("database ok")
		return nil
	},
}

var (
	seedLogin    string
	seedPassword string
	seedEmail    string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the initial administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		// Bootstrap goes straight to the repository: the service's
		// capability gate has no user to authorize yet.
		repo, err := cfg.BuildRepository()
		if err != nil {
			return err
		}
		id, err := repo.CreateUser(cmd.Context(), &simplepublish.User{
			Login:       seedLogin,
			Password:    seedPassword,
			Email:       seedEmail,
			Role:        "administrator",
			DisplayName: seedLogin,
		})
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		fmt.Printf("administrator created with id %d\n", id)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	seedAdminCmd.Flags().StringVar(&seedLogin, "login", "admin", "administrator login")
	seedAdminCmd.Flags().StringVar(&seedPassword, "password", "", "administrator password (required)")
	seedAdminCmd.Flags().StringVar(&seedEmail, "email", "", "administrator email (required)")
	_ = seedAdminCmd.MarkFlagRequired("password")
	_ = seedAdminCmd.MarkFlagRequired("email")

	schemaCmd.AddCommand(schemaValidateCmd)
	dbCmd.AddCommand(dbPingCmd)
	rootCmd.AddCommand(schemaCmd, dbCmd, seedAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
