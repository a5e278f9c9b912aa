// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the cvat2labelme CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/cvat2labelme/internal/logger"
	"github.com/pdiddy/cvat2labelme/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the cvat2labelme CLI.
var rootCmd = &cobra.Command{
	Use:   "cvat2labelme",
	Short: "Convert CVAT XML polygon annotations to LabelMe JSON",
	Long: `cvat2labelme converts a CVAT XML annotation export into one LabelMe JSON
file per image. Polygons become LabelMe polygon shapes; unlabeled polygons are
named object_0000, object_0001, and so on.

Use convert for files on disk and serve for the browser upload form that
returns the JSON files as a ZIP archive.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./cvat2labelme.yaml or ~/.config/cvat2labelme/cvat2labelme.yaml)")
	rootCmd.PersistentFlags().String("cache-path", "", "SQLite file for cached conversions (empty keeps the cache in memory)")
	rootCmd.PersistentFlags().String("log-dir", "", "directory for info.log, warning.log and error.log")

	viper.BindPFlag("cache.path", rootCmd.PersistentFlags().Lookup("cache-path"))
	viper.BindPFlag("log.dir", rootCmd.PersistentFlags().Lookup("log-dir"))

	setDefaults(types.DefaultConfig())
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("cvat2labelme")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "cvat2labelme"))
		}
	}

	viper.SetEnvPrefix("CVAT2LABELME")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key so that environment
// variables are seen by Unmarshal.
func setDefaults(cfg types.Config) {
	viper.SetDefault("convert.output_dir", cfg.Convert.OutputDir)
	viper.SetDefault("convert.images_dir", cfg.Convert.ImagesDir)
	viper.SetDefault("serve.addr", cfg.Serve.Addr)
	viper.SetDefault("serve.max_upload_bytes", cfg.Serve.MaxUploadBytes)
	viper.SetDefault("serve.session_ttl", cfg.Serve.SessionTTL)
	viper.SetDefault("serve.download_name", cfg.Serve.DownloadName)
	viper.SetDefault("cache.path", cfg.Cache.Path)
	viper.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)
	viper.SetDefault("log.dir", cfg.Log.Dir)
}

// loadConfig merges defaults, the config file, the environment and flags.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns the console logger, teed to cfg.Dir when set.
func newLogger(cfg types.LogConfig) (*logger.Logger, error) {
	if cfg.Dir == "" {
		return logger.New(os.Stderr, os.Stderr), nil
	}
	return logger.NewWithDir(os.Stderr, os.Stderr, cfg.Dir)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
