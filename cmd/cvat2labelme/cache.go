// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/cvat2labelme/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the conversion cache",
	Long: `Cache operates on the SQLite conversion cache used by serve. The cache
file comes from --cache-path, cache.path in the config file, or the
CVAT2LABELME_CACHE_PATH environment variable.`,
}

// --- clear subcommand ---

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached conversion",
	RunE:  runCacheClear,
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, err := openCacheFile()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(context.Background()); err != nil {
		return err
	}
	fmt.Println("Cache cleared.")
	return nil
}

// --- stats subcommand ---

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached conversions and files",
	RunE:  runCacheStats,
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, err := openCacheFile()
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Printf("Entries: %d\nFiles:   %d\n", st.Entries, st.Files)
	return nil
}

func openCacheFile() (*cache.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Path == "" {
		return nil, fmt.Errorf("no cache file configured: set --cache-path or cache.path")
	}
	return cache.NewSQLiteStore(cfg.Cache)
}

func init() {
	cacheStatsCmd.Flags().Bool("json", false, "output stats as JSON")

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
