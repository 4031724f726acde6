package cli

import (
	"fmt"

	"github.com/boobootoo2/medbilldozer-sub000/internal/cache"
	"github.com/boobootoo2/medbilldozer-sub000/internal/util"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clean the completion cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, dir, err := openCache()
		if err != nil {
			return err
		}
		entries, size, err := c.Usage()
		if err != nil {
			return err
		}
		fmt.Printf("Cache: %s\n", dir)
		fmt.Printf("Entries: %d (%.1f KiB)\n", entries, float64(size)/1024)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := openCache()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d expired entries\n", c.Prune())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached completion",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, dir, err := openCache()
		if err != nil {
			return err
		}
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
		fmt.Printf("✓ Cleared %s\n", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache() (*cache.LayeredCache, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	dir := util.ExpandHome(cfg.Cache.Dir)
	return cache.NewLayeredCache(cfg.Cache.MemoryTTL, dir, cfg.Cache.DiskTTL), dir, nil
}
