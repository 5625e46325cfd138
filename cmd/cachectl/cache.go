package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"encounter-recs/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status <category>",
	Short: "Show cached keywords for a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var clearCmd = &cobra.Command{
	Use:   "clear <category|all>",
	Short: "Delete cached entries for a category or for every category",
	Args:  cobra.ExactArgs(1),
	RunE:  runClear,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired rows from the postgres cache table",
	Args:  cobra.NoArgs,
	RunE:  runPurge,
}

func init() {
	rootCmd.AddCommand(statusCmd, clearCmd, purgeCmd)
	statusCmd.Flags().Bool("json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	category, ok := domain.ParseCategory(args[0])
	if !ok {
		return fmt.Errorf("invalid category %q", args[0])
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cache, closeFn, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	status, err := cache.Status(ctx, category)
	if err != nil {
		return err
	}
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	return printStatus(cmd.OutOrStdout(), status)
}

func printStatus(w io.Writer, status domain.CacheStatus) error {
	fmt.Fprintf(w, "category: %s  backend: %s  entries: %d\n\n", status.Category, status.Backend, len(status.Entries))

	rows := make([][]string, 0, len(status.Entries))
	for _, e := range status.Entries {
		rows = append(rows, []string{
			e.Keyword,
			strconv.Itoa(e.ProductCount),
			strconv.Itoa(e.ImageCount),
			entryState(e),
			time.Until(e.ExpiresAt).Round(time.Second).String(),
		})
	}

	table := newTable(w)
	table.Header([]string{"Keyword", "Products", "Images", "State", "Expires In"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func entryState(e domain.CacheEntryStatus) string {
	switch {
	case e.Corrupt:
		return "corrupt"
	case e.Expired:
		return "expired"
	default:
		return "fresh"
	}
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cache, closeFn, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := cache.Clear(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries (%s)\n", n, args[0])
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	if !strings.EqualFold(strings.TrimSpace(cfg.CacheBackend), "postgres") {
		return errors.New("purge only applies to the postgres backend")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	store, pool, err := openPgStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	n, err := store.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired rows\n", n)
	return nil
}
