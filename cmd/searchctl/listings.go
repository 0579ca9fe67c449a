package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nichesupply/listingsearch/pkg/client"
)

var indexCmd = &cobra.Command{
	Use:   "index [file]",
	Short: "Index one listing from a JSON file or stdin",
	Long: `Reads a single listing object {"id","text","metadata"} from the
given file, or from stdin when no file (or "-") is given, and upserts it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove one listing from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [file]",
	Short: "Replace the whole index from a JSON-lines dump",
	Long: `Reads one listing object {"id","text","metadata"} per line from
the given file, or from stdin when no file (or "-") is given, and
atomically replaces the index with them. An empty dump clears the index.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(rebuildCmd)
}

func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(args[0])
}

func runIndex(cmd *cobra.Command, args []string) error {
	in, err := openInput(args)
	if err != nil {
		return err
	}
	defer in.Close()

	var l client.Listing
	if err := json.NewDecoder(in).Decode(&l); err != nil {
		return fmt.Errorf("decode listing: %w", err)
	}

	c, err := newSearchClient()
	if err != nil {
		return err
	}
	if err := c.Index(context.Background(), l); err != nil {
		return err
	}
	fmt.Printf("Indexed %s\n", l.ID)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	c, err := newSearchClient()
	if err != nil {
		return err
	}
	if err := c.Remove(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	in, err := openInput(args)
	if err != nil {
		return err
	}
	defer in.Close()

	listings := []client.Listing{}
	sc := bufio.NewScanner(in)
	// Listing text can be long; the default 64K line limit is too tight.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var l client.Listing
		if err := json.Unmarshal(raw, &l); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		listings = append(listings, l)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read dump: %w", err)
	}

	c, err := newSearchClient()
	if err != nil {
		return err
	}
	n, err := c.Rebuild(context.Background(), listings)
	if err != nil {
		return err
	}
	fmt.Printf("Rebuilt index with %d listings\n", n)
	return nil
}
