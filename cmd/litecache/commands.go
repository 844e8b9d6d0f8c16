package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gophersatwork/litecache"
	"github.com/gophersatwork/litecache/producer"
)

func getCmd() *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			v, err := c.Get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dump {
				spew.Fdump(out, v)
				return nil
			}
			if s, ok := v.(string); ok {
				fmt.Fprintln(out, s)
				return nil
			}
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				spew.Fdump(out, v)
				return nil
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "Dump the value with its Go types")
	return cmd
}

func setCmd() *cobra.Command {
	var (
		ttl    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := litecache.ParseTTL(ttl)
			if err != nil {
				return err
			}

			var value any = args[1]
			if asJSON {
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					return fmt.Errorf("invalid JSON value: %w", err)
				}
			}

			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Set(args[0], value, t)
		},
	}

	cmd.Flags().StringVar(&ttl, "ttl", "default", `TTL, e.g. "90", "10 minutes", "never"`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Decode the value as JSON")
	return cmd
}

func hasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "has <key>",
		Short: "Report whether a fresh value exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ok, err := c.Has(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete one or more values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			all, err := c.DeleteMultiple(args)
			if err != nil {
				return err
			}
			if !all {
				return errors.New("some keys were absent or could not be deleted")
			}
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every value of the pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Clear()
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pool statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			s, err := c.Stats()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Directory:\t%s\n", c.Dir())
			fmt.Fprintf(w, "Pool:\t%s\n", c.Pool())
			fmt.Fprintf(w, "Entries:\t%d\n", s.Entries)
			fmt.Fprintf(w, "Expired:\t%d\n", s.Expired)
			fmt.Fprintf(w, "Total size:\t%s\n", humanize.Bytes(uint64(s.TotalSize)))
			if s.Entries > 0 {
				fmt.Fprintf(w, "Oldest:\t%s\n", s.OldestEntry.Truncate(time.Second))
				fmt.Fprintf(w, "Newest:\t%s\n", s.NewestEntry.Truncate(time.Second))
			}
			return w.Flush()
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the values of the pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			entries, err := c.Entries()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tKIND\tSIZE\tTTL\tCREATED\tSTATUS")
			for _, e := range entries {
				status := "fresh"
				if e.Expired {
					status = "expired"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					truncate(e.Key, 40),
					e.Kind,
					humanize.Bytes(uint64(e.Size)),
					e.TTL,
					humanize.Time(e.CreatedAt),
					status,
				)
			}
			return w.Flush()
		},
	}
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete the expired values of the pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Prune()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired %s\n", n, plural(n, "entry", "entries"))
			return nil
		},
	}
}

func loadCmd() *cobra.Command {
	var (
		format string
		ttl    string
	)

	cmd := &cobra.Command{
		Use:   "load <key> <path>",
		Short: "Cache the content of a file unless a fresh value exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := litecache.ParseTTL(ttl)
			if err != nil {
				return err
			}

			var produce producer.Func
			switch format {
			case "raw":
				produce = producer.File(nil, args[1])
			case "json":
				produce = producer.JSON(nil, args[1])
			case "ini":
				produce = producer.INI(nil, args[1])
			case "yaml":
				produce = producer.YAML(nil, args[1])
			default:
				return fmt.Errorf("invalid format: %s (valid: raw, json, ini, yaml)", format)
			}

			c, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			v, err := c.Cache(args[0], produce, t)
			if err != nil {
				return err
			}
			spew.Fdump(cmd.OutOrStdout(), v)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "raw", "File format: raw, json, ini, yaml")
	cmd.Flags().StringVar(&ttl, "ttl", "default", "TTL for the loaded value")
	return cmd
}
