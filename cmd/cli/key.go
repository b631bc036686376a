package cli

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/turtacn/credkit/pkg/constants"
	"github.com/turtacn/credkit/pkg/keystore"
	"github.com/turtacn/credkit/pkg/utils"
)

func (a *app) keyCommand() *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage key entries in the configured store",
	}
	keyCmd.AddCommand(
		a.keySaveCommand(),
		a.keyUpdateCommand(),
		a.keyLoadCommand(),
		a.keyExistsCommand(),
		a.keyRemoveCommand(),
		a.keyListCommand(),
		a.keyClearCommand(),
	)
	return keyCmd
}

func (a *app) keySaveCommand() *cobra.Command {
	var (
		name      string
		valueFile string
		meta      []string
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create a new entry",
		Args:  cobra.NoArgs,
		RunE: a.traced(func(cmd *cobra.Command, args []string) error {
			value, err := readValue(cmd, valueFile)
			if err != nil {
				return err
			}
			m, err := utils.ParseKeyValues(meta)
			if err != nil {
				return err
			}
			store, err := a.keystore(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := store.Save(cmd.Context(), keystore.SaveParams{Name: name, Value: value, Meta: m})
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), entry, false)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "entry name")
	cmd.Flags().StringVar(&valueFile, "value-file", "", `file holding the private key bytes ("-" for stdin)`)
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("value-file")
	return cmd
}

func (a *app) keyUpdateCommand() *cobra.Command {
	var (
		name      string
		valueFile string
		meta      []string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace the value and/or metadata of an entry",
		Args:  cobra.NoArgs,
		RunE: a.traced(func(cmd *cobra.Command, args []string) error {
			params := keystore.UpdateParams{Name: name}
			if valueFile != "" {
				value, err := readValue(cmd, valueFile)
				if err != nil {
					return err
				}
				params.Value = value
			}
			if len(meta) > 0 {
				m, err := utils.ParseKeyValues(meta)
				if err != nil {
					return err
				}
				params.Meta = m
			}
			store, err := a.keystore(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := store.Update(cmd.Context(), params)
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), entry, false)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "entry name")
	cmd.Flags().StringVar(&valueFile, "value-file", "", `file holding the new private key bytes ("-" for stdin)`)
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "replacement metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) keyLoadCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "load NAME",
		Short: "Show an entry",
		Args:  cobra.ExactArgs(1),
		RunE: a.traced(func(cmd *cobra.Command, args []string) error {
			store, err := a.keystore(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no entry named %q", args[0])
			}
			if out != "" {
				if err := os.WriteFile(out, entry.Value, constants.StorageFilePermissions); err != nil {
					return err
				}
				printEntry(cmd.OutOrStdout(), entry, false)
				return nil
			}
			printEntry(cmd.OutOrStdout(), entry, true)
			return nil
		}),
	}
	cmd.Flags().StringVar(&out, "out", "", "write the raw value to this file instead of printing it")
	return cmd
}

func (a *app) keyExistsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exists NAME",
		Short: "Report whether an entry is stored",
		Args:  cobra.ExactArgs(1),
		RunE: a.traced(func(cmd *cobra.Command, args []string) error {
			store, err := a.keystore(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := store.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		}),
	}
}

func (a *app) keyRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: a.traced(func(cmd *cobra.Command, args []string) error {
			store, err := a.keystore(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := store.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "no entry named %s\n", args[0])
			}
			return nil
		}),
	}
}

func (a *app) keyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entries",
		Args:  cobra.NoArgs,
		RunE: a.traced(func(cmd *cobra.Command, args []string) error {
			store, err := a.keystore(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tMETA")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
					e.Name, len(e.Value), utils.FormatTimestamp(e.ModificationDate), utils.FormatKeyValues(e.Meta))
			}
			return tw.Flush()
		}),
	}
}

func (a *app) keyClearCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry in the store",
		Args:  cobra.NoArgs,
		RunE: a.traced(func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the store without --yes")
			}
			store, err := a.keystore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of all entries")
	return cmd
}

func readValue(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printEntry(w io.Writer, e *keystore.KeyEntry, withValue bool) {
	fmt.Fprintf(w, "name:     %s\n", e.Name)
	if withValue {
		fmt.Fprintf(w, "value:    %s\n", base64.StdEncoding.EncodeToString(e.Value))
	}
	fmt.Fprintf(w, "size:     %d\n", len(e.Value))
	fmt.Fprintf(w, "meta:     %s\n", utils.FormatKeyValues(e.Meta))
	fmt.Fprintf(w, "created:  %s\n", utils.FormatTimestamp(e.CreationDate))
	fmt.Fprintf(w, "modified: %s\n", utils.FormatTimestamp(e.ModificationDate))
}
