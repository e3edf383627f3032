package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/ali-stylist-agent/agent/memory"
	configx "github.com/tanpawarit/ali-stylist-agent/pkg/config"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect long-term user memory",
	}
	cmd.AddCommand(newMemoryGetCmd(), newMemoryListCmd())
	return cmd
}

func openMemory(cmd *cobra.Command) (memory.Store, error) {
	cfg, err := configx.New[memory.Config]("MEMORY")
	if err != nil {
		return nil, err
	}
	return memory.New(cmd.Context(), *cfg)
}

func newMemoryGetCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the stored conversation summary of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openMemory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := memory.NewSummaryStore(store).ReadSummary(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if summary == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "no summary stored for %s\n", userID)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newMemoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Dump every stored user item as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openMemory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.Search(cmd.Context(), memory.UsersNamespace)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, item := range items {
				if err := enc.Encode(item); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
