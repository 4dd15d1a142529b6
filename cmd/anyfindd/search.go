package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anyfind/anyfind/internal/dbusapi"
)

var searchTopN int32

func init() {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot search query against a running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(args[0])
		},
	}
	cmd.Flags().Int32Var(&searchTopN, "top", 50, "maximum number of results")
	Root.AddCommand(cmd)
}

func runSearch(query string) error {
	obj, conn, err := dbusapi.Dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	results, err := dbusapi.CallSearch(obj, query, searchTopN)
	if err != nil {
		return fmt.Errorf("anyfind: search: %w", err)
	}
	for _, r := range results {
		fmt.Printf("%s\t%s\t%s\n", r.FullPath, r.FileSizeStr, r.ModifyTimeStr)
	}
	return nil
}
