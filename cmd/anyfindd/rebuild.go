package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anyfind/anyfind/internal/dbusapi"
)

func init() {
	Root.AddCommand(&cobra.Command{
		Use:   "rebuild [path]",
		Short: "Force a full rescan of the index, or of one path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			return runRebuild(path)
		},
	})
}

func runRebuild(path string) error {
	obj, conn, err := dbusapi.Dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := dbusapi.CallReindex(obj, path); err != nil {
		return fmt.Errorf("anyfind: rebuild: %w", err)
	}
	fmt.Printf("rebuild requested for %s\n", path)
	return nil
}
