package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anyfind/anyfind/internal/config"
	"github.com/anyfind/anyfind/internal/dbusapi"
	"github.com/anyfind/anyfind/internal/searchindex"
)

func init() {
	Root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report the daemon's current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	})
}

func runStatus() error {
	if obj, conn, err := dbusapi.Dial(); err == nil {
		defer conn.Close()
		if s, err := dbusapi.CallStatus(obj); err == nil {
			fmt.Println(s)
			return nil
		}
	}

	// No running daemon reachable over the bus; fall back to the
	// persisted status.json sidecar so `status` still works right
	// after a crash or before the daemon's first start.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	s, err := searchindex.ReadPersistentStatus(cfg.PersistentDir)
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}
