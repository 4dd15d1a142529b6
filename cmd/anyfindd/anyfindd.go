package main

import (
	"github.com/spf13/cobra"

	"github.com/anyfind/anyfind/internal/config"
)

var (
	configPath      string
	metricsAddrFlag string
	logLevelFlag    string
)

// Root is the anyfindd cobra command, with run/status/search/rebuild
// registered as subcommands by their own init() functions.
var Root = &cobra.Command{
	Use:   "anyfindd",
	Short: "Desktop filesystem search daemon",
	Long: `anyfindd maintains a persistent full-text index of file paths,
keeps it synchronised with the live filesystem, and answers
substring/prefix/fuzzy/pinyin search queries over it.`,
}

func init() {
	config.RegisterFlags(Root.PersistentFlags(), &configPath, &metricsAddrFlag, &logLevelFlag)
}
