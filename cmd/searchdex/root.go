package main

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/searchdex/internal/config"
	"github.com/kailas-cloud/searchdex/internal/version"
)

func newRootCmd() *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:   "searchdex",
		Short: "Engine-neutral search over Solr, RediSearch and bleve",
		Long: `searchdex indexes application objects into a search engine and queries
them through one engine-neutral API.

The engine and the indexed types are read from config/{env}.yaml.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate(version.String() + "\n")
	cmd.PersistentFlags().StringVar(&env, "env", config.GetEnv(), "Configuration environment (local, dev, prod)")

	cmd.AddCommand(
		newServeCmd(&env),
		newSetupCmd(&env),
		newClearCmd(&env),
		newSearchCmd(&env),
		newModelsCmd(&env),
	)
	return cmd
}
