package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/domain/model"
	searchuc "github.com/kailas-cloud/searchdex/internal/usecase/search"
)

func newSetupCmd(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Connect to the engine and create or update its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*env)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.setup(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("Search backend ready", zap.String("backend", a.backend.Name()))
			return nil
		},
	}
}

func newClearCmd(env *string) *cobra.Command {
	var models []string
	var commit bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove indexed documents",
		Long: `Remove every document of the given models, or the whole index when
no --models are given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*env)
			if err != nil {
				return err
			}
			defer a.close()

			types, err := lookupTypes(a, models)
			if err != nil {
				return err
			}
			if err := a.indexing.Clear(cmd.Context(), types, commit); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", describeTypes(types))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&models, "models", nil, "Restrict to app.name models")
	cmd.Flags().BoolVar(&commit, "commit", true, "Commit the deletion")
	return cmd
}

func newSearchCmd(env *string) *cobra.Command {
	var (
		models    []string
		orderBy   []string
		limit     int
		highlight bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a query and print the hits as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*env)
			if err != nil {
				return err
			}
			defer a.close()

			types, err := lookupTypes(a, models)
			if err != nil {
				return err
			}
			q := searchuc.NewQuery().
				AutoQuery(strings.Join(args, " ")).
				Models(types...).
				Window(0, limit)
			if len(orderBy) > 0 {
				q = q.OrderBy(orderBy...)
			}
			if highlight {
				q = q.Highlight()
			}

			rs, err := a.search.Run(q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for rec, err := range rs.All(cmd.Context()) {
				if err != nil {
					return err
				}
				if err := enc.Encode(map[string]any{
					"id":          rec.Identifier(),
					"score":       rec.Score(),
					"fields":      rec.Fields(),
					"highlighted": rec.Highlighted(),
				}); err != nil {
					return fmt.Errorf("write hit: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&models, "models", nil, "Restrict to app.name models")
	cmd.Flags().StringSliceVar(&orderBy, "order-by", nil, "Sort fields, prefix with - for descending")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of hits (0 for all)")
	cmd.Flags().BoolVar(&highlight, "highlight", false, "Include highlighted snippets")
	return cmd
}

func newModelsCmd(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the registered models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*env)
			if err != nil {
				return err
			}
			defer a.close()

			for _, c := range a.site.ModelChoices() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Value, c.Label)
			}
			return nil
		},
	}
}

func lookupTypes(a *app, labels []string) ([]model.Type, error) {
	types := make([]model.Type, 0, len(labels))
	for _, label := range labels {
		t, err := a.site.Lookup(label)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func describeTypes(types []model.Type) string {
	if len(types) == 0 {
		return "all documents"
	}
	labels := make([]string, len(types))
	for i, t := range types {
		labels[i] = t.String()
	}
	return strings.Join(labels, ", ")
}
