package main

import (
	"github.com/denim-store/storefront/internal/seed"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample denim catalog",
	Long: `Load the sample denim catalog into an empty database and create the
configured administrator. A catalog that already has products is left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		d, err := bootstrap(ctx, cfg)
		if err != nil {
			return err
		}
		defer d.close()

		if err := d.ensureAdmin(ctx, cfg); err != nil {
			return err
		}

		n, err := d.catalog.SeedProducts(ctx, seed.Products())
		if err != nil {
			return err
		}
		log.Info().Int("products", n).Msg("seed complete")
		return nil
	},
}
