package cli

import (
	"github.com/beyondboy/shennong/features/bottleneck"
	"github.com/spf13/cobra"
)

func newWeightsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "weights",
		Short: "List the pretrained weights found in the weights directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			available, err := bottleneck.AvailableWeights(a.cfg.Extract.WeightsDir, a.logger)
			if err != nil {
				return err
			}
			for _, name := range bottleneck.WeightNames() {
				if path, ok := available[name]; ok {
					a.printf("%s\t%s\n", name, path)
				}
			}
			return nil
		},
	}
}
