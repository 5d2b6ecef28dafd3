package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pa",
		Short:         "Pogo accounts (pa): schedule and drive a pool of game accounts",
		Long:          "pa keeps a roster of game accounts, leases them under travel cooldowns and drives their sessions through login, onboarding and fort spins.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		_ = app.logger.Sync()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newSetCmd(app),
		newPoolCmd(app),
		newScanCmd(app),
	)

	return rootCmd
}
