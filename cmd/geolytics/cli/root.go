package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geolytics",
		Short: "Federated geospatial query engine for telecom network data",
		Long: `Geolytics discovers databases across a fleet of SQL hosts, resolves project
configuration dynamically, and serves network site data as GeoJSON: source
inventories, KPI joins, and RCA classification overlays.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./geolytics.yaml)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newClustersCmd())

	return cmd
}

func initConfig() {
	// .env first so viper's AutomaticEnv sees the values.
	godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("geolytics")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.geolytics")
	}

	viper.SetEnvPrefix("GEOLYTICS")
	viper.AutomaticEnv()
	viper.ReadInConfig() // config file is optional
}
