// Command outreachctl drives an outreach server from the command line and
// mints the keys and tokens it needs.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "outreachctl",
	Short: "Outreach server CLI",
	Long: `outreachctl talks to an outreach server over its HTTP API.

Research prospects, generate single or batch outreach drafts and report how
sent messages performed. The keygen and token commands work offline against
the server's Ed25519 key files.

Every flag can also be set from the environment, e.g. OUTREACHCTL_SERVER,
OUTREACHCTL_TOKEN or OUTREACHCTL_OUTPUT.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("OUTREACHCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "outreach server URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")
	rootCmd.PersistentFlags().String("agent", "", "agent id (default: the biz_dev agent, created if needed)")
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("agent", rootCmd.PersistentFlags().Lookup("agent"))
}

func registerCommands() {
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(researchCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(tokenCmd())
}

func newClientFromFlags() *client {
	return newClient(viper.GetString("server"), viper.GetString("token"))
}

func jsonOutput() bool {
	return strings.EqualFold(viper.GetString("output"), "json")
}
