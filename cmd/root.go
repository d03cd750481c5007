/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "accountguard",
	Short: "Accountguard runs account validation attacks against vulnerable and secure programs",
	Long: `Every scenario deploys a program in a vulnerable and a secure variant on a fresh ledger.
An attack must succeed against the first and fail against the second with the expected error.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to settings.yaml file(default is $HOME/settings.yaml)")
	rootCmd.PersistentFlags().StringP("log.level", "l", "INFO", "Log level, one of CRITICAL, ERROR, WARNING, NOTICE, INFO, DEBUG")

	if err := viper.BindPFlag("Log.Level", rootCmd.PersistentFlags().Lookup("log.level")); err != nil {
		println(err.Error())
	}
	if err := viper.BindEnv("Log.Level", "AG_LOG_LEVEL"); err != nil {
		println(err.Error())
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	envCfg, envFound := os.LookupEnv("AG_SETTINGS")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envFound {
		viper.SetConfigFile(envCfg)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName("settings")
	}

	// Settings are optional, flags and defaults cover every key.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
