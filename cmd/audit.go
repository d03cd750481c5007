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

	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/run"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run scenarios",
	Long:  "Runs every case of the chosen scenarios against both variants and prints the report",
	Run: func(cmd *cobra.Command, args []string) {
		s := &common.Settings{}
		if err := viper.Unmarshal(s); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		if err := run.Audit(s); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.PersistentFlags().StringSliceP("scenario", "s", nil, "Scenarios to run, all when empty")
	auditCmd.PersistentFlags().StringP("format", "f", run.FormatText, "Report format, 'text' and 'yaml' are supported now")
	auditCmd.PersistentFlags().BoolP("dump", "d", false, "Dump committed accounts of every secure run")
	auditCmd.PersistentFlags().String("storage.dir", "", "Keep case ledgers in leveldb under this directory")

	if err := viper.BindPFlag("Audit.Scenario", auditCmd.PersistentFlags().Lookup("scenario")); err != nil {
		println(err.Error())
	}
	if err := viper.BindEnv("Audit.Scenario", "AG_SCENARIO"); err != nil {
		println(err.Error())
	}
	if err := viper.BindPFlag("Audit.Format", auditCmd.PersistentFlags().Lookup("format")); err != nil {
		println(err.Error())
	}
	if err := viper.BindEnv("Audit.Format", "AG_FORMAT"); err != nil {
		println(err.Error())
	}
	if err := viper.BindPFlag("Audit.Dump", auditCmd.PersistentFlags().Lookup("dump")); err != nil {
		println(err.Error())
	}
	if err := viper.BindPFlag("Storage.Dir", auditCmd.PersistentFlags().Lookup("storage.dir")); err != nil {
		println(err.Error())
	}
	if err := viper.BindEnv("Storage.Dir", "AG_STORAGE_DIR"); err != nil {
		println(err.Error())
	}
}
