// legendd 都市传说论坛服务
//
// @title Living Legends API
// @version 1.0
// @description 都市传说论坛：AI 楼主、证据生成与故事状态机
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "legendd",
	Short:         "Living Legends forum engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, resetCmd, sweepCmd, migrateCmd, runJobsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
