package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "kildespor"}

	root.AddCommand(serveCMD(), migrateCMD(), workerCMD())
	_ = root.Execute()
}
