package main

import "github.com/TSE-Systems/tse-analytics-sub003/cmd"

func main() {
	cmd.Execute()
}
