package main

import "github.com/aussiebroadwan/uiauth/cmd/uiauth/cmd"

func main() {
	cmd.Execute()
}
