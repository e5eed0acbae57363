package main

import "github.com/DrZacharySmith/stremio-account-manager/cmd"

func main() {
	cmd.Execute()
}
