package main

import "clusterdash/internal/cli/cmd"

func main() {
	cmd.Execute()
}
