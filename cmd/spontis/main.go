package main

import "github.com/spontis-app/spontis/internal/cli"

func main() {
	cli.Execute()
}
