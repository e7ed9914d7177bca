package main

import "ratebench/internal/cli"

func main() {
	cli.Execute()
}
