package main

import "auto-api-healer/internal/cli"

func main() {
	cli.Execute()
}
