package main

import "github.com/HydroRoll-Team/hydroroll-webhook/internal/cli"

func main() {
	cli.Execute()
}
