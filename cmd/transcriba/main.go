package main

import "github.com/transcriba/transcriba/cmd/transcriba/cmd"

func main() {
	cmd.Execute()
}
