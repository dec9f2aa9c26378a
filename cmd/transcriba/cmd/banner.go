package cmd

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
)

func printBanner() {
	figure.NewFigure("Transcriba", "cybermedium", true).Print()
	fmt.Printf("\n  Audio transcription service - Version %s\n\n", Version)
}
