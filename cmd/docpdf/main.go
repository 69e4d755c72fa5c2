// Command docpdf renders quotations and invoices to PDF from the command line,
// using the same renderer as the server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "docpdf: %v\n", err)
		os.Exit(1)
	}
}
