package main

import (
	"github.com/gobeaver/cloudvfs/internal/cli"

	_ "github.com/gobeaver/cloudvfs/driver/azure"
	_ "github.com/gobeaver/cloudvfs/driver/memory"
)

// main delegates to the CLI package, which handles command parsing and
// exit codes.
func main() {
	cli.Execute()
}
