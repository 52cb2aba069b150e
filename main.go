package main

import (
	"os"

	"github.com/secaudit/secaudit/cmd"
)

var execCmd = cmd.Execute
var osExit = os.Exit

func main() {
	osExit(execCmd())
}
