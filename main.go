// The main package for the kobotest executable.
package main

import (
	"github.com/peyal-939/kobotest/cmd"
)

func main() {
	cmd.Execute()
}
