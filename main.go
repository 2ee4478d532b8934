// The main package for the parthawk executable.
package main

import (
	"github.com/tracemotorsports/parthawk/cmd"
)

func main() {
	cmd.Execute()
}
