// Command bb84sim simulates runs of the BB84 quantum key distribution protocol.
package main

import (
	"github.com/alan-christopher/bb84sim/cmd"
)

func main() {
	cmd.Execute()
}
