// moliord is the build pipeline engine daemon for the Molior Debian package
// build orchestrator.
package main

import (
	"github.com/bitswalk/molior/src/moliord/core"
)

func main() {
	core.Execute()
}
