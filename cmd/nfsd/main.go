// Command nfsd serves an NFS v3 export over TCP against a pluggable
// back-end: an in-memory demo tree (memfs) or a mirrored host directory
// (osfs).
package main

import (
	"fmt"
	"os"

	"github.com/xetdata/nfsserve/cmd/nfsd/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
