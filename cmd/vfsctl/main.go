// Command vfsctl runs filesystem commands against the drives of a vfskit
// registry.
//
// The drive table comes from --drives or BEAVER_VFS_DRIVES_FILE. Without
// one, a single in-memory "SPI:" drive is used, which only lives as long
// as the process; use the shell command to work with it.
package main

import (
	"fmt"
	"os"
)

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
