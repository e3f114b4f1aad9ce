package main

import (
	"fmt"
	"io"
	"runtime"
)

var Version string = "[version_undefined]" //can be set by -ldflags "-X 'main.Version=v1.x.x'"

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "p2ptcp %s, %s %s %s\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
