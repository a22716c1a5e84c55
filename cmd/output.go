package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"

	"github.com/Norgate-AV/xsys/internal/sysroot"
)

// status prints a cargo style progress line, the verb right aligned
func status(w io.Writer, verb, msg string) {
	fmt.Fprintf(w, "%s %s\n", color.Success.Sprint(fmt.Sprintf("%12s", verb)), msg)
}

// printError reports err, followed by the compiler output for build failures
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", color.Error.Sprint("error:"), err)

	var sErr *sysroot.Error
	if errors.As(err, &sErr) && sErr.Diagnostic != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, sErr.Diagnostic)

		if !strings.HasSuffix(sErr.Diagnostic, "\n") {
			fmt.Fprintln(w)
		}
	}
}
