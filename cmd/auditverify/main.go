package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"caretrust/internal/audit"
)

// auditverify is the offline operational tool for checking a persisted audit
// chain. It runs independently of the writer process.
//
// Exit codes: 0 chain verified, 1 integrity violation, 2 operational error.
func main() {
	var (
		path   = flag.String("log", "data/audit.log", "path to the audit chain log")
		secret = flag.String("secret", os.Getenv("CARETRUST_AUDIT_SECRET"), "HMAC secret (defaults to CARETRUST_AUDIT_SECRET)")
	)
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "auditverify: no HMAC secret provided")
		os.Exit(2)
	}

	report, err := audit.VerifyChain(*path, *secret)
	var integrity *audit.IntegrityError
	switch {
	case err == nil:
		fmt.Printf("ok: %d records verified\n", report.Count)
	case errors.As(err, &integrity):
		fmt.Printf("FAILED: integrity violation at line %d (%d records verified before it)\n",
			report.ErrorLine, report.Count)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "auditverify: %v\n", err)
		os.Exit(2)
	}
}
