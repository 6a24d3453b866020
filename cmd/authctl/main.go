package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jrsteele09/go-auth-core/internal/config"
	"github.com/jrsteele09/go-auth-core/internal/logging"
)

const usage = `authctl manages the auth service's users and signing keys.

Usage:
  authctl useradd -email <email> [-status active|pending]
  authctl keygen  -alg RS256|ES256 -out <file>
`

func main() {
	c := config.Load()
	logging.Setup(c.GetEnv(), "warn")

	if err := run(context.Background(), c, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}
	switch args[0] {
	case "useradd":
		return userAdd(ctx, c, args[1:], out)
	case "keygen":
		return keygen(args[1:], out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
