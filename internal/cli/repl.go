package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it
// with a stub.
var printlnFn = func(a ...any) { fmt.Println(a...) }

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a
// lightweight stub.
type execIface interface {
	Status(ctx context.Context) error
	Pending(ctx context.Context) error
	Sync(ctx context.Context) error
	AddClient(ctx context.Context, args []string) error
	AddLoan(ctx context.Context, args []string) error
	Pay(ctx context.Context, args []string) error
	Collect(ctx context.Context, args []string) error
	Clients(ctx context.Context) error
	Loans(ctx context.Context) error
}

// runREPL reads a line, parses the first token as the command and
// dispatches to methods on 'a'. The loop exits on scanner EOF or when the
// user types "exit" or "quit". Handler errors are printed, never fatal;
// the loop stays up for the whole field day.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("cobrador (%s) > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn("Available commands: status, pending, sync, addclient, addloan, pay, collect, clients, loans, exit")
			printlnFn("  addclient <nombre> <cedula> [telefono]")
			printlnFn("  addloan <cliente_id> <monto> <cuota_diaria> <total_dias>")
			printlnFn("  pay <prestamo_id> <monto>")
			printlnFn("  collect <prestamo_id> <monto> [cliente_id nuevo_monto nueva_cuota nuevos_dias]")

		case "status":
			err = a.Status(ctx)
		case "pending":
			err = a.Pending(ctx)
		case "sync":
			err = a.Sync(ctx)
		case "addclient":
			err = a.AddClient(ctx, args)
		case "addloan":
			err = a.AddLoan(ctx, args)
		case "pay":
			err = a.Pay(ctx, args)
		case "collect":
			err = a.Collect(ctx, args)
		case "clients":
			err = a.Clients(ctx)
		case "loans":
			err = a.Loans(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
