package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/capture"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
)

// Status prints reachability, backlog and cache sizes.
func (a *App) Status(ctx context.Context) error {
	state := a.monitor.State()
	stats, err := a.capture.Stats(ctx)
	if err != nil {
		return err
	}

	printlnFn("link up:", state.LinkUp)
	printlnFn("backend reachable:", state.RemoteReachable)
	if !state.LastProbeAt.IsZero() {
		printlnFn("last probe:", state.LastProbeAt.Format("15:04:05"))
	}
	printlnFn("pending mutations:", stats["outbox"])
	printlnFn("cached clients:", stats["clients_cache"], "loans:", stats["loans_cache"])
	return nil
}

// Pending prints the outbox backlog.
func (a *App) Pending(ctx context.Context) error {
	n, err := a.capture.PendingCount(ctx)
	if err != nil {
		return err
	}
	printlnFn("pending mutations:", n)
	return nil
}

// Sync forces a sync pass.
func (a *App) Sync(ctx context.Context) error {
	report, err := a.engine.SyncNow(ctx)
	if err != nil {
		return err
	}
	if !report.Ran {
		printlnFn("sync did not run (offline or already in progress)")
		return nil
	}
	printlnFn(fmt.Sprintf("synced %d, failed %d, deferred %d, still pending %d",
		report.Synced, report.Failed, report.Deferred, report.Pending))
	return nil
}

// AddClient captures a new client: addclient <nombre> <cedula> [telefono].
func (a *App) AddClient(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: addclient <nombre> <cedula> [telefono]")
	}
	in := models.ClientInput{Nombre: args[0], Cedula: args[1]}
	if len(args) > 2 {
		in.Telefono = args[2]
	}

	result, err := a.capture.CreateClient(ctx, in)
	if err != nil {
		return err
	}
	a.printResult("client", result)
	return nil
}

// AddLoan captures a new loan:
// addloan <cliente_id> <monto> <cuota_diaria> <total_dias>.
func (a *App) AddLoan(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: addloan <cliente_id> <monto> <cuota_diaria> <total_dias>")
	}
	monto, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid monto %q: %w", args[1], err)
	}
	cuota, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("invalid cuota_diaria %q: %w", args[2], err)
	}
	dias, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid total_dias %q: %w", args[3], err)
	}

	result, err := a.capture.CreateLoan(ctx, models.LoanInput{
		ClienteID:     args[0],
		MontoPrestado: monto,
		CuotaDiaria:   cuota,
		TotalDias:     dias,
	})
	if err != nil {
		return err
	}
	a.printResult("loan", result)
	return nil
}

// Pay records an installment: pay <prestamo_id> <monto>.
func (a *App) Pay(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pay <prestamo_id> <monto>")
	}
	monto, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid monto %q: %w", args[1], err)
	}

	result, err := a.capture.RecordPayment(ctx, models.PaymentInput{
		PrestamoID: args[0],
		Monto:      monto,
	})
	if err != nil {
		return err
	}
	a.printResult("payment", result)
	return nil
}

// Collect settles a loan, optionally opening a renewal:
// collect <prestamo_id> <monto> [cliente_id nuevo_monto nueva_cuota nuevos_dias].
func (a *App) Collect(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: collect <prestamo_id> <monto> [cliente_id nuevo_monto nueva_cuota nuevos_dias]")
	}
	monto, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid monto %q: %w", args[1], err)
	}
	in := models.CollectionInput{PrestamoID: args[0], MontoPago: monto}

	if len(args) >= 6 {
		in.ClienteID = args[2]
		nuevoMonto, err := decimal.NewFromString(args[3])
		if err != nil {
			return fmt.Errorf("invalid nuevo_monto %q: %w", args[3], err)
		}
		nuevaCuota, err := decimal.NewFromString(args[4])
		if err != nil {
			return fmt.Errorf("invalid nueva_cuota %q: %w", args[4], err)
		}
		nuevosDias, err := strconv.Atoi(args[5])
		if err != nil {
			return fmt.Errorf("invalid nuevos_dias %q: %w", args[5], err)
		}
		in.NuevoCredito = &models.LoanInput{
			MontoPrestado: nuevoMonto,
			CuotaDiaria:   nuevaCuota,
			TotalDias:     nuevosDias,
		}
	}

	result, err := a.capture.CollectAndRenew(ctx, in)
	if err != nil {
		return err
	}
	a.printResult("collection", result)
	return nil
}

// Clients lists the cached clients.
func (a *App) Clients(ctx context.Context) error {
	clients, err := a.capture.Clients(ctx)
	if err != nil {
		return err
	}
	for _, c := range clients {
		printlnFn(fmt.Sprintf("%v  %s  %s", c["id"], c.StringField("nombre"), c.StringField("telefono")))
	}
	printlnFn(len(clients), "clients")
	return nil
}

// Loans lists the cached loans.
func (a *App) Loans(ctx context.Context) error {
	loans, err := a.capture.Loans(ctx)
	if err != nil {
		return err
	}
	for _, l := range loans {
		printlnFn(fmt.Sprintf("%v  cliente=%v  monto=%v  estado=%s",
			l["id"], l["cliente_id"], l["monto_prestado"], l.StringField("estado")))
	}
	printlnFn(len(loans), "loans")
	return nil
}

func (a *App) printResult(what string, result capture.Result) {
	if result.Pending {
		printlnFn(what, "queued offline, temp id:", result.ID)
	} else {
		printlnFn(what, "saved, id:", result.ID)
	}
}
