package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
)

// Typed capture inputs. The UI layer fills one of these; Document() turns
// it into the wire-shaped payload (original Spanish field names) with the
// collector context and idempotency key stamped in.

type ClientInput struct {
	Nombre   string
	Telefono string
	Cedula   string
	Email    string
	Lat      *float64
	Lng      *float64
}

func (in ClientInput) Validate() error {
	if in.Nombre == "" {
		return fmt.Errorf("%w: nombre is required", common.ErrValidation)
	}
	if in.Cedula == "" {
		return fmt.Errorf("%w: cedula is required", common.ErrValidation)
	}
	return nil
}

func (in ClientInput) Document(c CollectorContext, now time.Time) Document {
	d := Document{
		"panel_id":        c.PanelID,
		"nombre":          in.Nombre,
		"telefono":        in.Telefono,
		"cedula":          in.Cedula,
		"email":           nullable(in.Email),
		"lat":             nullableFloat(in.Lat),
		"lng":             nullableFloat(in.Lng),
		"idempotency_key": IdempotencyKey(c, KindClient, in.Cedula, now),
	}
	return d
}

type LoanInput struct {
	ClienteID     string
	MontoPrestado decimal.Decimal
	CuotaDiaria   decimal.Decimal
	TotalDias     int
	FechaInicio   string
	Lat           *float64
	Lng           *float64
}

func (in LoanInput) Validate() error {
	if in.ClienteID == "" {
		return fmt.Errorf("%w: cliente_id is required", common.ErrValidation)
	}
	if !in.MontoPrestado.IsPositive() {
		return fmt.Errorf("%w: monto_prestado must be positive", common.ErrValidation)
	}
	if !in.CuotaDiaria.IsPositive() {
		return fmt.Errorf("%w: cuota_diaria must be positive", common.ErrValidation)
	}
	if in.TotalDias <= 0 {
		return fmt.Errorf("%w: total_dias must be positive", common.ErrValidation)
	}
	return nil
}

func (in LoanInput) Document(c CollectorContext, now time.Time) Document {
	fechaInicio := in.FechaInicio
	if fechaInicio == "" {
		fechaInicio = now.Format("2006-01-02")
	}
	return Document{
		"panel_id":        c.PanelID,
		"cliente_id":      in.ClienteID,
		"cobrador_id":     c.CollectorID,
		"monto_prestado":  in.MontoPrestado.InexactFloat64(),
		"cuota_diaria":    in.CuotaDiaria.InexactFloat64(),
		"total_dias":      float64(in.TotalDias),
		"fecha_inicio":    fechaInicio,
		"estado":          "activo",
		"lat":             nullableFloat(in.Lat),
		"lng":             nullableFloat(in.Lng),
		"idempotency_key": IdempotencyKey(c, KindLoan, in.ClienteID, now),
	}
}

type PaymentInput struct {
	ClienteID  string
	PrestamoID string
	Monto      decimal.Decimal
	FechaPago  string
	HoraPago   string
	Lat        *float64
	Lng        *float64
}

func (in PaymentInput) Validate() error {
	if in.PrestamoID == "" {
		return fmt.Errorf("%w: prestamo_id is required", common.ErrValidation)
	}
	if !in.Monto.IsPositive() {
		return fmt.Errorf("%w: monto must be positive", common.ErrValidation)
	}
	return nil
}

func (in PaymentInput) Document(c CollectorContext, now time.Time) Document {
	return Document{
		"panel_id":        c.PanelID,
		"cliente_id":      in.ClienteID,
		"prestamo_id":     in.PrestamoID,
		"cobrador_id":     c.CollectorID,
		"created_by":      c.AuthorID(),
		"monto":           in.Monto.InexactFloat64(),
		"fecha_pago":      dateOr(in.FechaPago, now),
		"hora_pago":       timeOr(in.HoraPago, now),
		"estado":          "registrado",
		"lat":             nullableFloat(in.Lat),
		"lng":             nullableFloat(in.Lng),
		"idempotency_key": IdempotencyKey(c, KindPayment, in.PrestamoID, now),
	}
}

// CollectionInput settles an outstanding loan and optionally opens a new
// one in the same visit. The server executes the settle step atomically via
// the collect_and_renew operation.
type CollectionInput struct {
	ClienteID    string
	PrestamoID   string
	MontoPago    decimal.Decimal
	FechaPago    string
	HoraPago     string
	NuevoCredito *LoanInput
	Lat          *float64
	Lng          *float64
}

func (in CollectionInput) Validate() error {
	if in.PrestamoID == "" {
		return fmt.Errorf("%w: prestamo_id is required", common.ErrValidation)
	}
	if !in.MontoPago.IsPositive() {
		return fmt.Errorf("%w: monto_pago must be positive", common.ErrValidation)
	}
	if in.NuevoCredito != nil {
		nc := *in.NuevoCredito
		if nc.ClienteID == "" {
			nc.ClienteID = in.ClienteID
		}
		if err := nc.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (in CollectionInput) Document(c CollectorContext, now time.Time) Document {
	d := Document{
		"panel_id":        c.PanelID,
		"cliente_id":      in.ClienteID,
		"prestamo_id":     in.PrestamoID,
		"cobrador_id":     c.CollectorID,
		"monto_pago":      in.MontoPago.InexactFloat64(),
		"fecha_pago":      dateOr(in.FechaPago, now),
		"hora_pago":       timeOr(in.HoraPago, now),
		"lat":             nullableFloat(in.Lat),
		"lng":             nullableFloat(in.Lng),
		"idempotency_key": IdempotencyKey(c, KindCollection, in.PrestamoID, now),
	}
	if in.NuevoCredito != nil {
		nc := *in.NuevoCredito
		if nc.ClienteID == "" {
			nc.ClienteID = in.ClienteID
		}
		d["nuevo_credito"] = map[string]any{
			"cliente_id":     nc.ClienteID,
			"monto_prestado": nc.MontoPrestado.InexactFloat64(),
			"cuota_diaria":   nc.CuotaDiaria.InexactFloat64(),
			"total_dias":     float64(nc.TotalDias),
			"fecha_inicio":   dateOr(nc.FechaInicio, now),
		}
	}
	return d
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func dateOr(s string, now time.Time) string {
	if s != "" {
		return s
	}
	return now.Format("2006-01-02")
}

func timeOr(s string, now time.Time) string {
	if s != "" {
		return s
	}
	return now.Format("15:04:05")
}
