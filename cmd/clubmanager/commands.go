package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/clubmanager/internal/actions"
	"github.com/angelmondragon/clubmanager/internal/chargerules"
	"github.com/angelmondragon/clubmanager/internal/ledger"
	"github.com/angelmondragon/clubmanager/internal/members"
	"github.com/angelmondragon/clubmanager/internal/periods"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/money"
	"github.com/angelmondragon/clubmanager/pkg/pagination"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

type commandLine struct {
	dispatcher *actions.Dispatcher
	out        io.Writer
	actor      string
	currency   string
}

func (c *commandLine) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	command, rest := args[0], args[1:]

	switch command {
	case "reports":
		return c.dispatcher.Reports(ctx)
	case "settings":
		return c.dispatcher.Settings(ctx)
	case "filters":
		return c.dispatcher.Filters(ctx)
	case "undo":
		return c.dispatcher.Undo(ctx)
	case "redo":
		return c.dispatcher.Redo(ctx)
	}

	if len(rest) == 0 {
		return usageError(fmt.Sprintf("%s needs a subcommand", command))
	}
	sub, flags := rest[0], rest[1:]

	switch command + " " + sub {
	case "members search":
		return c.searchMembers(ctx, flags)
	case "members add":
		return c.addMember(ctx, flags)
	case "members status":
		return c.changeStatus(ctx, flags)
	case "members show":
		return c.showMember(ctx, flags)
	case "methods add":
		return c.addMethod(ctx, flags)
	case "methods list":
		return c.listMethods(ctx)
	case "periods add":
		return c.addPeriod(ctx, flags)
	case "periods list":
		return c.listPeriods(ctx)
	case "periods charge":
		return c.applyCharges(ctx, flags)
	case "periods close":
		return c.closePeriod(ctx, flags)
	case "rules add":
		return c.addRule(ctx, flags)
	case "rules list":
		return c.listRules(ctx)
	case "tx post":
		return c.postTransaction(ctx, flags)
	case "tx list":
		return c.listTransactions(ctx, flags)
	case "tx void":
		return c.voidTransaction(ctx, flags)
	case "balances recompute":
		return c.recompute(ctx, flags)
	case "balances check":
		return c.check(ctx, flags)
	case "balances list":
		return c.listBalances(ctx, flags)
	}
	return usageError(fmt.Sprintf("unknown command %q", command+" "+sub))
}

func usageError(message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fs.Name())
	}
	return nil
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	amount, err := money.Parse(value)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field)
	}
	return amount, nil
}

func parseDate(field, value string) (types.Date, error) {
	if strings.TrimSpace(value) == "" {
		return types.Date{}, nil
	}
	d, err := types.ParseDate(value)
	if err != nil {
		return types.Date{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field)
	}
	return d, nil
}

func (c *commandLine) table(header ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	return w
}

func (c *commandLine) amount(d decimal.Decimal) string {
	return money.Format(d) + " " + c.currency
}

func (c *commandLine) searchMembers(ctx context.Context, args []string) error {
	fs := newFlagSet("members search")
	query := fs.String("q", "", "text matched against number, name, surnames and email")
	status := fs.String("estado", "", "activo|inactivo|baja")
	limit := fs.Int("limit", pagination.DefaultLimit, "page size")
	cursor := fs.String("cursor", "", "next page cursor")
	if err := parse(fs, args); err != nil {
		return err
	}

	result, err := c.dispatcher.SearchMembers(ctx, members.SearchParams{
		Query:  *query,
		Status: *status,
		Params: pagination.Params{Limit: *limit, Cursor: *cursor},
	})
	if err != nil {
		return err
	}
	w := c.table("ID", "SOCIO", "NOMBRE", "EMAIL", "ESTADO")
	for _, row := range result.Rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", row.ID, row.NumeroSocio, row.DisplayName, row.Email, row.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if result.NextCursor != "" {
		fmt.Fprintln(c.out, "next cursor:", result.NextCursor)
	}
	return nil
}

func (c *commandLine) addMember(ctx context.Context, args []string) error {
	fs := newFlagSet("members add")
	input := members.RegisterMemberInput{Actor: c.actor}
	fs.StringVar(&input.NumeroSocio, "numero", "", "member number")
	fs.StringVar(&input.Nombre, "nombre", "", "given name")
	fs.StringVar(&input.Apellidos, "apellidos", "", "surnames")
	fs.StringVar(&input.Telefono, "telefono", "", "phone")
	fs.StringVar(&input.Email, "email", "", "email")
	fs.StringVar(&input.Observaciones, "obs", "", "notes")
	alta := fs.String("alta", "", "registration date YYYY-MM-DD (default today)")
	if err := parse(fs, args); err != nil {
		return err
	}
	fecha, err := parseDate("alta", *alta)
	if err != nil {
		return err
	}
	input.FechaAlta = fecha

	member, err := c.dispatcher.AddMember(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "member %d registered as %s\n", member.ID, member.NumeroSocio)
	return nil
}

func (c *commandLine) changeStatus(ctx context.Context, args []string) error {
	fs := newFlagSet("members status")
	id := fs.Uint("id", 0, "member id")
	status := fs.String("estado", "", "activo|inactivo|baja")
	if err := parse(fs, args); err != nil {
		return err
	}
	member, err := c.dispatcher.ChangeMemberStatus(ctx, uint(*id), *status, c.actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "member %s is now %s\n", member.NumeroSocio, member.Estado)
	return nil
}

func (c *commandLine) showMember(ctx context.Context, args []string) error {
	fs := newFlagSet("members show")
	id := fs.Uint("id", 0, "member id")
	if err := parse(fs, args); err != nil {
		return err
	}
	ledgerView, err := c.dispatcher.MemberLedger(ctx, uint(*id))
	if err != nil {
		return err
	}
	m := ledgerView.Member
	fmt.Fprintf(c.out, "%s  %s  %s  alta %s  %s\n\n", m.NumeroSocio, m.DisplayName(), m.Email, m.FechaAlta, m.Estado)

	w := c.table("TX", "PERIODO", "FECHA", "TIPO", "MONTO", "ESTADO", "REF")
	for _, t := range ledgerView.Transactions {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.PeriodID, t.Fecha, t.Tipo, c.amount(t.Monto), t.Estado, t.Referencia)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(c.out)
	if err := c.writeBalances(ledgerView.Balances); err != nil {
		return err
	}
	fmt.Fprintln(c.out)
	w = c.table("LOG", "FECHA", "ACCION", "TABLA", "REGISTRO", "DESCRIPCION")
	for _, l := range ledgerView.Logs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", l.ID, l.FechaHora.Format("2006-01-02 15:04"), l.Accion, l.TablaAfectada, l.IDRegistroAfectado, l.DescripcionCambio)
	}
	return w.Flush()
}

func (c *commandLine) addMethod(ctx context.Context, args []string) error {
	fs := newFlagSet("methods add")
	name := fs.String("nombre", "", "payment method name")
	if err := parse(fs, args); err != nil {
		return err
	}
	method, err := c.dispatcher.AddPaymentMethod(ctx, *name, c.actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "payment method %d: %s\n", method.ID, method.Nombre)
	return nil
}

func (c *commandLine) listMethods(ctx context.Context) error {
	methods, err := c.dispatcher.ListPaymentMethods(ctx)
	if err != nil {
		return err
	}
	w := c.table("ID", "NOMBRE")
	for _, m := range methods {
		fmt.Fprintf(w, "%d\t%s\n", m.ID, m.Nombre)
	}
	return w.Flush()
}

func (c *commandLine) addPeriod(ctx context.Context, args []string) error {
	fs := newFlagSet("periods add")
	name := fs.String("nombre", "", "period name")
	start := fs.String("inicio", "", "first day YYYY-MM-DD")
	end := fs.String("fin", "", "last day YYYY-MM-DD")
	if err := parse(fs, args); err != nil {
		return err
	}
	input := periods.CreatePeriodInput{Nombre: *name, Actor: c.actor}
	var err error
	if input.FechaInicio, err = parseDate("inicio", *start); err != nil {
		return err
	}
	if input.FechaFin, err = parseDate("fin", *end); err != nil {
		return err
	}
	period, err := c.dispatcher.AddPeriod(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "period %d: %s (%s .. %s)\n", period.ID, period.Nombre, period.FechaInicio, period.FechaFin)
	return nil
}

func (c *commandLine) listPeriods(ctx context.Context) error {
	list, err := c.dispatcher.ListPeriods(ctx)
	if err != nil {
		return err
	}
	w := c.table("ID", "NOMBRE", "INICIO", "FIN", "ESTADO")
	for _, p := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Nombre, p.FechaInicio, p.FechaFin, p.Estado)
	}
	return w.Flush()
}

func periodFlag(name string, args []string) (uint, error) {
	fs := newFlagSet(name)
	id := fs.Uint("periodo", 0, "period id")
	if err := parse(fs, args); err != nil {
		return 0, err
	}
	return uint(*id), nil
}

func (c *commandLine) applyCharges(ctx context.Context, args []string) error {
	periodID, err := periodFlag("periods charge", args)
	if err != nil {
		return err
	}
	result, err := c.dispatcher.ApplyCharges(ctx, periodID, c.actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d charges posted, %d members already charged\n", len(result.Posted), result.Skipped)
	return nil
}

func (c *commandLine) closePeriod(ctx context.Context, args []string) error {
	periodID, err := periodFlag("periods close", args)
	if err != nil {
		return err
	}
	result, err := c.dispatcher.ClosePeriod(ctx, periodID, c.actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "period %s closed, %d penalties posted\n", result.Period.Nombre, len(result.Penalties))
	return c.writeBalances(result.Balances)
}

func (c *commandLine) addRule(ctx context.Context, args []string) error {
	fs := newFlagSet("rules add")
	desc := fs.String("desc", "", "description")
	fee := fs.String("cuota", "", "monthly fee")
	days := fs.Int("plazo", 0, "days to pay after the period starts")
	penalty := fs.String("penalizacion", "", "late payment penalty")
	discount := fs.String("descuento", "", "discount on the fee")
	periodID := fs.Uint("periodo", 0, "bind the rule to this period (0 = fallback rule)")
	if err := parse(fs, args); err != nil {
		return err
	}

	input := chargerules.CreateRuleInput{Descripcion: *desc, PlazoPago: *days, Actor: c.actor}
	var err error
	if input.CuotaMensual, err = parseAmount("cuota", *fee); err != nil {
		return err
	}
	if input.Penalizacion, err = parseAmount("penalizacion", *penalty); err != nil {
		return err
	}
	if input.Descuento, err = parseAmount("descuento", *discount); err != nil {
		return err
	}
	if *periodID != 0 {
		id := uint(*periodID)
		input.PeriodID = &id
	}

	rule, err := c.dispatcher.AddChargeRule(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "charge rule %d: fee %s\n", rule.ID, c.amount(rule.EffectiveFee()))
	return nil
}

func (c *commandLine) listRules(ctx context.Context) error {
	rules, err := c.dispatcher.ListChargeRules(ctx)
	if err != nil {
		return err
	}
	w := c.table("ID", "DESCRIPCION", "CUOTA", "DESCUENTO", "PLAZO", "PENALIZACION", "PERIODO")
	for _, r := range rules {
		period := "-"
		if r.PeriodID != nil {
			period = fmt.Sprint(*r.PeriodID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.Descripcion, c.amount(r.CuotaMensual), c.amount(r.Descuento), r.PlazoPago, c.amount(r.Penalizacion), period)
	}
	return w.Flush()
}

func (c *commandLine) postTransaction(ctx context.Context, args []string) error {
	fs := newFlagSet("tx post")
	memberID := fs.Uint("socio", 0, "member id")
	periodID := fs.Uint("periodo", 0, "period id")
	methodID := fs.Uint("metodo", 0, "payment method id")
	kind := fs.String("tipo", "", "cargo|pago|reembolso")
	amount := fs.String("monto", "", "amount")
	date := fs.String("fecha", "", "date YYYY-MM-DD (default today)")
	status := fs.String("estado", "", "pendiente|confirmada (default pendiente)")
	ref := fs.String("ref", "", "reference")
	if err := parse(fs, args); err != nil {
		return err
	}

	input := ledger.PostTransactionInput{
		MemberID:        uint(*memberID),
		PeriodID:        uint(*periodID),
		PaymentMethodID: uint(*methodID),
		Tipo:            enums.TransactionType(strings.ToLower(strings.TrimSpace(*kind))),
		Estado:          enums.TransactionStatus(strings.ToLower(strings.TrimSpace(*status))),
		Referencia:      *ref,
		Actor:           c.actor,
	}
	var err error
	if input.Monto, err = parseAmount("monto", *amount); err != nil {
		return err
	}
	if input.Fecha, err = parseDate("fecha", *date); err != nil {
		return err
	}

	entry, err := c.dispatcher.PostTransaction(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "transaction %d: %s %s\n", entry.ID, entry.Tipo, c.amount(entry.Monto))
	return nil
}

func (c *commandLine) listTransactions(ctx context.Context, args []string) error {
	fs := newFlagSet("tx list")
	memberID := fs.Uint("socio", 0, "filter by member id")
	periodID := fs.Uint("periodo", 0, "filter by period id")
	limit := fs.Int("limit", pagination.DefaultLimit, "page size")
	cursor := fs.String("cursor", "", "next page cursor")
	if err := parse(fs, args); err != nil {
		return err
	}
	page, err := c.dispatcher.ListTransactions(ctx, ledger.ListParams{
		MemberID: uint(*memberID),
		PeriodID: uint(*periodID),
		Params:   pagination.Params{Limit: *limit, Cursor: *cursor},
	})
	if err != nil {
		return err
	}
	w := c.table("TX", "SOCIO", "PERIODO", "METODO", "FECHA", "TIPO", "MONTO", "ESTADO", "REF")
	for _, t := range page.Rows {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.MemberID, t.PeriodID, t.PaymentMethodID, t.Fecha, t.Tipo, c.amount(t.Monto), t.Estado, t.Referencia)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if page.NextCursor != "" {
		fmt.Fprintln(c.out, "next cursor:", page.NextCursor)
	}
	return nil
}

func (c *commandLine) voidTransaction(ctx context.Context, args []string) error {
	fs := newFlagSet("tx void")
	id := fs.Uint("id", 0, "transaction id")
	if err := parse(fs, args); err != nil {
		return err
	}
	entry, err := c.dispatcher.VoidTransaction(ctx, uint(*id), c.actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "transaction %d voided\n", entry.ID)
	return nil
}

func (c *commandLine) recompute(ctx context.Context, args []string) error {
	periodID, err := periodFlag("balances recompute", args)
	if err != nil {
		return err
	}
	rows, err := c.dispatcher.RecomputeBalances(ctx, periodID, c.actor)
	if err != nil {
		return err
	}
	return c.writeBalances(rows)
}

func (c *commandLine) check(ctx context.Context, args []string) error {
	periodID, err := periodFlag("balances check", args)
	if err != nil {
		return err
	}
	report, err := c.dispatcher.CheckBalances(ctx, periodID)
	if len(report.Inconsistent) > 0 {
		fmt.Fprintln(c.out, "inconsistent balances:")
		if werr := c.writeBalances(report.Inconsistent); werr != nil {
			return werr
		}
	}
	for _, p := range report.Duplicates {
		fmt.Fprintf(c.out, "duplicate: member %d period %d (%d rows)\n", p.MemberID, p.PeriodID, p.Rows)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d balances checked, all consistent\n", report.Checked)
	return nil
}

func (c *commandLine) listBalances(ctx context.Context, args []string) error {
	periodID, err := periodFlag("balances list", args)
	if err != nil {
		return err
	}
	rows, err := c.dispatcher.ListBalances(ctx, periodID)
	if err != nil {
		return err
	}
	return c.writeBalances(rows)
}

func (c *commandLine) writeBalances(rows []models.PeriodBalance) error {
	w := c.table("SOCIO", "PERIODO", "ANTERIOR", "CARGOS", "PAGOS", "ACTUAL")
	for _, b := range rows {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n", b.MemberID, b.PeriodID, c.amount(b.SaldoAnterior), c.amount(b.Cargos), c.amount(b.Pagos), c.amount(b.SaldoActual))
	}
	return w.Flush()
}
