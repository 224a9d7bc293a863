// Package actions is the boundary the presentation layer talks to. Each
// method is one user action mapped onto one data-layer call.
package actions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubmanager/internal/balances"
	"github.com/angelmondragon/clubmanager/internal/billing"
	"github.com/angelmondragon/clubmanager/internal/chargerules"
	"github.com/angelmondragon/clubmanager/internal/ledger"
	"github.com/angelmondragon/clubmanager/internal/members"
	"github.com/angelmondragon/clubmanager/internal/paymentmethods"
	"github.com/angelmondragon/clubmanager/internal/periods"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
	"github.com/angelmondragon/clubmanager/pkg/metrics"
)

// Action names double as metric labels.
const (
	ActionSearchMembers      = "search_members"
	ActionAddMember          = "add_member"
	ActionChangeMemberStatus = "change_member_status"
	ActionMemberLedger       = "member_ledger"
	ActionAddPaymentMethod   = "add_payment_method"
	ActionListPaymentMethods = "list_payment_methods"
	ActionAddPeriod          = "add_period"
	ActionListPeriods        = "list_periods"
	ActionAddChargeRule      = "add_charge_rule"
	ActionListChargeRules    = "list_charge_rules"
	ActionPostTransaction    = "post_transaction"
	ActionListTransactions   = "list_transactions"
	ActionVoidTransaction    = "void_transaction"
	ActionApplyCharges       = "apply_charges"
	ActionClosePeriod        = "close_period"
	ActionRecomputeBalances  = "recompute_balances"
	ActionCheckBalances      = "check_balances"
	ActionListBalances       = "list_balances"
	ActionReports            = "reports"
	ActionSettings           = "settings"
	ActionFilters            = "filters"
	ActionUndo               = "undo"
	ActionRedo               = "redo"
)

// Params groups the services the dispatcher fronts.
type Params struct {
	Members        *members.Service
	PaymentMethods *paymentmethods.Service
	Periods        *periods.Service
	ChargeRules    *chargerules.Service
	Ledger         *ledger.Service
	Balances       *balances.Service
	Billing        *billing.Service
	Logger         *logger.Logger
	Metrics        *metrics.ActionMetrics
}

// Dispatcher exposes one method per user action.
type Dispatcher struct {
	members        *members.Service
	paymentMethods *paymentmethods.Service
	periods        *periods.Service
	chargeRules    *chargerules.Service
	ledger         *ledger.Service
	balances       *balances.Service
	billing        *billing.Service
	logg           *logger.Logger
	metrics        *metrics.ActionMetrics
	newID          func() string
}

// New validates the params and returns a dispatcher.
func New(params Params) (*Dispatcher, error) {
	switch {
	case params.Members == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "members service required")
	case params.PaymentMethods == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment methods service required")
	case params.Periods == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "periods service required")
	case params.ChargeRules == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge rules service required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	case params.Balances == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "balances service required")
	case params.Billing == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service required")
	}
	return &Dispatcher{
		members:        params.Members,
		paymentMethods: params.PaymentMethods,
		periods:        params.Periods,
		chargeRules:    params.ChargeRules,
		ledger:         params.Ledger,
		balances:       params.Balances,
		billing:        params.Billing,
		logg:           params.Logger,
		metrics:        params.Metrics,
		newID:          func() string { return uuid.NewString() },
	}, nil
}

// dispatch tags ctx with the action, times the call and records its outcome.
func dispatch[T any](ctx context.Context, d *Dispatcher, action string, fn func(ctx context.Context) (T, error)) (T, error) {
	if d.logg != nil {
		ctx = d.logg.WithAction(d.logg.WithActionID(ctx, d.newID()), action)
	}
	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start)
	d.metrics.ObserveDuration(action, elapsed)

	switch {
	case err == nil:
		d.metrics.IncSuccess(action)
		if d.logg != nil {
			d.logg.Debug(d.logg.WithField(ctx, "elapsed", elapsed.String()), "action completed")
		}
	case pkgerrors.IsInformational(err):
		d.metrics.IncInformational(action)
		if d.logg != nil {
			d.logg.Info(ctx, pkgerrors.As(err).Message())
		}
	default:
		code := pkgerrors.CodeOf(err)
		d.metrics.IncFailure(action, string(code))
		if d.logg != nil {
			d.logg.Error(d.logg.WithField(ctx, "code", string(code)), "action failed", err)
		}
	}
	return result, err
}

func (d *Dispatcher) SearchMembers(ctx context.Context, params members.SearchParams) (members.SearchResult, error) {
	return dispatch(ctx, d, ActionSearchMembers, func(ctx context.Context) (members.SearchResult, error) {
		return d.members.Search(ctx, params)
	})
}

func (d *Dispatcher) AddMember(ctx context.Context, input members.RegisterMemberInput) (*models.Member, error) {
	return dispatch(ctx, d, ActionAddMember, func(ctx context.Context) (*models.Member, error) {
		return d.members.Register(ctx, input)
	})
}

// ChangeMemberStatus parses the textual status before handing it to the service.
func (d *Dispatcher) ChangeMemberStatus(ctx context.Context, memberID uint, status, actor string) (*models.Member, error) {
	return dispatch(ctx, d, ActionChangeMemberStatus, func(ctx context.Context) (*models.Member, error) {
		parsed, err := enums.ParseMemberStatus(status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid member status")
		}
		return d.members.ChangeStatus(ctx, memberID, parsed, actor)
	})
}

func (d *Dispatcher) MemberLedger(ctx context.Context, memberID uint) (*members.Ledger, error) {
	return dispatch(ctx, d, ActionMemberLedger, func(ctx context.Context) (*members.Ledger, error) {
		return d.members.Ledger(ctx, memberID)
	})
}

func (d *Dispatcher) AddPaymentMethod(ctx context.Context, name, actor string) (*models.PaymentMethod, error) {
	return dispatch(ctx, d, ActionAddPaymentMethod, func(ctx context.Context) (*models.PaymentMethod, error) {
		return d.paymentMethods.Create(ctx, name, actor)
	})
}

func (d *Dispatcher) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	return dispatch(ctx, d, ActionListPaymentMethods, d.paymentMethods.List)
}

func (d *Dispatcher) AddPeriod(ctx context.Context, input periods.CreatePeriodInput) (*models.Period, error) {
	return dispatch(ctx, d, ActionAddPeriod, func(ctx context.Context) (*models.Period, error) {
		return d.periods.Create(ctx, input)
	})
}

func (d *Dispatcher) ListPeriods(ctx context.Context) ([]models.Period, error) {
	return dispatch(ctx, d, ActionListPeriods, d.periods.List)
}

func (d *Dispatcher) AddChargeRule(ctx context.Context, input chargerules.CreateRuleInput) (*models.ChargeRule, error) {
	return dispatch(ctx, d, ActionAddChargeRule, func(ctx context.Context) (*models.ChargeRule, error) {
		return d.chargeRules.Create(ctx, input)
	})
}

func (d *Dispatcher) ListChargeRules(ctx context.Context) ([]models.ChargeRule, error) {
	return dispatch(ctx, d, ActionListChargeRules, d.chargeRules.List)
}

func (d *Dispatcher) PostTransaction(ctx context.Context, input ledger.PostTransactionInput) (*models.Transaction, error) {
	return dispatch(ctx, d, ActionPostTransaction, func(ctx context.Context) (*models.Transaction, error) {
		return d.ledger.Post(ctx, input)
	})
}

func (d *Dispatcher) ListTransactions(ctx context.Context, params ledger.ListParams) (ledger.ListResult, error) {
	return dispatch(ctx, d, ActionListTransactions, func(ctx context.Context) (ledger.ListResult, error) {
		return d.ledger.List(ctx, params)
	})
}

func (d *Dispatcher) VoidTransaction(ctx context.Context, id uint, actor string) (*models.Transaction, error) {
	return dispatch(ctx, d, ActionVoidTransaction, func(ctx context.Context) (*models.Transaction, error) {
		return d.ledger.Void(ctx, id, actor)
	})
}

func (d *Dispatcher) ApplyCharges(ctx context.Context, periodID uint, actor string) (*billing.ChargeResult, error) {
	return dispatch(ctx, d, ActionApplyCharges, func(ctx context.Context) (*billing.ChargeResult, error) {
		return d.billing.ApplyCharges(ctx, periodID, actor)
	})
}

func (d *Dispatcher) ClosePeriod(ctx context.Context, periodID uint, actor string) (*billing.CloseResult, error) {
	return dispatch(ctx, d, ActionClosePeriod, func(ctx context.Context) (*billing.CloseResult, error) {
		return d.billing.ClosePeriod(ctx, periodID, actor)
	})
}

func (d *Dispatcher) RecomputeBalances(ctx context.Context, periodID uint, actor string) ([]models.PeriodBalance, error) {
	return dispatch(ctx, d, ActionRecomputeBalances, func(ctx context.Context) ([]models.PeriodBalance, error) {
		return d.balances.Recompute(ctx, periodID, actor)
	})
}

// CheckBalances returns the report even when it carries violations.
func (d *Dispatcher) CheckBalances(ctx context.Context, periodID uint) (balances.Report, error) {
	return dispatch(ctx, d, ActionCheckBalances, func(ctx context.Context) (balances.Report, error) {
		return d.balances.Check(ctx, periodID)
	})
}

func (d *Dispatcher) ListBalances(ctx context.Context, periodID uint) ([]models.PeriodBalance, error) {
	return dispatch(ctx, d, ActionListBalances, func(ctx context.Context) ([]models.PeriodBalance, error) {
		return d.balances.ListByPeriod(ctx, periodID)
	})
}

func (d *Dispatcher) Reports(ctx context.Context) error {
	return d.notImplemented(ctx, ActionReports, "Reportes")
}

func (d *Dispatcher) Settings(ctx context.Context) error {
	return d.notImplemented(ctx, ActionSettings, "Configuración")
}

func (d *Dispatcher) Filters(ctx context.Context) error {
	return d.notImplemented(ctx, ActionFilters, "Filtros")
}

func (d *Dispatcher) Undo(ctx context.Context) error {
	return d.notImplemented(ctx, ActionUndo, "Deshacer")
}

func (d *Dispatcher) Redo(ctx context.Context) error {
	return d.notImplemented(ctx, ActionRedo, "Rehacer")
}

func (d *Dispatcher) notImplemented(ctx context.Context, action, label string) error {
	_, err := dispatch(ctx, d, action, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, pkgerrors.NotImplemented(label)
	})
	return err
}
