package actions

import (
	"time"

	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/internal/balances"
	"github.com/angelmondragon/clubmanager/internal/billing"
	"github.com/angelmondragon/clubmanager/internal/chargerules"
	"github.com/angelmondragon/clubmanager/internal/ledger"
	"github.com/angelmondragon/clubmanager/internal/members"
	"github.com/angelmondragon/clubmanager/internal/paymentmethods"
	"github.com/angelmondragon/clubmanager/internal/periods"
	"github.com/angelmondragon/clubmanager/pkg/config"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/logger"
	"github.com/angelmondragon/clubmanager/pkg/metrics"
)

// BuildParams carries what Build needs to assemble the service graph.
type BuildParams struct {
	Client  *db.Client
	Billing config.BillingConfig
	Logger  *logger.Logger
	Metrics *metrics.ActionMetrics
	Clock   func() time.Time
}

// Build constructs every repository and service against one store and
// returns the dispatcher fronting them.
func Build(params BuildParams) (*Dispatcher, error) {
	conn := params.Client.DB()
	logg := params.Logger

	auditSvc, err := audit.NewService(audit.ServiceParams{
		Repo:   audit.NewRepository(conn),
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(conn),
		Tx:     params.Client,
		Audit:  auditSvc,
		Logger: logg,
		Clock:  params.Clock,
	})
	if err != nil {
		return nil, err
	}

	periodSvc, err := periods.NewService(periods.ServiceParams{
		Repo:  periods.NewRepository(conn),
		Tx:    params.Client,
		Audit: auditSvc,
	})
	if err != nil {
		return nil, err
	}

	balanceSvc, err := balances.NewService(balances.ServiceParams{
		Repo:         balances.NewRepository(conn),
		Tx:           params.Client,
		Audit:        auditSvc,
		Periods:      periodSvc,
		Transactions: ledgerSvc,
		Logger:       logg,
	})
	if err != nil {
		return nil, err
	}

	memberSvc, err := members.NewService(members.ServiceParams{
		Repo:         members.NewRepository(conn),
		Tx:           params.Client,
		Audit:        auditSvc,
		Transactions: ledgerSvc,
		Balances:     balanceSvc,
		Logs:         auditSvc,
		Logger:       logg,
		Clock:        params.Clock,
	})
	if err != nil {
		return nil, err
	}

	methodSvc, err := paymentmethods.NewService(paymentmethods.ServiceParams{
		Repo:              paymentmethods.NewRepository(conn),
		Audit:             auditSvc,
		TransactionRunner: params.Client,
	})
	if err != nil {
		return nil, err
	}

	ruleSvc, err := chargerules.NewService(chargerules.ServiceParams{
		Repo:  chargerules.NewRepository(conn),
		Tx:    params.Client,
		Audit: auditSvc,
	})
	if err != nil {
		return nil, err
	}

	billingSvc, err := billing.NewService(billing.ServiceParams{
		Tx:           params.Client,
		Members:      memberSvc,
		Methods:      methodSvc,
		Periods:      periodSvc,
		Rules:        ruleSvc,
		Ledger:       ledgerSvc,
		Balances:     balanceSvc,
		ChargeMethod: params.Billing.ChargeMethod,
		Logger:       logg,
		Clock:        params.Clock,
	})
	if err != nil {
		return nil, err
	}

	return New(Params{
		Members:        memberSvc,
		PaymentMethods: methodSvc,
		Periods:        periodSvc,
		ChargeRules:    ruleSvc,
		Ledger:         ledgerSvc,
		Balances:       balanceSvc,
		Billing:        billingSvc,
		Logger:         logg,
		Metrics:        params.Metrics,
	})
}
