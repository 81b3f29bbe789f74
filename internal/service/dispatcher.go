package service

import (
	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/internal/metrics"
	"settlement-kernel/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ProcessorDeps bundles the collaborators of a TransactionProcessor.
type ProcessorDeps struct {
	Settlement ports.SettlementAuthority
	Directory  ports.AgentDirectory
	Ledger     ports.MonetaryLedger
	Registry   ports.Registry
	Accounting ports.Accounting
	Taxes      ports.TaxPolicy
	Loans      ports.LoanBook
	Market     ports.MarketData
	Roles      domain.Roles
	Currency   domain.Currency
	// MortgageLTV is the loan-to-value ratio of mortgage-financed housing purchases.
	MortgageLTV decimal.Decimal
}

// TransactionProcessor routes each intent to the handler for its type and applies the
// non-financial side effects only when settlement succeeded.
type TransactionProcessor struct {
	deps          ProcessorDeps
	handlers      map[domain.TransactionType]ports.TransactionHandler
	fallback      ports.TransactionHandler
	publicManager ports.TransactionHandler
	metrics       *metrics.Metrics
	log           zerolog.Logger
}

// NewTransactionProcessor creates a processor with the built-in handler set.
func NewTransactionProcessor(deps ProcessorDeps, m *metrics.Metrics, log zerolog.Logger) *TransactionProcessor {
	p := &TransactionProcessor{
		deps:          deps,
		handlers:      make(map[domain.TransactionType]ports.TransactionHandler),
		fallback:      transferHandler{memo: "transfer"},
		publicManager: taxedSaleHandler{memo: "public_manager_sale"},
		metrics:       m,
		log:           log,
	}

	p.RegisterHandler(domain.TransactionTypeGoods, goodsHandler{})
	p.RegisterHandler(domain.TransactionTypeLabor, laborHandler{})
	p.RegisterHandler(domain.TransactionTypeResearchLabor, laborHandler{})
	p.RegisterHandler(domain.TransactionTypeStock, transferHandler{memo: "stock"})
	p.RegisterHandler(domain.TransactionTypeAssetTransfer, transferHandler{memo: "asset_transfer"})
	p.RegisterHandler(domain.TransactionTypeGovernmentSpending, transferHandler{memo: "government_spending"})
	p.RegisterHandler(domain.TransactionTypeTax, transferHandler{memo: "tax", isTax: true})
	p.RegisterHandler(domain.TransactionTypeHousing, housingHandler{ltv: deps.MortgageLTV})
	p.RegisterHandler(domain.TransactionTypeEmergencyBuy, taxedSaleHandler{memo: "emergency_buy"})
	p.RegisterHandler(domain.TransactionTypeEscheatment, escheatmentHandler{})
	p.RegisterHandler(domain.TransactionTypeInheritanceDistribution, inheritanceHandler{})
	for _, t := range []domain.TransactionType{
		domain.TransactionTypeLenderOfLastResort,
		domain.TransactionTypeAssetLiquidation,
		domain.TransactionTypeBondPurchase,
		domain.TransactionTypeOMOPurchase,
		domain.TransactionTypeBondRepayment,
		domain.TransactionTypeOMOSale,
		domain.TransactionTypeBondInterest,
	} {
		p.RegisterHandler(t, monetaryHandler{})
	}
	return p
}

// RegisterHandler installs or replaces the handler for t.
func (p *TransactionProcessor) RegisterHandler(t domain.TransactionType, h ports.TransactionHandler) {
	p.handlers[t] = h
}

// Process settles txs in submission order. A configuration error halts the batch and is
// returned together with the results produced so far.
func (p *TransactionProcessor) Process(txs []*domain.Transaction, tick int64) ([]domain.TxResult, error) {
	results := make([]domain.TxResult, 0, len(txs))
	for _, tx := range txs {
		res, err := p.Execute(tx, tick)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Execute settles a single intent. Only configuration errors are returned as errors;
// business failures are reported in the result.
func (p *TransactionProcessor) Execute(tx *domain.Transaction, tick int64) (domain.TxResult, error) {
	res := domain.TxResult{Tx: tx}
	if tx.IsExecuted() || tx.Type.IsSymbolic() {
		res.Status = domain.TxSkipped
		p.metrics.IncrementTransaction(string(tx.Type), string(res.Status))
		return res, nil
	}

	if err := tx.ValidateMetadata(); err != nil {
		return p.halt(res, err)
	}
	buyer, err := p.deps.Directory.Agent(tx.BuyerID)
	if err != nil {
		return p.halt(res, err)
	}
	seller, err := p.deps.Directory.Agent(tx.SellerID)
	if err != nil {
		return p.halt(res, err)
	}

	if err := p.deps.Registry.Validate(tx); err != nil {
		if apperror.IsConfiguration(err) {
			return p.halt(res, err)
		}
		return p.failed(res, err), nil
	}

	hctx := &ports.HandlerContext{
		Tick:       tick,
		Currency:   tx.CurrencyOr(p.deps.Currency),
		Roles:      p.deps.Roles,
		Settlement: p.deps.Settlement,
		Directory:  p.deps.Directory,
		Taxes:      p.deps.Taxes,
		Loans:      p.deps.Loans,
		Ledger:     p.deps.Ledger,
		Market:     p.deps.Market,
	}
	outcome, err := p.handlerFor(tx).Handle(tx, buyer, seller, hctx)
	if err != nil {
		if apperror.IsConfiguration(err) {
			return p.halt(res, err)
		}
		return p.failed(res, err), nil
	}

	tx.MarkExecuted()
	if err := p.deps.Registry.Apply(tx, outcome); err != nil {
		// Money already moved. The side effect is lost but the settlement stands.
		p.log.Error().Err(err).Str("tx_id", tx.ID.String()).Str("type", string(tx.Type)).Msg("registry update failed after settlement")
	}
	p.deps.Accounting.Record(tx, outcome)

	res.Status = domain.TxCommitted
	res.Outcome = outcome
	p.metrics.IncrementTransaction(string(tx.Type), string(res.Status))
	return res, nil
}

func (p *TransactionProcessor) handlerFor(tx *domain.Transaction) ports.TransactionHandler {
	if tx.SellerID == p.deps.Roles.PublicManager && !tx.Type.IsExpansionTag() && !tx.Type.IsContractionTag() {
		return p.publicManager
	}
	if h, ok := p.handlers[tx.Type]; ok {
		return h
	}
	return p.fallback
}

func (p *TransactionProcessor) failed(res domain.TxResult, err error) domain.TxResult {
	res.Status = domain.TxFailed
	res.Err = err
	evt := p.log.Warn()
	if apperror.KindOf(err) == apperror.KindAnomaly {
		evt = p.log.Error()
	}
	evt.Err(err).
		Str("tx_id", res.Tx.ID.String()).
		Str("type", string(res.Tx.Type)).
		Int64("buyer", int64(res.Tx.BuyerID)).
		Int64("seller", int64(res.Tx.SellerID)).
		Msg("transaction failed")
	p.metrics.IncrementTransaction(string(res.Tx.Type), string(res.Status))
	return res
}

func (p *TransactionProcessor) halt(res domain.TxResult, err error) (domain.TxResult, error) {
	res.Status = domain.TxFailed
	res.Err = err
	p.log.Error().Err(err).Str("tx_id", res.Tx.ID.String()).Str("type", string(res.Tx.Type)).Msg("configuration error, halting batch")
	return res, err
}
