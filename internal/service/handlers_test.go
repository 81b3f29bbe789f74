package service

import (
	"testing"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports/mocks"
	"settlement-kernel/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func goodsTx(buyer, seller domain.AgentID, price domain.Money, qty int64) *domain.Transaction {
	return &domain.Transaction{
		BuyerID:  buyer,
		SellerID: seller,
		ItemID:   "bread",
		Quantity: decimal.NewFromInt(qty),
		Price:    price,
		Type:     domain.TransactionTypeGoods,
		Tick:     1,
	}
}

func TestGoodsHandler_EscrowTrade(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	buyer := f.add(t, 10, domain.AgentKindHousehold, 20_000)
	seller := f.add(t, 11, domain.AgentKindFirm, 0)

	out, err := goodsHandler{}.Handle(goodsTx(10, 11, 1_000, 10), buyer, seller, f.hctx(1))
	require.NoError(t, err)

	assert.Equal(t, domain.Money(9_000), f.balance(t, 10))
	assert.Equal(t, domain.Money(10_000), f.balance(t, 11))
	assert.Equal(t, domain.Money(1_000), f.balance(t, govID))
	assert.Equal(t, domain.Money(0), f.balance(t, escrowID))
	assert.Equal(t, domain.Money(11_000), out.BuyerCost)
	assert.Equal(t, domain.Money(1_000), out.Tax)

	var buyerDebits []domain.Money
	for _, r := range f.oplog.Records() {
		if r.AgentID == 10 {
			buyerDebits = append(buyerDebits, r.Delta)
		}
	}
	assert.Equal(t, []domain.Money{-11_000}, buyerDebits)
}

func TestGoodsHandler_SellerFailureRefundsBuyer(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	buyer := f.add(t, 10, domain.AgentKindHousehold, 20_000)
	seller := f.add(t, 11, domain.AgentKindFirm, 0)
	seller.Wallet.Close()

	_, err := goodsHandler{}.Handle(goodsTx(10, 11, 1_000, 10), buyer, seller, f.hctx(1))
	require.Error(t, err)
	assert.True(t, apperror.IsBusiness(err))

	assert.Equal(t, domain.Money(20_000), f.balance(t, 10))
	assert.Equal(t, domain.Money(0), f.balance(t, escrowID))
	assert.Equal(t, domain.Money(0), f.balance(t, govID))
}

func TestGoodsHandler_TaxLegFailureReversesBoth(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	buyer := f.add(t, 10, domain.AgentKindHousehold, 20_000)
	seller := f.add(t, 11, domain.AgentKindFirm, 0)
	f.agent(t, govID).Wallet.Close()

	_, err := goodsHandler{}.Handle(goodsTx(10, 11, 1_000, 10), buyer, seller, f.hctx(1))
	require.Error(t, err)

	assert.Equal(t, domain.Money(20_000), f.balance(t, 10))
	assert.Equal(t, domain.Money(0), f.balance(t, 11))
	assert.Equal(t, domain.Money(0), f.balance(t, escrowID))
}

func TestGoodsHandler_BuyerShort(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	buyer := f.add(t, 10, domain.AgentKindHousehold, 10_999)
	seller := f.add(t, 11, domain.AgentKindFirm, 0)

	_, err := goodsHandler{}.Handle(goodsTx(10, 11, 1_000, 10), buyer, seller, f.hctx(1))
	assert.Equal(t, "SET_001", apperror.CodeOf(err))
	assert.Equal(t, domain.Money(10_999), f.balance(t, 10))
}

func TestLaborHandler_PayerModels(t *testing.T) {
	tests := []struct {
		name        string
		payer       string
		wantFirm    domain.Money
		wantWorker  domain.Money
		wantGov     domain.Money
		wantTaxPaid domain.AgentID
	}{
		{"firm pays wage and tax", IncomePayerFirm, 10_000 - 2_000 - 400, 2_000, 400, 11},
		{"household withholding", IncomePayerHousehold, 10_000 - 2_000, 1_600, 400, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates := defaultTestRates()
			rates.IncomePayer = tt.payer
			f := newFixture(t, rates)
			worker := f.add(t, 10, domain.AgentKindHousehold, 0)
			firm := f.add(t, 11, domain.AgentKindFirm, 10_000)

			tx := domain.NewTransfer(domain.TransactionTypeLabor, 11, 10, 2_000, 1)
			out, err := laborHandler{}.Handle(tx, firm, worker, f.hctx(1))
			require.NoError(t, err)

			assert.Equal(t, tt.wantFirm, f.balance(t, 11))
			assert.Equal(t, tt.wantWorker, f.balance(t, 10))
			assert.Equal(t, tt.wantGov, f.balance(t, govID))
			assert.Equal(t, tt.wantTaxPaid, out.TaxPayer)
		})
	}
}

func TestLaborHandler_WithholdingFailureReversesWage(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	worker := f.add(t, 10, domain.AgentKindHousehold, 0)
	firm := f.add(t, 11, domain.AgentKindFirm, 10_000)
	f.agent(t, govID).Wallet.Close()

	tx := domain.NewTransfer(domain.TransactionTypeLabor, 11, 10, 2_000, 1)
	_, err := laborHandler{}.Handle(tx, firm, worker, f.hctx(1))
	require.Error(t, err)

	assert.Equal(t, domain.Money(10_000), f.balance(t, 11))
	assert.Equal(t, domain.Money(0), f.balance(t, 10))
}

func TestTaxedSaleHandler_Atomic(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	buyer := f.add(t, 10, domain.AgentKindHousehold, 1_099)
	pm := f.agent(t, pmID)

	tx := domain.NewTransfer(domain.TransactionTypeGoods, 10, pmID, 1_000, 1)
	_, err := taxedSaleHandler{memo: "public_manager_sale"}.Handle(tx, buyer, pm, f.hctx(1))
	require.Error(t, err)
	assert.Equal(t, domain.Money(1_099), f.balance(t, 10))

	f.agent(t, 10).Wallet.LoadBalances(map[domain.Currency]domain.Money{"USD": 1_100})
	out, err := taxedSaleHandler{memo: "public_manager_sale"}.Handle(tx, buyer, pm, f.hctx(1))
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), f.balance(t, 10))
	assert.Equal(t, domain.Money(1_000), f.balance(t, pmID))
	assert.Equal(t, domain.Money(100), f.balance(t, govID))
	assert.Equal(t, domain.Money(100), out.Tax)
}

func TestEscheatmentHandler_UsesLiveBalance(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	dead := f.add(t, 10, domain.AgentKindHousehold, 4_321)
	gov := f.agent(t, govID)

	// The declared amount is stale on purpose.
	tx := domain.NewTransfer(domain.TransactionTypeEscheatment, 10, govID, 1_000, 1)
	out, err := escheatmentHandler{}.Handle(tx, dead, gov, f.hctx(1))
	require.NoError(t, err)

	assert.Equal(t, domain.Money(4_321), out.TradeValue)
	assert.Equal(t, domain.Money(4_321), f.balance(t, govID))
	assert.Equal(t, domain.Money(0), f.balance(t, 10))
}

func TestInheritanceHandler_Split(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	dead := f.add(t, 10, domain.AgentKindHousehold, 10_000)
	for _, id := range []domain.AgentID{20, 21, 22} {
		f.add(t, id, domain.AgentKindHousehold, 0)
	}

	tx := domain.NewTransfer(domain.TransactionTypeInheritanceDistribution, 10, govID, 10_000, 1)
	tx.SetMeta(domain.MetaHeirIDs, []int64{20, 21, 22})
	_, err := inheritanceHandler{}.Handle(tx, dead, f.agent(t, govID), f.hctx(1))
	require.NoError(t, err)

	assert.Equal(t, domain.Money(3_333), f.balance(t, 20))
	assert.Equal(t, domain.Money(3_333), f.balance(t, 21))
	assert.Equal(t, domain.Money(3_334), f.balance(t, 22))
	assert.Equal(t, domain.Money(0), f.balance(t, 10))
}

func TestInheritanceHandler_NoHeirsIsConfigurationError(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	dead := f.add(t, 10, domain.AgentKindHousehold, 10_000)

	tx := domain.NewTransfer(domain.TransactionTypeInheritanceDistribution, 10, govID, 10_000, 1)
	_, err := inheritanceHandler{}.Handle(tx, dead, f.agent(t, govID), f.hctx(1))
	assert.True(t, apperror.IsConfiguration(err))
}

func TestMonetaryHandler_MintAndBurn(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	bank := f.add(t, 10, domain.AgentKindBank, 0)
	cb := f.agent(t, cbID)
	require.NoError(t, f.ledger.ResetTickFlow(1))

	llr := domain.NewTransfer(domain.TransactionTypeLenderOfLastResort, cbID, 10, 5_000, 1)
	out, err := monetaryHandler{}.Handle(llr, cb, bank, f.hctx(1))
	require.NoError(t, err)
	assert.Equal(t, domain.Money(5_000), out.Issued)
	assert.True(t, llr.LedgerRecorded())

	repay := domain.NewTransfer(domain.TransactionTypeBondRepayment, 10, cbID, 1_200, 1)
	repay.SetMeta(domain.MetaPrincipal, domain.Money(1_000))
	out, err = monetaryHandler{}.Handle(repay, bank, cb, f.hctx(1))
	require.NoError(t, err)
	assert.Equal(t, domain.Money(1_000), out.Destroyed, "interest is not destroyed")

	assert.Equal(t, domain.Money(5_000-1_000), f.ledger.MonetaryDelta(domain.DefaultCurrency))
	assert.Equal(t, domain.Money(3_800), f.balance(t, 10))
	var interest domain.Money
	for _, l := range out.Receipt.Legs {
		if l.Memo == "bond_repayment:interest" {
			interest += l.Amount
		}
	}
	assert.Equal(t, domain.Money(200), interest)

	// Already booked by the handler, so the ledger must not count them again.
	f.ledger.ProcessTransactions([]*domain.Transaction{llr, repay})
	assert.Equal(t, domain.Money(4_000), f.ledger.MonetaryDelta(domain.DefaultCurrency))
}

func TestTransactionProcessor_BondRepaymentBurnsPrincipalOnly(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	f.add(t, 10, domain.AgentKindHousehold, 2_000)
	require.NoError(t, f.ledger.ResetTickFlow(1))

	repay := domain.NewTransfer(domain.TransactionTypeBondRepayment, 10, cbID, 1_200, 1)
	repay.SetMeta(domain.MetaPrincipal, domain.Money(1_000))
	res, err := f.processor.Execute(repay, 1)
	require.NoError(t, err)
	require.True(t, res.Success())

	f.ledger.ProcessTransactions([]*domain.Transaction{repay})
	issued, destroyed := f.ledger.TickFlow(domain.DefaultCurrency)
	assert.Equal(t, domain.Money(0), issued)
	assert.Equal(t, domain.Money(1_000), destroyed)
	assert.Equal(t, domain.Money(-1_000), f.ledger.MonetaryDelta(domain.DefaultCurrency))
	assert.Equal(t, domain.Money(800), f.balance(t, 10))
}

func TestMonetaryHandler_SystemDebt(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	bank := f.add(t, 10, domain.AgentKindBank, 10_000)
	gov := f.agent(t, govID)
	gov.Wallet.LoadBalances(map[domain.Currency]domain.Money{domain.DefaultCurrency: 500})

	buy := domain.NewTransfer(domain.TransactionTypeBondPurchase, 10, govID, 4_000, 1)
	_, err := monetaryHandler{}.Handle(buy, bank, gov, f.hctx(1))
	require.NoError(t, err)
	assert.Equal(t, domain.Money(4_000), f.ledger.SystemDebt("USD"))
	assert.True(t, buy.LedgerRecorded(), "private bond purchase is zero-sum")

	repay := domain.NewTransfer(domain.TransactionTypeBondRepayment, govID, 10, 4_500, 2)
	repay.SetMeta(domain.MetaPrincipal, domain.Money(4_000))
	_, err = monetaryHandler{}.Handle(repay, gov, bank, f.hctx(2))
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), f.ledger.SystemDebt("USD"))
	assert.Equal(t, domain.Money(10_500), f.balance(t, 10))
}

func TestHousingHandler_MortgageFlow(t *testing.T) {
	f := newFixture(t, defaultTestRates())
	f.agent(t, bankID).Wallet.LoadBalances(map[domain.Currency]domain.Money{"USD": 100_000})
	buyer := f.add(t, 10, domain.AgentKindHousehold, 30_000)
	seller := f.add(t, 11, domain.AgentKindHousehold, 0)

	tx := domain.NewTransfer(domain.TransactionTypeHousing, 10, 11, 100_000, 1)
	tx.ItemID = "unit-1"
	tx.SetMeta(domain.MetaUseMortgage, true)

	h := housingHandler{ltv: decimal.RequireFromString("0.8")}
	out, err := h.Handle(tx, buyer, seller, f.hctx(1))
	require.NoError(t, err)

	assert.NotEmpty(t, out.MortgageID)
	assert.Equal(t, domain.Money(10_000), f.balance(t, 10))
	assert.Equal(t, domain.Money(100_000), f.balance(t, 11))
	assert.Equal(t, domain.Money(20_000), f.balance(t, bankID))
	assert.Equal(t, domain.Money(0), f.loans.DepositOf(10))

	loan, ok := f.loans.Loan(out.MortgageID)
	require.True(t, ok)
	assert.Equal(t, domain.Money(80_000), loan.Principal)
	assert.Equal(t, domain.LoanStatusActive, loan.Status)
}

func TestHousingHandler_PaymentFailureVoidsLoan(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, defaultTestRates())
	f.agent(t, bankID).Wallet.LoadBalances(map[domain.Currency]domain.Money{"USD": 100_000})
	buyer := f.add(t, 10, domain.AgentKindHousehold, 30_000)
	seller := f.add(t, 11, domain.AgentKindHousehold, 0)
	seller.Wallet.Close()

	loans := mocks.NewMockLoanBook(ctrl)
	gomock.InOrder(
		loans.EXPECT().Grant(domain.AgentID(10), "unit-1", domain.Money(80_000), int64(1)).
			Return(&domain.Loan{ID: "mortgage-1", Principal: 80_000}, nil),
		loans.EXPECT().Deposit(domain.AgentID(10), domain.Money(80_000)),
		loans.EXPECT().WithdrawForCustomer(domain.AgentID(10), domain.Money(80_000)).Return(nil),
		loans.EXPECT().Void("mortgage-1").Return(nil),
	)

	hctx := f.hctx(1)
	hctx.Loans = loans
	tx := domain.NewTransfer(domain.TransactionTypeHousing, 10, 11, 100_000, 1)
	tx.ItemID = "unit-1"
	tx.SetMeta(domain.MetaUseMortgage, true)

	_, err := housingHandler{ltv: decimal.RequireFromString("0.8")}.Handle(tx, buyer, seller, hctx)
	require.Error(t, err)

	assert.Equal(t, domain.Money(30_000), f.balance(t, 10))
	assert.Equal(t, domain.Money(100_000), f.balance(t, bankID))
}

func TestHousingHandler_GrantRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, defaultTestRates())
	buyer := f.add(t, 10, domain.AgentKindHousehold, 30_000)
	seller := f.add(t, 11, domain.AgentKindHousehold, 0)

	loans := mocks.NewMockLoanBook(ctrl)
	loans.EXPECT().Grant(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrLoanRejected("no"))

	hctx := f.hctx(1)
	hctx.Loans = loans
	tx := domain.NewTransfer(domain.TransactionTypeHousing, 10, 11, 100_000, 1)
	tx.SetMeta(domain.MetaUseMortgage, true)

	_, err := housingHandler{ltv: decimal.RequireFromString("0.8")}.Handle(tx, buyer, seller, hctx)
	assert.Equal(t, "SET_005", apperror.CodeOf(err))
	assert.Equal(t, domain.Money(30_000), f.balance(t, 10))
}
