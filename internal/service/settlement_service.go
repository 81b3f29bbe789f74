package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"settlement-kernel/internal/core/domain"
	"settlement-kernel/internal/core/ports"
	"settlement-kernel/internal/metrics"
	"settlement-kernel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SettlementService implements ports.SettlementAuthority. It is the only caller of
// Wallet.Add and Wallet.Subtract.
type SettlementService struct {
	dir      ports.AgentDirectory
	ledger   ports.MonetaryLedger
	registry ports.Registry
	roles    domain.Roles
	audit    ports.AuditService
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewSettlementService creates a new SettlementService.
// registry is only used to hand assets back during compensation and may be nil.
func NewSettlementService(
	dir ports.AgentDirectory,
	ledger ports.MonetaryLedger,
	registry ports.Registry,
	roles domain.Roles,
	audit ports.AuditService,
	m *metrics.Metrics,
	log zerolog.Logger,
) *SettlementService {
	return &SettlementService{
		dir:      dir,
		ledger:   ledger,
		registry: registry,
		roles:    roles,
		audit:    audit,
		metrics:  m,
		log:      log,
	}
}

// Balance returns the live balance of id in cur.
func (s *SettlementService) Balance(id domain.AgentID, cur domain.Currency) (domain.Money, error) {
	w, err := s.wallet(id)
	if err != nil {
		return 0, err
	}
	return w.Balance(cur), nil
}

// Transfer moves amount from one wallet to another, or does nothing.
func (s *SettlementService) Transfer(from, to domain.AgentID, amount domain.Money, cur domain.Currency, memo string, tick int64) (*domain.Receipt, error) {
	if amount < 0 {
		return nil, apperror.ErrInvalidAmount(int64(amount))
	}
	src, err := s.wallet(from)
	if err != nil {
		return nil, err
	}
	dst, err := s.wallet(to)
	if err != nil {
		return nil, err
	}

	receipt := domain.NewReceipt(from, cur, tick)
	if amount == 0 {
		return receipt, nil
	}

	if err := src.Subtract(amount, cur, memo, tick); err != nil {
		s.logFailure(err, memo, from, to, amount, tick)
		return nil, err
	}
	if err := dst.Add(amount, cur, memo, tick); err != nil {
		if rbErr := src.Add(amount, cur, "rollback:"+memo, tick); rbErr != nil {
			return nil, s.rollbackFailed(memo, errors.Join(err, rbErr), tick)
		}
		s.logFailure(err, memo, from, to, amount, tick)
		return nil, apperror.ErrLegRejected(memo, err)
	}

	receipt.AddLeg(from, to, amount, memo)
	s.log.Debug().
		Int64("from", int64(from)).
		Int64("to", int64(to)).
		Int64("amount", int64(amount)).
		Str("memo", memo).
		Msg("transfer settled")
	return receipt, nil
}

// SettleAtomic debits the debtor once for the sum of credits and fans the credits out.
// If any credit is rejected, every applied credit and the debit are reversed.
func (s *SettlementService) SettleAtomic(debtorID domain.AgentID, credits []domain.Credit, cur domain.Currency, tick int64) (*domain.Receipt, error) {
	debtor, err := s.wallet(debtorID)
	if err != nil {
		return nil, err
	}

	payees := make([]*domain.Wallet, len(credits))
	var total domain.Money
	for i, c := range credits {
		if c.Amount < 0 {
			return nil, apperror.ErrInvalidAmount(int64(c.Amount))
		}
		w, err := s.wallet(c.Payee)
		if err != nil {
			return nil, err
		}
		payees[i] = w
		total += c.Amount
	}

	receipt := domain.NewReceipt(debtorID, cur, tick)
	if total == 0 {
		return receipt, nil
	}

	// Pre-validate so an obvious shortfall never touches a wallet.
	if !debtor.CanCover(total, cur) {
		err := apperror.ErrInsufficientFunds(int64(debtorID), int64(total), int64(debtor.Balance(cur)))
		s.logFailure(err, "settle_atomic", debtorID, domain.NoAgent, total, tick)
		return nil, err
	}
	if err := debtor.Subtract(total, cur, "settle_atomic:debit", tick); err != nil {
		s.logFailure(err, "settle_atomic", debtorID, domain.NoAgent, total, tick)
		return nil, err
	}

	for i, c := range credits {
		if c.Amount == 0 {
			continue
		}
		if err := payees[i].Add(c.Amount, cur, c.Memo, tick); err != nil {
			if rbErr := s.reverseCredits(debtor, credits[:i], payees[:i], total, cur, tick); rbErr != nil {
				return nil, s.rollbackFailed(c.Memo, errors.Join(err, rbErr), tick)
			}
			s.logFailure(err, c.Memo, debtorID, c.Payee, c.Amount, tick)
			return nil, apperror.ErrLegRejected(c.Memo, err)
		}
		receipt.AddLeg(debtorID, c.Payee, c.Amount, c.Memo)
	}
	return receipt, nil
}

func (s *SettlementService) reverseCredits(debtor *domain.Wallet, credits []domain.Credit, payees []*domain.Wallet, total domain.Money, cur domain.Currency, tick int64) error {
	var errs []error
	for i := len(credits) - 1; i >= 0; i-- {
		if credits[i].Amount == 0 {
			continue
		}
		if err := payees[i].Subtract(credits[i].Amount, cur, "rollback:"+credits[i].Memo, tick); err != nil {
			errs = append(errs, err)
		}
	}
	if err := debtor.Add(total, cur, "rollback:settle_atomic:debit", tick); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CreateAndTransfer mints amount from a creation authority into dest and books the
// issuance in the same call.
func (s *SettlementService) CreateAndTransfer(authority, dest domain.AgentID, amount domain.Money, cur domain.Currency, memo string, tick int64) (*domain.Receipt, error) {
	if !s.roles.IsCreationAuthority(authority) {
		return nil, apperror.ErrNotAuthority(int64(authority))
	}
	return s.issue(authority, dest, amount, cur, memo, tick)
}

func (s *SettlementService) issue(authority, dest domain.AgentID, amount domain.Money, cur domain.Currency, memo string, tick int64) (*domain.Receipt, error) {
	receipt, err := s.Transfer(authority, dest, amount, cur, memo, tick)
	if err != nil {
		return nil, err
	}
	if amount > 0 {
		s.ledger.RecordIssuance(cur, amount)
		s.metrics.AddIssued(string(cur), int64(amount))
	}
	return receipt, nil
}

// TransferAndDestroy moves amount from source into an authority and books the destruction.
func (s *SettlementService) TransferAndDestroy(source, authority domain.AgentID, amount domain.Money, cur domain.Currency, memo string, tick int64) (*domain.Receipt, error) {
	if !s.roles.InAuthoritySet(authority) {
		return nil, apperror.ErrNotAuthority(int64(authority))
	}
	receipt, err := s.Transfer(source, authority, amount, cur, memo, tick)
	if err != nil {
		return nil, err
	}
	if amount > 0 {
		s.ledger.RecordDestruction(cur, amount)
		s.metrics.AddDestroyed(string(cur), int64(amount))
	}
	return receipt, nil
}

// Sweep moves every positive balance of from into to, currency by currency.
// A rejected currency reverses the ones already moved.
func (s *SettlementService) Sweep(from, to domain.AgentID, memo string, tick int64) (domain.Balances, error) {
	src, err := s.wallet(from)
	if err != nil {
		return nil, err
	}
	balances := src.Balances()
	currencies := make([]domain.Currency, 0, len(balances))
	for c, v := range balances {
		if v > 0 {
			currencies = append(currencies, c)
		}
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	var clog domain.CompensationLog
	swept := make(domain.Balances, len(currencies))
	for _, cur := range currencies {
		amount := balances[cur]
		if _, err := s.Transfer(from, to, amount, cur, memo, tick); err != nil {
			if cErr := s.Compensate(&clog, tick); cErr != nil {
				return nil, cErr
			}
			return nil, err
		}
		clog.Record(domain.CompensationAction{Kind: domain.CompensateTransfer, From: from, To: to, Amount: amount, Currency: cur, Memo: memo})
		swept[cur] = amount
	}
	return swept, nil
}

// Compensate replays log newest first. It keeps going after a failed action so that
// as much as possible is restored, then reports the failure as an anomaly.
func (s *SettlementService) Compensate(log *domain.CompensationLog, tick int64) error {
	if log == nil || log.Len() == 0 {
		return nil
	}
	var errs []error
	for _, a := range log.Reversed() {
		memo := "compensate:" + a.Memo
		var err error
		switch a.Kind {
		case domain.CompensateTransfer:
			_, err = s.Transfer(a.To, a.From, a.Amount, a.Currency, memo, tick)
		case domain.CompensateMint:
			_, err = s.TransferAndDestroy(a.To, a.From, a.Amount, a.Currency, memo, tick)
		case domain.CompensateBurn:
			_, err = s.issue(a.To, a.From, a.Amount, a.Currency, memo, tick)
		case domain.CompensateAsset:
			if s.registry == nil {
				err = apperror.ErrMissingCollaborator("registry")
				break
			}
			err = s.registry.TransferAsset(a.AssetKind, a.AssetID, a.Quantity, a.UnitPrice, a.To, a.From)
		default:
			err = fmt.Errorf("unknown compensation kind %q", a.Kind)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Memo, err))
		}
	}
	if len(errs) > 0 {
		return s.rollbackFailed("compensation", errors.Join(errs...), tick)
	}
	return nil
}

func (s *SettlementService) wallet(id domain.AgentID) (*domain.Wallet, error) {
	a, err := s.dir.Agent(id)
	if err != nil {
		return nil, err
	}
	return a.Wallet, nil
}

func (s *SettlementService) logFailure(err error, memo string, from, to domain.AgentID, amount domain.Money, tick int64) {
	s.log.Warn().
		Err(err).
		Str("memo", memo).
		Int64("from", int64(from)).
		Int64("to", int64(to)).
		Int64("amount", int64(amount)).
		Int64("tick", tick).
		Msg("settlement rejected")
}

// rollbackFailed reports the one failure that can leak value.
func (s *SettlementService) rollbackFailed(op string, cause error, tick int64) error {
	s.log.Error().
		Err(cause).
		Bool("rollback_failed", true).
		Str("op", op).
		Int64("tick", tick).
		Msg("rollback failed, value may have leaked")
	s.metrics.IncrementRollbackFailure()
	if s.audit != nil {
		s.audit.Log(context.Background(), &domain.AuditLog{
			ID:         uuid.New(),
			Action:     domain.AuditActionRollbackFailed,
			ResourceID: op,
			Tick:       tick,
			Details:    fmt.Sprintf(`{"error":%q}`, cause.Error()),
			CreatedAt:  time.Now().UTC(),
		})
	}
	return apperror.ErrRollbackFailed(cause)
}
