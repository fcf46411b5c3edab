package command

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/epicbank/ledger/internal/cqrs"
	"github.com/epicbank/ledger/internal/events"
	"github.com/epicbank/ledger/internal/models"
)

// reconcileWindow bounds how far back ReconcileTransfers looks for dangling
// credit legs. It matches the processed-transfer marker TTL: inside the window
// a missing marker means the transfer never committed, outside it the marker
// may simply have expired.
const reconcileWindow = 72 * time.Hour

// Transfer debits the source account and credits the resolved destination.
//
// A client-supplied TransferID is the idempotency key: replaying a transfer
// that already committed is a no-op on every path.
//
// Self-transfers (destination is another account of the same user) apply both
// legs inside one record write, so they are atomic by construction.
//
// External transfers span two independently persisted records and run as two
// phases keyed by the transfer ID: the recipient's credit is written first
// (compare-and-swap on the directory record), and only after that write
// succeeds is the local debit committed. If the debit commit fails the credit
// is compensated; a crash between the phases is unwound by
// ReconcileTransfers on the next start.
func (s *LedgerCommandService) Transfer(ctx context.Context, cmd cqrs.TransferCommand) error {
	if cmd.Amount <= 0 {
		return models.ErrInvalidAmount
	}
	supplied := cmd.TransferID != ""
	if !supplied {
		cmd.TransferID = newTransferID()
	}

	unlock := s.lockCRN(cmd.CRN)
	defer unlock()

	// A generated ID cannot have been seen before; only supplied keys replay.
	if supplied && s.readModel.IsTransferProcessed(ctx, cmd.TransferID) {
		log.Printf("transfer %s already processed, skipping replay", cmd.TransferID)
		return nil
	}

	record, err := s.store.LoadRecord(ctx, cmd.CRN)
	if err != nil {
		return err
	}
	source := record.AccountByID(cmd.AccountID)
	if source == nil {
		return models.ErrAccountNotFound
	}
	if source.Balance < cmd.Amount {
		return models.ErrInsufficientFunds
	}

	if dest := resolveOwnAccount(record, cmd.Destination); dest != nil {
		if dest.ID == source.ID {
			return models.ErrDestinationNotFound
		}
		return s.selfTransfer(ctx, cmd, dest.ID)
	}
	return s.externalTransfer(ctx, cmd, record.User.Name)
}

func (s *LedgerCommandService) selfTransfer(ctx context.Context, cmd cqrs.TransferCommand, destID string) error {
	var source, dest *models.Account
	_, err := s.updateRecord(ctx, cmd.CRN, func(r *models.UserRecord) error {
		source = r.AccountByID(cmd.AccountID)
		dest = r.AccountByID(destID)
		if source == nil || dest == nil {
			return models.ErrAccountNotFound
		}
		if source.Balance < cmd.Amount {
			return models.ErrInsufficientFunds
		}

		now := time.Now().UTC()
		source.Balance -= cmd.Amount
		source.UpdatedAt = now
		dest.Balance += cmd.Amount
		dest.UpdatedAt = now

		memo := memoOr(cmd.Memo, fmt.Sprintf("Transfer to %s (%s)", dest.AccountType, dest.AccountNumber))
		r.AppendTransaction(newTransaction(source.ID, models.TxnTransferOut, cmd.Amount, "Self", memo, cmd.TransferID))
		r.AppendTransaction(newTransaction(dest.ID, models.TxnTransferIn, cmd.Amount, "Self", memo, cmd.TransferID))
		return nil
	})
	if err != nil {
		return err
	}

	s.refreshView(ctx, cmd.CRN, source)
	s.refreshView(ctx, cmd.CRN, dest)
	s.readModel.MarkTransferProcessed(ctx, cmd.TransferID)
	s.publish(ctx, events.TransferMade, events.TransferMadeEvent{
		TransferID:      cmd.TransferID,
		SourceCRN:       cmd.CRN,
		SourceAccountID: source.ID,
		DestinationCRN:  cmd.CRN,
		DestinationID:   dest.ID,
		AmountMinor:     int64(cmd.Amount),
		External:        false,
	})
	return nil
}

func (s *LedgerCommandService) externalTransfer(ctx context.Context, cmd cqrs.TransferCommand, senderName string) error {
	// Phase 1: credit the recipient, compare-and-swap on their record
	// version. A conflict means another writer touched the record between our
	// load and save; reload and retry with a fresh resolution.
	var recipient *models.UserRecord
	var destID string
	for attempt := 0; ; attempt++ {
		directory, err := s.store.LoadDirectory(ctx)
		if err != nil {
			return err
		}
		recipient = resolveDirectoryRecord(directory, cmd.Destination, cmd.CRN)
		if recipient == nil {
			return models.ErrDestinationNotFound
		}
		dest := destinationAccount(recipient, cmd.Destination)
		if dest == nil {
			return models.ErrDestinationNotFound
		}

		dest.Balance += cmd.Amount
		dest.UpdatedAt = time.Now().UTC()
		recipient.AppendTransaction(newTransaction(
			dest.ID, models.TxnTransferIn, cmd.Amount,
			senderName,
			memoOr(cmd.Memo, fmt.Sprintf("Received from %s", senderName)),
			cmd.TransferID,
		))

		err = s.store.SaveDirectoryRecord(ctx, recipient)
		if err == nil {
			destID = dest.ID
			break
		}
		if err != models.ErrVersionConflict || attempt >= casRetries-1 {
			return err
		}
	}

	// Phase 2: the credit is durable; commit the local debit. The balance was
	// checked before phase 1 and concurrent writes can only credit this
	// record, so the re-check cannot fail on a retry.
	var source *models.Account
	_, err := s.updateRecord(ctx, cmd.CRN, func(r *models.UserRecord) error {
		source = r.AccountByID(cmd.AccountID)
		if source == nil {
			return models.ErrAccountNotFound
		}
		if source.Balance < cmd.Amount {
			return models.ErrInsufficientFunds
		}
		source.Balance -= cmd.Amount
		source.UpdatedAt = time.Now().UTC()
		r.AppendTransaction(newTransaction(
			source.ID, models.TxnTransferOut, cmd.Amount,
			recipient.User.Name,
			memoOr(cmd.Memo, fmt.Sprintf("Transfer to %s", recipient.User.Name)),
			cmd.TransferID,
		))
		return nil
	})
	if err != nil {
		s.compensateCredit(ctx, cmd.TransferID, cmd.Amount, recipient.User.CRN)
		return err
	}

	s.refreshView(ctx, cmd.CRN, source)
	s.readModel.MarkTransferProcessed(ctx, cmd.TransferID)
	s.publish(ctx, events.TransferMade, events.TransferMadeEvent{
		TransferID:      cmd.TransferID,
		SourceCRN:       cmd.CRN,
		SourceAccountID: source.ID,
		DestinationCRN:  recipient.User.CRN,
		DestinationID:   destID,
		AmountMinor:     int64(cmd.Amount),
		External:        true,
	})
	return nil
}

// compensateCredit unwinds phase 1 after a phase 2 failure: the recipient's
// credit and its transfer-in leg are removed so neither side of the transfer
// is applied.
func (s *LedgerCommandService) compensateCredit(ctx context.Context, transferID string, amount models.Amount, recipientCRN string) {
	for attempt := 0; attempt < casRetries; attempt++ {
		recipient, err := s.store.LoadRecord(ctx, recipientCRN)
		if err != nil {
			log.Printf("transfer %s: compensation load failed: %v", transferID, err)
			return
		}

		var creditLeg *models.Transaction
		for i := range recipient.Transactions {
			if recipient.Transactions[i].TransferID == transferID {
				creditLeg = &recipient.Transactions[i]
				break
			}
		}
		if creditLeg == nil {
			return // already compensated or never applied
		}
		if acc := recipient.AccountByID(creditLeg.AccountID); acc != nil {
			acc.Balance -= amount
			acc.UpdatedAt = time.Now().UTC()
		}
		kept := recipient.Transactions[:0]
		for _, t := range recipient.Transactions {
			if t.TransferID != transferID {
				kept = append(kept, t)
			}
		}
		recipient.Transactions = kept

		err = s.store.SaveDirectoryRecord(ctx, recipient)
		if err == nil {
			return
		}
		if err != models.ErrVersionConflict {
			log.Printf("transfer %s: compensation save failed, credit left dangling: %v", transferID, err)
			return
		}
	}
	log.Printf("transfer %s: compensation lost the version race %d times, giving up", transferID, casRetries)
}

// ReconcileTransfers scans the directory for credit legs stranded by a crash
// between the two phases of an external transfer: a recent transfer-in leg
// whose transfer ID has no committed marker and no matching transfer-out leg
// anywhere. The source was never debited, so the credit is compensated to
// restore conservation. Runs at startup before the service takes traffic.
func (s *LedgerCommandService) ReconcileTransfers(ctx context.Context) error {
	directory, err := s.store.LoadDirectory(ctx)
	if err != nil {
		return err
	}

	debited := make(map[string]bool)
	for _, record := range directory {
		for _, t := range record.Transactions {
			if t.Kind == models.TxnTransferOut && t.TransferID != "" {
				debited[t.TransferID] = true
			}
		}
	}

	cutoff := time.Now().UTC().Add(-reconcileWindow)
	for _, record := range directory {
		for _, t := range record.Transactions {
			if t.Kind != models.TxnTransferIn || t.TransferID == "" {
				continue
			}
			if debited[t.TransferID] || t.CreatedAt.Before(cutoff) {
				continue
			}
			if s.readModel.IsTransferProcessed(ctx, t.TransferID) {
				continue
			}
			log.Printf("reconcile: transfer %s credited %s but was never debited, compensating",
				t.TransferID, record.User.CRN)
			s.compensateCredit(ctx, t.TransferID, t.Amount, record.User.CRN)
		}
	}
	return nil
}
