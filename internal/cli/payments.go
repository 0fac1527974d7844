package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vitwit/pinetwork/journal"
	"github.com/vitwit/pinetwork/types"
	"github.com/vitwit/pinetwork/utils"
)

type paymentFlags struct {
	uid      string
	amount   string
	memo     string
	metadata string
}

func (f *paymentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.uid, "uid", "", "Pi uid of the user to pay")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount in Pi, at most 7 decimals")
	cmd.Flags().StringVar(&f.memo, "memo", "", "memo shown to the user")
	cmd.Flags().StringVar(&f.metadata, "metadata", "{}", "JSON metadata stored with the payment")
	_ = cmd.MarkFlagRequired("uid")
	_ = cmd.MarkFlagRequired("amount")
}

func (f *paymentFlags) args() (types.PaymentArgs, error) {
	amount, err := utils.ValidateAmount(f.amount)
	if err != nil {
		return types.PaymentArgs{}, fmt.Errorf("--amount: %w", err)
	}
	if err := utils.ValidateJSON(f.metadata); err != nil {
		return types.PaymentArgs{}, fmt.Errorf("--metadata: %w", err)
	}
	return types.PaymentArgs{
		Amount:   amount.InexactFloat64(),
		Memo:     f.memo,
		Metadata: json.RawMessage(f.metadata),
		UID:      f.uid,
	}, nil
}

type payOutput struct {
	PaymentID string         `json:"payment_id"`
	TxID      string         `json:"txid"`
	Payment   *types.Payment `json:"payment"`
}

func newPayCmd(a *app) *cobra.Command {
	var f paymentFlags
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Create, submit and complete a payment in one go",
		Args:  cobra.NoArgs,
		RunE: a.withAgent(func(cmd *cobra.Command, _ []string) error {
			args, err := f.args()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			paymentID, err := a.create(ctx, args)
			if err != nil {
				return err
			}
			txID, err := a.submit(ctx, paymentID)
			if err != nil {
				return err
			}
			payment, err := a.complete(ctx, paymentID, txID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payOutput{PaymentID: paymentID, TxID: txID, Payment: payment})
		}),
	}
	f.bind(cmd)
	return cmd
}

func newCreateCmd(a *app) *cobra.Command {
	var f paymentFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a payment without submitting it",
		Args:  cobra.NoArgs,
		RunE: a.withAgent(func(cmd *cobra.Command, _ []string) error {
			args, err := f.args()
			if err != nil {
				return err
			}
			paymentID, err := a.create(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"payment_id": paymentID})
		}),
	}
	f.bind(cmd)
	return cmd
}

func newSubmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <payment-id>",
		Short: "Sign and submit the ledger transaction of an open payment",
		Args:  cobra.ExactArgs(1),
		RunE: a.withAgent(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			payment, err := a.pi.ResumePayment(ctx, args[0])
			if err != nil {
				return err
			}
			a.ensureJournaled(ctx, payment)

			txID, err := a.submit(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"payment_id": args[0], "txid": txID})
		}),
	}
}

func newCompleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <payment-id> <txid>",
		Short: "Report the ledger transaction of a payment to the Pi API",
		Args:  cobra.ExactArgs(2),
		RunE: a.withAgent(func(cmd *cobra.Command, args []string) error {
			if err := utils.ValidateTransactionHash(args[1]); err != nil {
				return err
			}
			payment, err := a.complete(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payment)
		}),
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <payment-id>",
		Short: "Show a payment",
		Args:  cobra.ExactArgs(1),
		RunE: a.withAgent(func(cmd *cobra.Command, args []string) error {
			payment, err := a.pi.GetPayment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payment)
		}),
	}
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <payment-id>",
		Short: "Cancel a payment",
		Args:  cobra.ExactArgs(1),
		RunE: a.withAgent(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			payment, err := a.pi.CancelPayment(ctx, args[0])
			if err != nil {
				return err
			}
			a.ensureJournaled(ctx, payment)
			a.record("cancelled", args[0], func(j journal.Journal) error {
				return j.RecordCancelled(ctx, args[0])
			})
			return printJSON(cmd.OutOrStdout(), payment)
		}),
	}
}

func newIncompleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "incomplete",
		Short: "List payments the Pi API still considers open",
		Args:  cobra.NoArgs,
		RunE: a.withAgent(func(cmd *cobra.Command, _ []string) error {
			payments, err := a.pi.GetIncompleteServerPayments(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payments)
		}),
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <payment-id> <txid>",
		Short: "Check a ledger transaction against a payment",
		Args:  cobra.ExactArgs(2),
		RunE: a.withAgent(func(cmd *cobra.Command, args []string) error {
			res, err := a.pi.VerifyTransaction(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func newPendingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List journaled payouts that are not completed or cancelled",
		Args:  cobra.NoArgs,
		RunE: a.withAgent(func(cmd *cobra.Command, _ []string) error {
			if a.journal == nil {
				return errors.New("no journal configured, set PI_JOURNAL_PATH")
			}
			entries, err := a.journal.Pending(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		}),
	}
}

func (a *app) create(ctx context.Context, args types.PaymentArgs) (string, error) {
	paymentID, err := a.pi.CreatePayment(ctx, args)
	if err != nil {
		return "", err
	}
	payment := a.pi.CurrentPayment()
	a.record("created", paymentID, func(j journal.Journal) error {
		return j.RecordCreated(ctx, payment)
	})
	return paymentID, nil
}

func (a *app) submit(ctx context.Context, paymentID string) (string, error) {
	if err := a.checkNotSubmitted(ctx, paymentID); err != nil {
		return "", err
	}
	txID, err := a.pi.SubmitPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	a.record("submitted", paymentID, func(j journal.Journal) error {
		return j.RecordSubmitted(ctx, paymentID, txID)
	})
	return txID, nil
}

func (a *app) complete(ctx context.Context, paymentID, txID string) (*types.Payment, error) {
	payment, err := a.pi.CompletePayment(ctx, paymentID, txID)
	if err != nil {
		return nil, err
	}
	a.ensureJournaled(ctx, payment)
	a.record("completed", paymentID, func(j journal.Journal) error {
		if err := j.RecordSubmitted(ctx, paymentID, txID); err != nil && !errors.Is(err, journal.ErrTransition) {
			return err
		}
		return j.RecordCompleted(ctx, paymentID)
	})
	return payment, nil
}

// checkNotSubmitted refuses to sign a payment the journal already has a
// transaction for. The Pi API only learns the txid at completion, so after a
// crash between submit and complete the journal is the only record of it.
func (a *app) checkNotSubmitted(ctx context.Context, paymentID string) error {
	if a.journal == nil {
		return nil
	}
	e, err := a.journal.Get(ctx, paymentID)
	switch {
	case errors.Is(err, journal.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("read journal: %w", err)
	case e.TxID != "" || e.State == journal.StateSubmitted || e.State == journal.StateCompleted:
		return types.NewAlreadySubmittedError(paymentID, e.TxID)
	}
	return nil
}

// ensureJournaled adds payments created by another process to the journal.
func (a *app) ensureJournaled(ctx context.Context, payment *types.Payment) {
	a.record("created", payment.Identifier, func(j journal.Journal) error {
		_, err := j.Get(ctx, payment.Identifier)
		if !errors.Is(err, journal.ErrNotFound) {
			return err
		}
		return j.RecordCreated(ctx, payment)
	})
}
