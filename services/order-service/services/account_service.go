package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/common/logger"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
)

// purgeStep is one node of the account purge graph. A step runs only after
// every step named in after.
type purgeStep struct {
	name  string
	after []string
	run   func(ctx context.Context, tx repository.Store, userID uuid.UUID) (int64, error)
}

// Orders, their lines and payment records are the system of record and are
// kept; only the link to the person is removed.
var purgeSteps = []purgeStep{
	{
		name: "cart_items.delete",
		run: func(ctx context.Context, tx repository.Store, userID uuid.UUID) (int64, error) {
			return tx.Carts().DeleteByUser(ctx, userID)
		},
	},
	{
		name:  "orders.detach_shipping_address",
		after: []string{"cart_items.delete"},
		run: func(ctx context.Context, tx repository.Store, userID uuid.UUID) (int64, error) {
			return tx.Orders().DetachAddresses(ctx, userID)
		},
	},
	{
		name:  "orders.anonymise_owner",
		after: []string{"orders.detach_shipping_address"},
		run: func(ctx context.Context, tx repository.Store, userID uuid.UUID) (int64, error) {
			return tx.Orders().ReassignOwner(ctx, userID, uuid.Nil)
		},
	},
}

type PurgeStepResult struct {
	Step string
	Rows int64
}

type PurgeReport struct {
	UserID uuid.UUID
	Steps  []PurgeStepResult
}

// AccountService removes a user's footprint from the order store.
type AccountService interface {
	PurgeUser(ctx context.Context, userID uuid.UUID) (*PurgeReport, error)
}

type accountServiceImpl struct {
	store  repository.Store
	steps  []purgeStep
	logger *zap.Logger
}

func NewAccountService(store repository.Store, logger *zap.Logger) (AccountService, error) {
	steps, err := orderPurgeSteps(purgeSteps)
	if err != nil {
		return nil, err
	}
	return &accountServiceImpl{store: store, steps: steps, logger: logger}, nil
}

// PurgeUser runs every step in dependency order inside one transaction.
func (s *accountServiceImpl) PurgeUser(ctx context.Context, userID uuid.UUID) (*PurgeReport, error) {
	if userID == uuid.Nil {
		return nil, apperrors.Newf(apperrors.KindInvalidRequest, "A user id is required")
	}

	report := &PurgeReport{UserID: userID}
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		report.Steps = report.Steps[:0]
		for _, step := range s.steps {
			n, err := step.run(ctx, tx, userID)
			if err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
			report.Steps = append(report.Steps, PurgeStepResult{Step: step.name, Rows: n})
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal("Failed to purge user data", err)
	}

	fields := []zap.Field{zap.String("user_id", userID.String())}
	for _, r := range report.Steps {
		fields = append(fields, zap.Int64(r.Step, r.Rows))
	}
	logger.For(ctx, s.logger).Info("User data purged", fields...)
	return report, nil
}

// orderPurgeSteps sorts steps topologically, keeping declaration order among
// steps that are ready at the same time.
func orderPurgeSteps(steps []purgeStep) ([]purgeStep, error) {
	byName := make(map[string]purgeStep, len(steps))
	for _, st := range steps {
		if _, dup := byName[st.name]; dup {
			return nil, fmt.Errorf("duplicate purge step %q", st.name)
		}
		byName[st.name] = st
	}
	for _, st := range steps {
		for _, dep := range st.after {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("purge step %q depends on unknown step %q", st.name, dep)
			}
		}
	}

	done := make(map[string]bool, len(steps))
	ordered := make([]purgeStep, 0, len(steps))
	for len(ordered) < len(steps) {
		progressed := false
		for _, st := range steps {
			if done[st.name] || !ready(st, done) {
				continue
			}
			done[st.name] = true
			ordered = append(ordered, st)
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("purge steps contain a cycle")
		}
	}
	return ordered, nil
}

func ready(st purgeStep, done map[string]bool) bool {
	for _, dep := range st.after {
		if !done[dep] {
			return false
		}
	}
	return true
}
