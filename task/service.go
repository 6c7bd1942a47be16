package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stellar/go/amount"

	"github.com/microgig/microgig/eventbus"
	"github.com/microgig/microgig/pkg/cerr"
)

// Reward bounds in stroops (1 native unit = 10^7 stroops).
const (
	minReward = int64(1 * 10_000_000)
	maxReward = int64(10 * 10_000_000)
)

// PaymentSender settles a task reward on the ledger. Implemented by
// ledger.Client; tests substitute a fake.
type PaymentSender interface {
	SendPayment(ctx context.Context, destination, amount, source string) (hash string, err error)
}

// Service drives the task lifecycle. Every transition is validated here
// before it touches the repository; an event attempted outside its guarded
// source state is rejected with no side effect, even though the UI is not
// supposed to offer it.
type Service struct {
	repo     Repository
	payments PaymentSender
	bus      *eventbus.Bus
}

func NewService(repo Repository, payments PaymentSender, bus *eventbus.Bus) *Service {
	return &Service{
		repo:     repo,
		payments: payments,
		bus:      bus,
	}
}

type CreateRequest struct {
	Title         string
	Description   string
	Category      Category
	Reward        string
	PosterAddress string
	Deadline      *time.Time
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Task, error) {
	if req.PosterAddress == "" {
		return nil, cerr.NewError(cerr.Unauthenticated, "connect a wallet to post a task", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "title must not be empty", nil)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "description must not be empty", nil)
	}
	if !req.Category.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown category %q", req.Category), nil)
	}
	reward, err := parseReward(req.Reward)
	if err != nil {
		return nil, err
	}

	t := &Task{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Reward:        reward,
		PosterAddress: req.PosterAddress,
		Deadline:      req.Deadline,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.publish(eventbus.TypeTaskCreated, t)
	return t, nil
}

// parseReward validates the reward against the fixed [1, 10] range and
// returns it in the ledger's canonical decimal form.
func parseReward(raw string) (string, error) {
	stroops, err := amount.ParseInt64(strings.TrimSpace(raw))
	if err != nil {
		return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("reward %q is not a valid amount", raw), err)
	}
	if stroops < minReward || stroops > maxReward {
		return "", cerr.NewError(cerr.OutOfRange, "reward must be between 1 and 10", nil)
	}
	return amount.StringFromInt64(stroops), nil
}

// Claim moves an open task to in_progress and binds the worker.
func (s *Service) Claim(ctx context.Context, id, actor string) (*Task, error) {
	if actor == "" {
		return nil, cerr.NewError(cerr.Unauthenticated, "connect a wallet to claim a task", nil)
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransitionTo(StatusInProgress) {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("task cannot be claimed while %s", t.Status), nil)
	}
	if actor == t.PosterAddress {
		return nil, cerr.NewError(cerr.PermissionDenied, "posters cannot claim their own task", nil)
	}

	t.WorkerAddress = actor
	t.Status = StatusInProgress
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	s.publish(eventbus.TypeTaskClaimed, t)
	return t, nil
}

// Submit attaches the worker's submission and moves the task to completed.
// The submission text is stored verbatim.
func (s *Service) Submit(ctx context.Context, id, actor, submission string) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransitionTo(StatusCompleted) {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("task cannot be submitted while %s", t.Status), nil)
	}
	if actor != t.WorkerAddress {
		return nil, cerr.NewError(cerr.PermissionDenied, "only the claimed worker can submit", nil)
	}
	if strings.TrimSpace(submission) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "submission must not be empty", nil)
	}

	t.SubmissionText = submission
	t.Status = StatusCompleted
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	s.publish(eventbus.TypeTaskSubmitted, t)
	return t, nil
}

// Pay settles the reward to the worker and marks the task paid. The status
// and hash are applied together only after the ledger reports success; any
// payment failure leaves the task at completed so the poster can retry.
func (s *Service) Pay(ctx context.Context, id, actor string) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransitionTo(StatusPaid) {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("task cannot be paid while %s", t.Status), nil)
	}
	if actor != t.PosterAddress {
		return nil, cerr.NewError(cerr.PermissionDenied, "only the poster can release payment", nil)
	}

	hash, err := s.payments.SendPayment(ctx, t.WorkerAddress, t.Reward, actor)
	if err != nil {
		return nil, err
	}

	t.TxHash = hash
	t.Status = StatusPaid
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	s.publish(eventbus.TypeTaskPaid, t)
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Task, error) {
	return s.repo.List(ctx)
}

func (s *Service) publish(eventType eventbus.Type, t *Task) {
	if s.bus == nil {
		return
	}
	metadata := map[string]string{"status": string(t.Status)}
	if t.TxHash != "" {
		metadata["tx_hash"] = t.TxHash
	}
	s.bus.PublishNew(eventType, t.ID, metadata)
}
