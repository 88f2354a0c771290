package donation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"segmentbook-service/internal/domain/donation"
	xerrors "segmentbook-service/internal/pkg/errors"
)

type fakeRepo struct {
	donatedTo string
	filters   *donation.ListFilters
	acceptErr error
}

func (f *fakeRepo) RequestBook(_ context.Context, bookID, requesterID string) (*donation.Request, error) {
	return &donation.Request{ID: "r1", BookID: bookID, RequesterID: requesterID, Status: donation.StatusPending}, nil
}

func (f *fakeRepo) MarkDonated(_ context.Context, _, _, recipientUsername string) error {
	f.donatedTo = recipientUsername
	return nil
}

func (f *fakeRepo) Accept(_ context.Context, requestID, _ string) (*donation.AcceptResult, error) {
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	return &donation.AcceptResult{RequestID: requestID, ChatID: "c1"}, nil
}

func (f *fakeRepo) Reject(context.Context, string, string) error { return nil }

func (f *fakeRepo) ActiveReceived(context.Context, string) ([]donation.ActiveRequest, error) {
	return nil, nil
}

func (f *fakeRepo) ActiveSent(context.Context, string) ([]donation.ActiveRequest, error) {
	return nil, nil
}

func (f *fakeRepo) ListByRequester(_ context.Context, _ string, lf *donation.ListFilters) (*donation.RequestPage, error) {
	f.filters = lf
	return &donation.RequestPage{}, nil
}

func TestMarkDonatedNormalizesUsername(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewDonationService(repo, zap.NewNop())

	require.NoError(t, svc.MarkDonated(context.Background(), "donor", "b1", " @Reader_42 "))
	assert.Equal(t, "reader_42", repo.donatedTo)
}

func TestAcceptReturnsChat(t *testing.T) {
	svc := NewDonationService(&fakeRepo{}, zap.NewNop())

	res, err := svc.Accept(context.Background(), "donor", "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", res.RequestID)
	assert.Equal(t, "c1", res.ChatID)
}

func TestAcceptPassesRepositoryErrors(t *testing.T) {
	notPending := xerrors.New(xerrors.ErrConflict, "This request is no longer pending")
	svc := NewDonationService(&fakeRepo{acceptErr: notPending}, zap.NewNop())

	_, err := svc.Accept(context.Background(), "donor", "r1")
	assert.ErrorIs(t, err, xerrors.ErrConflict)
	msg, ok := xerrors.Public(err)
	assert.True(t, ok)
	assert.Equal(t, "This request is no longer pending", msg)
}

func TestListMineDefaultsToAll(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewDonationService(repo, zap.NewNop())

	_, err := svc.ListMine(context.Background(), "u1", &donation.ListFilters{})
	require.NoError(t, err)
	assert.Equal(t, donation.FilterAll, repo.filters.Status)
	assert.Equal(t, 1, repo.filters.Page)
}
