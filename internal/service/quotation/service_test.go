package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/you-humble/repair-shop/internal/model"
	"github.com/you-humble/repair-shop/internal/service/mocks"
)

func TestServiceLines(t *testing.T) {
	t.Parallel()

	ordID := uuid.New()
	accepted := true
	rejected := false

	type testCase struct {
		name   string
		setup  func(repo *mocks.MockQuotationRepository)
		assert func(t *testing.T, got []model.QuotationLine, err error)
	}

	tests := []testCase{
		{
			name: "success: lines keep their per-line resolution",
			setup: func(repo *mocks.MockQuotationRepository) {
				repo.
					On("QuotationLines", mock.Anything, ordID).
					Return([]model.QuotationLine{
						{ID: uuid.New(), OrderID: ordID, Description: "replace screen", Quantity: 1, UnitCostCents: 12_000, Accepted: &accepted},
						{ID: uuid.New(), OrderID: ordID, Description: "new casing", Quantity: 1, UnitCostCents: 8_000, Accepted: &rejected},
					}, nil).
					Once()
			},
			assert: func(t *testing.T, got []model.QuotationLine, err error) {
				require.NoError(t, err)
				require.Len(t, got, 2)
				assert.True(t, *got[0].Accepted)
				assert.False(t, *got[1].Accepted)
			},
		},
		{
			name: "order not found",
			setup: func(repo *mocks.MockQuotationRepository) {
				repo.
					On("QuotationLines", mock.Anything, ordID).
					Return(nil, model.ErrOrderNotFound).
					Once()
			},
			assert: func(t *testing.T, got []model.QuotationLine, err error) {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrOrderNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := mocks.NewMockQuotationRepository(t)
			tt.setup(repo)

			svc := NewQuotationService(repo, 2*time.Second)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			got, err := svc.Lines(ctx, ordID)
			tt.assert(t, got, err)
		})
	}
}

func TestServiceTotalAccepted(t *testing.T) {
	t.Parallel()

	ordID := uuid.New()

	type testCase struct {
		name   string
		setup  func(repo *mocks.MockQuotationRepository)
		want   int64
		hasErr bool
	}

	tests := []testCase{
		{
			name: "sums only accepted lines",
			setup: func(repo *mocks.MockQuotationRepository) {
				repo.On("TotalAccepted", mock.Anything, ordID).Return(int64(20_000), nil).Once()
			},
			want: 20_000,
		},
		{
			name: "zero when nothing accepted",
			setup: func(repo *mocks.MockQuotationRepository) {
				repo.On("TotalAccepted", mock.Anything, ordID).Return(int64(0), nil).Once()
			},
			want: 0,
		},
		{
			name: "repository error",
			setup: func(repo *mocks.MockQuotationRepository) {
				repo.On("TotalAccepted", mock.Anything, ordID).Return(int64(0), errors.New("db read failed")).Once()
			},
			hasErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := mocks.NewMockQuotationRepository(t)
			tt.setup(repo)

			svc := NewQuotationService(repo, 2*time.Second)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			got, err := svc.TotalAccepted(ctx, ordID)
			if tt.hasErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
