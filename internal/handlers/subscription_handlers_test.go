package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"billing-mirror/internal/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubQuerier overrides just the queries a test needs; everything else
// panics through the embedded nil interface.
type stubQuerier struct {
	db.Querier
	getSubscriptionFunc         func(ctx context.Context, id string) (db.Subscription, error)
	listSubscriptionsByUserFunc func(ctx context.Context, userID pgtype.Text) ([]db.Subscription, error)
}

func (s *stubQuerier) GetSubscriptionByProviderID(ctx context.Context, id string) (db.Subscription, error) {
	return s.getSubscriptionFunc(ctx, id)
}

func (s *stubQuerier) ListSubscriptionsByUser(ctx context.Context, userID pgtype.Text) ([]db.Subscription, error) {
	return s.listSubscriptionsByUserFunc(ctx, userID)
}

func newSubscriptionRig(q db.Querier) *gin.Engine {
	gin.SetMode(gin.TestMode)

	handler := NewSubscriptionHandler(NewCommonServices(q, nil))
	router := gin.New()
	router.GET("/subscriptions", handler.ListSubscriptions)
	router.GET("/subscriptions/:subscription_id", handler.GetSubscription)
	return router
}

func TestGetSubscriptionReturnsMirroredRecord(t *testing.T) {
	q := &stubQuerier{
		getSubscriptionFunc: func(_ context.Context, id string) (db.Subscription, error) {
			require.Equal(t, "sub_123", id)
			return db.Subscription{
				ID:                     uuid.New(),
				ProviderSubscriptionID: "sub_123",
				ProviderCustomerID:     "cus_123",
				Status:                 "active",
				Quantity:               2,
				PriceID:                "price_abc",
				OrgID:                  pgtype.Text{String: "org_1", Valid: true},
			}, nil
		},
	}
	router := newSubscriptionRig(q)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions/sub_123", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp SubscriptionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sub_123", resp.ProviderSubscriptionID)
	assert.Equal(t, "active", resp.Status)
	assert.Equal(t, int64(2), resp.Quantity)
	assert.Equal(t, "org_1", resp.OrgID)
}

func TestGetSubscriptionNotFound(t *testing.T) {
	q := &stubQuerier{
		getSubscriptionFunc: func(context.Context, string) (db.Subscription, error) {
			return db.Subscription{}, pgx.ErrNoRows
		},
	}
	router := newSubscriptionRig(q)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions/sub_ghost", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSubscriptionsRequiresExactlyOneFilter(t *testing.T) {
	router := newSubscriptionRig(&stubQuerier{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions?org_id=org_1&user_id=user_1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSubscriptionsByUser(t *testing.T) {
	q := &stubQuerier{
		listSubscriptionsByUserFunc: func(_ context.Context, userID pgtype.Text) ([]db.Subscription, error) {
			require.Equal(t, "user_1", userID.String)
			return []db.Subscription{
				{ID: uuid.New(), ProviderSubscriptionID: "sub_1", Status: "active"},
				{ID: uuid.New(), ProviderSubscriptionID: "sub_2", Status: "canceled"},
			}, nil
		},
	}
	router := newSubscriptionRig(q)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions?user_id=user_1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Object string                 `json:"object"`
		Data   []SubscriptionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "sub_1", resp.Data[0].ProviderSubscriptionID)
}
