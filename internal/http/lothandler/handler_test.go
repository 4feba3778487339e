package lothandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowerbidgo/internal/bidhistory"
	"flowerbidgo/internal/bidledger"
	"flowerbidgo/internal/identity"
	"flowerbidgo/internal/lot"
	"flowerbidgo/internal/services/auction"
)

// stubService cans the responses the handler needs; the real service has
// its own tests.
type stubService struct {
	lots        map[string]lot.Lot
	bids        []bidledger.Bid
	placed      []decimal.Decimal
	bidErr      error
	deleted     []string
	finalizedBy []string
}

func (s *stubService) CreateLot(_ context.Context, l lot.Lot) (*lot.Lot, error) {
	l.ID = "lot-new"
	l.Status = lot.StatusUpcoming
	l.CurrentPrice = l.InitialPrice
	return &l, nil
}

func (s *stubService) DeleteLot(_ context.Context, lotID, requesterID string) error {
	if _, ok := s.lots[lotID]; !ok {
		return auction.ErrLotNotFound
	}
	s.deleted = append(s.deleted, lotID)
	return nil
}

func (s *stubService) GetLot(_ context.Context, id string) (*lot.Lot, error) {
	l, ok := s.lots[id]
	if !ok {
		return nil, auction.ErrLotNotFound
	}
	return &l, nil
}

func (s *stubService) ListLots(_ context.Context, status string, limit, offset int) ([]lot.Lot, error) {
	out := make([]lot.Lot, 0, len(s.lots))
	for _, l := range s.lots {
		if status == "" || string(l.Status) == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubService) ListBids(_ context.Context, lotID string) ([]bidledger.Bid, error) {
	if _, ok := s.lots[lotID]; !ok {
		return nil, auction.ErrLotNotFound
	}
	return s.bids, nil
}

func (s *stubService) PlaceBid(_ context.Context, lotID, bidderID string, amount decimal.Decimal) (*bidledger.Bid, error) {
	if s.bidErr != nil {
		return nil, s.bidErr
	}
	s.placed = append(s.placed, amount)
	return &bidledger.Bid{ID: "bid-1", LotID: lotID, BidderID: bidderID, Amount: amount, IsWinning: true}, nil
}

func (s *stubService) BidHistory(_ context.Context, bidderID string) ([]bidhistory.Entry, error) {
	return []bidhistory.Entry{{LotID: "lot-1", BidID: "bid-1", Amount: decimal.NewFromInt(150)}}, nil
}

func (s *stubService) CloseExpiredLots(context.Context, time.Time) {}

func (s *stubService) Finalize(_ context.Context, lotID, requesterID string) (*auction.SettlementResult, error) {
	if _, ok := s.lots[lotID]; !ok {
		return nil, auction.ErrLotNotFound
	}
	s.finalizedBy = append(s.finalizedBy, requesterID)
	return &auction.SettlementResult{LotID: lotID, Settled: true}, nil
}

func (s *stubService) PurgeClosedBids(context.Context) error { return nil }

func newTestRouter(t *testing.T, svc auction.IAuctionService) (*gin.Engine, *identity.Provider) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := identity.NewProvider("handler-test-secret")
	r := gin.New()
	New(svc, auth).Register(r)
	return r, auth
}

func bearer(t *testing.T, auth *identity.Provider, userID, role string) string {
	t.Helper()
	tok, err := auth.Issue(userID, role, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestGetLot(t *testing.T) {
	svc := &stubService{lots: map[string]lot.Lot{
		"lot-1": {ID: "lot-1", Name: "Red Rose", Status: lot.StatusLive, CurrentPrice: decimal.NewFromInt(120)},
	}}
	r, _ := newTestRouter(t, svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lots/lot-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got lot.Lot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Red Rose", got.Name)
	assert.Equal(t, lot.StatusLive, got.Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lots/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaceBid_RequiresAuth(t *testing.T) {
	svc := &stubService{lots: map[string]lot.Lot{"lot-1": {ID: "lot-1"}}}
	r, auth := newTestRouter(t, svc)

	body := bytes.NewBufferString(`{"amount":"150"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/lots/lot-1/bid", body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/lots/lot-1/bid", bytes.NewBufferString(`{"amount":"150"}`))
	req.Header.Set("Authorization", bearer(t, auth, "alice", identity.RoleBidder))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var got bidledger.Bid
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "alice", got.BidderID)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(150)))
}

func TestPlaceBid_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"too low", auction.ErrBidTooLow, http.StatusBadRequest},
		{"closed", auction.ErrAlreadyClosed, http.StatusConflict},
		{"broke", auction.ErrInsufficientBalance, http.StatusPaymentRequired},
		{"rate limited", auction.ErrRateLimited, http.StatusTooManyRequests},
		{"missing", auction.ErrLotNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{bidErr: tc.err}
			r, auth := newTestRouter(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/lots/lot-1/bid", bytes.NewBufferString(`{"amount":"150"}`))
			req.Header.Set("Authorization", bearer(t, auth, "alice", identity.RoleBidder))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestCreateLot_SellerOnly(t *testing.T) {
	svc := &stubService{lots: map[string]lot.Lot{}}
	r, auth := newTestRouter(t, svc)

	payload := `{
		"name": "Red Rose", "category": "Romantic", "size": 40,
		"quantity": "12 stems", "lot_number": 7, "initial_price": "100",
		"starts_at": "2025-07-27T16:05:05Z", "ends_at": "2025-07-27T17:05:05Z"
	}`

	req := httptest.NewRequest(http.MethodPost, "/lots", bytes.NewBufferString(payload))
	req.Header.Set("Authorization", bearer(t, auth, "bob", identity.RoleBidder))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/lots", bytes.NewBufferString(payload))
	req.Header.Set("Authorization", bearer(t, auth, "seller-1", identity.RoleSeller))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var got lot.Lot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "seller-1", got.SellerID)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(100)))
}

func TestDeleteLot(t *testing.T) {
	svc := &stubService{lots: map[string]lot.Lot{"lot-1": {ID: "lot-1", SellerID: "seller-1"}}}
	r, auth := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodDelete, "/lots/lot-1", nil)
	req.Header.Set("Authorization", bearer(t, auth, "seller-1", identity.RoleSeller))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"lot-1"}, svc.deleted)
}

func TestFinalize_RequesterAttribution(t *testing.T) {
	svc := &stubService{lots: map[string]lot.Lot{"lot-1": {ID: "lot-1", SellerID: "seller-1"}}}
	r, auth := newTestRouter(t, svc)

	// Sellers are identified to the service so it can enforce ownership.
	req := httptest.NewRequest(http.MethodPost, "/lots/lot-1/finalize", nil)
	req.Header.Set("Authorization", bearer(t, auth, "seller-1", identity.RoleSeller))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Admins settle on behalf of the system, like the sweep does.
	req = httptest.NewRequest(http.MethodPost, "/lots/lot-1/finalize", nil)
	req.Header.Set("Authorization", bearer(t, auth, "root", identity.RoleAdmin))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"seller-1", ""}, svc.finalizedBy)
}

func TestMyBids(t *testing.T) {
	svc := &stubService{}
	r, auth := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/me/bids", nil)
	req.Header.Set("Authorization", bearer(t, auth, "alice", identity.RoleBidder))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got []bidhistory.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "bid-1", got[0].BidID)
}

func TestListLots_RejectsBadStatus(t *testing.T) {
	svc := &stubService{}
	r, _ := newTestRouter(t, svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lots?status=BOGUS", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
