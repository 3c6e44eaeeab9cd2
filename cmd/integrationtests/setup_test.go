package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"gift-auction/internal/auctionService"
	"gift-auction/internal/biddingService"
	"gift-auction/internal/ledgerService"
	"gift-auction/internal/notifier"
	"gift-auction/internal/repository"
	"gift-auction/internal/roundService"
	"gift-auction/internal/scheduler"
	"gift-auction/internal/server"

	"github.com/gin-gonic/gin"
)

// TestStack bundles the full service wiring over one in-memory repository.
type TestStack struct {
	Repo      *repository.MemoryRepo
	Router    *gin.Engine
	Scheduler *scheduler.Scheduler
}

// SetupTestStack initializes the router with an in-memory repository for
// integration testing. The scheduler is returned unticked so tests control
// time-driven transitions explicitly.
func SetupTestStack() *TestStack {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()

	ledgerSvc := ledger.NewService(repo)
	bidBook := bidding.NewBidBook(repo, ledgerSvc, notifier.Noop{})
	roundSvc := rounds.NewService(repo, ledgerSvc, notifier.Noop{})
	auctionSvc := auctions.NewService(repo, roundSvc, bidBook, notifier.Noop{})
	sched := scheduler.New(repo, auctionSvc, roundSvc, bidBook, notifier.Noop{}, 0)

	router := server.SetupRouter(repo, ledgerSvc, bidBook, auctionSvc, nil)
	return &TestStack{Repo: repo, Router: router, Scheduler: sched}
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}

	return resp, w
}

// Data extracts the payload object of a success envelope.
func Data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	data, ok := resp["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", resp)
	}
	return data
}
