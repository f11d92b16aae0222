package identity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lborres/vouch/core"
)

// fakeProvider is an httptest stand-in for the DigiLocker API. Each endpoint
// has a status/body pair that tests set before calling.
type fakeProvider struct {
	server *httptest.Server

	authCalls  atomic.Int32
	initCalls  atomic.Int32
	fetchCalls atomic.Int32

	mu          sync.Mutex
	authStatus  int
	authDelay   time.Duration
	initStatus  int
	initBody    string
	fetchStatus int
	fetchBody   string
	fileStatus  int
	fileBody    string

	lastAuthHeaders http.Header
	lastInitHeaders http.Header
	lastInitPayload map[string]any
	lastFetchPath   string
	lastFileHeaders http.Header
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		authStatus:  http.StatusOK,
		initStatus:  http.StatusOK,
		initBody:    `{"data":{"session_id":"sess-1","authorization_url":"https://digilocker.example/authorize/sess-1"}}`,
		fetchStatus: http.StatusOK,
		fetchBody:   `{"data":{}}`,
		fileStatus:  http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /authenticate", p.handleAuth)
	mux.HandleFunc("POST /kyc/digilocker/sessions/init", p.handleInit)
	mux.HandleFunc("GET /kyc/digilocker/sessions/{id}/documents/aadhaar", p.handleFetch)
	mux.HandleFunc("GET /files/aadhaar.xml", p.handleFile)

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) config() core.ProviderConfig {
	return core.ProviderConfig{
		BaseURL:   p.server.URL,
		APIKey:    "key_live_test",
		APISecret: "secret_live_test",
	}
}

func (p *fakeProvider) fileURL() string {
	return p.server.URL + "/files/aadhaar.xml"
}

func (p *fakeProvider) set(fn func(p *fakeProvider)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *fakeProvider) handleAuth(w http.ResponseWriter, r *http.Request) {
	n := p.authCalls.Add(1)

	p.mu.Lock()
	status, delay := p.authStatus, p.authDelay
	p.lastAuthHeaders = r.Header.Clone()
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status != http.StatusOK {
		fmt.Fprint(w, `{"code":401,"message":"Invalid API key or secret"}`)
		return
	}
	fmt.Fprintf(w, `{"data":{"access_token":"token-%d"}}`, n)
}

func (p *fakeProvider) handleInit(w http.ResponseWriter, r *http.Request) {
	p.initCalls.Add(1)

	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	p.mu.Lock()
	p.lastInitHeaders = r.Header.Clone()
	p.lastInitPayload = payload
	status, body := p.initStatus, p.initBody
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func (p *fakeProvider) handleFetch(w http.ResponseWriter, r *http.Request) {
	p.fetchCalls.Add(1)

	p.mu.Lock()
	p.lastFetchPath = r.URL.Path
	status, body := p.fetchStatus, p.fetchBody
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func (p *fakeProvider) handleFile(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.lastFileHeaders = r.Header.Clone()
	status, body := p.fileStatus, p.fileBody
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// testClock is a settable time source shared across goroutines.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const sampleAadhaarXML = `<?xml version="1.0" encoding="UTF-8"?>
<OfflinePaperlessKyc referenceId="1234">
  <UidData>
    <Poi dob="01-01-1990" gender="M" name="Ravi Kumar"/>
    <Poa country="India" dist="Pune" house="12B" pc="411001" state="Maharashtra"/>
  </UidData>
</OfflinePaperlessKyc>`

func (p *fakeProvider) authHeaders() http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuthHeaders
}

func (p *fakeProvider) initHeaders() http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastInitHeaders
}

func (p *fakeProvider) initPayload() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastInitPayload
}

func (p *fakeProvider) fetchPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFetchPath
}

func (p *fakeProvider) fileHeaders() http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFileHeaders
}
