package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"jmapclient/internal/jmap/protocol"
)

type reply struct {
	name   string
	result interface{}
}

type methodHandler func(args json.RawMessage) []reply

func respond(name string, result interface{}) []reply {
	return []reply{{name, result}}
}

func methodError(typ, description string) []reply {
	return respond("error", map[string]string{"type": typ, "description": description})
}

// fakeServer is a minimal JMAP server. Method handlers are registered per
// method name; every batch it receives is recorded.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	capabilities  map[string]interface{}
	accounts      map[string]interface{}
	primary       map[string]string
	eventSource   bool
	sessionStatus int
	sessionState  string
	apiStatus     int
	apiRaw        string
	token         string
	username      string
	password      string
	handlers      map[string]methodHandler
	batches       [][]protocol.MethodCall
	uploads       []string
	nestedUpload  bool
	blobs         map[string]string
	states        map[string]map[string]string
	events        chan string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	all := map[string]interface{}{
		protocol.MailCapability:             map[string]interface{}{},
		protocol.SubmissionCapability:       map[string]interface{}{},
		protocol.VacationResponseCapability: map[string]interface{}{},
		protocol.ContactsCapability:         map[string]interface{}{},
		protocol.CalendarsCapability:        map[string]interface{}{},
		protocol.SieveCapability:            map[string]interface{}{},
	}
	caps := map[string]interface{}{
		protocol.CoreCapability: map[string]interface{}{"maxCallsInRequest": 32, "maxSizeUpload": 1 << 20},
	}
	primary := map[string]string{}
	for k, v := range all {
		caps[k] = v
		primary[k] = "A1"
	}

	f := &fakeServer{
		t:            t,
		capabilities: caps,
		accounts: map[string]interface{}{
			"A1": map[string]interface{}{"name": "user@example.com", "isPersonal": true, "accountCapabilities": all},
			"S2": map[string]interface{}{"name": "shared@example.com", "isPersonal": false, "accountCapabilities": map[string]interface{}{
				protocol.MailCapability: map[string]interface{}{},
			}},
		},
		primary:      primary,
		sessionState: "s1",
		username:     "user@example.com",
		password:     "secret",
		handlers:     map[string]methodHandler{},
		blobs:        map[string]string{},
		states:       map[string]map[string]string{},
	}
	f.handle(protocol.MethodCoreEcho, func(args json.RawMessage) []reply {
		return respond(protocol.MethodCoreEcho, args)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jmap", f.serveSession)
	mux.HandleFunc("/jmap/api/", f.serveAPI)
	mux.HandleFunc("/jmap/upload/", f.serveUpload)
	mux.HandleFunc("/jmap/download/", f.serveDownload)
	mux.HandleFunc("/jmap/eventsource/", f.serveEvents)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) handle(method string, h methodHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeServer) set(fn func(f *fakeServer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeServer) setState(account, typ, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states[account] == nil {
		f.states[account] = map[string]string{}
	}
	f.states[account][typ] = state
}

// recorded returns every call seen so far, in order.
func (f *fakeServer) recorded() []protocol.MethodCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.MethodCall
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func (f *fakeServer) lastBatch() []protocol.MethodCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

func (f *fakeServer) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token != "" {
		return r.Header.Get("Authorization") == "Bearer "+f.token
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == f.username && pass == f.password
}

func (f *fakeServer) serveSession(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionStatus != 0 {
		w.WriteHeader(f.sessionStatus)
		return
	}
	internal := "https://jmap.internal.invalid:8443"
	session := map[string]interface{}{
		"capabilities":    f.capabilities,
		"accounts":        f.accounts,
		"primaryAccounts": f.primary,
		"username":        f.username,
		"apiUrl":          internal + "/jmap/api/",
		"downloadUrl":     internal + "/jmap/download/{accountId}/{blobId}/{name}?accept={type}",
		"uploadUrl":       internal + "/jmap/upload/{accountId}/",
		"state":           f.sessionState,
	}
	if f.eventSource {
		session["eventSourceUrl"] = internal + "/jmap/eventsource/?types={types}&closeafter={closeafter}&ping={ping}"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(session)
}

func (f *fakeServer) serveAPI(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.batches = append(f.batches, req.MethodCalls)
	status, raw, state := f.apiStatus, f.apiRaw, f.sessionState
	handlers := make(map[string]methodHandler, len(f.handlers))
	for k, v := range f.handlers {
		handlers[k] = v
	}
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, "upstream unavailable", status)
		return
	}
	if raw != "" {
		_, _ = io.WriteString(w, raw)
		return
	}

	resp := protocol.Response{SessionState: state}
	for _, call := range req.MethodCalls {
		args, _ := call.Arguments.(json.RawMessage)
		h := handlers[call.Name]
		if h == nil && strings.HasSuffix(call.Name, "/get") {
			h = f.stateGet(call.Name)
		}
		if h == nil {
			h = func(json.RawMessage) []reply { return methodError("unknownMethod", "") }
		}
		for _, rep := range h(args) {
			data, err := json.Marshal(rep.result)
			if err != nil {
				f.t.Errorf("marshal %s result: %v", rep.name, err)
				continue
			}
			resp.MethodResponses = append(resp.MethodResponses, protocol.MethodResponse{Name: rep.name, Arguments: data, CallId: call.CallId})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// stateGet answers X/get with the configured state token and no objects.
func (f *fakeServer) stateGet(method string) methodHandler {
	typ := strings.TrimSuffix(method, "/get")
	return func(args json.RawMessage) []reply {
		var a struct {
			AccountId string `json:"accountId"`
		}
		_ = json.Unmarshal(args, &a)
		f.mu.Lock()
		state := f.states[a.AccountId][typ]
		f.mu.Unlock()
		if state == "" {
			return methodError("accountNotSupportedByMethod", "")
		}
		return respond(method, map[string]interface{}{"accountId": a.AccountId, "state": state, "list": []interface{}{}, "notFound": []interface{}{}})
	}
}

func (f *fakeServer) serveUpload(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	account := strings.Trim(strings.TrimPrefix(r.URL.Path, "/jmap/upload/"), "/")
	body, _ := io.ReadAll(r.Body)
	contentType := r.Header.Get("Content-Type")

	f.mu.Lock()
	f.uploads = append(f.uploads, contentType)
	blobId := fmt.Sprintf("G%d", len(f.uploads))
	f.blobs[blobId] = string(body)
	nested := f.nestedUpload
	f.mu.Unlock()

	ref := map[string]interface{}{"blobId": blobId, "size": len(body), "type": contentType}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if nested {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{account: ref})
		return
	}
	ref["accountId"] = account
	_ = json.NewEncoder(w).Encode(ref)
}

func (f *fakeServer) serveDownload(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/jmap/download/"), "/")
	if len(parts) < 2 {
		http.NotFound(w, r)
		return
	}
	f.mu.Lock()
	data, ok := f.blobs[parts[1]]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", r.URL.Query().Get("accept"))
	_, _ = io.WriteString(w, data)
}

func (f *fakeServer) serveEvents(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	events := f.events
	f.mu.Unlock()
	if events == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, ": ping\n\nevent: state\ndata: %s\n\n", data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// newTestClient builds a basic-auth client for f. mutate may adjust the
// configuration before the client is created.
func newTestClient(t *testing.T, f *fakeServer, mutate func(*Config)) *Client {
	t.Helper()
	cfg := NewConfig(f.srv.URL)
	cfg.AuthMethod = AuthBasic
	cfg.Username = "user@example.com"
	cfg.Password = "secret"
	cfg.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Disconnect)
	return c
}

func connectedClient(t *testing.T, f *fakeServer, mutate func(*Config)) *Client {
	t.Helper()
	c := newTestClient(t, f, mutate)
	if _, err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return c
}

// decodeArgs unmarshals recorded call arguments.
func decodeArgs(t *testing.T, call protocol.MethodCall, v interface{}) {
	t.Helper()
	raw, ok := call.Arguments.(json.RawMessage)
	if !ok {
		t.Fatalf("%s arguments have type %T", call.Name, call.Arguments)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decoding %s arguments: %v", call.Name, err)
	}
}

func mailboxesHandler(byAccount map[string][]map[string]interface{}) methodHandler {
	return func(args json.RawMessage) []reply {
		var a struct {
			AccountId string `json:"accountId"`
		}
		_ = json.Unmarshal(args, &a)
		list, ok := byAccount[a.AccountId]
		if !ok {
			return methodError("accountNotFound", "")
		}
		return respond(protocol.MethodMailboxGet, map[string]interface{}{"accountId": a.AccountId, "state": "m1", "list": list, "notFound": []string{}})
	}
}

func standardMailboxes() map[string][]map[string]interface{} {
	return map[string][]map[string]interface{}{
		"A1": {
			{"id": "inbox", "name": "Inbox", "role": "inbox"},
			{"id": "drafts", "name": "Drafts", "role": "drafts"},
			{"id": "sent", "name": "Sent", "role": "sent"},
			{"id": "junk", "name": "Junk", "role": "junk"},
		},
		"S2": {
			{"id": "m1", "name": "Shared Inbox", "role": "inbox"},
			{"id": "m2", "name": "Projects", "parentId": "m1"},
			{"id": "spam", "name": "Spam", "role": "junk"},
		},
	}
}
