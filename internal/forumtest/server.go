// Package forumtest provides an in-memory forum backend served over HTTP and
// WebSocket for tests of the client, engine and CLI.
package forumtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kball/forumwatch/internal/types"
)

// Request is one recorded HTTP call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

type failure struct {
	status  int
	code    string
	message string
}

type threadRecord struct {
	thread types.Thread
	posts  []types.Post
	events []types.Event
}

type streamConn struct {
	mu    sync.Mutex
	conn  *websocket.Conn
	scope types.Scope
}

func (c *streamConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Server is a fake forum backend. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	threads  map[string]*threadRecord
	seen     map[string]map[string]int64 // viewer -> thread -> sequence
	runs     []json.RawMessage
	debug    types.DebugSnapshot
	requests []Request
	failures map[string]failure
	streams  map[*streamConn]struct{}
	nextID   int
	now      func() time.Time
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewServer starts a fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		threads:  make(map[string]*threadRecord),
		seen:     make(map[string]map[string]int64),
		failures: make(map[string]failure),
		streams:  make(map[*streamConn]struct{}),
		runs:     []json.RawMessage{},
		debug: types.DebugSnapshot{
			Bus: types.BusStatus{Running: true, Healthy: true, StreamName: "forum", ConsumerGroup: "forum-ui", ConsumerName: "forumtest"},
		},
		now: func() time.Time { return time.Now().UTC() },
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.record)

	api := e.Group("/api/v1")
	api.GET("/runs", s.handleRuns)
	api.GET("/forum/search", s.handleSearch)
	api.GET("/forum/queues", s.handleQueues)
	api.GET("/forum/threads/:id", s.handleThread)
	api.POST("/forum/threads", s.handleCreate)
	api.POST("/forum/threads/:id/posts", s.handleReply)
	api.POST("/forum/threads/:id/seen", s.handleSeen)
	api.GET("/forum/debug", s.handleDebug)
	api.GET("/forum/stream", s.handleStream)

	s.Server = httptest.NewServer(e)
	return s
}

// Close disconnects every stream and shuts the server down.
func (s *Server) Close() {
	s.DropStreams()
	s.Server.Close()
}

// AddThread stores a thread with an initial thread.created event.
func (s *Server) AddThread(t types.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addThreadLocked(t, "")
}

func (s *Server) addThreadLocked(t types.Thread, body string) *threadRecord {
	if t.OpenedAt.IsZero() {
		t.OpenedAt = s.now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.OpenedAt
	}
	if t.State == "" {
		t.State = types.StateNew
	}
	if t.Priority == "" {
		t.Priority = types.PriorityNormal
	}
	rec := &threadRecord{thread: t}
	payload, _ := json.Marshal(map[string]string{"title": t.Title, "body": body})
	rec.appendEvent("thread.created", t.LastActorType, "", string(payload), t.OpenedAt)
	s.threads[t.ThreadID] = rec
	return rec
}

func (r *threadRecord) appendEvent(eventType string, actorType types.ActorType, actorName, payload string, at time.Time) types.Event {
	ev := types.Event{
		Sequence: int64(len(r.events) + 1),
		Envelope: types.Envelope{
			EventID:    fmt.Sprintf("%s-ev-%d", r.thread.ThreadID, len(r.events)+1),
			EventType:  eventType,
			ThreadID:   r.thread.ThreadID,
			Ticket:     r.thread.Ticket,
			RunID:      r.thread.RunID,
			ActorType:  actorType,
			ActorName:  actorName,
			OccurredAt: at,
		},
		PayloadJSON: payload,
	}
	r.events = append(r.events, ev)
	r.thread.LastEventSequence = ev.Sequence
	r.thread.UpdatedAt = at
	if actorType != "" {
		r.thread.LastActorType = actorType
	}
	return ev
}

// SetState changes a thread's state and emits a state event.
func (s *Server) SetState(threadID string, state types.ThreadState) {
	s.mu.Lock()
	rec, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		return
	}
	rec.thread.State = state
	payload, _ := json.Marshal(map[string]string{"state": string(state)})
	ev := rec.appendEvent("thread.state_changed", types.ActorSystem, "forum", string(payload), s.now())
	s.mu.Unlock()
	s.broadcast(ev)
}

// SetRuns replaces the raw run records returned by /api/v1/runs.
func (s *Server) SetRuns(raw ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = s.runs[:0]
	for _, r := range raw {
		s.runs = append(s.runs, json.RawMessage(r))
	}
}

// SetDebug replaces the debug snapshot.
func (s *Server) SetDebug(snap types.DebugSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug = snap
}

// Fail makes every method+path request fail with status until Recover.
// path is the request path, e.g. "/api/v1/forum/queues".
func (s *Server) Fail(method, path string, status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, code: code, message: message}
}

// Recover clears all injected failures.
func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// Requests returns every recorded request, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests for one method and path.
func (s *Server) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Thread returns a stored thread.
func (s *Server) Thread(threadID string) (types.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.threads[threadID]
	if !ok {
		return types.Thread{}, false
	}
	return rec.thread, true
}

// StreamCount returns the number of connected push streams.
func (s *Server) StreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// StreamScopes returns the scopes of the connected push streams.
func (s *Server) StreamScopes() []types.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Scope, 0, len(s.streams))
	for c := range s.streams {
		out = append(out, c.scope)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket+out[i].RunID < out[j].Ticket+out[j].RunID })
	return out
}

// Push sends a raw frame to every connected stream.
func (s *Server) Push(frame string) {
	for _, c := range s.connections() {
		_ = c.write([]byte(frame))
	}
}

// DropStreams closes every push connection from the server side.
func (s *Server) DropStreams() {
	for _, c := range s.connections() {
		c.mu.Lock()
		_ = c.conn.Close()
		c.mu.Unlock()
	}
}

func (s *Server) connections() []*streamConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*streamConn, 0, len(s.streams))
	for c := range s.streams {
		out = append(out, c)
	}
	return out
}

// broadcast pushes one event to the streams whose scope covers it.
func (s *Server) broadcast(ev types.Event) {
	frame, err := json.Marshal(map[string]interface{}{
		"type":        "forum.events",
		"events":      []types.Event{ev},
		"next_cursor": ev.Sequence,
		"sent_at":     s.now(),
	})
	if err != nil {
		return
	}
	for _, c := range s.connections() {
		if c.scope.Ticket != "" && c.scope.Ticket != ev.Envelope.Ticket {
			continue
		}
		if c.scope.RunID != "" && c.scope.RunID != ev.Envelope.RunID {
			continue
		}
		_ = c.write(frame)
	}
}

// record captures every request and applies injected failures.
func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.Query(),
			Body:   body,
		})
		f, failing := s.failures[req.Method+" "+req.URL.Path]
		s.mu.Unlock()

		if failing {
			return apiError(c, f.status, f.code, f.message)
		}
		return next(c)
	}
}

func apiError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

func scopeFrom(c echo.Context) types.Scope {
	return types.Scope{
		Ticket: strings.TrimSpace(c.QueryParam("ticket")),
		RunID:  strings.TrimSpace(c.QueryParam("run_id")),
	}
}

func limitFrom(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n <= 0 {
		return 300
	}
	return n
}

// matching returns the stored threads that pass the scope and priority
// filters, newest first.
func (s *Server) matching(scope types.Scope, priority string) []*threadRecord {
	var out []*threadRecord
	for _, rec := range s.threads {
		t := rec.thread
		if scope.Ticket != "" && t.Ticket != scope.Ticket {
			continue
		}
		if scope.RunID != "" && t.RunID != scope.RunID {
			continue
		}
		if priority != "" && string(t.Priority) != priority {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].thread.UpdatedAt.Equal(out[j].thread.UpdatedAt) {
			return out[i].thread.UpdatedAt.After(out[j].thread.UpdatedAt)
		}
		return out[i].thread.ThreadID < out[j].thread.ThreadID
	})
	return out
}

// viewerRow decorates a thread with the viewer-derived flags.
func (s *Server) viewerRow(rec *threadRecord, viewerType, viewerID string) types.Thread {
	t := rec.thread
	if viewerID != "" {
		t.IsUnseen = s.seen[viewerID][t.ThreadID] < t.LastEventSequence
	}
	t.IsUnanswered = t.State != types.StateClosed && t.LastActorType != "" && string(t.LastActorType) != viewerType
	return t
}

func (s *Server) handleRuns(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": s.runs})
}

func (s *Server) handleSearch(c echo.Context) error {
	state := c.QueryParam("state")
	query := strings.ToLower(strings.TrimSpace(c.QueryParam("query")))

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := []types.Thread{}
	for _, rec := range s.matching(scopeFrom(c), c.QueryParam("priority")) {
		t := rec.thread
		if state != "" && string(t.State) != state {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(t.Title), query) && !strings.Contains(strings.ToLower(t.ThreadID), query) {
			continue
		}
		rows = append(rows, s.viewerRow(rec, c.QueryParam("viewer_type"), c.QueryParam("viewer_id")))
		if len(rows) == limitFrom(c) {
			break
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"threads": rows})
}

func (s *Server) handleQueues(c echo.Context) error {
	kind := types.QueueType(c.QueryParam("type"))
	if kind != types.QueueUnseen && kind != types.QueueUnanswered {
		return apiError(c, http.StatusBadRequest, "invalid_queue", "type must be unseen or unanswered")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := []types.Thread{}
	for _, rec := range s.matching(scopeFrom(c), c.QueryParam("priority")) {
		t := s.viewerRow(rec, c.QueryParam("viewer_type"), c.QueryParam("viewer_id"))
		if (kind == types.QueueUnseen && t.IsUnseen) || (kind == types.QueueUnanswered && t.IsUnanswered) {
			rows = append(rows, t)
		}
		if len(rows) == limitFrom(c) {
			break
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"threads": rows})
}

func (s *Server) handleThread(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.threads[c.Param("id")]
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "thread not found")
	}
	return c.JSON(http.StatusOK, types.ThreadDetail{
		Thread: rec.thread,
		Posts:  append([]types.Post{}, rec.posts...),
		Events: append([]types.Event{}, rec.events...),
	})
}

type createBody struct {
	Ticket    string `json:"ticket"`
	RunID     string `json:"run_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Priority  string `json:"priority"`
	ActorType string `json:"actor_type"`
	ActorName string `json:"actor_name"`
}

func (s *Server) handleCreate(c echo.Context) error {
	var body createBody
	if err := c.Bind(&body); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid_body", "invalid request body")
	}
	if strings.TrimSpace(body.Ticket) == "" || strings.TrimSpace(body.Title) == "" {
		return apiError(c, http.StatusBadRequest, "invalid_body", "ticket and title are required")
	}

	s.mu.Lock()
	s.nextID++
	rec := s.addThreadLocked(types.Thread{
		ThreadID:      fmt.Sprintf("thr-%04d", s.nextID),
		Ticket:        body.Ticket,
		RunID:         body.RunID,
		Title:         body.Title,
		Priority:      types.Priority(body.Priority),
		LastActorType: types.ActorType(body.ActorType),
	}, body.Body)
	ev := rec.events[len(rec.events)-1]
	rec.events[len(rec.events)-1].Envelope.ActorName = body.ActorName
	ev.Envelope.ActorName = body.ActorName
	rec.posts = append(rec.posts, types.Post{
		PostID:     rec.thread.ThreadID + "-post-1",
		EventID:    ev.Envelope.EventID,
		AuthorType: types.ActorType(body.ActorType),
		AuthorName: body.ActorName,
		Body:       body.Body,
		CreatedAt:  ev.Envelope.OccurredAt,
	})
	rec.thread.PostsCount = len(rec.posts)
	thread := rec.thread
	s.mu.Unlock()

	s.broadcast(ev)
	return c.JSON(http.StatusCreated, map[string]interface{}{"thread": thread})
}

type replyBody struct {
	Body      string `json:"body"`
	ActorType string `json:"actor_type"`
	ActorName string `json:"actor_name"`
}

func (s *Server) handleReply(c echo.Context) error {
	var body replyBody
	if err := c.Bind(&body); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid_body", "invalid request body")
	}

	s.mu.Lock()
	rec, ok := s.threads[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		return apiError(c, http.StatusNotFound, "not_found", "thread not found")
	}
	if rec.thread.State == types.StateClosed {
		s.mu.Unlock()
		return apiError(c, http.StatusConflict, "thread_closed", "thread is closed")
	}
	actor := types.ActorType(body.ActorType)
	ev := rec.appendEvent("post.created", actor, body.ActorName, "", s.now())
	rec.posts = append(rec.posts, types.Post{
		PostID:     fmt.Sprintf("%s-post-%d", rec.thread.ThreadID, len(rec.posts)+1),
		EventID:    ev.Envelope.EventID,
		AuthorType: actor,
		AuthorName: body.ActorName,
		Body:       body.Body,
		CreatedAt:  ev.Envelope.OccurredAt,
	})
	rec.thread.PostsCount = len(rec.posts)
	switch {
	case actor == types.ActorAgent && rec.thread.State == types.StateNew:
		rec.thread.State = types.StateTriaged
	case actor == types.ActorHuman || actor == types.ActorOperator:
		rec.thread.State = types.StateAnswered
	}
	thread := rec.thread
	s.mu.Unlock()

	s.broadcast(ev)
	return c.JSON(http.StatusCreated, map[string]interface{}{"thread": thread})
}

type seenBody struct {
	ViewerType            string `json:"viewer_type"`
	ViewerID              string `json:"viewer_id"`
	LastSeenEventSequence int64  `json:"last_seen_event_sequence"`
}

func (s *Server) handleSeen(c echo.Context) error {
	var body seenBody
	if err := c.Bind(&body); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid_body", "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.threads[c.Param("id")]
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "thread not found")
	}
	if s.seen[body.ViewerID] == nil {
		s.seen[body.ViewerID] = make(map[string]int64)
	}
	seq := body.LastSeenEventSequence
	if seq <= 0 {
		seq = rec.thread.LastEventSequence
	}
	if seq > s.seen[body.ViewerID][rec.thread.ThreadID] {
		s.seen[body.ViewerID][rec.thread.ThreadID] = seq
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDebug(c echo.Context) error {
	scope := scopeFrom(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.debug
	snap.GeneratedAt = s.now()
	snap.Ticket = scope.Ticket
	snap.RunID = scope.RunID
	if n := limitFrom(c); len(snap.OutboxMessages) > n {
		snap.OutboxMessages = snap.OutboxMessages[:n]
	}
	if snap.OutboxMessages == nil {
		snap.OutboxMessages = []types.OutboxMessage{}
	}
	if snap.Events == nil {
		snap.Events = []types.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"debug": snap})
}

func (s *Server) handleStream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	sc := &streamConn{conn: conn, scope: scopeFrom(c)}

	s.mu.Lock()
	s.streams[sc] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.streams, sc)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
