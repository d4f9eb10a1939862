package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rflorenc/mesh-workbench/internal/config"
	"github.com/rflorenc/mesh-workbench/internal/route"
	"github.com/rflorenc/mesh-workbench/internal/view"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// viewMessage is a live view command from the client.
type viewMessage struct {
	// Action is "navigate" (default), "next", "previous", "select", "search",
	// "tags", "size", "mesh" or "refresh".
	Action string `json:"action"`
	// Query is the route as a URL query string, for "navigate".
	Query string `json:"query,omitempty"`
	// Value is the item name for "select", the filter text for "search" and
	// the mesh for "mesh".
	Value string `json:"value,omitempty"`
	// Tags replaces the tag filters, for "tags".
	Tags map[string]string `json:"tags,omitempty"`
	// Size is the page size, for "size".
	Size int `json:"size,omitempty"`
}

type viewError struct {
	Error string `json:"error"`
}

// StreamView serves a live view of one collection over WebSocket. The server
// pushes a snapshot on every loader transition and reloads on an interval.
func (s *Server) StreamView(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	cp := s.controlPlane(conn)
	rt, ok := s.resourceType(w, r, cp)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	log := s.Log.WithValues("session", uuid.NewString(), "connection", conn.Name)
	log.V(1).Info("live view opened", "type", rt.Name)
	defer log.V(1).Info("live view closed", "type", rt.Name)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	send := func(v interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := ws.WriteJSON(v); err != nil {
			cancel()
		}
	}

	coll := view.NewCollection(cp, rt, route.Parse(r.URL.Query(), s.PageSize),
		view.WithLogger(log),
		view.WithDefaultSize(s.PageSize),
		view.WithObserver(func(snap view.Snapshot) { send(snap) }),
	)

	msgs := make(chan viewMessage)
	go func() {
		defer cancel()
		for {
			var msg viewMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Commands run concurrently so a newer one supersedes a slow older one.
	var wg sync.WaitGroup
	defer wg.Wait()
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { coll.Load(ctx) })

	interval := s.RefreshInterval
	if interval <= 0 {
		interval = config.DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(func() { coll.Load(ctx) })
		case msg := <-msgs:
			switch msg.Action {
			case "", "navigate":
				q, err := url.ParseQuery(msg.Query)
				if err != nil {
					send(viewError{Error: "invalid query: " + err.Error()})
					continue
				}
				to := route.Parse(q, s.PageSize)
				run(func() { coll.Navigate(ctx, to) })
			case "next":
				run(func() { coll.NextPage(ctx) })
			case "previous":
				run(func() { coll.PreviousPage(ctx) })
			case "select":
				run(func() { coll.Select(ctx, msg.Value) })
			case "search":
				run(func() { coll.SetSearch(ctx, msg.Value) })
			case "tags":
				run(func() { coll.SetTags(ctx, msg.Tags) })
			case "size":
				run(func() { coll.SetSize(ctx, msg.Size) })
			case "mesh":
				run(func() { coll.SetMesh(ctx, msg.Value) })
			case "refresh":
				run(func() { coll.Load(ctx) })
			default:
				send(viewError{Error: "unknown action: " + msg.Action})
			}
		}
	}
}
