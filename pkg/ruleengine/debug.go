package ruleengine

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cellrules/engine/pkg/logging"
	"github.com/gorilla/websocket"
)

// RuleSummary is the wire shape getRules returns for a single indexed
// rule: enough to inspect without exposing the shared *BoxInfo pointer.
type RuleSummary struct {
	Name     string `json:"name"`
	External *bool  `json:"external"`
	Subject  string `json:"subject,omitempty"`
	Type     string `json:"type,omitempty"`
	Object   string `json:"object,omitempty"`
	Info     string `json:"info,omitempty"`
	Action   string `json:"action"`
	Service  string `json:"service,omitempty"`
	BoxName  string `json:"boxName,omitempty"`
}

// BoxSummary is the wire shape getRules returns for a single indexed box.
type BoxSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Schema string `json:"schema,omitempty"`
}

// RulesSnapshot is the debug/inspection document getRules returns: a
// cell's indexed rules and boxes, plus its timer list when a TimerSink is
// configured.
type RulesSnapshot struct {
	Rules  []RuleSummary `json:"rules"`
	Boxes  []BoxSummary  `json:"boxes"`
	Timers string        `json:"timers,omitempty"`
}

// GetRules returns a debug/inspection snapshot of cellID's currently
// indexed rules and boxes, and its timer list when timers is non-nil.
// Intended for the debug server and manual inspection, not for anything
// on the judge path.
func GetRules(index *Index, cellID string, timers TimerSink) RulesSnapshot {
	rules := index.Rules(cellID)
	ruleSummaries := make([]RuleSummary, 0, len(rules))
	for _, r := range rules {
		summary := RuleSummary{
			Name: r.Name, External: r.External, Subject: r.Subject,
			Type: r.Type, Object: r.Object, Info: r.Info,
			Action: r.Action, Service: r.Service,
		}
		if r.Box != nil {
			summary.BoxName = r.Box.Name
		} else {
			summary.BoxName = r.BoxName
		}
		ruleSummaries = append(ruleSummaries, summary)
	}

	boxes := index.Boxes(cellID)
	boxSummaries := make([]BoxSummary, 0, len(boxes))
	for _, b := range boxes {
		boxSummaries = append(boxSummaries, BoxSummary{ID: b.ID, Name: b.Name, Schema: b.Schema})
	}

	snapshot := RulesSnapshot{Rules: ruleSummaries, Boxes: boxSummaries}
	if timers != nil {
		list, err := timers.GetTimerList(cellID)
		if err != nil {
			logging.LogError(logging.Logger, logging.NewError(logging.ErrorTypeTransientStore, "failed to fetch timer list for debug snapshot", err,
				map[string]interface{}{"cellId": cellID}))
		} else {
			snapshot.Timers = list
		}
	}
	return snapshot
}

var debugUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// DebugServer exposes GetRules over a plain HTTP GET and a live WebSocket
// feed that pushes a cell's rule set to every connected client whenever the
// index changes for that cell.
type DebugServer struct {
	index  *Index
	timers TimerSink

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]string // conn -> cellID it's watching
}

// NewDebugServer builds a DebugServer over index and subscribes to its
// change notifications. timers may be nil, in which case the snapshot's
// timers field is omitted.
func NewDebugServer(index *Index, timers TimerSink) *DebugServer {
	d := &DebugServer{
		index:   index,
		timers:  timers,
		clients: make(map[*websocket.Conn]string),
	}
	index.OnChange(d.broadcast)
	return d
}

// Handler returns an http.Handler serving GET /rules?cell=<id> (JSON
// snapshot) and GET /watch?cell=<id> (WebSocket feed).
func (d *DebugServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rules", d.handleGetRules)
	mux.HandleFunc("/watch", d.handleWatch)
	return mux
}

func (d *DebugServer) handleGetRules(w http.ResponseWriter, r *http.Request) {
	cellID := r.URL.Query().Get("cell")
	if cellID == "" {
		http.Error(w, "missing cell query parameter", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(GetRules(d.index, cellID, d.timers)); err != nil {
		logging.Logger.Error().Err(err).Msg("failed to encode debug rules response")
	}
}

func (d *DebugServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	cellID := r.URL.Query().Get("cell")
	if cellID == "" {
		http.Error(w, "missing cell query parameter", http.StatusBadRequest)
		return
	}

	conn, err := debugUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("failed to upgrade debug websocket connection")
		return
	}
	defer conn.Close()

	d.clientsMu.Lock()
	d.clients[conn] = cellID
	d.clientsMu.Unlock()

	d.sendSnapshot(conn, cellID)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	d.clientsMu.Lock()
	delete(d.clients, conn)
	d.clientsMu.Unlock()
}

func (d *DebugServer) sendSnapshot(conn *websocket.Conn, cellID string) {
	payload, err := json.Marshal(GetRules(d.index, cellID, d.timers))
	if err != nil {
		logging.Logger.Error().Err(err).Msg("failed to marshal debug rules snapshot")
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logging.Logger.Error().Err(err).Msg("failed to write debug rules snapshot")
	}
}

func (d *DebugServer) broadcast(cellID string) {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()

	for conn, watched := range d.clients {
		if watched != cellID {
			continue
		}
		d.sendSnapshot(conn, cellID)
	}
}
