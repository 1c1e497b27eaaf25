package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/invoicify/invoicify/httpx"
	"github.com/invoicify/invoicify/internal/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// keepAliveInterval is how often an SSE comment is written so proxies
// don't drop an idle stream.
const keepAliveInterval = 25 * time.Second

// EventsHandler streams change notifications for the session user over
// Server-Sent Events. Clients refetch the named table on each event.
type EventsHandler struct {
	DB    *gorm.DB
	Store *store.Store
	Log   logrus.FieldLogger
}

func NewEventsHandler(db *gorm.DB, s *store.Store, log logrus.FieldLogger) *EventsHandler {
	return &EventsHandler{DB: db, Store: s, Log: log}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.JSONError(w, http.StatusInternalServerError, "streaming_unsupported", nil)
		return
	}

	subs := []*store.Subscription{
		h.Store.Subscribe(store.TableClients, user.ID),
		h.Store.Subscribe(store.TableInvoices, user.ID),
		h.Store.Subscribe(store.TableSettings, user.ID),
	}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	// fan the three subscriptions into one stream
	events := make(chan store.Event, 8)
	done := r.Context().Done()
	for _, s := range subs {
		go func(c <-chan store.Event) {
			for {
				select {
				case ev, ok := <-c:
					if !ok {
						return
					}
					select {
					case events <- ev:
					case <-done:
						return
					}
				case <-done:
					return
				}
			}
		}(s.C)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				h.Log.WithError(err).Warn("encode event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-done:
			return
		}
	}
}
