package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Events streams decision events for the caller's vault as server-sent
// events. Delivery is best effort; slow consumers lose events.
func (a *API) Events(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if a.events == nil {
		respondError(w, http.StatusNotFound, "event stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := a.events.Subscribe(r.Context())
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.VaultID != p.VaultID {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: decision\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
