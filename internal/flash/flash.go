// Package flash carries one-shot messages across a redirect. They are shown on
// the next page and fade out after a fixed delay.
package flash

import (
	"encoding/gob"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionName = "agromarket_flash"

const (
	TypeSuccess = "success"
	TypeError   = "error"
)

type Message struct {
	Type string
	Text string
}

func init() {
	gob.Register(Message{})
}

type Flasher struct {
	Store sessions.Store
}

func (f *Flasher) add(w http.ResponseWriter, r *http.Request, m Message) error {
	s, err := f.Store.Get(r, sessionName)
	if err != nil && s == nil {
		return fmt.Errorf("open flash session: %w", err)
	}
	s.AddFlash(m)
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("save flash session: %w", err)
	}
	return nil
}

func (f *Flasher) Success(w http.ResponseWriter, r *http.Request, text string) error {
	return f.add(w, r, Message{Type: TypeSuccess, Text: text})
}

func (f *Flasher) Error(w http.ResponseWriter, r *http.Request, text string) error {
	return f.add(w, r, Message{Type: TypeError, Text: text})
}

// Pop returns and forgets the pending messages.
func (f *Flasher) Pop(w http.ResponseWriter, r *http.Request) []Message {
	s, err := f.Store.Get(r, sessionName)
	if err != nil && s == nil {
		return nil
	}
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	out := make([]Message, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(Message); ok {
			out = append(out, m)
		}
	}
	_ = s.Save(r, w)
	return out
}
