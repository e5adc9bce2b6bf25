package render

import (
	"fmt"
	"io"
	"sync"
)

// Surface is where the controller shows its status line and result cards.
// Each call replaces whatever was shown before.
type Surface interface {
	SetStatus(text string)
	Render(cards []Card)
}

// Snapshot is what a surface currently shows.
type Snapshot struct {
	Status string `json:"status"`
	Cards  []Card `json:"cards"`
}

// Recorder keeps the latest surface contents in memory.
// Concurrent writers are allowed; the last write wins.
type Recorder struct {
	mu   sync.Mutex
	snap Snapshot
}

func (r *Recorder) SetStatus(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = Snapshot{Status: text}
}

// Render replaces the cards; the status line that introduced them is kept.
func (r *Recorder) Render(cards []Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Cards = append([]Card(nil), cards...)
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snap
	snap.Cards = append([]Card(nil), r.snap.Cards...)
	return snap
}

// ProgressSurface echoes status changes as log-style lines, e.g. to stderr.
type ProgressSurface struct {
	W io.Writer
}

func (p ProgressSurface) SetStatus(text string) {
	fmt.Fprintln(p.W, text)
}

func (p ProgressSurface) Render(cards []Card) {
	fmt.Fprintf(p.W, "%d result(s)\n", len(cards))
}

type multiSurface []Surface

// Tee fans every update out to all surfaces.
func Tee(surfaces ...Surface) Surface {
	var out multiSurface
	for _, s := range surfaces {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSurface) SetStatus(text string) {
	for _, s := range m {
		s.SetStatus(text)
	}
}

func (m multiSurface) Render(cards []Card) {
	for _, s := range m {
		s.Render(cards)
	}
}
