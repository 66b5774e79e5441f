package relay

import (
	"context"
	"sort"
	"sync"
	"time"

	"relaybot/internal/media"
	"relaybot/internal/storage"
)

type forwardCall struct {
	Source SourceID
	MsgID  int64
	Dest   string
}

// fakeTransport serves canned channel histories and scripted forward errors.
type fakeTransport struct {
	mu       sync.Mutex
	history  map[SourceID][]Message
	iterErr  map[SourceID]error
	errs     map[string][]error // dest -> errors returned by successive calls
	calls    []forwardCall
	fetchLog []int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		history: map[SourceID][]Message{},
		iterErr: map[SourceID]error{},
		errs:    map[string][]error{},
	}
}

func (f *fakeTransport) Messages(_ context.Context, src SourceID, minID int64, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchLog = append(f.fetchLog, minID)
	if err := f.iterErr[src]; err != nil {
		return nil, err
	}
	all := append([]Message(nil), f.history[src]...)
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	var out []Message
	for _, m := range all {
		if m.ID > minID {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeTransport) Forward(_ context.Context, src SourceID, msg Message, dest DestinationID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dest.String()
	f.calls = append(f.calls, forwardCall{Source: src, MsgID: msg.ID, Dest: key})
	if q := f.errs[key]; len(q) > 0 {
		err := q[0]
		f.errs[key] = q[1:]
		return err
	}
	return nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingSleeper returns immediately and remembers every requested pause.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

// memStore is an in-memory storage.Store that counts saves.
type memStore struct {
	mu      sync.Mutex
	data    storage.Progress
	saves   int
	saveErr error
	loadErr error
}

func (m *memStore) Load(context.Context) (storage.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return storage.Progress{}, nil
	}
	return m.data.Clone(), nil
}

func (m *memStore) Save(_ context.Context, p storage.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = p.Clone()
	return nil
}

func (m *memStore) Close() error { return nil }

func audio(id int64, seconds float64) Message {
	return Message{ID: id, File: &media.FileInfo{MIMEType: "audio/mpeg", Duration: media.Seconds(seconds)}}
}

func video(id int64, seconds float64) Message {
	return Message{ID: id, File: &media.FileInfo{MIMEType: "video/mp4", Duration: media.Seconds(seconds)}}
}

func text(id int64) Message { return Message{ID: id} }
