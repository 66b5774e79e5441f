package mtproto

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"relaybot/internal/relay"
	logx "relaybot/pkg/logx"
)

// Session is a connected, authorized user session. It implements
// relay.Iterator and relay.Sender and is only valid inside Client.Run.
type Session struct {
	api   historyAPI
	peers resolver
	log   logx.Logger
}

var (
	_ relay.Iterator = (*Session)(nil)
	_ relay.Sender   = (*Session)(nil)
)

func newSession(api historyAPI, r resolver, log logx.Logger) *Session {
	return &Session{api: api, peers: r, log: log.With(logx.String("comp", "mtproto"))}
}

// Messages returns up to limit messages newer than minID, oldest first.
//
// The request anchors the window just above minID (offset_id = minID+1,
// add_offset = -limit), which is how a history is walked forward.
func (s *Session) Messages(ctx context.Context, src relay.SourceID, minID int64, limit int) ([]relay.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	if minID < 0 || minID >= math.MaxInt32 {
		return nil, fmt.Errorf("min id %d out of range", minID)
	}
	ref, err := s.peers.resolve(ctx, src.String())
	if err != nil {
		return nil, err
	}

	res, err := s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:      ref.input,
		OffsetID:  int(minID) + 1,
		AddOffset: -limit,
		Limit:     limit,
		MinID:     int(minID),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return collectMessages(res, ref.chatID, minID, limit), nil
}

// collectMessages converts a history page into relay messages with
// ID > minID, sorted ascending and capped at limit.
func collectMessages(res tg.MessagesMessagesClass, chatID, minID int64, limit int) []relay.Message {
	var raw []tg.MessageClass
	switch r := res.(type) {
	case *tg.MessagesMessages:
		raw = r.Messages
	case *tg.MessagesMessagesSlice:
		raw = r.Messages
	case *tg.MessagesChannelMessages:
		raw = r.Messages
	default:
		return nil
	}

	out := make([]relay.Message, 0, len(raw))
	for _, mc := range raw {
		var id int
		var m relay.Message
		switch v := mc.(type) {
		case *tg.Message:
			id = v.ID
			m.File = fileInfo(v)
		case *tg.MessageService:
			// Service messages are never eligible but still advance the checkpoint.
			id = v.ID
		default:
			continue
		}
		if int64(id) <= minID {
			continue
		}
		m.ID = int64(id)
		m.ChatID = chatID
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Forward forwards msg from src into dest as the logged-in user.
func (s *Session) Forward(ctx context.Context, src relay.SourceID, msg relay.Message, dest relay.DestinationID) error {
	from, err := s.peers.resolve(ctx, src.String())
	if err != nil {
		return err
	}
	to, err := s.peers.resolve(ctx, dest.String())
	if err != nil {
		return err
	}
	if msg.ID <= 0 || msg.ID > math.MaxInt32 {
		return fmt.Errorf("message id %d out of range", msg.ID)
	}
	rid, err := randomID()
	if err != nil {
		return err
	}
	_, err = s.api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: from.input,
		ID:       []int{int(msg.ID)},
		RandomID: []int64{rid},
		ToPeer:   to.input,
	})
	return mapError(err)
}

// mapError turns FLOOD_WAIT_X into relay.FloodWait.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return relay.NewFloodWait(err, d)
	}
	return err
}

func randomID() (int64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, errors.Join(errors.New("random id"), err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
