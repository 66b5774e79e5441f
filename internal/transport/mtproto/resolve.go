package mtproto

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/td/constant"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
)

// peerRef is a resolved chat.
type peerRef struct {
	input tg.InputPeerClass
	// chatID is the Bot API style ID (-100... for channels).
	chatID int64
	name   string
}

type resolver interface {
	resolve(ctx context.Context, token string) (peerRef, error)
}

// peerResolver turns configured tokens into input peers, caching results
// for the lifetime of the connection.
type peerResolver struct {
	api *tg.Client
	m   *peers.Manager

	mu     sync.Mutex
	cache  map[string]peerRef
	warmed bool
}

func newPeerResolver(api *tg.Client, m *peers.Manager) *peerResolver {
	return &peerResolver{api: api, m: m, cache: map[string]peerRef{}}
}

func (r *peerResolver) resolve(ctx context.Context, token string) (peerRef, error) {
	token = strings.TrimSpace(token)
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref, ok := r.cache[token]; ok {
		return ref, nil
	}

	p, err := r.lookup(ctx, token)
	if err != nil && isNumeric(token) && !r.warmed {
		// Numeric IDs need an access hash we only learn from dialogs.
		r.warmed = true
		if werr := r.warmDialogs(ctx); werr == nil {
			p, err = r.lookup(ctx, token)
		}
	}
	if err != nil {
		return peerRef{}, fmt.Errorf("resolve %q: %w", token, err)
	}

	ref := peerRef{input: p.InputPeer(), chatID: int64(p.TDLibPeerID()), name: p.VisibleName()}
	r.cache[token] = ref
	return ref, nil
}

func (r *peerResolver) lookup(ctx context.Context, token string) (peers.Peer, error) {
	if id, err := strconv.ParseInt(token, 10, 64); err == nil {
		if id < 0 {
			return r.m.ResolveTDLibID(ctx, constant.TDLibPeerID(id))
		}
		return r.m.ResolveUserID(ctx, id)
	}
	if !strings.HasPrefix(token, "@") && !strings.Contains(token, "/") {
		token = "@" + token
	}
	return r.m.Resolve(ctx, token)
}

func (r *peerResolver) warmDialogs(ctx context.Context) error {
	res, err := r.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return err
	}
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		return r.m.Apply(ctx, d.Users, d.Chats)
	case *tg.MessagesDialogsSlice:
		return r.m.Apply(ctx, d.Users, d.Chats)
	default:
		return nil
	}
}

func isNumeric(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
