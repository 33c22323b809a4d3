package server

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bryan-buckman/talkshelf/internal/database"
	"github.com/bryan-buckman/talkshelf/internal/favorites"
	"github.com/bryan-buckman/talkshelf/internal/player"
	"github.com/bryan-buckman/talkshelf/internal/progress"
)

const (
	listenerCookie = "talkshelf_listener"
	cookieMaxAge   = 10 * 365 * 24 * 60 * 60
)

type ctxKey struct{}

// Command is one operation the browser applies to its audio element.
type Command struct {
	Op    string  `json:"op"`
	Src   string  `json:"src,omitempty"`
	Value float64 `json:"value"`
}

// commandBuffer is the player's Media. It queues commands until the next response.
type commandBuffer struct {
	mu       sync.Mutex
	commands []Command
}

func (b *commandBuffer) push(c Command) {
	b.mu.Lock()
	b.commands = append(b.commands, c)
	b.mu.Unlock()
}

func (b *commandBuffer) Load(src string)      { b.push(Command{Op: "load", Src: src}) }
func (b *commandBuffer) Play()                { b.push(Command{Op: "play"}) }
func (b *commandBuffer) Pause()               { b.push(Command{Op: "pause"}) }
func (b *commandBuffer) Seek(seconds float64) { b.push(Command{Op: "seek", Value: seconds}) }
func (b *commandBuffer) SetVolume(v float64)  { b.push(Command{Op: "volume", Value: v}) }
func (b *commandBuffer) SetRate(r float64)    { b.push(Command{Op: "rate", Value: r}) }

// drain returns the queued commands and empties the buffer.
func (b *commandBuffer) drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.commands
	b.commands = nil
	if out == nil {
		out = []Command{}
	}
	return out
}

// session is everything one listener owns. mu serializes that listener's requests.
type session struct {
	mu        sync.Mutex
	id        string
	favorites *favorites.Store
	progress  *progress.Store
	player    *player.Player
	media     *commandBuffer

	lastSeen time.Time
}

const (
	sessionIdleTTL   = 2 * time.Hour
	maxSessions      = 10000
	sessionSweepTick = time.Minute
)

// sessions holds the sessions of listeners that returned their cookie. Favorites and
// progress live in the store, so an evicted session is rebuilt on the next request;
// only the open player is lost.
type sessions struct {
	store database.Store
	opts  player.Options
	now   func() time.Time
	limit int
	ttl   time.Duration

	mu        sync.Mutex
	byID      map[string]*session
	lastSweep time.Time
}

func newSessions(store database.Store, opts player.Options) *sessions {
	return &sessions{
		store: store,
		opts:  opts,
		now:   time.Now,
		limit: maxSessions,
		ttl:   sessionIdleTTL,
		byID:  map[string]*session{},
	}
}

func (ss *sessions) build(id string) *session {
	kv := database.NewScoped(ss.store, id)
	sess := &session{
		id:        id,
		favorites: favorites.New(kv),
		progress:  progress.New(kv),
		media:     &commandBuffer{},
	}
	sess.player = player.New(sess.media, sess.progress, sess.favorites, ss.opts)
	sess.favorites.OnChange(sess.player.SetFavorite)
	return sess
}

// get returns the session for id. Ids the browser has not sent back yet get a
// throwaway session, so clients that drop cookies never accumulate state.
func (ss *sessions) get(id string, returning bool) *session {
	if !returning {
		return ss.build(id)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	sess, ok := ss.byID[id]
	if !ok {
		sess = ss.build(id)
		ss.byID[id] = sess
		log.WithField("listener", id).Debug("new listener session")
	}
	sess.lastSeen = now
	ss.sweep(now)
	return sess
}

// sweep drops idle sessions, then the least recently seen ones above the limit.
func (ss *sessions) sweep(now time.Time) {
	if now.Sub(ss.lastSweep) < sessionSweepTick && len(ss.byID) <= ss.limit {
		return
	}
	ss.lastSweep = now

	for id, sess := range ss.byID {
		if now.Sub(sess.lastSeen) > ss.ttl {
			ss.evict(id, sess)
		}
	}
	if len(ss.byID) <= ss.limit {
		return
	}

	byAge := make([]*session, 0, len(ss.byID))
	for _, sess := range ss.byID {
		byAge = append(byAge, sess)
	}
	sort.Slice(byAge, func(i, j int) bool { return byAge[i].lastSeen.Before(byAge[j].lastSeen) })
	for _, sess := range byAge[:len(byAge)-ss.limit] {
		ss.evict(sess.id, sess)
	}
}

func (ss *sessions) evict(id string, sess *session) {
	sess.player.Release()
	delete(ss.byID, id)
	log.WithField("listener", id).Debug("evicted listener session")
}

func (ss *sessions) len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.byID)
}

// listener attaches the caller's session, issuing a listener cookie on first visit.
func (s *Server) listener(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(listenerCookie); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		returning := id != ""
		if !returning {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     listenerCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   cookieMaxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		sess := s.sessions.get(id, returning)
		ctx := context.WithValue(r.Context(), ctxKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session {
	return r.Context().Value(ctxKey{}).(*session)
}
