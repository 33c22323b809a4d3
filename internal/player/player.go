// Package player holds the playback state of the episode open in the player modal.
package player

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bryan-buckman/talkshelf/internal/model"
	"github.com/bryan-buckman/talkshelf/internal/progress"
)

// State is the modal lifecycle. Opening and Closing only sequence the CSS
// transitions of the modal.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Media is the audio element the player drives.
type Media interface {
	Load(src string)
	Play()
	Pause()
	Seek(seconds float64)
	SetVolume(v float64)
	SetRate(r float64)
}

// Favorites answers favorite membership for a freshly selected episode.
type Favorites interface {
	IsFavorite(id int64) bool
}

// Timer is a pending transition.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler func(d time.Duration, fn func()) Timer

// AfterFunc is the default Scheduler.
func AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

const (
	DefaultOpenDelay  = 50 * time.Millisecond
	DefaultCloseDelay = 300 * time.Millisecond
	DefaultSeekStep   = 15 * time.Second

	defaultVolume = 1.0
	defaultRate   = 1.0
	minRate       = 0.5
	maxRate       = 3.0
)

// Options tune a Player. Zero values fall back to the defaults above.
type Options struct {
	OpenDelay    time.Duration
	CloseDelay   time.Duration
	SeekStep     time.Duration
	MediaBaseURL string
	Schedule     Scheduler
}

// Player is the state machine for one listener's player modal.
type Player struct {
	media     Media
	records   *progress.Store
	favorites Favorites
	opts      Options

	mu       sync.Mutex
	state    State
	playing  bool
	episode  *model.Episode
	position float64
	duration float64
	seeking  bool
	volume   float64
	rate     float64
	favorite bool

	resumeAt  float64
	hasResume bool

	timer Timer
	gen   int
}

// New returns a closed player.
func New(media Media, records *progress.Store, favorites Favorites, opts Options) *Player {
	if opts.OpenDelay <= 0 {
		opts.OpenDelay = DefaultOpenDelay
	}
	if opts.CloseDelay <= 0 {
		opts.CloseDelay = DefaultCloseDelay
	}
	if opts.SeekStep <= 0 {
		opts.SeekStep = DefaultSeekStep
	}
	if opts.Schedule == nil {
		opts.Schedule = AfterFunc
	}
	return &Player{
		media:     media,
		records:   records,
		favorites: favorites,
		opts:      opts,
		volume:    defaultVolume,
		rate:      defaultRate,
	}
}

// Select opens ep and starts playing it from its stored position.
// Reselecting while the modal is closing cancels the close.
func (p *Player) Select(ep model.Episode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelTimer()
	p.load(ep)

	if p.state == StateOpen {
		return
	}
	p.state = StateOpening
	p.after(p.opts.OpenDelay, func() {
		if p.state == StateOpening {
			p.state = StateOpen
		}
	})
}

// Close pauses playback and closes the modal. The stored record is kept.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed || p.state == StateClosing {
		return
	}
	p.cancelTimer()
	p.state = StateClosing
	p.playing = false
	p.media.Pause()
	p.after(p.opts.CloseDelay, func() {
		if p.state == StateClosing {
			p.state = StateClosed
			p.reset()
		}
	})
}

// TogglePlay flips between playing and paused.
func (p *Player) TogglePlay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setPlaying(!p.playing)
}

// Play resumes playback.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setPlaying(true)
}

// Pause halts playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setPlaying(false)
}

// SeekForward skips ahead one seek step, stopping at the end once the duration is known.
func (p *Player) SeekForward() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active() {
		return
	}
	p.seekTo(p.position + p.opts.SeekStep.Seconds())
}

// SeekBackward skips back one seek step, stopping at zero.
func (p *Player) SeekBackward() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active() {
		return
	}
	p.seekTo(p.position - p.opts.SeekStep.Seconds())
}

// BeginScrub suspends position updates from the media while the slider is dragged.
func (p *Player) BeginScrub() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.episode == nil {
		return
	}
	p.seeking = true
}

// Scrub moves the displayed position while dragging.
func (p *Player) Scrub(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.seeking {
		return
	}
	p.position = p.clamp(seconds)
}

// EndScrub releases the slider and seeks the media to the released value.
func (p *Player) EndScrub(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.episode == nil {
		return
	}
	p.seeking = false
	p.seekTo(seconds)
}

// Progress records a playback tick from the media element. Ticks are ignored while
// scrubbing and while a resume seek is still waiting for the duration.
func (p *Player) Progress(played, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.episode == nil {
		return
	}
	if p.applyDuration(duration) {
		return
	}
	if p.seeking || p.hasResume {
		return
	}
	p.position = p.clamp(played)
	p.records.Save(p.episode.ID, model.PlaybackRecord{
		PlayedSeconds: p.position,
		Duration:      p.duration,
		Favorite:      p.favorite,
	})
}

// DurationChange reports the media duration, which unblocks the resume seek.
func (p *Player) DurationChange(duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.episode == nil {
		return
	}
	p.applyDuration(duration)
}

// SetVolume sets the volume, 0..1.
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	p.volume = v
	p.media.SetVolume(v)
}

// SetRate sets the playback rate within 0.5x..3x.
func (p *Player) SetRate(r float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case r < minRate:
		r = minRate
	case r > maxRate:
		r = maxRate
	}
	p.rate = r
	p.media.SetRate(r)
}

// SetFavorite mirrors a favorites change for the open episode.
func (p *Player) SetFavorite(id int64, favorite bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.episode != nil && p.episode.ID == id {
		p.favorite = favorite
	}
}

// Snapshot is a copy of the player state for rendering.
type Snapshot struct {
	State    string         `json:"state"`
	Playing  bool           `json:"playing"`
	Episode  *model.Episode `json:"episode,omitempty"`
	AudioSrc string         `json:"audioSrc,omitempty"`
	Position float64        `json:"position"`
	Duration float64        `json:"duration"`
	Seeking  bool           `json:"seeking"`
	Volume   float64        `json:"volume"`
	Rate     float64        `json:"rate"`
	Favorite bool           `json:"favorite"`
}

// Snapshot returns the current state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		State:    p.state.String(),
		Playing:  p.playing,
		Position: p.position,
		Duration: p.duration,
		Seeking:  p.seeking,
		Volume:   p.volume,
		Rate:     p.rate,
		Favorite: p.favorite,
	}
	if p.episode != nil {
		ep := *p.episode
		s.Episode = &ep
		s.AudioSrc = ep.AudioSource(p.opts.MediaBaseURL)
	}
	return s
}

// Release stops pending open/close transitions. The player is not used afterwards.
func (p *Player) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelTimer()
}

// State returns the lifecycle state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) load(ep model.Episode) {
	p.episode = &ep
	p.position = 0
	p.duration = 0
	p.seeking = false
	p.hasResume = false
	p.resumeAt = 0
	if p.favorites != nil {
		p.favorite = p.favorites.IsFavorite(ep.ID)
	}

	if rec, ok := p.records.Load(ep.ID); ok && rec.PlayedSeconds > 0 {
		p.resumeAt = rec.PlayedSeconds
		p.hasResume = true
		log.WithFields(log.Fields{"episode": ep.ID, "at": rec.PlayedSeconds}).Debug("resume pending")
	}

	p.media.Load(ep.AudioSource(p.opts.MediaBaseURL))
	p.playing = true
	p.media.Play()
}

// applyDuration stores a reported duration and performs the pending resume seek.
// It returns true when it moved the position.
func (p *Player) applyDuration(d float64) bool {
	if d <= 0 {
		return false
	}
	p.duration = d
	if p.hasResume {
		p.hasResume = false
		p.position = p.clamp(p.resumeAt)
		p.media.Seek(p.position)
		return true
	}
	p.position = p.clamp(p.position)
	return false
}

func (p *Player) seekTo(seconds float64) {
	// An explicit seek wins over the stored resume point.
	p.hasResume = false
	p.position = p.clamp(seconds)
	p.media.Seek(p.position)
}

func (p *Player) clamp(seconds float64) float64 {
	if seconds < 0 {
		return 0
	}
	if p.duration > 0 && seconds > p.duration {
		return p.duration
	}
	return seconds
}

// active reports whether transport controls may act on the media.
func (p *Player) active() bool {
	return p.episode != nil && p.state != StateClosed && p.state != StateClosing
}

func (p *Player) setPlaying(playing bool) {
	if !p.active() {
		return
	}
	p.playing = playing
	if playing {
		p.media.Play()
	} else {
		p.media.Pause()
	}
}

func (p *Player) reset() {
	p.episode = nil
	p.playing = false
	p.position = 0
	p.duration = 0
	p.seeking = false
	p.volume = defaultVolume
	p.rate = defaultRate
	p.favorite = false
	p.hasResume = false
	p.resumeAt = 0
}

// after schedules fn under the player lock; a later transition invalidates it.
func (p *Player) after(d time.Duration, fn func()) {
	p.gen++
	gen := p.gen
	p.timer = p.opts.Schedule(d, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.gen {
			return
		}
		p.timer = nil
		fn()
	})
}

func (p *Player) cancelTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
}
