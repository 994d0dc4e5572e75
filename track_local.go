package capture

import (
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/thesyncim/capture/camera2"
)

// Re-export pion's RTPCodecType for convenience
type RTPCodecType = webrtc.RTPCodecType

const (
	RTPCodecTypeUnknown = webrtc.RTPCodecTypeUnknown
	RTPCodecTypeVideo   = webrtc.RTPCodecTypeVideo
)

// TrackState represents the state of a track.
type TrackState int

const (
	TrackStateLive  TrackState = iota // Track is producing frames
	TrackStateEnded                   // Track has ended
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// VideoTrackSettings describes the actual video track settings.
type VideoTrackSettings struct {
	Width      int
	Height     int
	FrameRate  int
	DeviceID   string
	FacingMode string
}

// VideoSink receives frames from a track. Sinks are compared by identity,
// so register pointers.
type VideoSink interface {
	OnFrame(frame *VideoFrame)
}

type sinkSet struct {
	mu    sync.RWMutex
	sinks []VideoSink
}

func (s *sinkSet) add(sink VideoSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sinks {
		if existing == sink {
			return
		}
	}
	s.sinks = append(s.sinks, sink)
}

func (s *sinkSet) remove(sink VideoSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.sinks {
		if existing == sink {
			s.sinks = append(s.sinks[:i], s.sinks[i+1:]...)
			return
		}
	}
}

func (s *sinkSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sinks)
}

func (s *sinkSet) deliver(f *VideoFrame) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sink := range s.sinks {
		sink.OnFrame(f)
	}
}

// NativeVideoTrack is the backend track a VideoStreamTrack wraps.
type NativeVideoTrack interface {
	ID() string
	Label() string
	State() TrackState
	Enabled() bool
	SetEnabled(enabled bool)
	AddSink(sink VideoSink)
	RemoveSink(sink VideoSink)
	Settings() VideoTrackSettings
	OnEnded(callback func())
	Close() error
}

// BaseTrack provides common functionality for tracks.
type BaseTrack struct {
	id       string
	streamID string
	rid      string
	label    string
	state    atomic.Int32
	enabled  atomic.Bool
	endedCb  func()
	mu       sync.RWMutex
}

// NewBaseTrack creates a new live, enabled base track.
func NewBaseTrack(id, streamID, label string) *BaseTrack {
	t := &BaseTrack{
		id:       id,
		streamID: streamID,
		label:    label,
	}
	t.state.Store(int32(TrackStateLive))
	t.enabled.Store(true)
	return t
}

func (t *BaseTrack) ID() string         { return t.id }
func (t *BaseTrack) StreamID() string   { return t.streamID }
func (t *BaseTrack) Kind() RTPCodecType { return RTPCodecTypeVideo }
func (t *BaseTrack) Label() string      { return t.label }

func (t *BaseTrack) RID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rid
}

func (t *BaseTrack) SetRID(rid string) {
	t.mu.Lock()
	t.rid = rid
	t.mu.Unlock()
}

func (t *BaseTrack) State() TrackState {
	return TrackState(t.state.Load())
}

// SetState moves the track to state. The ended callback fires once, on
// the first transition to TrackStateEnded.
func (t *BaseTrack) SetState(state TrackState) {
	old := TrackState(t.state.Swap(int32(state)))
	if state == TrackStateEnded && old != TrackStateEnded {
		t.mu.RLock()
		cb := t.endedCb
		t.mu.RUnlock()
		if cb != nil {
			go cb()
		}
	}
}

func (t *BaseTrack) Enabled() bool     { return t.enabled.Load() }
func (t *BaseTrack) SetEnabled(e bool) { t.enabled.Store(e) }

func (t *BaseTrack) OnEnded(callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endedCb = callback
}

// LocalVideoTrack is the in-process track the camera backend feeds. It
// fans raw frames out to sinks and implements pion's webrtc.TrackLocal so
// an external encoder can write RTP for it.
type LocalVideoTrack struct {
	*BaseTrack
	codec    webrtc.RTPCodecCapability
	sinks    sinkSet
	bindMu   sync.RWMutex
	bindings []webrtc.TrackLocalContext

	settingsMu sync.RWMutex
	settings   VideoTrackSettings

	frames atomic.Uint64
}

// NewLocalVideoTrack creates a live track advertising codec.
func NewLocalVideoTrack(codec webrtc.RTPCodecCapability, id, streamID, label string) *LocalVideoTrack {
	return &LocalVideoTrack{
		BaseTrack: NewBaseTrack(id, streamID, label),
		codec:     codec,
	}
}

// Codec returns the codec capability.
func (t *LocalVideoTrack) Codec() webrtc.RTPCodecCapability {
	return t.codec
}

// Bind implements webrtc.TrackLocal.
func (t *LocalVideoTrack) Bind(ctx webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()

	t.bindings = append(t.bindings, ctx)

	for _, p := range ctx.CodecParameters() {
		if p.MimeType == t.codec.MimeType {
			return p, nil
		}
	}
	return webrtc.RTPCodecParameters{RTPCodecCapability: t.codec}, nil
}

// Unbind implements webrtc.TrackLocal.
func (t *LocalVideoTrack) Unbind(ctx webrtc.TrackLocalContext) error {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()

	for i, b := range t.bindings {
		if b.ID() == ctx.ID() {
			t.bindings = append(t.bindings[:i], t.bindings[i+1:]...)
			break
		}
	}
	return nil
}

// WriteRTP writes an RTP packet to all bound contexts.
func (t *LocalVideoTrack) WriteRTP(p *rtp.Packet) error {
	t.bindMu.RLock()
	defer t.bindMu.RUnlock()

	for _, b := range t.bindings {
		if _, err := b.WriteStream().WriteRTP(&p.Header, p.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Write writes raw RTP bytes to all bound contexts.
func (t *LocalVideoTrack) Write(b []byte) (int, error) {
	var p rtp.Packet
	if err := p.Unmarshal(b); err != nil {
		return 0, err
	}
	return len(b), t.WriteRTP(&p)
}

// AddToPeerConnection adds the track to pc.
func (t *LocalVideoTrack) AddToPeerConnection(pc *webrtc.PeerConnection) (*webrtc.RTPSender, error) {
	return pc.AddTrack(t)
}

func (t *LocalVideoTrack) AddSink(sink VideoSink)    { t.sinks.add(sink) }
func (t *LocalVideoTrack) RemoveSink(sink VideoSink) { t.sinks.remove(sink) }

// FramesDelivered returns the number of frames handed to sinks.
func (t *LocalVideoTrack) FramesDelivered() uint64 { return t.frames.Load() }

func (t *LocalVideoTrack) Settings() VideoTrackSettings {
	t.settingsMu.RLock()
	defer t.settingsMu.RUnlock()
	return t.settings
}

func (t *LocalVideoTrack) setSettings(s VideoTrackSettings) {
	t.settingsMu.Lock()
	t.settings = s
	t.settingsMu.Unlock()
}

// deliver hands f to the sinks while the track is live and enabled.
func (t *LocalVideoTrack) deliver(f *VideoFrame) {
	if t.State() != TrackStateLive || !t.Enabled() {
		return
	}
	t.frames.Add(1)
	t.sinks.deliver(f)
}

// OnCapturerStarted implements camera2.CapturerObserver.
func (t *LocalVideoTrack) OnCapturerStarted(bool) {}

// OnCapturerStopped implements camera2.CapturerObserver.
func (t *LocalVideoTrack) OnCapturerStopped() {}

// OnFrameCaptured implements camera2.CapturerObserver.
func (t *LocalVideoTrack) OnFrameCaptured(f *camera2.Frame) {
	t.deliver(frameFromCamera2(f))
}

// Close ends the track.
func (t *LocalVideoTrack) Close() error {
	t.SetState(TrackStateEnded)
	return nil
}

var (
	_ webrtc.TrackLocal        = (*LocalVideoTrack)(nil)
	_ camera2.CapturerObserver = (*LocalVideoTrack)(nil)
	_ NativeVideoTrack         = (*LocalVideoTrack)(nil)
)
