// Package bot defines the data model shared by the orchestrator and the
// process supervisor: the bot instance record, its lifecycle states, and the
// typed IPC envelopes exchanged with the external bot process.
package bot

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// JoinRequest is the input value object for joining a meeting.
type JoinRequest struct {
	MeetingSessionID string
	MeetingNumber    string
	MeetingPassword  string
	BotName          string
	Priority         int
}

// TranscriptSegment is one timestamped piece of recognized speech.
type TranscriptSegment struct {
	Text        string
	StartTime   time.Time
	EndTime     time.Time
	SpeakerName string
	SpeakerID   string
	Confidence  float64
}

// Stats holds per-instance operational counters.
type Stats struct {
	AudioChunks        int
	TotalAudioDuration time.Duration
	TranscriptSegments int
	ParticipantCount   int
	Errors             int
	Reconnects         int
}

// Speaker identifies the currently active speaker in the meeting.
type Speaker struct {
	Name string
	ID   string
}

// Instance is the lifecycle record for one agent in one meeting. Identity
// fields are immutable after creation; everything else is guarded by the
// per-instance mutex so the process message handler, the health monitor and
// the janitor never interleave mutations.
type Instance struct {
	ID               string
	MeetingSessionID string
	MeetingNumber    string
	MeetingPassword  string
	BotName          string

	mu               sync.Mutex
	status           Status
	process          Process
	audioBuffer      [][]byte
	audioBytes       int
	segments         []TranscriptSegment
	startTime        time.Time
	lastHealthCheck  time.Time
	lastError        string
	retryCount       int
	speaker          Speaker
	stats            Stats
	announced        bool
	pendingConnected bool
}

// NewInstance allocates an instance in the initializing state.
func NewInstance(req JoinRequest) *Instance {
	now := time.Now()
	return &Instance{
		ID:               generateBotID(),
		MeetingSessionID: req.MeetingSessionID,
		MeetingNumber:    req.MeetingNumber,
		MeetingPassword:  req.MeetingPassword,
		BotName:          req.BotName,
		status:           StatusInitializing,
		startTime:        now,
		lastHealthCheck:  now,
	}
}

// Status returns the current lifecycle state.
func (i *Instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// SetStatus transitions the instance to the given state.
func (i *Instance) SetStatus(s Status) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = s
}

// SetError marks the instance failed and records the message.
func (i *Instance) SetError(msg string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = StatusError
	i.lastError = msg
	i.stats.Errors++
}

// LastError returns the most recent error message, if any.
func (i *Instance) LastError() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastError
}

// SetProcess attaches the process handle owned exclusively by this instance.
func (i *Instance) SetProcess(p Process) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.process = p
}

// Process returns the attached process handle, or nil.
func (i *Instance) Process() Process {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.process
}

// AppendAudio adds one chunk to the buffer in arrival order and updates the
// chunk counters. If maxBytes > 0 and the buffer would exceed it, the oldest
// chunks are dropped and counted as errors.
func (i *Instance) AppendAudio(data []byte, d time.Duration, maxBytes int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.audioBuffer = append(i.audioBuffer, data)
	i.audioBytes += len(data)
	i.stats.AudioChunks++
	i.stats.TotalAudioDuration += d
	for maxBytes > 0 && i.audioBytes > maxBytes && len(i.audioBuffer) > 1 {
		i.audioBytes -= len(i.audioBuffer[0])
		i.audioBuffer = i.audioBuffer[1:]
		i.stats.Errors++
	}
}

// DrainAudio empties the buffer and returns its chunks concatenated in FIFO
// order. The buffer is cleared regardless of what the caller does with the
// result.
func (i *Instance) DrainAudio() []byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.audioBytes == 0 {
		i.audioBuffer = nil
		return nil
	}
	joined := make([]byte, 0, i.audioBytes)
	for _, chunk := range i.audioBuffer {
		joined = append(joined, chunk...)
	}
	i.audioBuffer = nil
	i.audioBytes = 0
	return joined
}

// BufferedBytes returns the current audio buffer size.
func (i *Instance) BufferedBytes() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.audioBytes
}

// AppendSegment appends one transcript segment and bumps the counter.
func (i *Instance) AppendSegment(seg TranscriptSegment) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.segments = append(i.segments, seg)
	i.stats.TranscriptSegments++
}

// Transcript returns a copy of the append-only segment sequence.
func (i *Instance) Transcript() []TranscriptSegment {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]TranscriptSegment, len(i.segments))
	copy(out, i.segments)
	return out
}

// RecordError bumps the error counter without changing status. Used for
// recovered operational failures such as a failed transcription call.
func (i *Instance) RecordError() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stats.Errors++
}

// TouchHealth records a liveness signal from the process.
func (i *Instance) TouchHealth() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastHealthCheck = time.Now()
}

// LastHealthCheck returns the time of the most recent liveness signal.
func (i *Instance) LastHealthCheck() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastHealthCheck
}

// StartTime returns when the instance was created.
func (i *Instance) StartTime() time.Time {
	return i.startTime
}

// RetryCount returns the number of reconnection attempts so far.
func (i *Instance) RetryCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.retryCount
}

// BumpRetry marks the instance reconnecting and returns the new attempt
// number. Also counted in stats.
func (i *Instance) BumpRetry() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = StatusReconnecting
	i.retryCount++
	i.stats.Reconnects++
	return i.retryCount
}

// Announced reports whether the joined event for this instance has been
// published.
func (i *Instance) Announced() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.announced
}

// Announce marks the instance announced and reports whether a connect
// transition was observed before the announcement, in which case the caller
// publishes the deferred connected event.
func (i *Instance) Announce() (pendingConnected bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.announced = true
	pendingConnected = i.pendingConnected
	i.pendingConnected = false
	return pendingConnected
}

// NoteConnected records a connect transition. It reports whether the
// connected event should be published now; before the announcement it is
// deferred so joined always precedes connected.
func (i *Instance) NoteConnected() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.announced {
		return true
	}
	i.pendingConnected = true
	return false
}

// SetSpeaker records the currently active speaker.
func (i *Instance) SetSpeaker(s Speaker) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.speaker = s
}

// Speaker returns the currently active speaker.
func (i *Instance) Speaker() Speaker {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.speaker
}

// SetParticipantCount records the current meeting attendance.
func (i *Instance) SetParticipantCount(n int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stats.ParticipantCount = n
}

// StatsSnapshot returns a copy of the counters.
func (i *Instance) StatsSnapshot() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

// generateBotID creates a random bot ID.
func generateBotID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("bot_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("bot_%x", bytes)
}
