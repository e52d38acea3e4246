package usecase

import "time"

// EndpointConfig tunes the energy endpointer.
type EndpointConfig struct {
	// BaseThreshold is the minimum mean-absolute amplitude treated as speech,
	// regardless of how quiet the room is.
	BaseThreshold float64
	// FloorMultiplier scales the noise floor into the effective threshold.
	FloorMultiplier float64
	// FloorRate is the EMA weight for noise floor updates.
	FloorRate float64
	// StartFrames is how many consecutive speech frames open an utterance.
	StartFrames int
	// SilenceTimeout is the accumulated post-speech silence that ends one.
	SilenceTimeout time.Duration
}

func (c EndpointConfig) withDefaults() EndpointConfig {
	if c.BaseThreshold <= 0 {
		c.BaseThreshold = 0.01
	}
	if c.FloorMultiplier <= 1 {
		c.FloorMultiplier = 3
	}
	if c.FloorRate <= 0 || c.FloorRate >= 1 {
		c.FloorRate = 0.05
	}
	if c.StartFrames <= 0 {
		c.StartFrames = 3
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = 1500 * time.Millisecond
	}
	return c
}

// EndpointDecision reports what one frame meant for the utterance boundary.
type EndpointDecision struct {
	Speech         bool
	SpeechStarted  bool
	SilenceElapsed bool
}

// EndpointDetector classifies frames as speech or silence against an adaptive
// noise floor and decides utterance boundaries. Not safe for concurrent use;
// the session loop owns it.
type EndpointDetector struct {
	cfg EndpointConfig

	floor     float64
	seeded    bool
	speechRun int
	inSpeech  bool
	silence   time.Duration
}

func NewEndpointDetector(cfg EndpointConfig) *EndpointDetector {
	return &EndpointDetector{cfg: cfg.withDefaults()}
}

// Process classifies one frame. The duration is the frame's audio length, used
// to accumulate trailing silence.
func (d *EndpointDetector) Process(samples []float32, duration time.Duration) EndpointDecision {
	energy := frameEnergy(samples)

	// The first frame after arming seeds the floor; the user presses the
	// hotkey before speaking, so it is a fair sample of the room.
	if !d.seeded {
		d.floor = energy
		d.seeded = true
		return EndpointDecision{}
	}

	var dec EndpointDecision
	if energy >= d.Threshold() {
		dec.Speech = true
		d.silence = 0
		if !d.inSpeech {
			d.speechRun++
			if d.speechRun >= d.cfg.StartFrames {
				d.inSpeech = true
				dec.SpeechStarted = true
			}
		}
		return dec
	}

	d.speechRun = 0
	// The floor only learns from silence so sustained speech cannot raise it.
	d.floor += d.cfg.FloorRate * (energy - d.floor)
	if d.inSpeech {
		d.silence += duration
		if d.silence >= d.cfg.SilenceTimeout {
			dec.SilenceElapsed = true
		}
	}
	return dec
}

// Threshold is the current effective speech threshold.
func (d *EndpointDetector) Threshold() float64 {
	adaptive := d.floor * d.cfg.FloorMultiplier
	if adaptive < d.cfg.BaseThreshold {
		return d.cfg.BaseThreshold
	}
	return adaptive
}

// Reset clears utterance state and the noise floor for a fresh session.
func (d *EndpointDetector) Reset() {
	d.floor = 0
	d.seeded = false
	d.speechRun = 0
	d.inSpeech = false
	d.silence = 0
}

func frameEnergy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		if s < 0 {
			sum -= float64(s)
		} else {
			sum += float64(s)
		}
	}
	return sum / float64(len(samples))
}
