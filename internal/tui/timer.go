package tui

import "time"

// timerState tracks the current state of the work timer.
type timerState int

const (
	timerStopped timerState = iota
	timerRunning
	timerPaused
)

// timerModel measures time spent on site for one project. The elapsed time
// becomes the timeTaken of the progress report filed when it stops.
type timerModel struct {
	now func() time.Time

	state     timerState
	startTime time.Time
	elapsed   time.Duration
	pausedAt  time.Time
	pauseGap  time.Duration

	projectID   string
	projectName string

	// Idle detection
	lastActivity time.Time
	idleTimeout  time.Duration
	isIdle       bool
}

func newTimerModel(now func() time.Time) timerModel {
	if now == nil {
		now = time.Now
	}
	return timerModel{
		now:          now,
		state:        timerStopped,
		lastActivity: now(),
		idleTimeout:  15 * time.Minute,
	}
}

func (t *timerModel) start(projectID, projectName string) {
	now := t.now()
	t.state = timerRunning
	t.startTime = now
	t.elapsed = 0
	t.pauseGap = 0
	t.projectID = projectID
	t.projectName = projectName
	t.lastActivity = now
	t.isIdle = false
}

// stop ends the run and returns the worked time, excluding pauses.
func (t *timerModel) stop() (string, time.Duration) {
	if t.state == timerStopped {
		return "", 0
	}
	worked := t.currentElapsed()
	id := t.projectID
	t.state = timerStopped
	t.elapsed = 0
	t.projectID = ""
	t.projectName = ""
	return id, worked
}

func (t *timerModel) pause() {
	if t.state != timerRunning {
		return
	}
	t.state = timerPaused
	t.pausedAt = t.now()
}

func (t *timerModel) resume() {
	if t.state != timerPaused {
		return
	}
	now := t.now()
	t.pauseGap += now.Sub(t.pausedAt)
	t.state = timerRunning
	t.isIdle = false
	t.lastActivity = now
}

func (t *timerModel) toggle() {
	switch t.state {
	case timerRunning:
		t.pause()
	case timerPaused:
		t.resume()
	}
}

func (t *timerModel) tick() {
	if t.state == timerRunning {
		now := t.now()
		t.elapsed = now.Sub(t.startTime) - t.pauseGap

		if now.Sub(t.lastActivity) > t.idleTimeout && !t.isIdle {
			t.isIdle = true
			t.pause()
		}
	}
}

func (t *timerModel) recordActivity() {
	t.lastActivity = t.now()
	if t.isIdle && t.state == timerPaused {
		t.resume()
		t.isIdle = false
	}
}

func (t timerModel) running() bool {
	return t.state != timerStopped
}

func (t timerModel) paused() bool {
	return t.state == timerPaused
}

func (t timerModel) currentElapsed() time.Duration {
	now := t.now()
	switch t.state {
	case timerStopped:
		return 0
	case timerPaused:
		return t.pausedAt.Sub(t.startTime) - t.pauseGap
	}
	return now.Sub(t.startTime) - t.pauseGap
}
