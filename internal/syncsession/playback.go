package syncsession

// Player is the black-box video playback surface for one visible
// camera. Implementations live in the host UI; the session only needs
// seek and transport control.
type Player interface {
	Seek(seconds float64)
	Play()
	Pause()
}

// AttachPlayer binds a playback surface to a camera's clip. The player
// is immediately seeked to the camera's sync-mapped position so a
// late-loading video joins the grid on a comparable frame.
func (s *Session) AttachPlayer(clipID string, p Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAdjusting {
		return ErrWrongPhase
	}
	cam := s.cameraByClipLocked(clipID)
	if cam == nil {
		return ErrUnknownClip
	}
	s.players[clipID] = p
	if !cam.LoadFailed {
		p.Seek(float64(cam.SeekPositionMs()) / 1000.0)
	}
	return nil
}

// MarkLoadFailed flags a camera whose source could not be loaded. The
// camera drops out of playback coordination but stays in the working
// set: its offset can still be adjusted and still contributes to the
// committed result.
func (s *Session) MarkLoadFailed(clipID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAdjusting {
		return ErrWrongPhase
	}
	cam := s.cameraByClipLocked(clipID)
	if cam == nil {
		return ErrUnknownClip
	}
	cam.LoadFailed = true
	delete(s.players, clipID)
	return nil
}

// Play starts all non-failed players together.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAdjusting {
		return ErrWrongPhase
	}
	s.playing = true
	for clipID, p := range s.players {
		cam := s.cameraByClipLocked(clipID)
		if cam == nil || cam.LoadFailed {
			continue
		}
		p.Play()
	}
	s.touchLocked()
	return nil
}

// Pause stops all players and re-seeks each one back to its current
// sync-mapped position, so looping playback always returns to a
// comparable frame instead of drifting.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAdjusting {
		return ErrWrongPhase
	}
	s.playing = false
	for clipID, p := range s.players {
		cam := s.cameraByClipLocked(clipID)
		if cam == nil || cam.LoadFailed {
			continue
		}
		p.Pause()
		p.Seek(float64(cam.SeekPositionMs()) / 1000.0)
	}
	s.touchLocked()
	return nil
}

// IsPlaying reports whether the grid is in shared playback.
func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// reseekLocked pushes one camera's player to its sync-mapped position.
// Offset changes only re-seek while paused; during playback the next
// Pause realigns everything.
func (s *Session) reseekLocked(cam *Camera) {
	if s.playing || cam.LoadFailed {
		return
	}
	if p, ok := s.players[cam.ClipID]; ok {
		p.Seek(float64(cam.SeekPositionMs()) / 1000.0)
	}
}

func (s *Session) reseekAllLocked() {
	for _, cam := range s.cameras {
		s.reseekLocked(cam)
	}
}
