package scenemanager

import (
	"github.com/ledengine/ledengine/internal/model"
)

// PatternTransitionRunner drives a model.PatternTransition through
// FADE_OUT → WAITING → FADE_IN → COMPLETED using wall-clock milliseconds
// supplied by the caller. Kept separate from model.PatternTransition itself,
// which stays a plain data holder.
type PatternTransitionRunner struct {
	state    model.PatternTransition
	progress float64 // current phase's progress, recomputed on each Advance
	done     bool
}

// NewPatternTransitionRunner starts a transition from the current
// effect/palette selectors to the requested targets. Timings fall back to
// cfg's defaults when zero.
func NewPatternTransitionRunner(fromEffectID int, fromPaletteID string, toEffectID int, toPaletteID string, cfg model.TransitionConfig) *PatternTransitionRunner {
	return &PatternTransitionRunner{
		state: model.PatternTransition{
			FromEffectID:  fromEffectID,
			FromPaletteID: fromPaletteID,
			ToEffectID:    toEffectID,
			ToPaletteID:   toPaletteID,
			Phase:         model.PhaseFadeOut,
			FadeOutMs:     cfg.DefaultFadeOutMs,
			WaitingMs:     cfg.DefaultWaitingMs,
			FadeInMs:      cfg.DefaultFadeInMs,
		},
	}
}

// Done reports whether the transition has reached COMPLETED and been
// committed — once true the manager drops the runner and the scene's own
// selectors govern output again.
func (r *PatternTransitionRunner) Done() bool {
	return r.done
}

// Advance recomputes the current phase's progress from elapsed wall-clock
// time and moves to the next phase once its duration has elapsed. Must be
// called once per tick before Render.
func (r *PatternTransitionRunner) Advance(nowUnixMs int64, scenes map[int]*model.Scene) {
	if r.done {
		return
	}
	if r.state.PhaseStartUnixMs == 0 {
		r.state.PhaseStartUnixMs = nowUnixMs
	}
	elapsed := nowUnixMs - r.state.PhaseStartUnixMs

	switch r.state.Phase {
	case model.PhaseFadeOut:
		r.progress = fraction(elapsed, r.state.FadeOutMs)
		if elapsed >= int64(r.state.FadeOutMs) {
			r.state.Phase = model.PhaseWaiting
			r.state.PhaseStartUnixMs = nowUnixMs
		}
	case model.PhaseWaiting:
		if elapsed >= int64(r.state.WaitingMs) {
			r.state.Phase = model.PhaseFadeIn
			r.state.PhaseStartUnixMs = nowUnixMs
		}
	case model.PhaseFadeIn:
		r.progress = fraction(elapsed, r.state.FadeInMs)
		if elapsed >= int64(r.state.FadeInMs) {
			r.state.Phase = model.PhaseCompleted
			r.done = true
		}
	case model.PhaseCompleted:
		r.done = true
	}
}

// fraction returns elapsed/durationMs clamped to [0,1]; a non-positive
// duration is treated as already elapsed.
func fraction(elapsedMs int64, durationMs int) float64 {
	if durationMs <= 0 {
		return 1
	}
	f := float64(elapsedMs) / float64(durationMs)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Render composites the transition's current-phase output for the scene
// the transition is running against. Returns (frame, completed) — when
// completed is true the caller should discard the runner; the target
// effect/palette selectors have already been committed onto scene.
func (r *PatternTransitionRunner) Render(scene *model.Scene) ([]model.RGB, bool) {
	switch r.state.Phase {
	case model.PhaseFadeOut:
		frame := r.renderEffect(scene, r.state.FromEffectID, r.state.FromPaletteID)
		return scaleFrame(frame, 1.0-r.progress), false

	case model.PhaseWaiting:
		eff := scene.CurrentEffect()
		ledCount := 0
		if eff != nil {
			ledCount = eff.LEDCount
		}
		return make([]model.RGB, ledCount), false

	case model.PhaseFadeIn:
		frame := r.renderEffect(scene, r.state.ToEffectID, r.state.ToPaletteID)
		return scaleFrame(frame, r.progress), false

	default: // PhaseCompleted
		_ = scene.SwitchEffect(r.state.ToEffectID, r.state.ToPaletteID)
		return scene.GetLEDOutput(), true
	}
}

func scaleFrame(frame []model.RGB, factor float64) []model.RGB {
	out := make([]model.RGB, len(frame))
	for i, c := range frame {
		out[i] = c.Scale(factor)
	}
	return out
}

func (r *PatternTransitionRunner) renderEffect(scene *model.Scene, effectID int, paletteID string) []model.RGB {
	eff, ok := scene.Effects[effectID]
	if !ok {
		return nil
	}
	palette, ok := scene.Palettes[paletteID]
	if !ok {
		white := model.NewWhitePalette()
		palette = &white
	}
	return eff.GetLEDOutput(palette)
}
