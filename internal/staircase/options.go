package staircase

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
)

// Option names accepted by WithValues. They match the keys produced by
// Config.Values.
const (
	KeyXMax              = "xMax"
	KeyXMin              = "xMin"
	KeyStepBoundDown     = "stepBoundDown"
	KeyStepBoundUp       = "stepBoundUp"
	KeyStopMode          = "stopMode"
	KeyStopThreshold     = "stopThreshold"
	KeyTruncateStaircase = "truncateStaircase"
	KeyRoundSteps        = "roundSteps"
	KeyStartValue        = "startValue"
)

// #region settings

// settings collects everything New needs before the engine exists.
// Problems with individual options are recorded as warnings so New can log
// them through the final logger.
type settings struct {
	cfg      Config
	rule     UpdateRule
	logger   *slog.Logger
	observer Observer
	warnings []string
}

func (s *settings) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

// Option configures an Engine at construction.
type Option func(*settings)

// #endregion settings

// #region typed-options

// WithXMax sets the upper bound on issued intensities.
func WithXMax(v float64) Option {
	return func(s *settings) {
		if math.IsNaN(v) {
			s.warn("%s: NaN ignored", KeyXMax)
			return
		}
		s.cfg.XMax = v
	}
}

// WithXMin sets the lower bound on issued intensities.
func WithXMin(v float64) Option {
	return func(s *settings) {
		if math.IsNaN(v) {
			s.warn("%s: NaN ignored", KeyXMin)
			return
		}
		s.cfg.XMin = v
	}
}

// WithStepBoundDown limits how far the staircase may move down in one trial.
func WithStepBoundDown(v float64) Option {
	return func(s *settings) {
		if math.IsNaN(v) || v < 0 {
			s.warn("%s: %v ignored, want a non-negative magnitude", KeyStepBoundDown, v)
			return
		}
		s.cfg.StepBoundDown = v
	}
}

// WithStepBoundUp limits how far the staircase may move up in one trial.
func WithStepBoundUp(v float64) Option {
	return func(s *settings) {
		if math.IsNaN(v) || v < 0 {
			s.warn("%s: %v ignored, want a non-negative magnitude", KeyStepBoundUp, v)
			return
		}
		s.cfg.StepBoundUp = v
	}
}

// WithStopMode selects whether StopThreshold counts trials or reversals.
func WithStopMode(m StopMode) Option {
	return func(s *settings) {
		if _, err := ParseStopMode(string(m)); err != nil {
			s.warn("%s: %v", KeyStopMode, err)
			return
		}
		s.cfg.StopMode = m
	}
}

// WithStopThreshold sets the trial or reversal count at which the
// procedure stops.
func WithStopThreshold(n int) Option {
	return func(s *settings) {
		if n < 1 {
			s.warn("%s: %d ignored, want a positive count", KeyStopThreshold, n)
			return
		}
		s.cfg.StopThreshold = n
	}
}

// WithTruncateStaircase controls whether the internal staircase value is
// clipped to [xMin, xMax] along with the issued value.
func WithTruncateStaircase(on bool) Option {
	return func(s *settings) { s.cfg.TruncateStaircase = on }
}

// WithRoundSteps rounds every step to the nearest integer before it is
// applied.
func WithRoundSteps(on bool) Option {
	return func(s *settings) { s.cfg.RoundSteps = on }
}

// WithStartValue overrides the start value passed to New.
func WithStartValue(v float64) Option {
	return func(s *settings) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.warn("%s: %v ignored, want a finite number", KeyStartValue, v)
			return
		}
		s.cfg.StartValue = v
	}
}

// WithUpdateRule replaces DefaultRule. A nil rule is ignored.
func WithUpdateRule(f UpdateRule) Option {
	return func(s *settings) {
		if f == nil {
			s.warn("update rule: nil ignored")
			return
		}
		s.rule = f
	}
}

// WithLogger sets the logger used for warnings and trial tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers an observer for trial, reset and backstep events.
func WithObserver(o Observer) Option {
	return func(s *settings) { s.observer = o }
}

// #endregion typed-options

// #region values

// WithValues applies name-keyed options, as decoded from a config file or a
// fixture. Unknown names and values of the wrong kind are reported as
// warnings and skipped.
func WithValues(values map[string]any) Option {
	return func(s *settings) {
		for _, key := range slices.Sorted(maps.Keys(values)) {
			applyValue(s, key, values[key])
		}
	}
}

func applyValue(s *settings, key string, v any) {
	switch key {
	case KeyXMax, KeyXMin, KeyStepBoundDown, KeyStepBoundUp, KeyStartValue:
		f, ok := toFloat(v)
		if !ok {
			s.warn("%s: want a number, got %T", key, v)
			return
		}
		switch key {
		case KeyXMax:
			WithXMax(f)(s)
		case KeyXMin:
			WithXMin(f)(s)
		case KeyStepBoundDown:
			WithStepBoundDown(f)(s)
		case KeyStepBoundUp:
			WithStepBoundUp(f)(s)
		case KeyStartValue:
			WithStartValue(f)(s)
		}
	case KeyStopMode:
		str, ok := v.(string)
		if !ok {
			if m, isMode := v.(StopMode); isMode {
				str, ok = string(m), true
			}
		}
		if !ok {
			s.warn("%s: want a string, got %T", key, v)
			return
		}
		WithStopMode(StopMode(str))(s)
	case KeyStopThreshold:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) {
			s.warn("%s: want an integer, got %v", key, v)
			return
		}
		WithStopThreshold(int(f))(s)
	case KeyTruncateStaircase, KeyRoundSteps:
		b, ok := v.(bool)
		if !ok {
			s.warn("%s: want a bool, got %T", key, v)
			return
		}
		if key == KeyTruncateStaircase {
			WithTruncateStaircase(b)(s)
		} else {
			WithRoundSteps(b)(s)
		}
	default:
		s.warn("unknown option %q ignored", key)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Values returns the name-keyed form of the options in c, suitable for
// WithValues. Unbounded limits are omitted.
func (c Config) Values() map[string]any {
	v := map[string]any{
		KeyStopMode:          string(c.StopMode),
		KeyStopThreshold:     c.StopThreshold,
		KeyTruncateStaircase: c.TruncateStaircase,
		KeyRoundSteps:        c.RoundSteps,
	}
	if !math.IsInf(c.XMax, 0) {
		v[KeyXMax] = c.XMax
	}
	if !math.IsInf(c.XMin, 0) {
		v[KeyXMin] = c.XMin
	}
	if !math.IsInf(c.StepBoundDown, 0) {
		v[KeyStepBoundDown] = c.StepBoundDown
	}
	if !math.IsInf(c.StepBoundUp, 0) {
		v[KeyStepBoundUp] = c.StepBoundUp
	}
	return v
}

// #endregion values
