package session

import (
	"log/slog"

	"github.com/bazelment/convstate/correlation"
	"github.com/bazelment/convstate/model"
	"github.com/bazelment/convstate/reducer"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReducer replaces the default reducer.
func WithReducer(r *reducer.Reducer) Option {
	return func(s *Session) {
		if r != nil {
			s.reducer = r
		}
	}
}

// WithStoreOptions configures the session's correlation store.
func WithStoreOptions(opts ...correlation.Option) Option {
	return func(s *Session) {
		s.storeOpts = append(s.storeOpts, opts...)
	}
}

// WithResponder sets the collaborator that receives effects.
func WithResponder(r Responder) Option {
	return func(s *Session) {
		if r != nil {
			s.responder = r
		}
	}
}

// WithPermissionMode sets the initial permission mode.
func WithPermissionMode(mode model.PermissionMode) Option {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithObserver registers an observer at construction time.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}
