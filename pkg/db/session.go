package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
)

// ErrSessionDone is returned when a finished session is committed or rolled back.
var ErrSessionDone = errors.New("session already committed or rolled back")

// Session is one unit of work. Nothing is committed until Commit is called
// and reads inside the session never flush pending writes elsewhere.
// Callers must defer Close; it rolls back anything left uncommitted.
type Session struct {
	tx   *gorm.DB
	done bool
}

// Begin opens a session. Sessions must not be nested: the store has a single
// connection and an inner Begin would wait on the outer one forever.
func (c *Client) Begin(ctx context.Context) (*Session, error) {
	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, tx.Error, "begin transaction")
	}
	return &Session{tx: tx}, nil
}

// DB returns the transaction handle repositories should bind to.
func (s *Session) DB() *gorm.DB {
	return s.tx
}

// Done reports whether the session has been committed or rolled back.
func (s *Session) Done() bool {
	return s.done
}

func (s *Session) Commit() error {
	if s.done {
		return ErrSessionDone
	}
	s.done = true
	return s.tx.Commit().Error
}

func (s *Session) Rollback() error {
	if s.done {
		return ErrSessionDone
	}
	s.done = true
	return s.tx.Rollback().Error
}

// Close rolls back an uncommitted session. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil || s.done {
		return nil
	}
	return s.Rollback()
}

// WithTx executes fn inside a session, rolling back on error/panic.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	sess, err := c.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = sess.Rollback()
			panic(r)
		}
	}()

	if err := fn(sess.DB()); err != nil {
		_ = sess.Rollback()
		return err
	}

	return sess.Commit()
}
