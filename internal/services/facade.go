package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shoplist/core/internal/session"
	"github.com/shoplist/core/internal/storage"
	"github.com/shoplist/core/types"
)

// ListRepository defines persistence operations for lists.
type ListRepository interface {
	Create(ctx context.Context, name, description string) (types.ShoppingList, error)
	List(ctx context.Context) ([]types.ShoppingList, error)
	Get(ctx context.Context, id string) (types.ShoppingList, error)
	Update(ctx context.Context, id string, patch types.ListPatch) (types.ShoppingList, error)
	Delete(ctx context.Context, id string) error
}

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	Add(ctx context.Context, listID, name string, quantity int) (types.Product, error)
	ListFor(ctx context.Context, listID string) ([]types.Product, error)
	Get(ctx context.Context, id string) (types.Product, error)
	SetBought(ctx context.Context, id string, bought bool) (types.Product, error)
	SetQuantity(ctx context.Context, id string, quantity int) (types.Product, error)
	Update(ctx context.Context, id string, patch types.ProductPatch) (types.Product, error)
	Delete(ctx context.Context, id string) error
}

// Session is the sign-in lifecycle and principal resolution used by the Facade.
type Session interface {
	SignUp(ctx context.Context, email, password, username string) (types.UserProfile, error)
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	Capabilities(ctx context.Context, op string) (types.UserProfile, types.RoleCapabilities, error)
}

// ExportSink stores exported data. storage.Storage satisfies it.
type ExportSink interface {
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error
	ReadAll(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Facade is the call surface of the UI layer. It keeps an in-memory snapshot
// of the lists and products it has seen, applies bought and quantity changes
// optimistically and keeps per-list progress in step with the snapshot.
//
// One Facade backs one screen. Two Facades over the same store do not see
// each other's changes until they reload.
type Facade struct {
	session  Session
	lists    ListRepository
	products ProductRepository
	exports  ExportSink
	logger   *slog.Logger
	now      func() time.Time

	togglePolicy   FailurePolicy
	quantityPolicy FailurePolicy

	mu       sync.Mutex
	snapshot *snapshot
}

// Option customises a Facade.
type Option func(*Facade)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) { f.logger = logger }
}

// WithExportSink enables ExportData.
func WithExportSink(sink ExportSink) Option {
	return func(f *Facade) { f.exports = sink }
}

// WithTogglePolicy sets what happens to the local bought flag when the remote write fails.
func WithTogglePolicy(p FailurePolicy) Option {
	return func(f *Facade) { f.togglePolicy = p }
}

// WithQuantityPolicy sets what happens to the local quantity when the remote write fails.
func WithQuantityPolicy(p FailurePolicy) Option {
	return func(f *Facade) { f.quantityPolicy = p }
}

func WithClock(now func() time.Time) Option {
	return func(f *Facade) { f.now = now }
}

func NewFacade(sess Session, lists ListRepository, products ProductRepository, opts ...Option) *Facade {
	f := &Facade{
		session:        sess,
		lists:          lists,
		products:       products,
		logger:         slog.Default(),
		now:            time.Now,
		togglePolicy:   Rollback,
		quantityPolicy: Diverge,
		snapshot:       newSnapshot(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SignUp registers a new user and signs in.
func (f *Facade) SignUp(ctx context.Context, email, password, username string) (types.UserProfile, error) {
	f.reset()
	return f.session.SignUp(ctx, email, password, username)
}

// SignIn opens a session, discarding any snapshot of a previous user.
func (f *Facade) SignIn(ctx context.Context, email, password string) error {
	f.reset()
	return f.session.SignIn(ctx, email, password)
}

// SignOut closes the session and drops the snapshot.
func (f *Facade) SignOut(ctx context.Context) error {
	f.reset()
	return f.session.SignOut(ctx)
}

func (f *Facade) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = newSnapshot()
}

// authorize resolves the principal once per call and returns a context that
// carries it, so repositories do not resolve it again.
func (f *Facade) authorize(ctx context.Context, op string) (context.Context, types.UserProfile, types.RoleCapabilities, error) {
	profile, caps, err := f.session.Capabilities(ctx, op)
	if err != nil {
		return ctx, types.UserProfile{}, types.RoleCapabilities{}, err
	}
	return session.WithProfile(ctx, profile), profile, caps, nil
}
