package services

import (
	"github.com/shoplist/core/internal/progress"
	"github.com/shoplist/core/types"
)

// FailurePolicy decides what an optimistic update does to local state when
// the remote write fails.
type FailurePolicy int

const (
	// Rollback restores the value held before the mutation.
	Rollback FailurePolicy = iota
	// Diverge keeps the optimistic value even though the store rejected it.
	Diverge
)

func (p FailurePolicy) String() string {
	if p == Diverge {
		return "diverge"
	}
	return "rollback"
}

// Status is the sync state of one product in the snapshot.
type Status int

const (
	StatusClean Status = iota
	StatusPending
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	default:
		return "clean"
	}
}

// EntityState tracks one product through an optimistic update:
// Clean, Pending(value) while the remote call is in flight, and
// Failed(err, rollback) once it was rejected.
type EntityState struct {
	Status Status

	// Pending is the optimistic value while Status is StatusPending.
	Pending types.Product

	// Rollback is the pre-mutation value and Err the rejection when Status is StatusFailed.
	Rollback types.Product
	Err      error

	// Policy is the failure policy that was applied on the last failure.
	Policy FailurePolicy
}

type listState struct {
	list     *types.ShoppingList
	order    []string
	products map[string]*types.Product

	// loaded is set once the full product set was fetched; until then the
	// state may only hold individually fetched products.
	loaded   bool
	progress types.Progress
}

type snapshot struct {
	lists     map[string]*listState
	listOrder []string
	owner     map[string]string // product id -> list id
	states    map[string]EntityState
}

func newSnapshot() *snapshot {
	return &snapshot{
		lists:  make(map[string]*listState),
		owner:  make(map[string]string),
		states: make(map[string]EntityState),
	}
}

func (s *snapshot) list(listID string) *listState {
	ls, ok := s.lists[listID]
	if !ok {
		ls = &listState{products: make(map[string]*types.Product)}
		s.lists[listID] = ls
		s.listOrder = append(s.listOrder, listID)
	}
	return ls
}

func (s *snapshot) putList(list types.ShoppingList) {
	l := list
	s.list(list.ID).list = &l
}

func (s *snapshot) dropList(listID string) {
	ls, ok := s.lists[listID]
	if !ok {
		return
	}
	for _, id := range ls.order {
		delete(s.owner, id)
		delete(s.states, id)
	}
	delete(s.lists, listID)
	for i, id := range s.listOrder {
		if id == listID {
			s.listOrder = append(s.listOrder[:i:i], s.listOrder[i+1:]...)
			break
		}
	}
}

// replaceProducts swaps in a freshly fetched product set for a list.
func (s *snapshot) replaceProducts(listID string, products []types.Product) {
	ls := s.list(listID)
	for _, id := range ls.order {
		delete(s.owner, id)
		delete(s.states, id)
	}
	ls.order = ls.order[:0]
	ls.products = make(map[string]*types.Product, len(products))
	for _, p := range products {
		s.putProductLocked(ls, p)
	}
	ls.loaded = true
	ls.recompute()
}

func (s *snapshot) putProduct(p types.Product) {
	ls := s.list(p.ListID)
	s.putProductLocked(ls, p)
	ls.recompute()
}

func (s *snapshot) putProductLocked(ls *listState, p types.Product) {
	if _, ok := ls.products[p.ID]; !ok {
		ls.order = append(ls.order, p.ID)
	}
	product := p
	ls.products[p.ID] = &product
	s.owner[p.ID] = p.ListID
}

func (s *snapshot) product(productID string) (types.Product, bool) {
	listID, ok := s.owner[productID]
	if !ok {
		return types.Product{}, false
	}
	p, ok := s.lists[listID].products[productID]
	if !ok {
		return types.Product{}, false
	}
	return *p, true
}

func (s *snapshot) dropProduct(productID string) {
	listID, ok := s.owner[productID]
	if !ok {
		return
	}
	ls := s.lists[listID]
	delete(ls.products, productID)
	for i, id := range ls.order {
		if id == productID {
			ls.order = append(ls.order[:i:i], ls.order[i+1:]...)
			break
		}
	}
	delete(s.owner, productID)
	delete(s.states, productID)
	ls.recompute()
}

func (s *snapshot) productsOf(listID string) []types.Product {
	ls, ok := s.lists[listID]
	if !ok {
		return nil
	}
	out := make([]types.Product, 0, len(ls.order))
	for _, id := range ls.order {
		out = append(out, *ls.products[id])
	}
	return out
}

func (ls *listState) recompute() {
	products := make([]types.Product, 0, len(ls.order))
	for _, id := range ls.order {
		products = append(products, *ls.products[id])
	}
	ls.progress = progress.Aggregate(products)
}
