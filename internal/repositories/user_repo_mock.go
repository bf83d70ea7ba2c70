package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"marketplace/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	users    map[string]models.User
	carts    map[string][]models.CartItem
	wishlist map[string][]models.WishlistItem
	mu       sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:    make(map[string]models.User),
		carts:    make(map[string][]models.CartItem),
		wishlist: make(map[string][]models.WishlistItem),
	}
}

// Create adds a new user, rejecting duplicate usernames and emails.
func (r *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return fmt.Errorf("user %s: %w", user.Username, ErrDuplicate)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MockUserRepository) find(match func(models.User) bool, what string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, fmt.Errorf("user with %s: %w", what, ErrNotFound)
}

// GetByUsername returns a user by username.
func (r *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username }, "username "+username)
}

// GetByEmail returns a user by email.
func (r *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email }, "email "+email)
}

// GetByID returns a user by ID.
func (r *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id }, "id "+id)
}

// GetCart returns a copy of the user's cart.
func (r *MockUserRepository) GetCart(ctx context.Context, userID string) ([]models.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := slices.Clone(r.carts[userID])
	if items == nil {
		items = []models.CartItem{}
	}
	return items, nil
}

// AddCartItem inserts or increments the entry for productID.
func (r *MockUserRepository) AddCartItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := slices.Clone(r.carts[userID])
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity += quantity
			r.carts[userID] = items
			item := items[i]
			return &item, nil
		}
	}
	item := models.CartItem{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   time.Now().UTC(),
	}
	r.carts[userID] = append(items, item)
	return &item, nil
}

// SetCartItemQuantity overwrites one entry's quantity.
func (r *MockUserRepository) SetCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := slices.Clone(r.carts[userID])
	for i := range items {
		if items[i].ID == itemID {
			items[i].Quantity = quantity
			r.carts[userID] = items
			return nil
		}
	}
	return fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
}

// RemoveCartItems deletes the listed entries.
func (r *MockUserRepository) RemoveCartItems(ctx context.Context, userID string, itemIDs ...string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	kept := make([]models.CartItem, 0, len(r.carts[userID]))
	for _, item := range r.carts[userID] {
		if slices.Contains(itemIDs, item.ID) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	r.carts[userID] = kept
	return removed, nil
}

// ClearCart empties the user's cart.
func (r *MockUserRepository) ClearCart(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}

// GetWishlist returns a copy of the user's wishlist.
func (r *MockUserRepository) GetWishlist(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := slices.Clone(r.wishlist[userID])
	if items == nil {
		items = []models.WishlistItem{}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].AddedAt.Before(items[j].AddedAt) })
	return items, nil
}

// AddWishlistItem stores productID once.
func (r *MockUserRepository) AddWishlistItem(ctx context.Context, userID, productID string) (*models.WishlistItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.wishlist[userID] {
		if item.ProductID == productID {
			found := item
			return &found, nil
		}
	}
	item := models.WishlistItem{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: productID,
		AddedAt:   time.Now().UTC(),
	}
	r.wishlist[userID] = append(slices.Clone(r.wishlist[userID]), item)
	return &item, nil
}

// RemoveWishlistItem deletes productID from the wishlist.
func (r *MockUserRepository) RemoveWishlistItem(ctx context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.wishlist[userID]
	for i, item := range items {
		if item.ProductID == productID {
			r.wishlist[userID] = slices.Delete(slices.Clone(items), i, i+1)
			return nil
		}
	}
	return fmt.Errorf("wishlist product %s: %w", productID, ErrNotFound)
}

type userSnapshot struct {
	users    map[string]models.User
	carts    map[string][]models.CartItem
	wishlist map[string][]models.WishlistItem
}

func (r *MockUserRepository) snapshot() userSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := userSnapshot{
		users:    make(map[string]models.User, len(r.users)),
		carts:    make(map[string][]models.CartItem, len(r.carts)),
		wishlist: make(map[string][]models.WishlistItem, len(r.wishlist)),
	}
	for k, v := range r.users {
		snap.users[k] = v
	}
	for k, v := range r.carts {
		snap.carts[k] = slices.Clone(v)
	}
	for k, v := range r.wishlist {
		snap.wishlist[k] = slices.Clone(v)
	}
	return snap
}

func (r *MockUserRepository) restore(snap userSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = snap.users
	r.carts = snap.carts
	r.wishlist = snap.wishlist
}
