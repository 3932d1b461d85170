package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/pricing"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/internal/transport"
	"github.com/Skotchmaster/shop_checkout/pkg/tokens"
)

type CartService struct {
	Repo   *repo.GormRepo
	Policy pricing.Policy
}

func requireUser(cred *tokens.Credential) (uuid.UUID, error) {
	if cred == nil || cred.UserID == uuid.Nil {
		return uuid.Nil, ErrAuthentication
	}
	return cred.UserID, nil
}

func (s *CartService) GetCart(ctx context.Context, cred *tokens.Credential) ([]models.CartItem, error) {
	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}
	return s.Repo.GetCart(ctx, userID)
}

func cartLines(items []models.CartItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return lines
}

// Summary prices the cart at the unit prices the lines were added with.
func (s *CartService) Summary(ctx context.Context, cred *tokens.Credential) (*transport.CartResponse, error) {
	items, err := s.GetCart(ctx, cred)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return &transport.CartResponse{
		Items:   items,
		Summary: pricing.Calculate(cartLines(items), s.Policy),
	}, nil
}

func (s *CartService) AddItem(ctx context.Context, cred *tokens.Credential, req transport.AddCartItemRequest) (*models.CartItem, error) {
	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}
	if req.ProductID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if req.Quantity == 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	prod, err := s.Repo.GetProduct(ctx, req.ProductID)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, req.ProductID)
	}
	if err != nil {
		return nil, err
	}

	size := strings.TrimSpace(req.Size)
	if !prod.OffersSize(size) {
		return nil, fmt.Errorf("%w: size %q is not offered for %s", ErrValidation, size, prod.Name)
	}

	item := &models.CartItem{
		UserID:    userID,
		ProductID: prod.ID,
		Size:      size,
		Quantity:  req.Quantity,
		UnitPrice: prod.Price,
	}
	if err := s.Repo.AddToCart(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CartService) UpdateItem(ctx context.Context, cred *tokens.Credential, itemID uuid.UUID, quantity uint) (*models.CartItem, error) {
	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	item, err := s.Repo.UpdateCartItemQuantity(ctx, userID, itemID, quantity)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: cart item %s", ErrNotFound, itemID)
	}
	return item, err
}

func (s *CartService) RemoveItem(ctx context.Context, cred *tokens.Credential, itemID uuid.UUID) error {
	userID, err := requireUser(cred)
	if err != nil {
		return err
	}
	err = s.Repo.RemoveCartItem(ctx, userID, itemID)
	if repo.IsNotFound(err) {
		return fmt.Errorf("%w: cart item %s", ErrNotFound, itemID)
	}
	return err
}

func (s *CartService) Clear(ctx context.Context, cred *tokens.Credential) error {
	userID, err := requireUser(cred)
	if err != nil {
		return err
	}
	return s.Repo.ClearCart(ctx, userID)
}
