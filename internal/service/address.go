package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shop_checkout/internal/addressbook"
	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/pkg/tokens"
)

// AddressService persists a user's address book. Every mutation is checked
// by addressbook.Book before it reaches the database.
type AddressService struct {
	Repo *repo.GormRepo
}

func toEntry(a models.Address) addressbook.Entry {
	return addressbook.Entry{
		ID: a.ID,
		Address: addressbook.Address{
			Label:      a.Label,
			Name:       a.Name,
			Phone:      a.Phone,
			Street:     a.Street,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		},
	}
}

func fromEntry(userID uuid.UUID, e addressbook.Entry, selected bool) *models.Address {
	return &models.Address{
		ID:         e.ID,
		UserID:     userID,
		Label:      e.Label,
		Name:       e.Name,
		Phone:      e.Phone,
		Street:     e.Street,
		City:       e.City,
		State:      e.State,
		PostalCode: e.PostalCode,
		Country:    e.Country,
		Selected:   selected,
	}
}

func addressError(err error) error {
	switch {
	case errors.Is(err, addressbook.ErrInvalid):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	case errors.Is(err, addressbook.ErrUnknown):
		return fmt.Errorf("%w: address", ErrNotFound)
	}
	return err
}

func (s *AddressService) load(ctx context.Context, r *repo.GormRepo, userID uuid.UUID) (*addressbook.Book, error) {
	rows, err := r.ListAddresses(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]addressbook.Entry, 0, len(rows))
	selected := uuid.Nil
	for _, a := range rows {
		entries = append(entries, toEntry(a))
		if a.Selected {
			selected = a.ID
		}
	}
	return addressbook.New(entries, selected), nil
}

func (s *AddressService) Book(ctx context.Context, cred *tokens.Credential) (*addressbook.Book, error) {
	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.Repo, userID)
}

func (s *AddressService) List(ctx context.Context, cred *tokens.Credential) ([]models.Address, error) {
	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}
	rows, err := s.Repo.ListAddresses(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Address{}
	}
	return rows, nil
}

func (s *AddressService) Add(ctx context.Context, cred *tokens.Credential, a addressbook.Address) (*models.Address, error) {
	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}

	var out *models.Address
	err = s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		book, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		e, err := book.Add(a)
		if err != nil {
			return addressError(err)
		}
		sel, _ := book.Selected()
		out = fromEntry(userID, e, sel.ID == e.ID)
		return tx.CreateAddress(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AddressService) Edit(ctx context.Context, cred *tokens.Credential, id uuid.UUID, a addressbook.Address) (*models.Address, error) {
	userID, err := requireUser(cred)
	if err != nil {
		return nil, err
	}

	var out *models.Address
	err = s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		book, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		e, err := book.Edit(id, a)
		if err != nil {
			return addressError(err)
		}
		sel, _ := book.Selected()
		out = fromEntry(userID, e, sel.ID == e.ID)
		return tx.UpdateAddress(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AddressService) Delete(ctx context.Context, cred *tokens.Credential, id uuid.UUID) error {
	userID, err := requireUser(cred)
	if err != nil {
		return err
	}

	return s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		book, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := book.Delete(id); err != nil {
			return addressError(err)
		}
		return tx.DeleteAddress(ctx, userID, id)
	})
}

func (s *AddressService) Select(ctx context.Context, cred *tokens.Credential, id uuid.UUID) error {
	userID, err := requireUser(cred)
	if err != nil {
		return err
	}
	err = s.Repo.SelectAddress(ctx, userID, id)
	if repo.IsNotFound(err) {
		return fmt.Errorf("%w: address", ErrNotFound)
	}
	return err
}
