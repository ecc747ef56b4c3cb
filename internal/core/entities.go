package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"repmarket/internal/common"
	"repmarket/internal/events"
	"repmarket/models"
)

// EntityRegistry owns client legal entities and the single-default invariant:
// whenever an owner has at least one entity, exactly one of them is default.
// Mutations are serialized per owner; the invariant spans the owner's whole
// entity set, so a lone row write cannot protect it.
type EntityRegistry struct {
	store     Storage
	pub       events.Publisher
	now       func() time.Time
	ownerLock *keyedMutex
}

type EntityInput struct {
	Name               string `json:"name"`
	Type               string `json:"type"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	Address            string `json:"address"`
	RegistrationNumber string `json:"registrationNumber"`
	CipcNumber         string `json:"cipcNumber"`
	CsdNumber          string `json:"csdNumber"`
	TaxNumber          string `json:"taxNumber"`
	VatNumber          string `json:"vatNumber"`
}

type EntityUpdate struct {
	Name               *string `json:"name"`
	Type               *string `json:"type"`
	Phone              *string `json:"phone"`
	Email              *string `json:"email"`
	Address            *string `json:"address"`
	RegistrationNumber *string `json:"registrationNumber"`
	CipcNumber         *string `json:"cipcNumber"`
	CsdNumber          *string `json:"csdNumber"`
	TaxNumber          *string `json:"taxNumber"`
	VatNumber          *string `json:"vatNumber"`
}

func (in *EntityInput) validate() error {
	required := map[string]string{
		"name":    in.Name,
		"phone":   in.Phone,
		"email":   in.Email,
		"address": in.Address,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			return &common.ValidationError{Field: field, Reason: "must not be blank"}
		}
	}
	return nil
}

// Create registers a new entity. The owner's first entity always becomes the
// default regardless of input.
func (r *EntityRegistry) Create(ctx context.Context, ownerID string, in EntityInput) (*models.Entity, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	unlock := r.ownerLock.lock(ownerID)
	defer unlock()

	existing, err := r.store.GetOwnerEntities(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	e := &models.Entity{
		ID:                 "entity_" + uuid.NewString(),
		OwnerID:            ownerID,
		Name:               in.Name,
		Type:               in.Type,
		Phone:              in.Phone,
		Email:              in.Email,
		Address:            in.Address,
		RegistrationNumber: in.RegistrationNumber,
		CipcNumber:         in.CipcNumber,
		CsdNumber:          in.CsdNumber,
		TaxNumber:          in.TaxNumber,
		VatNumber:          in.VatNumber,
		IsDefault:          len(existing) == 0,
		CreatedAt:          r.now(),
	}
	if err := r.store.CreateEntity(ctx, e); err != nil {
		return nil, err
	}

	r.pub.Publish(ctx, events.Event{
		Type: events.TypeEntityCreated, Subject: e.ID, At: r.now(), Payload: e,
	})
	return e, nil
}

// Update merges the provided fields. It never touches the default flag; that
// goes through SetDefault.
func (r *EntityRegistry) Update(ctx context.Context, ownerID, entityID string, in EntityUpdate) (*models.Entity, error) {
	e, err := r.owned(ctx, ownerID, entityID)
	if err != nil {
		return nil, err
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&e.Name, in.Name)
	apply(&e.Type, in.Type)
	apply(&e.Phone, in.Phone)
	apply(&e.Email, in.Email)
	apply(&e.Address, in.Address)
	apply(&e.RegistrationNumber, in.RegistrationNumber)
	apply(&e.CipcNumber, in.CipcNumber)
	apply(&e.CsdNumber, in.CsdNumber)
	apply(&e.TaxNumber, in.TaxNumber)
	apply(&e.VatNumber, in.VatNumber)

	fields := EntityInput{Name: e.Name, Phone: e.Phone, Email: e.Email, Address: e.Address}
	if err := fields.validate(); err != nil {
		return nil, err
	}
	if err := r.store.UpdateEntity(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SetDefault flips the default flag to the target entity and off its
// siblings in one atomic storage write.
func (r *EntityRegistry) SetDefault(ctx context.Context, ownerID, entityID string) (*models.Entity, error) {
	unlock := r.ownerLock.lock(ownerID)
	defer unlock()

	e, err := r.owned(ctx, ownerID, entityID)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetDefaultEntity(ctx, ownerID, entityID); err != nil {
		return nil, err
	}
	e.IsDefault = true
	return e, nil
}

// Delete removes an entity. The owner's last entity cannot be deleted. When
// the deleted entity was the default, the earliest-created remaining entity
// (ties broken by id) becomes the new default in the same storage write.
func (r *EntityRegistry) Delete(ctx context.Context, ownerID, entityID string) error {
	unlock := r.ownerLock.lock(ownerID)
	defer unlock()

	e, err := r.owned(ctx, ownerID, entityID)
	if err != nil {
		return err
	}

	siblings, err := r.store.GetOwnerEntities(ctx, ownerID)
	if err != nil {
		return err
	}
	if len(siblings) <= 1 {
		return &common.InvariantViolation{Reason: "cannot delete the owner's last entity"}
	}

	var newDefault *models.Entity
	if e.IsDefault {
		for i := range siblings {
			s := &siblings[i]
			if s.ID == entityID {
				continue
			}
			if newDefault == nil || s.CreatedAt.Before(newDefault.CreatedAt) ||
				(s.CreatedAt.Equal(newDefault.CreatedAt) && s.ID < newDefault.ID) {
				newDefault = s
			}
		}
	}
	newDefaultID := ""
	if newDefault != nil {
		newDefaultID = newDefault.ID
	}
	return r.store.DeleteEntity(ctx, entityID, newDefaultID)
}

func (r *EntityRegistry) List(ctx context.Context, ownerID string) ([]models.Entity, error) {
	return r.store.GetOwnerEntities(ctx, ownerID)
}

func (r *EntityRegistry) owned(ctx context.Context, ownerID, entityID string) (*models.Entity, error) {
	e, err := r.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != ownerID {
		return nil, &common.NotFoundError{Kind: "entity", ID: entityID}
	}
	return e, nil
}
