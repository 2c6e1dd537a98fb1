package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/jobshare/internal/model"
)

// UserResolver picks the user responsible for incoming work at a company.
type UserResolver interface {
	Name() string
	Resolve(company *model.Company) (uuid.UUID, bool)
}

type resolverFunc struct {
	name string
	fn   func(company *model.Company) (uuid.UUID, bool)
}

func (r resolverFunc) Name() string { return r.name }

func (r resolverFunc) Resolve(company *model.Company) (uuid.UUID, bool) {
	return r.fn(company)
}

func pointerResolver(name string, field func(*model.Company) *uuid.UUID) UserResolver {
	return resolverFunc{name: name, fn: func(company *model.Company) (uuid.UUID, bool) {
		id := field(company)
		if id == nil || *id == uuid.Nil {
			return uuid.Nil, false
		}
		return *id, true
	}}
}

var (
	OwnerResolver       = pointerResolver("owner_id", func(c *model.Company) *uuid.UUID { return c.OwnerID })
	PrimaryUserResolver = pointerResolver("primary_user_id", func(c *model.Company) *uuid.UUID { return c.PrimaryUserID })
	CreatorResolver     = pointerResolver("created_by", func(c *model.Company) *uuid.UUID { return c.CreatedBy })

	AdminResolver UserResolver = resolverFunc{name: "admin_user", fn: func(c *model.Company) (uuid.UUID, bool) {
		for _, user := range c.Users {
			if user.Role == model.UserRoleAdmin && user.UserID != uuid.Nil {
				return user.UserID, true
			}
		}
		return uuid.Nil, false
	}}

	FirstUserResolver UserResolver = resolverFunc{name: "first_user", fn: func(c *model.Company) (uuid.UUID, bool) {
		for _, user := range c.Users {
			if user.UserID != uuid.Nil {
				return user.UserID, true
			}
		}
		return uuid.Nil, false
	}}
)

func DefaultUserResolvers() []UserResolver {
	return []UserResolver{
		OwnerResolver,
		PrimaryUserResolver,
		CreatorResolver,
		AdminResolver,
		FirstUserResolver,
	}
}

// ResolveResponsibleUser runs resolvers in order and returns the first hit.
func ResolveResponsibleUser(company *model.Company, resolvers []UserResolver) (uuid.UUID, error) {
	for _, resolver := range resolvers {
		if id, ok := resolver.Resolve(company); ok {
			return id, nil
		}
	}
	return uuid.Nil, fmt.Errorf("%w: company %s", ErrNoResponsibleUser, company.ID)
}

// explicitUser validates a caller-chosen target user against the company.
func explicitUser(company *model.Company, userID uuid.UUID) (uuid.UUID, error) {
	if company.HasUser(userID) {
		return userID, nil
	}
	for _, resolver := range []UserResolver{OwnerResolver, PrimaryUserResolver, CreatorResolver} {
		if id, ok := resolver.Resolve(company); ok && id == userID {
			return userID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("%w: target_user_id is not a member of the target company", ErrInvalidInput)
}
